package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackTransmitReceive(t *testing.T) {
	p := NewLoopbackPort(Config{Loopback: true})
	require.NoError(t, p.Start())
	defer p.Stop()

	samples := []float32{0.1, 0.2, 0.3}
	require.NoError(t, p.Transmit(samples, true))

	got, err := p.Receive(len(samples), time.Second)
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}

func TestLoopbackReceiveTimesOutEmpty(t *testing.T) {
	p := NewLoopbackPort(Config{Loopback: true})
	require.NoError(t, p.Start())
	defer p.Stop()

	got, err := p.Receive(10, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoopbackNotRunningErrors(t *testing.T) {
	p := NewLoopbackPort(Config{Loopback: true})
	_, err := p.Receive(1, time.Millisecond)
	assert.ErrorIs(t, err, ErrNotRunning)

	err = p.Transmit([]float32{0}, false)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestLoopbackPairCrossConnects(t *testing.T) {
	a, b := NewLoopbackPair(Config{Loopback: true})
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	defer a.Stop()
	defer b.Stop()

	require.NoError(t, a.Transmit([]float32{0.5}, true))

	got, err := b.Receive(1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, got)

	// Nothing comes back on the sender's own input.
	got, err = a.Receive(1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("MODEM_LOOPBACK", "1")
	t.Setenv("MODEM_INPUT_DEVICE", "3")

	cfg := Config{}.withDefaults()
	assert.True(t, cfg.Loopback)
	require.NotNil(t, cfg.InputDevice)
	assert.Equal(t, 3, *cfg.InputDevice)
}
