package modem

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtexp/modumb/internal/afsk"
	"github.com/jtexp/modumb/internal/audio"
)

// fakePTT records keying calls so NewKeyed's PTT sequencing can be
// checked without any real hardware.
type fakePTT struct {
	events []string
}

func (f *fakePTT) Key() error   { f.events = append(f.events, "key"); return nil }
func (f *fakePTT) Unkey() error { f.events = append(f.events, "unkey"); return nil }
func (f *fakePTT) Close() error { return nil }

func TestSendReceiveLoopback(t *testing.T) {
	port := audio.NewLoopbackPort(audio.Config{Loopback: true, Audible: false})
	params := afsk.DefaultParams()
	m := New(port, params)

	require.NoError(t, m.Start())
	defer m.Stop()

	payload := []byte("hi there")
	go func() {
		_ = m.Send(payload, true)
	}()

	received, err := m.Receive(2 * time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, received)
	require.True(t, bytes.Contains(received, payload))
}

func TestNewKeyedKeysAndUnkeysAroundBlockingSend(t *testing.T) {
	port := audio.NewLoopbackPort(audio.Config{Loopback: true})
	ptt := &fakePTT{}
	m := NewKeyed(port, ptt, afsk.DefaultParams())

	require.NoError(t, m.Start())
	defer m.Stop()

	require.NoError(t, m.Send([]byte("x"), true))
	assert.Equal(t, []string{"key", "unkey"}, ptt.events)
}
