package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtexp/modumb/internal/afsk"
	"github.com/jtexp/modumb/internal/audio"
	"github.com/jtexp/modumb/internal/frame"
	"github.com/jtexp/modumb/internal/frameio"
	"github.com/jtexp/modumb/internal/modem"
)

// pipeModem implements frameio.Modem over a pair of channels, so two
// Transports can be wired back-to-back without any audio involved.
type pipeModem struct {
	out chan<- []byte
	in  <-chan []byte
}

func (p *pipeModem) Send(data []byte, blocking bool) error {
	p.out <- data
	return nil
}

func (p *pipeModem) Receive(timeout time.Duration) ([]byte, error) {
	select {
	case d := <-p.in:
		return d, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func newPipe() (*pipeModem, *pipeModem) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	a := &pipeModem{out: ab, in: ba}
	b := &pipeModem{out: ba, in: ab}
	return a, b
}

func TestSendReceiveRoundTrip(t *testing.T) {
	modemA, modemB := newPipe()
	txFramer := frameio.New(modemA, time.Second, nil)
	rxFramer := frameio.New(modemB, time.Second, nil)

	tx := New(txFramer, time.Second, 2, 0, nil)
	rx := New(rxFramer, time.Second, 2, 0, nil)

	done := make(chan bool, 1)
	go func() { done <- tx.Send([]byte("hello, world")) }()

	got, err := rx.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello, world"), got)
	assert.True(t, <-done)
	assert.Equal(t, 1, tx.Stats.AckReceived)
}

func TestFragmentation(t *testing.T) {
	modemA, modemB := newPipe()
	tx := New(frameio.New(modemA, time.Second, nil), time.Second, 2, 4, nil)
	rx := New(frameio.New(modemB, time.Second, nil), time.Second, 2, 4, nil)

	done := make(chan bool, 1)
	go func() { done <- tx.Send([]byte("twelvebytes!")) }()

	var reassembled []byte
	for i := 0; i < 3; i++ {
		got, err := rx.Receive(2 * time.Second)
		require.NoError(t, err)
		reassembled = append(reassembled, got...)
	}
	assert.Equal(t, []byte("twelvebytes!"), reassembled)
	assert.True(t, <-done)
}

func TestDuplicateIsReACKedNotRedelivered(t *testing.T) {
	modemA, modemB := newPipe()
	rx := New(frameio.New(modemB, time.Second, nil), time.Second, 2, 0, nil)

	// Manually drive modemA as if it were a sender re-transmitting a
	// frame the receiver already accepted.
	txFramer := frameio.New(modemA, time.Second, nil)

	require.NoError(t, txFramer.SendFrame(frame.NewData(0, []byte("first"))))
	first, err := rx.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), first)

	// Re-send the same (now stale) sequence number.
	require.NoError(t, txFramer.SendFrame(frame.NewData(0, []byte("first"))))
	got, err := rx.Receive(200 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got, "a duplicate must not be delivered again")
}

// lossyModem drops its first transmission (the receiver's first ACK,
// when wrapped around the receive side), so the sender has to time out
// and retransmit once.
type lossyModem struct {
	*pipeModem
	dropped bool
}

func (l *lossyModem) Send(data []byte, blocking bool) error {
	if !l.dropped {
		l.dropped = true
		return nil
	}
	return l.pipeModem.Send(data, blocking)
}

func TestRetransmitAfterLostAck(t *testing.T) {
	modemA, modemB := newPipe()
	tx := New(frameio.New(modemA, time.Second, nil), 300*time.Millisecond, 2, 0, nil)
	rx := New(frameio.New(&lossyModem{pipeModem: modemB}, time.Second, nil), 300*time.Millisecond, 2, 0, nil)

	done := make(chan bool, 1)
	go func() { done <- tx.Send([]byte("test")) }()

	got, err := rx.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("test"), got)

	// The retransmitted duplicate arrives next; its re-ACK is the one
	// that actually reaches the sender.
	_, err = rx.Receive(time.Second)
	require.NoError(t, err)

	assert.True(t, <-done)
	assert.Equal(t, 1, tx.Stats.Retransmissions)
	assert.Equal(t, 1, tx.Stats.AckReceived)
}

// TestSendReceiveOverLoopbackAudio drives the whole stack below the
// transport for real: bytes are modulated to audio, carried over a
// cross-connected loopback port pair, demodulated, and reassembled.
func TestSendReceiveOverLoopbackAudio(t *testing.T) {
	portA, portB := audio.NewLoopbackPair(audio.Config{Loopback: true})
	params := afsk.DefaultParams()

	modemA := modem.New(portA, params)
	modemB := modem.New(portB, params)
	require.NoError(t, modemA.Start())
	defer modemA.Stop()
	require.NoError(t, modemB.Start())
	defer modemB.Stop()

	tx := New(frameio.New(modemA, 0, nil), 2*time.Second, 2, 16, nil)
	rx := New(frameio.New(modemB, 0, nil), 2*time.Second, 2, 16, nil)

	payload := []byte("the quick brown fox jumps over the lazy dog")
	done := make(chan bool, 1)
	go func() { done <- tx.Send(payload) }()

	got := rx.ReceiveAll(15 * time.Second)
	require.True(t, <-done)
	assert.Equal(t, payload, got)
}

func TestIsPastHandlesWraparound(t *testing.T) {
	assert.True(t, isPast(0xFFFF, 0x0000))
	assert.False(t, isPast(0x0000, 0xFFFF))
	assert.False(t, isPast(5, 5))
	assert.True(t, isPast(4, 5))
	assert.False(t, isPast(6, 5))
}
