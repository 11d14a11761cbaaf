package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtexp/modumb/internal/frame"
	"github.com/jtexp/modumb/internal/frameio"
)

func TestMessageTransportRoundTrip(t *testing.T) {
	modemA, modemB := newPipe()
	tx := NewMessageTransport(New(frameio.New(modemA, time.Second, nil), time.Second, 2, 0, nil))
	rx := NewMessageTransport(New(frameio.New(modemB, time.Second, nil), time.Second, 2, 0, nil))

	done := make(chan bool, 1)
	go func() { done <- tx.SendMessage([]byte("a whole message")) }()

	got := rx.ReceiveMessage(2 * time.Second)
	assert.Equal(t, []byte("a whole message"), got)
	assert.True(t, <-done)
}

func TestMessageTransportClosedConnectionReturnsNil(t *testing.T) {
	modemA, modemB := newPipe()
	rx := NewMessageTransport(New(frameio.New(modemB, time.Second, nil), time.Second, 2, 0, nil))

	txFramer := frameio.New(modemA, time.Second, nil)
	require.NoError(t, txFramer.SendFrame(frame.NewFin(0)))

	got := rx.ReceiveMessage(200 * time.Millisecond)
	assert.Nil(t, got)
}
