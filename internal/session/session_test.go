package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtexp/modumb/internal/afsk"
	"github.com/jtexp/modumb/internal/audio"
	"github.com/jtexp/modumb/internal/frameio"
	"github.com/jtexp/modumb/internal/modem"
	"github.com/jtexp/modumb/internal/transport"
)

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

func newSessionPair() (*Session, *Session) {
	modemA, modemB := newPipe()
	framerA := frameio.New(modemA, time.Second, nil)
	framerB := frameio.New(modemB, time.Second, nil)

	cfg := Config{ConnectTimeout: time.Second, HandshakeRetries: 3, CloseTimeout: time.Second}
	client := New(transport.New(framerA, time.Second, 2, 0, nil), framerA, cfg, nil)
	server := New(transport.New(framerB, time.Second, 2, 0, nil), framerB, cfg, nil)
	return client, server
}

func TestHandshakeEstablishesBothSides(t *testing.T) {
	client, server := newSessionPair()

	serverOK := make(chan bool, 1)
	go func() { serverOK <- server.Accept(2 * time.Second) }()

	assert.True(t, client.Connect())
	assert.True(t, <-serverOK)
	assert.Equal(t, Established, client.State())
	assert.Equal(t, Established, server.State())
}

func TestSendReceiveAfterHandshake(t *testing.T) {
	client, server := newSessionPair()

	serverOK := make(chan bool, 1)
	go func() { serverOK <- server.Accept(2 * time.Second) }()
	require.True(t, client.Connect())
	require.True(t, <-serverOK)

	done := make(chan bool, 1)
	go func() { done <- client.Send([]byte("hello")) }()

	got, err := server.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.True(t, <-done)
}

func TestSendBeforeHandshakeFails(t *testing.T) {
	client, _ := newSessionPair()
	assert.False(t, client.Send([]byte("too early")))
}

func TestConnectFailsWhenNoPeerResponds(t *testing.T) {
	modemA, _ := newPipe()
	framerA := frameio.New(modemA, 50*time.Millisecond, nil)
	cfg := Config{ConnectTimeout: 50 * time.Millisecond, HandshakeRetries: 2, CloseTimeout: time.Second}
	client := New(transport.New(framerA, time.Second, 1, 0, nil), framerA, cfg, nil)

	assert.False(t, client.Connect())
	assert.Equal(t, Closed, client.State())
}

// TestHandshakeOverLoopbackAudio runs the full three-way handshake
// through the real modulator/demodulator over a loopback port pair.
func TestHandshakeOverLoopbackAudio(t *testing.T) {
	portA, portB := audio.NewLoopbackPair(audio.Config{Loopback: true})
	params := afsk.DefaultParams()

	modemA := modem.New(portA, params)
	modemB := modem.New(portB, params)
	require.NoError(t, modemA.Start())
	defer modemA.Stop()
	require.NoError(t, modemB.Start())
	defer modemB.Stop()

	framerA := frameio.New(modemA, 0, nil)
	framerB := frameio.New(modemB, 0, nil)

	cfg := Config{ConnectTimeout: 5 * time.Second, HandshakeRetries: 3}
	client := New(transport.New(framerA, 2*time.Second, 2, 0, nil), framerA, cfg, nil)
	server := New(transport.New(framerB, 2*time.Second, 2, 0, nil), framerB, cfg, nil)

	serverOK := make(chan bool, 1)
	go func() { serverOK <- server.Accept(10 * time.Second) }()

	assert.True(t, client.Connect())
	assert.True(t, <-serverOK)
	assert.True(t, client.IsEstablished())
	assert.True(t, server.IsEstablished())
}

func TestCloseTransitionsToClosed(t *testing.T) {
	client, server := newSessionPair()
	serverOK := make(chan bool, 1)
	go func() { serverOK <- server.Accept(2 * time.Second) }()
	require.True(t, client.Connect())
	require.True(t, <-serverOK)

	done := make(chan struct{})
	go func() {
		client.Close()
		close(done)
	}()

	// Server must see the FIN and ACK it for Close to return promptly.
	_, _ = server.Receive(2 * time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, Closed, client.State())
}
