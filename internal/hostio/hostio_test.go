package hostio

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtexp/modumb/internal/frameio"
	"github.com/jtexp/modumb/internal/session"
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
	return &pipeModem{out: ab, in: ba}, &pipeModem{out: ba, in: ab}
}

// memRWC is an in-memory io.ReadWriteCloser standing in for a pty
// master, so Bridge can be tested without the OS.
type memRWC struct {
	mu     sync.Mutex
	toHost bytes.Buffer
	cond   *sync.Cond
	closed bool

	fromHost chan []byte
}

func newMemRWC() *memRWC {
	m := &memRWC{fromHost: make(chan []byte, 16)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Write simulates the session writing bytes toward the host.
func (m *memRWC) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toHost.Write(p)
	m.cond.Broadcast()
	return len(p), nil
}

// Read simulates the host writing bytes toward the session.
func (m *memRWC) Read(p []byte) (int, error) {
	data, ok := <-m.fromHost
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (m *memRWC) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.fromHost)
	}
	return nil
}

func (m *memRWC) hostWrites(data []byte) {
	m.fromHost <- data
}

func (m *memRWC) waitForHostRead(want string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.toHost.String() != want {
		if time.Now().After(deadline) {
			return false
		}
		m.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		m.mu.Lock()
	}
	return true
}

func newEstablishedPair(t *testing.T) (*session.Session, *session.Session) {
	t.Helper()
	modemA, modemB := newPipe()
	framerA := frameio.New(modemA, time.Second, nil)
	framerB := frameio.New(modemB, time.Second, nil)

	cfg := session.Config{ConnectTimeout: time.Second, HandshakeRetries: 3}
	client := session.New(transport.New(framerA, time.Second, 2, 0, nil), framerA, cfg, nil)
	server := session.New(transport.New(framerB, time.Second, 2, 0, nil), framerB, cfg, nil)

	serverOK := make(chan bool, 1)
	go func() { serverOK <- server.Accept(2 * time.Second) }()
	require.True(t, client.Connect())
	require.True(t, <-serverOK)
	return client, server
}

func TestBridgeRunRejectsUnestablishedSession(t *testing.T) {
	modemA, _ := newPipe()
	framerA := frameio.New(modemA, time.Second, nil)
	sess := session.New(transport.New(framerA, time.Second, 2, 0, nil), framerA, session.Config{}, nil)

	b := New(newMemRWC(), sess, nil)
	assert.ErrorIs(t, b.Run(), ErrSessionNotEstablished)
}

func TestBridgePumpsHostToSession(t *testing.T) {
	client, server := newEstablishedPair(t)

	hostSide := newMemRWC()
	b := New(hostSide, client, nil)
	go b.Run()

	hostSide.hostWrites([]byte("from host"))

	got, err := server.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("from host"), got)

	b.Close()
}

func TestBridgePumpsSessionToHost(t *testing.T) {
	client, server := newEstablishedPair(t)

	hostSide := newMemRWC()
	b := New(hostSide, client, nil)
	go b.Run()

	require.True(t, server.Send([]byte("to host")))
	assert.True(t, hostSide.waitForHostRead("to host", 2*time.Second))

	b.Close()
}
