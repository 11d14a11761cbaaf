// Package hostio exposes an established *session.Session as a plain
// byte stream an external process can read and write, so an unmodified
// host application never has to link against this module. The stream
// carries no message boundaries; a host that needs them length-prefixes
// at its own layer.
package hostio

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jtexp/modumb/internal/session"
)

// ErrSessionNotEstablished is returned by Bridge.Run if the session
// isn't ESTABLISHED when the bridge starts.
var ErrSessionNotEstablished = errors.New("hostio: session not established")

// ReceiveTimeout bounds each poll of the session while pumping toward
// the host side; it only affects how quickly Run notices the session
// closing, not throughput.
const ReceiveTimeout = 500 * time.Millisecond

// Bridge pumps bytes between an rw (typically a pty master, or any
// io.ReadWriteCloser) and an established *session.Session, in both
// directions, until either side closes.
type Bridge struct {
	sess *session.Session
	rw   io.ReadWriteCloser
	log  *log.Logger

	once sync.Once
	done chan struct{}
	err  error
}

// New builds a Bridge over rw and sess. sess must already be
// ESTABLISHED; Run returns ErrSessionNotEstablished otherwise.
func New(rw io.ReadWriteCloser, sess *session.Session, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{sess: sess, rw: rw, log: logger, done: make(chan struct{})}
}

// Run pumps in both directions until the session closes, rw is closed,
// or an unrecoverable I/O error occurs on rw. It blocks until the
// bridge stops and returns the error that stopped it, if any.
func (b *Bridge) Run() error {
	if !b.sess.IsEstablished() {
		return ErrSessionNotEstablished
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); b.pumpFromHost() }()
	go func() { defer wg.Done(); b.pumpToHost() }()
	wg.Wait()

	return b.err
}

// pumpFromHost reads bytes written by the host application and sends
// them over the session.
func (b *Bridge) pumpFromHost() {
	buf := make([]byte, 4096)
	for {
		n, err := b.rw.Read(buf)
		if n > 0 {
			if !b.sess.Send(append([]byte{}, buf[:n]...)) {
				b.stop(errors.New("hostio: session send failed"))
				return
			}
		}
		if err != nil {
			b.stop(err)
			return
		}
		select {
		case <-b.done:
			return
		default:
		}
	}
}

// pumpToHost reads data from the session and writes it to the host.
func (b *Bridge) pumpToHost() {
	for {
		select {
		case <-b.done:
			return
		default:
		}

		data, err := b.sess.Receive(ReceiveTimeout)
		if err != nil {
			b.stop(err)
			return
		}
		if data == nil {
			if b.sess.State() != session.Established {
				b.stop(nil)
				return
			}
			continue
		}
		if _, err := b.rw.Write(data); err != nil {
			b.stop(err)
			return
		}
	}
}

func (b *Bridge) stop(err error) {
	b.once.Do(func() {
		b.err = err
		_ = b.rw.Close()
		close(b.done)
	})
}

// Close stops the bridge and closes the underlying rw.
func (b *Bridge) Close() error {
	b.stop(nil)
	return nil
}
