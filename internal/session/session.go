// Package session adds a connection-oriented handshake and teardown on
// top of a reliable transport: a 3-way SYN/SYN-ACK/ACK handshake before
// data flows, and a FIN-based graceful close after.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jtexp/modumb/internal/frame"
	"github.com/jtexp/modumb/internal/frameio"
	"github.com/jtexp/modumb/internal/transport"
)

// State is a session's position in the handshake/teardown lifecycle.
type State int

const (
	Closed State = iota
	SynSent
	SynReceived
	Established
	FinWait
	CloseWait
	LastAck
	TimeWait
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case SynSent:
		return "SYN_SENT"
	case SynReceived:
		return "SYN_RECEIVED"
	case Established:
		return "ESTABLISHED"
	case FinWait:
		return "FIN_WAIT"
	case CloseWait:
		return "CLOSE_WAIT"
	case LastAck:
		return "LAST_ACK"
	case TimeWait:
		return "TIME_WAIT"
	default:
		return "UNKNOWN"
	}
}

// Config carries the handshake and teardown knobs.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeRetries int
	CloseTimeout     time.Duration
}

// DefaultConfig returns the default handshake timing.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   8 * time.Second,
		HandshakeRetries: 5,
		CloseTimeout:     2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.HandshakeRetries == 0 {
		c.HandshakeRetries = d.HandshakeRetries
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = d.CloseTimeout
	}
	return c
}

// Session is a connection-oriented session layered over a
// *transport.Transport.
type Session struct {
	transport *transport.Transport
	framer    *frameio.Framer
	cfg       Config
	log       *log.Logger

	mu    sync.Mutex
	state State
}

// New builds a Session over t, whose frames flow through framer. A zero
// Config uses DefaultConfig.
func New(t *transport.Transport, framer *frameio.Framer, cfg Config, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{transport: t, framer: framer, cfg: cfg.withDefaults(), log: logger, state: Closed}
}

// Connect performs the client side of the 3-way handshake: send SYN,
// wait for SYN-ACK, send ACK. It retries up to cfg.HandshakeRetries
// times before giving up.
func (s *Session) Connect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Closed {
		return false
	}

	synAck := frame.SynAck
	for attempt := 0; attempt < s.cfg.HandshakeRetries; attempt++ {
		s.log.Debug("sending SYN", "attempt", attempt+1)
		if err := s.framer.SendFrame(frame.NewSyn()); err != nil {
			s.log.Debug("syn send failed", "err", err)
			continue
		}
		s.state = SynSent

		resp, ok, err := s.framer.WaitForFrame(&synAck, nil, s.cfg.ConnectTimeout)
		if err != nil || !ok {
			s.log.Debug("no SYN-ACK received")
			continue
		}
		_ = resp

		if err := s.framer.SendFrame(frame.NewAck(0)); err != nil {
			s.log.Debug("ack send failed", "err", err)
			continue
		}
		s.state = Established
		s.transport.Reset()
		s.log.Debug("session established (client)")
		return true
	}

	s.state = Closed
	return false
}

// Accept performs the server side of the handshake: wait for SYN, send
// SYN-ACK, wait for ACK. A zero timeout uses twice cfg.ConnectTimeout.
func (s *Session) Accept(timeout time.Duration) bool {
	if timeout == 0 {
		timeout = 2 * s.cfg.ConnectTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Closed {
		return false
	}

	syn := frame.Syn
	s.log.Debug("waiting for SYN", "timeout", timeout)
	_, ok, err := s.framer.WaitForFrame(&syn, nil, timeout)
	if err != nil || !ok {
		s.log.Debug("no SYN received")
		return false
	}
	s.state = SynReceived

	if err := s.framer.SendFrame(frame.NewSynAck()); err != nil {
		s.log.Debug("syn-ack send failed", "err", err)
		s.state = Closed
		return false
	}

	ack := frame.Ack
	_, ok, err = s.framer.WaitForFrame(&ack, nil, s.cfg.ConnectTimeout)
	if err != nil || !ok {
		s.state = Closed
		return false
	}

	s.state = Established
	s.transport.Reset()
	s.log.Debug("session established (server)")
	return true
}

// Send transmits data over an established session.
func (s *Session) Send(data []byte) bool {
	if s.State() != Established {
		return false
	}
	return s.transport.Send(data)
}

// Receive waits for data on an established session. A zero timeout
// uses the transport's default. A peer FIN or RST closes the session;
// like a timeout, it yields nil data, and the state moves to CLOSED.
func (s *Session) Receive(timeout time.Duration) ([]byte, error) {
	if s.State() != Established {
		return nil, nil
	}
	data, err := s.transport.Receive(timeout)
	if errors.Is(err, transport.ErrClosed) {
		s.mu.Lock()
		s.state = Closed
		s.mu.Unlock()
		return nil, nil
	}
	return data, err
}

// Close gracefully tears the session down, sending a FIN and waiting
// for its ACK via the underlying transport.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Established {
		s.state = Closed
		return
	}

	s.state = FinWait
	s.transport.Close()
	s.state = Closed
}

// Reset forces the session closed and resets transport sequence state,
// notifying the peer with an RST.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.framer.SendFrame(frame.NewRst())
	s.state = Closed
	s.transport.Reset()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsEstablished reports whether the session is in the ESTABLISHED state.
func (s *Session) IsEstablished() bool { return s.State() == Established }

// IsClosed reports whether the session is in the CLOSED state.
func (s *Session) IsClosed() bool { return s.State() == Closed }
