// Package frameio sends and receives link-layer frames over a modem,
// queuing frames that don't match what a caller is currently waiting
// for so they aren't lost to a later WaitForFrame call.
package frameio

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/jtexp/modumb/internal/frame"
	"github.com/jtexp/modumb/internal/modem"
)

// DefaultFrameTimeout bounds a single receive attempt when the caller
// doesn't supply a timeout of its own.
const DefaultFrameTimeout = 2 * time.Second

// Modem is the subset of *modem.Modem that Framer depends on.
type Modem interface {
	Send(data []byte, blocking bool) error
	Receive(timeout time.Duration) ([]byte, error)
}

var _ Modem = (*modem.Modem)(nil)

// Framer sends and receives frame.Frame values over a Modem, rejecting
// anything that fails to decode. Rejects are silent: logged at Debug,
// and the caller keeps listening. The channel is lossy by nature;
// retransmission is the upper layers' job.
type Framer struct {
	m            Modem
	frameTimeout time.Duration
	log          *log.Logger
	pending      []frame.Frame
}

// New builds a Framer. A zero frameTimeout uses DefaultFrameTimeout.
func New(m Modem, frameTimeout time.Duration, logger *log.Logger) *Framer {
	if frameTimeout == 0 {
		frameTimeout = DefaultFrameTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Framer{m: m, frameTimeout: frameTimeout, log: logger}
}

// SendFrame encodes and transmits f.
func (fr *Framer) SendFrame(f frame.Frame) error {
	data := f.Encode()
	fr.log.Debug("sending frame", "kind", f.Kind, "seq", f.Sequence, "bytes", len(data))
	return fr.m.Send(data, true)
}

// ReceiveFrame returns the next frame from its own pending queue, or
// else reads one burst from the modem and decodes it. ok=false with a
// nil error means nothing decodable arrived: either the timeout elapsed
// or the one burst received failed to decode.
func (fr *Framer) ReceiveFrame(timeout time.Duration) (frame.Frame, bool, error) {
	if len(fr.pending) > 0 {
		f := fr.pending[0]
		fr.pending = fr.pending[1:]
		return f, true, nil
	}

	if timeout == 0 {
		timeout = fr.frameTimeout
	}
	return fr.receiveFromModem(timeout)
}

// receiveFromModem reads one burst from the modem and attempts to decode
// it, bypassing the pending queue.
func (fr *Framer) receiveFromModem(timeout time.Duration) (frame.Frame, bool, error) {
	data, err := fr.m.Receive(timeout)
	if err != nil {
		return frame.Frame{}, false, err
	}
	if len(data) == 0 {
		return frame.Frame{}, false, nil
	}

	f, ok := frame.Decode(data)
	if !ok {
		fr.log.Debug("decode reject", "bytes", len(data))
		return frame.Frame{}, false, nil
	}
	fr.log.Debug("received frame", "kind", f.Kind, "seq", f.Sequence)
	return f, true, nil
}

// WaitForFrame blocks until a frame matching kind (if non-nil) and seq
// (if non-nil) arrives, or timeout elapses. Non-matching frames are
// queued for a later call rather than dropped.
func (fr *Framer) WaitForFrame(kind *frame.Kind, seq *uint16, timeout time.Duration) (frame.Frame, bool, error) {
	if timeout == 0 {
		timeout = fr.frameTimeout
	}
	deadline := time.Now().Add(timeout)

	for i, f := range fr.pending {
		if matches(f, kind, seq) {
			fr.pending = append(fr.pending[:i], fr.pending[i+1:]...)
			return f, true, nil
		}
	}

	// From here on, read straight from the modem: everything left in
	// pending has already failed the match above, and going back through
	// ReceiveFrame would just pop it again.
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frame.Frame{}, false, nil
		}
		f, ok, err := fr.receiveFromModem(remaining)
		if err != nil {
			return frame.Frame{}, false, err
		}
		if !ok {
			continue
		}
		if matches(f, kind, seq) {
			return f, true, nil
		}
		fr.pending = append(fr.pending, f)
	}
}

func matches(f frame.Frame, kind *frame.Kind, seq *uint16) bool {
	if kind != nil && f.Kind != *kind {
		return false
	}
	if seq != nil && f.Sequence != *seq {
		return false
	}
	return true
}

// Exchange sends f and waits for any response within timeout.
func (fr *Framer) Exchange(f frame.Frame, timeout time.Duration) (frame.Frame, bool, error) {
	if err := fr.SendFrame(f); err != nil {
		return frame.Frame{}, false, err
	}
	return fr.ReceiveFrame(timeout)
}
