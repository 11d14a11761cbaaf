// Package transport implements reliable delivery over the unreliable
// frame layer using Stop-and-Wait ARQ: per-fragment ACK/NAK, bounded
// retransmission, and duplicate/out-of-order handling on receive.
package transport

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jtexp/modumb/internal/frame"
	"github.com/jtexp/modumb/internal/frameio"
)

// ErrClosed is returned by Receive when the peer tears the connection
// down (FIN or RST), so "connection gone" is distinguishable from a
// plain timeout's nil, nil result.
var ErrClosed = errors.New("transport: connection closed by peer")

// ARQ defaults.
const (
	DefaultTimeout  = 3 * time.Second
	DefaultRetries  = 3
	DefaultFragment = frame.MaxPayload
)

// Stats counts transport-level events.
type Stats struct {
	FramesSent      int
	FramesReceived  int
	Retransmissions int
	Timeouts        int
	AckReceived     int
	NakReceived     int
}

// Transport is a reliable, fragmenting, Stop-and-Wait ARQ layer over a
// frameio.Framer.
type Transport struct {
	framer   *frameio.Framer
	timeout  time.Duration
	retries  int
	fragment int
	log      *log.Logger

	txSeq uint16
	rxSeq uint16

	Stats Stats
}

// New builds a Transport. Zero timeout/retries/fragment use the package
// defaults.
func New(framer *frameio.Framer, timeout time.Duration, retries, fragment int, logger *log.Logger) *Transport {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if retries == 0 {
		retries = DefaultRetries
	}
	if fragment == 0 || fragment > frame.MaxPayload {
		fragment = DefaultFragment
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Transport{framer: framer, timeout: timeout, retries: retries, fragment: fragment, log: logger}
}

func (t *Transport) nextSeq() uint16 {
	seq := t.txSeq
	t.txSeq++
	return seq
}

// Send fragments data and sends every fragment with Stop-and-Wait ARQ,
// returning false if any fragment exhausts its retries or the peer
// resets the connection.
func (t *Transport) Send(data []byte) bool {
	for _, frag := range fragment(data, t.fragment) {
		if !t.sendFragment(frag) {
			return false
		}
	}
	return true
}

func fragment(data []byte, size int) [][]byte {
	if len(data) <= size {
		return [][]byte{data}
	}
	var out [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[i:end])
	}
	return out
}

func (t *Transport) sendFragment(data []byte) bool {
	seq := t.nextSeq()
	f := frame.NewData(seq, data)

	for attempt := 0; attempt <= t.retries; attempt++ {
		if err := t.framer.SendFrame(f); err != nil {
			t.log.Debug("send failed", "err", err)
			return false
		}
		t.Stats.FramesSent++
		if attempt > 0 {
			t.Stats.Retransmissions++
		}

		deadline := time.Now().Add(t.timeout)
	wait:
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				t.Stats.Timeouts++
				break
			}

			response, ok, err := t.framer.WaitForFrame(nil, nil, remaining)
			if err != nil {
				t.log.Debug("wait for ack failed", "err", err)
				return false
			}
			if !ok {
				t.Stats.Timeouts++
				break
			}

			switch response.Kind {
			case frame.Ack:
				if response.Sequence == seq {
					t.Stats.AckReceived++
					return true
				}
				// Stale ACK for an earlier sequence; keep waiting within
				// the same timeout window.
			case frame.Nak:
				// Immediate retransmit, without waiting out the window.
				t.Stats.NakReceived++
				break wait
			case frame.Rst:
				return false
			}
		}
	}
	return false
}

// Receive waits for the next DATA frame, ACKing it if it is the
// expected next sequence number and returning its payload. Duplicates
// (already-seen sequence numbers) are re-ACKed and skipped; frames
// ahead of the expected sequence trigger a NAK. A nil, nil result means
// nothing arrived before timeout; a FIN or RST from the peer is ACKed
// (for FIN) and reported as ErrClosed.
func (t *Transport) Receive(timeout time.Duration) ([]byte, error) {
	if timeout == 0 {
		timeout = 2 * t.timeout
	}
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		f, ok, err := t.framer.ReceiveFrame(remaining)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		t.Stats.FramesReceived++

		switch f.Kind {
		case frame.Data:
			switch {
			case f.Sequence == t.rxSeq:
				t.rxSeq++
				_ = t.framer.SendFrame(frame.NewAck(f.Sequence))
				return f.Payload, nil
			case isPast(f.Sequence, t.rxSeq):
				// Already delivered; re-ACK so a lost ACK doesn't stall
				// the sender, but don't deliver it again.
				_ = t.framer.SendFrame(frame.NewAck(f.Sequence))
			default:
				// Ahead of what we expect: out of order.
				_ = t.framer.SendFrame(frame.NewNak(t.rxSeq))
			}
		case frame.Fin:
			_ = t.framer.SendFrame(frame.NewAck(f.Sequence))
			return nil, ErrClosed
		case frame.Rst:
			return nil, ErrClosed
		}
	}
}

// isPast reports whether got is strictly before want on the 16-bit
// wrapping sequence space, using a signed-delta comparison so the
// result stays correct across the 0xFFFF -> 0x0000 wraparound, where a
// raw got < want test breaks.
func isPast(got, want uint16) bool {
	return int16(got-want) < 0
}

// ReceiveAll accumulates DATA payloads until timeout elapses or the
// connection closes.
func (t *Transport) ReceiveAll(timeout time.Duration) []byte {
	if timeout == 0 {
		timeout = 4 * t.timeout
	}
	deadline := time.Now().Add(timeout)

	var out []byte
	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		step := t.timeout
		if remaining < step {
			step = remaining
		}
		data, err := t.Receive(step)
		if err != nil || data == nil {
			break
		}
		out = append(out, data...)
	}
	return out
}

// Reset zeroes sequence state and statistics.
func (t *Transport) Reset() {
	t.txSeq = 0
	t.rxSeq = 0
	t.Stats = Stats{}
}

// Close sends a FIN and waits for its ACK.
func (t *Transport) Close() {
	seq := t.nextSeq()
	_ = t.framer.SendFrame(frame.NewFin(seq))
	ackKind := frame.Ack
	_, _, _ = t.framer.WaitForFrame(&ackKind, &seq, t.timeout)
}
