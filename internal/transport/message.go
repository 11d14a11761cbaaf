package transport

import (
	"encoding/binary"
	"time"
)

// MessageTransport adds a 4-byte little-endian length prefix on top of
// Transport's raw byte-stream Send/Receive, for callers that want
// whole-message semantics. Additive: Transport.Send/Receive still
// expose the unbounded byte stream for hosts that frame their own
// messages.
type MessageTransport struct {
	t *Transport
}

// NewMessageTransport wraps t.
func NewMessageTransport(t *Transport) *MessageTransport {
	return &MessageTransport{t: t}
}

// SendMessage sends a length-prefixed message.
func (m *MessageTransport) SendMessage(message []byte) bool {
	header := make([]byte, 4, 4+len(message))
	binary.LittleEndian.PutUint32(header, uint32(len(message)))
	return m.t.Send(append(header, message...))
}

// ReceiveMessage reads a length-prefixed message, returning nil if the
// connection closes before the full message arrives. A zero timeout
// uses Transport.Receive's default, twice the configured ACK timeout.
func (m *MessageTransport) ReceiveMessage(timeout time.Duration) []byte {
	var header []byte
	for len(header) < 4 {
		data, err := m.t.Receive(timeout)
		if err != nil || data == nil {
			return nil
		}
		header = append(header, data...)
	}

	length := binary.LittleEndian.Uint32(header[:4])
	message := append([]byte{}, header[4:]...)
	for uint32(len(message)) < length {
		data, err := m.t.Receive(timeout)
		if err != nil || data == nil {
			return nil
		}
		message = append(message, data...)
	}
	return message[:length]
}
