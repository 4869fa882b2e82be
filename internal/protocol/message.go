package protocol

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/airsniff/internal/cobs"
)

// Message is one protocol unit.
type Message struct {
	Type    MessageType
	Flags   uint8
	Payload []byte
}

// EncodeMessage builds the wire form of a message: the header and payload
// are COBS-stuffed and wrapped in a leading and a trailing delimiter, so a
// receiver resynchronizes even after a corrupt predecessor.
func EncodeMessage(t MessageType, payload []byte) ([]byte, error) {
	return Message{Type: t, Payload: payload}.MarshalBinary()
}

// MarshalBinary returns the delimited wire form of m.
func (m Message) MarshalBinary() ([]byte, error) {
	if len(m.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(m.Payload))
	}
	raw := make([]byte, HeaderSize, HeaderSize+len(m.Payload))
	raw[0] = byte(m.Type)
	raw[1] = m.Flags
	binary.LittleEndian.PutUint16(raw[2:4], uint16(len(m.Payload)))
	raw = append(raw, m.Payload...)

	stuffed := cobs.Encode(raw)
	out := make([]byte, 0, len(stuffed)+2)
	out = append(out, cobs.Delimiter)
	out = append(out, stuffed...)
	out = append(out, cobs.Delimiter)
	return out, nil
}

// DecodeMessage parses an unstuffed span. Bytes beyond the declared payload
// length are ignored.
func DecodeMessage(b []byte) (Message, error) {
	if len(b) < HeaderSize {
		return Message{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedFraming, len(b))
	}
	n := int(binary.LittleEndian.Uint16(b[2:4]))
	if len(b)-HeaderSize < n {
		return Message{}, fmt.Errorf("%w: payload declares %d bytes, %d present", ErrMalformedFraming, n, len(b)-HeaderSize)
	}
	return Message{
		Type:    MessageType(b[0]),
		Flags:   b[1],
		Payload: b[HeaderSize : HeaderSize+n : HeaderSize+n],
	}, nil
}

// ScanStartPayload builds the start-scan payload.
func ScanStartPayload(channel, filter uint8) ([]byte, error) {
	if !ValidChannel(channel) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	if !ValidFilter(filter) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidFilter, filter)
	}
	return []byte{channel, filter}, nil
}

// ParseErrorPayload decodes an error response into the failed command and
// its error code.
func ParseErrorPayload(p []byte) (MessageType, ErrorCode, error) {
	if len(p) < 2 {
		return 0, 0, fmt.Errorf("%w: error response carries %d bytes, need 2", ErrMalformedFraming, len(p))
	}
	return MessageType(p[0]), ErrorCode(p[1]), nil
}

// ParsePromiscStatus decodes a promiscuous-status response. An empty
// payload reads as disabled.
func ParsePromiscStatus(p []byte) bool {
	return len(p) > 0 && p[0] != 0
}
