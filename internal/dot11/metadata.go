// Package dot11 decodes frames captured by the sniffer: the fixed capture
// metadata record and the 802.11 MAC header fields of the raw frame.
package dot11

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MetadataSize is the wire size of Metadata.
const MetadataSize = 16

// ErrShortMetadata is returned when a capture payload cannot hold Metadata.
var ErrShortMetadata = errors.New("dot11: capture metadata too short")

// Metadata is the fixed record the firmware attaches to every captured frame.
type Metadata struct {
	Timestamp  uint32 // microseconds since device boot
	FrameLen   uint16 // declared length of the raw frame
	Channel    uint8
	RSSI       int8
	NoiseFloor int8
	PktType    uint8
	RxState    uint8
	Rate       uint8
	SeqNum     uint16
	Reserved   uint16
}

// ParseMetadata decodes the first MetadataSize bytes of b.
func ParseMetadata(b []byte) (Metadata, error) {
	if len(b) < MetadataSize {
		return Metadata{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortMetadata, len(b), MetadataSize)
	}
	return Metadata{
		Timestamp:  binary.LittleEndian.Uint32(b[0:4]),
		FrameLen:   binary.LittleEndian.Uint16(b[4:6]),
		Channel:    b[6],
		RSSI:       int8(b[7]),
		NoiseFloor: int8(b[8]),
		PktType:    b[9],
		RxState:    b[10],
		Rate:       b[11],
		SeqNum:     binary.LittleEndian.Uint16(b[12:14]),
		Reserved:   binary.LittleEndian.Uint16(b[14:16]),
	}, nil
}

// AppendBinary appends the wire form of m to dst.
func (m Metadata) AppendBinary(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, m.Timestamp)
	dst = binary.LittleEndian.AppendUint16(dst, m.FrameLen)
	dst = append(dst, m.Channel, byte(m.RSSI), byte(m.NoiseFloor), m.PktType, m.RxState, m.Rate)
	dst = binary.LittleEndian.AppendUint16(dst, m.SeqNum)
	dst = binary.LittleEndian.AppendUint16(dst, m.Reserved)
	return dst
}

// DecodeCapture splits a capture-frame event payload into metadata and raw
// frame bytes. The raw slice is clipped to the bytes actually present when
// the firmware truncated the frame below its declared length.
func DecodeCapture(payload []byte) (*Frame, error) {
	meta, err := ParseMetadata(payload)
	if err != nil {
		return nil, err
	}
	raw := payload[MetadataSize:]
	if int(meta.FrameLen) < len(raw) {
		raw = raw[:meta.FrameLen]
	}
	return NewFrame(meta, raw), nil
}
