// Package protocol implements the sniffer wire protocol: message types,
// COBS framing over a byte stream, and the command error taxonomy.
package protocol

import "fmt"

// MessageType is the first header byte of every message.
type MessageType uint8

// Commands (host to device).
const (
	CmdScanStart    MessageType = 0x01
	CmdScanStop     MessageType = 0x02
	CmdPromiscOn    MessageType = 0x03
	CmdPromiscOff   MessageType = 0x04
	CmdPromiscQuery MessageType = 0x05
)

// Responses (device to host).
const (
	RspAck           MessageType = 0x81
	RspError         MessageType = 0x82
	RspPromiscStatus MessageType = 0x83
)

// Events (device to host, unsolicited).
const (
	EvtFrame MessageType = 0xC0
)

// Header flag bits set by the firmware on responses.
const (
	FlagError uint8 = 1 << 0
	FlagAck   uint8 = 1 << 1
)

// HeaderSize is the fixed message header: type, flags, payload length.
const HeaderSize = 4

// MaxPayload is the largest payload the length field can describe.
const MaxPayload = 0xFFFF

// Frame-type filter bits carried in the start-scan payload.
const (
	FilterAll  uint8 = 0x00
	FilterMgmt uint8 = 0x01
	FilterCtrl uint8 = 0x02
	FilterData uint8 = 0x04

	filterMask = FilterMgmt | FilterCtrl | FilterData
)

// ValidFilter reports whether f only uses known filter bits.
func ValidFilter(f uint8) bool { return f&^filterMask == 0 }

// ChannelAll asks the firmware to cycle through every channel.
const ChannelAll uint8 = 0

var validChannels = map[uint8]bool{
	1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true,
	8: true, 9: true, 10: true, 11: true, 12: true, 13: true,
	36: true, 40: true, 44: true, 48: true,
	149: true, 153: true, 157: true, 161: true, 165: true,
}

// ValidChannel reports whether the firmware accepts ch for start-scan.
func ValidChannel(ch uint8) bool { return ch == ChannelAll || validChannels[ch] }

// IsCommand reports whether t is sent by the host.
func (t MessageType) IsCommand() bool { return t >= CmdScanStart && t <= CmdPromiscQuery }

// IsResponse reports whether t answers a command.
func (t MessageType) IsResponse() bool {
	return t == RspAck || t == RspError || t == RspPromiscStatus
}

// IsEvent reports whether t is an unsolicited event.
func (t MessageType) IsEvent() bool { return t == EvtFrame }

func (t MessageType) String() string {
	switch t {
	case CmdScanStart:
		return "scan-start"
	case CmdScanStop:
		return "scan-stop"
	case CmdPromiscOn:
		return "promisc-on"
	case CmdPromiscOff:
		return "promisc-off"
	case CmdPromiscQuery:
		return "promisc-query"
	case RspAck:
		return "ack"
	case RspError:
		return "error"
	case RspPromiscStatus:
		return "promisc-status"
	case EvtFrame:
		return "frame"
	default:
		return fmt.Sprintf("0x%02x", uint8(t))
	}
}
