package dot11

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/google/gopacket/layers"
)

// Frame types (frame control bits 2-3).
const (
	TypeMgmt uint8 = 0
	TypeCtrl uint8 = 1
	TypeData uint8 = 2
	TypeExt  uint8 = 3
)

// Management subtypes.
const (
	SubtypeAssocReq    uint8 = 0
	SubtypeAssocResp   uint8 = 1
	SubtypeReassocReq  uint8 = 2
	SubtypeReassocResp uint8 = 3
	SubtypeProbeReq    uint8 = 4
	SubtypeProbeResp   uint8 = 5
	SubtypeBeacon      uint8 = 8
	SubtypeATIM        uint8 = 9
	SubtypeDisassoc    uint8 = 10
	SubtypeAuth        uint8 = 11
	SubtypeDeauth      uint8 = 12
	SubtypeAction      uint8 = 13
)

const (
	macHeaderLen   = 24
	wdsHeaderLen   = 30
	beaconFixedLen = 12 // timestamp(8) + interval(2) + capability(2)
	assocFixedLen  = 4  // capability(2) + listen interval(2)
)

// Frame is one captured 802.11 frame. The raw buffer is never modified, so
// the header fields are decoded once, on first access, and kept.
type Frame struct {
	Meta Metadata

	raw  []byte
	once sync.Once
	f    fields
}

// fields is the derived record; it is written exactly once.
type fields struct {
	fc       uint16
	duration uint16

	addr1, addr2, addr3, addr4 net.HardwareAddr

	seqCtl uint16
	hasSeq bool

	bssid, src, dst net.HardwareAddr

	ieStart int // -1 when the frame carries no information elements

	ssid    string
	hasSSID bool
}

// NewFrame wraps raw without copying it. Callers must not modify raw after
// handing it over.
func NewFrame(meta Metadata, raw []byte) *Frame {
	return &Frame{Meta: meta, raw: raw}
}

// Raw returns the MAC-layer bytes as captured.
func (f *Frame) Raw() []byte { return f.raw }

// Truncated reports whether fewer bytes were captured than declared.
func (f *Frame) Truncated() bool { return len(f.raw) < int(f.Meta.FrameLen) }

func (f *Frame) derived() *fields {
	f.once.Do(f.decode)
	return &f.f
}

func (f *Frame) decode() {
	d := &f.f
	raw := f.raw

	if len(raw) >= 2 {
		d.fc = binary.LittleEndian.Uint16(raw[0:2])
	}
	if len(raw) >= 4 {
		d.duration = binary.LittleEndian.Uint16(raw[2:4])
	}
	d.addr1 = addrAt(raw, 4)
	d.addr2 = addrAt(raw, 10)
	d.addr3 = addrAt(raw, 16)
	if len(raw) >= macHeaderLen {
		d.seqCtl = binary.LittleEndian.Uint16(raw[22:24])
		d.hasSeq = true
	}
	if len(raw) >= wdsHeaderLen {
		d.addr4 = addrAt(raw, 24)
	}

	typ := uint8(d.fc>>2) & 0x03
	toDS := d.fc&(1<<8) != 0
	fromDS := d.fc&(1<<9) != 0

	switch {
	case typ == TypeMgmt, !toDS && !fromDS:
		d.bssid, d.src, d.dst = d.addr3, d.addr2, d.addr1
	case !toDS && fromDS:
		d.bssid, d.src, d.dst = d.addr2, d.addr3, d.addr1
	case toDS && !fromDS:
		d.bssid, d.src, d.dst = d.addr1, d.addr2, d.addr3
	default:
		// WDS: four addresses, no single BSSID.
		d.bssid, d.src, d.dst = nil, d.addr4, d.addr3
	}

	d.ieStart = elementOffset(typ, uint8(d.fc>>4)&0x0F)
	for id, data := range elementsFrom(raw, d.ieStart) {
		if id == ElementSSID {
			d.ssid = strings.ToValidUTF8(string(data), "\uFFFD")
			d.hasSSID = true
			break
		}
	}
}

func addrAt(raw []byte, off int) net.HardwareAddr {
	if len(raw) < off+6 {
		return nil
	}
	a := make(net.HardwareAddr, 6)
	copy(a, raw[off:off+6])
	return a
}

// elementOffset returns where information elements start for the given
// frame type and subtype, or -1 for frames that carry none.
func elementOffset(typ, subtype uint8) int {
	if typ != TypeMgmt {
		return -1
	}
	switch subtype {
	case SubtypeBeacon, SubtypeProbeResp:
		return macHeaderLen + beaconFixedLen
	case SubtypeAssocReq:
		return macHeaderLen + assocFixedLen
	default:
		return macHeaderLen
	}
}

// FrameControl returns the raw frame control field, or 0 for frames
// shorter than two bytes.
func (f *Frame) FrameControl() uint16 { return f.derived().fc }

// Type returns the frame type (TypeMgmt, TypeCtrl, TypeData or TypeExt).
func (f *Frame) Type() uint8 { return uint8(f.FrameControl()>>2) & 0x03 }

// Subtype returns the 4-bit frame subtype.
func (f *Frame) Subtype() uint8 { return uint8(f.FrameControl()>>4) & 0x0F }

// Flags returns the frame control flag byte.
func (f *Frame) Flags() layers.Dot11Flags { return layers.Dot11Flags(f.FrameControl() >> 8) }

func (f *Frame) ToDS() bool   { return f.Flags().ToDS() }
func (f *Frame) FromDS() bool { return f.Flags().FromDS() }

// Dot11Type returns the combined type/subtype in gopacket's encoding.
func (f *Frame) Dot11Type() layers.Dot11Type {
	return layers.Dot11Type(f.Type() | f.Subtype()<<2)
}

// TypeName returns gopacket's name for the type/subtype, e.g. "MgmtBeacon".
func (f *Frame) TypeName() string { return f.Dot11Type().String() }

// Duration returns the duration/ID field, or 0 when not captured.
func (f *Frame) Duration() uint16 { return f.derived().duration }

func (f *Frame) Addr1() net.HardwareAddr { return f.derived().addr1 }
func (f *Frame) Addr2() net.HardwareAddr { return f.derived().addr2 }
func (f *Frame) Addr3() net.HardwareAddr { return f.derived().addr3 }

// SequenceControl returns the sequence control field; ok is false when the
// capture ends before it.
func (f *Frame) SequenceControl() (sc uint16, ok bool) {
	d := f.derived()
	return d.seqCtl, d.hasSeq
}

// SequenceNumber returns the top 12 bits of the sequence control field.
func (f *Frame) SequenceNumber() (uint16, bool) {
	sc, ok := f.SequenceControl()
	return sc >> 4, ok
}

// FragmentNumber returns the low 4 bits of the sequence control field.
func (f *Frame) FragmentNumber() (uint8, bool) {
	sc, ok := f.SequenceControl()
	return uint8(sc & 0x0F), ok
}

// BSSID returns the network address for this frame, resolved from the DS
// flags. It is nil for WDS frames and for short captures.
func (f *Frame) BSSID() net.HardwareAddr { return f.derived().bssid }

// Src returns the original sender, resolved from the DS flags.
func (f *Frame) Src() net.HardwareAddr { return f.derived().src }

// Dst returns the final recipient, resolved from the DS flags.
func (f *Frame) Dst() net.HardwareAddr { return f.derived().dst }

// SSID returns the first SSID element. A present but empty element yields
// ("", true); ok is false when the frame has no SSID element.
func (f *Frame) SSID() (ssid string, ok bool) {
	d := f.derived()
	return d.ssid, d.hasSSID
}

func (f *Frame) IsBeacon() bool {
	return f.Type() == TypeMgmt && f.Subtype() == SubtypeBeacon
}

func (f *Frame) IsProbeRequest() bool {
	return f.Type() == TypeMgmt && f.Subtype() == SubtypeProbeReq
}

func (f *Frame) IsProbeResponse() bool {
	return f.Type() == TypeMgmt && f.Subtype() == SubtypeProbeResp
}

// FormatMAC renders a, or a placeholder when the address is absent.
func FormatMAC(a net.HardwareAddr) string {
	if len(a) == 0 {
		return "??:??:??:??:??:??"
	}
	return a.String()
}

func (f *Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Frame(ch=%d, rssi=%d, type=%d/%d, src=%s, dst=%s, len=%d",
		f.Meta.Channel, f.Meta.RSSI, f.Type(), f.Subtype(),
		FormatMAC(f.Addr2()), FormatMAC(f.Addr1()), len(f.raw))
	if ssid, ok := f.SSID(); ok {
		fmt.Fprintf(&b, ", ssid=%q", ssid)
	}
	b.WriteString(")")
	return b.String()
}
