package dot11

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mac1 = []byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11}
	mac2 = []byte{0x22, 0x22, 0x22, 0x22, 0x22, 0x22}
	mac3 = []byte{0x33, 0x33, 0x33, 0x33, 0x33, 0x33}
	mac4 = []byte{0x44, 0x44, 0x44, 0x44, 0x44, 0x44}
)

// header builds a 24-byte MAC header.
func header(typ, subtype uint8, toDS, fromDS bool, seq uint16, frag uint8) []byte {
	fc := uint16(typ)<<2 | uint16(subtype)<<4
	if toDS {
		fc |= 1 << 8
	}
	if fromDS {
		fc |= 1 << 9
	}
	b := make([]byte, 0, 64)
	b = binary.LittleEndian.AppendUint16(b, fc)
	b = append(b, 0x3A, 0x01) // duration
	b = append(b, mac1...)
	b = append(b, mac2...)
	b = append(b, mac3...)
	b = binary.LittleEndian.AppendUint16(b, seq<<4|uint16(frag&0x0F))
	return b
}

func ie(id uint8, data ...byte) []byte {
	return append([]byte{id, byte(len(data))}, data...)
}

func beacon(elements ...[]byte) []byte {
	b := header(TypeMgmt, SubtypeBeacon, false, false, 100, 0)
	b = append(b, make([]byte, beaconFixedLen)...)
	for _, e := range elements {
		b = append(b, e...)
	}
	return b
}

func frameOf(raw []byte) *Frame {
	return NewFrame(Metadata{FrameLen: uint16(len(raw))}, raw)
}

func TestFrameControlFields(t *testing.T) {
	f := frameOf(header(TypeData, 8, true, false, 0, 0))

	assert.Equal(t, TypeData, f.Type())
	assert.Equal(t, uint8(8), f.Subtype())
	assert.True(t, f.ToDS())
	assert.False(t, f.FromDS())
	assert.Equal(t, uint16(0x013A), f.Duration())
}

func TestShortBufferYieldsZeroFrameControl(t *testing.T) {
	for _, raw := range [][]byte{nil, {0x80}} {
		f := frameOf(raw)
		assert.Equal(t, uint16(0), f.FrameControl())
		assert.Equal(t, TypeMgmt, f.Type())
		assert.Nil(t, f.Addr1())
		_, ok := f.SequenceControl()
		assert.False(t, ok)
	}
}

func TestAddressesRequireEnoughBytes(t *testing.T) {
	full := header(TypeMgmt, SubtypeProbeReq, false, false, 1, 0)

	tests := []struct {
		n              int
		a1, a2, a3, sc bool
	}{
		{9, false, false, false, false},
		{10, true, false, false, false},
		{15, true, false, false, false},
		{16, true, true, false, false},
		{22, true, true, true, false},
		{23, true, true, true, false},
		{24, true, true, true, true},
	}

	for _, tt := range tests {
		f := frameOf(full[:tt.n])
		assert.Equal(t, tt.a1, f.Addr1() != nil, "addr1 n=%d", tt.n)
		assert.Equal(t, tt.a2, f.Addr2() != nil, "addr2 n=%d", tt.n)
		assert.Equal(t, tt.a3, f.Addr3() != nil, "addr3 n=%d", tt.n)
		_, ok := f.SequenceControl()
		assert.Equal(t, tt.sc, ok, "seq n=%d", tt.n)
	}
}

func TestSequenceAndFragmentNumbers(t *testing.T) {
	f := frameOf(header(TypeData, 0, false, false, 0xABC, 0x5))

	seq, ok := f.SequenceNumber()
	require.True(t, ok)
	assert.Equal(t, uint16(0xABC), seq)

	frag, ok := f.FragmentNumber()
	require.True(t, ok)
	assert.Equal(t, uint8(0x5), frag)
}

func TestRoleResolution(t *testing.T) {
	tests := []struct {
		name            string
		typ             uint8
		toDS, fromDS    bool
		bssid, src, dst []byte
	}{
		{"mgmt", TypeMgmt, false, false, mac3, mac2, mac1},
		{"mgmt ignores ds bits", TypeMgmt, true, true, mac3, mac2, mac1},
		{"data ibss", TypeData, false, false, mac3, mac2, mac1},
		{"data from ap", TypeData, false, true, mac2, mac3, mac1},
		{"data to ap", TypeData, true, false, mac1, mac2, mac3},
		{"ctrl to ap", TypeCtrl, true, false, mac1, mac2, mac3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frameOf(header(tt.typ, 0, tt.toDS, tt.fromDS, 0, 0))
			assert.Equal(t, net.HardwareAddr(tt.bssid), f.BSSID())
			assert.Equal(t, net.HardwareAddr(tt.src), f.Src())
			assert.Equal(t, net.HardwareAddr(tt.dst), f.Dst())
		})
	}
}

func TestRoleResolutionWDS(t *testing.T) {
	raw := append(header(TypeData, 0, true, true, 0, 0), mac4...)
	f := frameOf(raw)

	assert.Nil(t, f.BSSID())
	assert.Equal(t, net.HardwareAddr(mac4), f.Src())
	assert.Equal(t, net.HardwareAddr(mac3), f.Dst())

	short := frameOf(raw[:29])
	assert.Nil(t, short.Src())
	assert.Equal(t, net.HardwareAddr(mac3), short.Dst())
}

func TestElementOffsets(t *testing.T) {
	tests := []struct {
		typ, subtype uint8
		want         int
	}{
		{TypeMgmt, SubtypeBeacon, 36},
		{TypeMgmt, SubtypeProbeResp, 36},
		{TypeMgmt, SubtypeProbeReq, 24},
		{TypeMgmt, SubtypeAssocReq, 28},
		{TypeMgmt, SubtypeDeauth, 24},
		{TypeData, 0, -1},
		{TypeCtrl, 0, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, elementOffset(tt.typ, tt.subtype), "type=%d subtype=%d", tt.typ, tt.subtype)
	}
}

func TestElementsIteration(t *testing.T) {
	raw := beacon(
		ie(ElementSSID, 'h', 'o', 'm', 'e'),
		ie(ElementSupportedRates, 0x82, 0x84),
		ie(ElementDSParameterSet, 6),
	)
	f := frameOf(raw)

	els := f.InformationElements()
	require.Len(t, els, 3)
	assert.Equal(t, ElementSSID, els[0].ID)
	assert.Equal(t, []byte("home"), els[0].Data)
	assert.Equal(t, ElementSupportedRates, els[1].ID)

	// restartable
	assert.Equal(t, els, f.InformationElements())

	ch, ok := f.DSChannel()
	require.True(t, ok)
	assert.Equal(t, uint8(6), ch)
}

func TestElementsStopAtOverrun(t *testing.T) {
	raw := beacon(ie(ElementSSID, 'a'), []byte{ElementSupportedRates, 10, 0x82})
	f := frameOf(raw)

	els := f.InformationElements()
	require.Len(t, els, 1)
	assert.Equal(t, ElementSSID, els[0].ID)
}

func TestElementsEarlyBreak(t *testing.T) {
	f := frameOf(beacon(ie(1, 1), ie(2, 2), ie(3, 3)))
	var seen int
	for range f.Elements() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestNonManagementHasNoElements(t *testing.T) {
	raw := append(header(TypeData, 0, false, false, 0, 0), ie(ElementSSID, 'x')...)
	f := frameOf(raw)

	assert.Empty(t, f.InformationElements())
	_, ok := f.SSID()
	assert.False(t, ok)
}

func TestSSID(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		ssid, ok := frameOf(beacon(ie(ElementSSID, 'c', 'a', 'f', 'e'))).SSID()
		assert.True(t, ok)
		assert.Equal(t, "cafe", ssid)
	})
	t.Run("empty element", func(t *testing.T) {
		ssid, ok := frameOf(beacon(ie(ElementSSID))).SSID()
		assert.True(t, ok)
		assert.Equal(t, "", ssid)
	})
	t.Run("absent", func(t *testing.T) {
		_, ok := frameOf(beacon(ie(ElementSupportedRates, 0x82))).SSID()
		assert.False(t, ok)
	})
	t.Run("first wins", func(t *testing.T) {
		ssid, _ := frameOf(beacon(ie(ElementSSID, 'a'), ie(ElementSSID, 'b'))).SSID()
		assert.Equal(t, "a", ssid)
	})
	t.Run("invalid utf8 replaced", func(t *testing.T) {
		ssid, ok := frameOf(beacon(ie(ElementSSID, 'o', 'k', 0xFF))).SSID()
		assert.True(t, ok)
		assert.Equal(t, "ok�", ssid)
	})
	t.Run("probe request", func(t *testing.T) {
		raw := append(header(TypeMgmt, SubtypeProbeReq, false, false, 0, 0), ie(ElementSSID, 'p')...)
		f := frameOf(raw)
		assert.True(t, f.IsProbeRequest())
		ssid, ok := f.SSID()
		assert.True(t, ok)
		assert.Equal(t, "p", ssid)
	})
}

func TestDot11TypeMatchesGopacket(t *testing.T) {
	assert.Equal(t, layers.Dot11TypeMgmtBeacon, frameOf(beacon()).Dot11Type())
	assert.Equal(t, layers.Dot11TypeMgmtProbeReq, frameOf(header(TypeMgmt, SubtypeProbeReq, false, false, 0, 0)).Dot11Type())
	assert.Equal(t, layers.Dot11TypeMgmtBeacon.String(), frameOf(beacon()).TypeName())
}

func TestHeaderAgreesWithGopacket(t *testing.T) {
	raw := append(header(TypeData, 0, false, true, 0x123, 2), 0xAA, 0xAA, 0x03, 0, 0, 0, 0x08, 0x00)

	var ref layers.Dot11
	require.NoError(t, ref.DecodeFromBytes(raw, gopacket.NilDecodeFeedback))

	f := frameOf(raw)
	assert.Equal(t, ref.Address1, f.Addr1())
	assert.Equal(t, ref.Address2, f.Addr2())
	assert.Equal(t, ref.Address3, f.Addr3())
	assert.Equal(t, ref.Flags, f.Flags())

	seq, _ := f.SequenceNumber()
	assert.Equal(t, ref.SequenceNumber, seq)
	frag, _ := f.FragmentNumber()
	assert.Equal(t, ref.FragmentNumber, uint16(frag))
}

func TestFrameStringAndFormatMAC(t *testing.T) {
	f := frameOf(beacon(ie(ElementSSID, 'x')))
	f.Meta.Channel = 6
	f.Meta.RSSI = -40

	s := f.String()
	assert.Contains(t, s, "ch=6")
	assert.Contains(t, s, "rssi=-40")
	assert.Contains(t, s, `ssid="x"`)
	assert.Equal(t, "??:??:??:??:??:??", FormatMAC(nil))
	assert.Equal(t, "11:11:11:11:11:11", FormatMAC(mac1))
}
