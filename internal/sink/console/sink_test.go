package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/airsniff/internal/dot11"
	"firestige.xyz/airsniff/internal/filter"
)

func beacon(ssid string) *dot11.Frame {
	raw := make([]byte, 36)
	raw[0] = 0x80
	copy(raw[4:10], []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	copy(raw[10:16], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x01})
	copy(raw[16:22], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x01})
	raw = append(raw, 0, byte(len(ssid)))
	raw = append(raw, ssid...)
	return dot11.NewFrame(dot11.Metadata{FrameLen: uint16(len(raw)), Channel: 6, RSSI: -42}, raw)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Mgmt/Beacon", Label(beacon("")))

	data := make([]byte, 24)
	data[0] = 0x88 // QoS data
	assert.Equal(t, "Data/S8", Label(dot11.NewFrame(dot11.Metadata{}, data)))

	mgmt := make([]byte, 24)
	mgmt[0] = 0xE0 // reserved management subtype 14
	assert.Equal(t, "Mgmt/S14", Label(dot11.NewFrame(dot11.Metadata{}, mgmt)))

	assert.Equal(t, "Mgmt/AssocReq", Label(dot11.NewFrame(dot11.Metadata{}, nil)), "short frames read as type 0 subtype 0")
}

func TestFormat(t *testing.T) {
	s := NewSink(nil, false)

	line := s.Format(&filter.Exchange{Frame: beacon("home")})
	assert.Equal(t,
		`ch=6    rssi=-42   Mgmt/Beacon       aa:bb:cc:dd:ee:01 -> ff:ff:ff:ff:ff:ff  ssid="home"`,
		line)

	line = s.Format(&filter.Exchange{Frame: beacon("")})
	assert.NotContains(t, line, "ssid=")

	short := dot11.NewFrame(dot11.Metadata{Channel: 1}, []byte{0xD4, 0x00})
	assert.Contains(t, s.Format(&filter.Exchange{Frame: short}), "??:??:??:??:??:?? -> ??:??:??:??:??:??")
}

func TestFormatPrintsSSIDVerbatim(t *testing.T) {
	line := NewSink(nil, false).Format(&filter.Exchange{Frame: beacon(`Bob's "Cafe" \ 5G`)})
	assert.True(t, strings.HasSuffix(line, `ssid="Bob's "Cafe" \ 5G"`), line)
}

func TestAlertLines(t *testing.T) {
	ex := &filter.Exchange{Frame: beacon("Flock-99"), Alert: true, Match: "flock"}

	plain := NewSink(nil, false).Format(ex)
	assert.True(t, strings.HasPrefix(plain, "*** ALERT ***  ch=6"))

	colored := NewSink(nil, true).Format(ex)
	assert.True(t, strings.HasPrefix(colored, "\033[1;31m*** ALERT ***"))
	assert.True(t, strings.HasSuffix(colored, "\033[0m"))
}

func TestSend(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf, false)

	require.NoError(t, s.Send(&filter.Exchange{Frame: beacon("a")}))
	require.NoError(t, s.Send(&filter.Exchange{Frame: beacon("b")}))
	require.NoError(t, s.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `ssid="b"`)
}
