package emulator

import (
	"context"
	"encoding/binary"
	"time"
)

var (
	broadcast = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	homeAP    = []byte{0x3C, 0x84, 0x6A, 0x10, 0x20, 0x30}
	cameraAP  = []byte{0xB4, 0x1E, 0x52, 0x4F, 0x2A, 0x91}
	phone     = []byte{0x9A, 0x11, 0x22, 0x33, 0x44, 0x55}
)

func mgmtHeader(subtype uint8, dst, src, bssid []byte, seq uint16) []byte {
	b := []byte{subtype << 4, 0x00, 0x00, 0x00}
	b = append(b, dst...)
	b = append(b, src...)
	b = append(b, bssid...)
	return binary.LittleEndian.AppendUint16(b, seq<<4)
}

func ssidElement(ssid string) []byte {
	return append([]byte{0x00, byte(len(ssid))}, ssid...)
}

// Beacon builds a beacon frame from bssid announcing ssid on channel.
func Beacon(bssid []byte, ssid string, channel uint8, seq uint16) []byte {
	b := mgmtHeader(0x08, broadcast, bssid, bssid, seq)
	b = append(b, make([]byte, 8)...)     // timestamp
	b = append(b, 0x64, 0x00, 0x11, 0x04) // interval 100 TU, capabilities
	b = append(b, ssidElement(ssid)...)
	b = append(b, 0x01, 0x04, 0x82, 0x84, 0x8B, 0x96) // supported rates
	return append(b, 0x03, 0x01, channel)
}

// ProbeRequest builds a probe request from src for ssid ("" = wildcard).
func ProbeRequest(src []byte, ssid string, seq uint16) []byte {
	b := mgmtHeader(0x04, broadcast, src, broadcast, seq)
	return append(b, ssidElement(ssid)...)
}

// DataFromAP builds a from-DS data frame carrying a small LLC payload.
func DataFromAP(bssid, src, dst []byte, seq uint16) []byte {
	b := []byte{0x08, 0x02, 0x2C, 0x00}
	b = append(b, dst...)
	b = append(b, bssid...)
	b = append(b, src...)
	b = binary.LittleEndian.AppendUint16(b, seq<<4)
	return append(b, 0xAA, 0xAA, 0x03, 0x00, 0x00, 0x00, 0x08, 0x00)
}

// Ack builds an ACK control frame to ra.
func Ack(ra []byte) []byte {
	b := []byte{0xD4, 0x00, 0x00, 0x00}
	return append(b, ra...)
}

// SampleFrames returns a small mix of traffic, including a beacon from a
// camera network whose SSID starts with "Flock".
func SampleFrames() [][]byte {
	return [][]byte{
		Beacon(homeAP, "HomeNet", 6, 1),
		ProbeRequest(phone, "", 2),
		Beacon(cameraAP, "Flock-4F2A91", 6, 3),
		DataFromAP(homeAP, homeAP, phone, 4),
		Ack(phone),
		ProbeRequest(phone, "HomeNet", 5),
	}
}

// Generate captures frames round-robin every interval until ctx ends or a
// write fails. Frames are only sent while a scan is active.
func (e *Emulator) Generate(ctx context.Context, interval time.Duration, frames [][]byte) error {
	if len(frames) == 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		rssi := int8(-40 - (i*7)%45)
		if _, err := e.Capture(frames[i%len(frames)], rssi); err != nil {
			return err
		}
	}
}
