// Package pcap writes captured frames to a pcap file with the IEEE 802.11
// link type, readable by Wireshark and tcpdump.
package pcap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/airsniff/internal/filter"
)

// Snaplen covers the largest frame the firmware forwards.
const Snaplen = 65535

type Sink struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	w       *pcapgo.Writer
	closer  io.Closer
	now     func() time.Time
	written uint64
}

// NewSink writes the file header to w and returns a sink appending to it.
func NewSink(w io.Writer) (*Sink, error) {
	buf := bufio.NewWriter(w)
	pw := pcapgo.NewWriter(buf)
	if err := pw.WriteFileHeader(Snaplen, layers.LinkTypeIEEE802_11); err != nil {
		return nil, fmt.Errorf("pcap: write file header: %w", err)
	}
	return &Sink{buf: buf, w: pw, now: time.Now}, nil
}

// Create truncates or creates path and returns a sink writing to it.
func Create(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pcap: %w", err)
	}
	s, err := NewSink(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Send appends one record. The timestamp is the host receive time; the
// record length is the frame's declared length, so truncated captures are
// marked as such.
func (s *Sink) Send(ex *filter.Exchange) error {
	raw := ex.Frame.Raw()
	length := int(ex.Frame.Meta.FrameLen)
	if length < len(raw) {
		length = len(raw)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     s.now(),
		CaptureLength: len(raw),
		Length:        length,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.WritePacket(ci, raw); err != nil {
		return fmt.Errorf("pcap: write packet: %w", err)
	}
	s.written++
	return nil
}

// Written returns the number of records written.
func (s *Sink) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close flushes buffered records and closes the file opened by Create.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.buf.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}
