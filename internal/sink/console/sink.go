// Package console prints one line per captured frame.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"firestige.xyz/airsniff/internal/dot11"
	"firestige.xyz/airsniff/internal/filter"
)

const (
	alertPrefix = "*** ALERT ***"
	colorRed    = "\033[1;31m"
	colorReset  = "\033[0m"
)

var typeNames = [4]string{"Mgmt", "Ctrl", "Data", "Misc"}

var mgmtSubtypeNames = map[uint8]string{
	dot11.SubtypeAssocReq:    "AssocReq",
	dot11.SubtypeAssocResp:   "AssocResp",
	dot11.SubtypeReassocReq:  "ReassocReq",
	dot11.SubtypeReassocResp: "ReassocResp",
	dot11.SubtypeProbeReq:    "ProbeReq",
	dot11.SubtypeProbeResp:   "ProbeResp",
	dot11.SubtypeBeacon:      "Beacon",
	dot11.SubtypeATIM:        "ATIM",
	dot11.SubtypeDisassoc:    "Disassoc",
	dot11.SubtypeAuth:        "Auth",
	dot11.SubtypeDeauth:      "Deauth",
	dot11.SubtypeAction:      "Action",
}

type Sink struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewSink writes to w. With color set, alert lines are highlighted with
// ANSI escapes.
func NewSink(w io.Writer, color bool) *Sink {
	return &Sink{w: w, color: color}
}

// Label names a frame's type and subtype, e.g. "Mgmt/Beacon" or "Data/S8".
func Label(f *dot11.Frame) string {
	typ := typeNames[f.Type()&0x03]
	if f.Type() == dot11.TypeMgmt {
		if name, ok := mgmtSubtypeNames[f.Subtype()]; ok {
			return typ + "/" + name
		}
	}
	return fmt.Sprintf("%s/S%d", typ, f.Subtype())
}

// Format renders the console line for ex, without a trailing newline.
func (s *Sink) Format(ex *filter.Exchange) string {
	f := ex.Frame
	parts := []string{
		fmt.Sprintf("ch=%-3d", f.Meta.Channel),
		fmt.Sprintf("rssi=%-4d", f.Meta.RSSI),
		fmt.Sprintf("%-16s", Label(f)),
		dot11.FormatMAC(f.Src()) + " -> " + dot11.FormatMAC(f.Dst()),
	}
	if ssid, ok := f.SSID(); ok && ssid != "" {
		parts = append(parts, `ssid="`+ssid+`"`)
	}

	line := strings.Join(parts, "  ")
	if ex.Alert {
		line = alertPrefix + "  " + line
		if s.color {
			line = colorRed + line + colorReset
		}
	}
	return line
}

func (s *Sink) Send(ex *filter.Exchange) error {
	line := s.Format(ex)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func (s *Sink) Close() error {
	return nil
}
