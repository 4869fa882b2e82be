// Package filter implements host-side processing of captured frames as a
// chain of filters.
package filter

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/net/bpf"

	"firestige.xyz/airsniff/internal/dot11"
	"firestige.xyz/airsniff/internal/metrics"
	"firestige.xyz/airsniff/internal/protocol"
)

// Exchange carries one frame through a Chain.
type Exchange struct {
	Frame *dot11.Frame

	// Alert is set when the frame matched a watch term
	Alert bool

	// Match is the watch term that raised the alert
	Match string

	// FirstAlert is set on the first alert for a network within the watch
	// filter's cooldown.
	FirstAlert bool
}

type Filter interface {
	Filter(ex *Exchange, chain *Chain)
}

// ParseTypeMask parses a comma-separated list of frame types ("mgmt",
// "ctrl", "data") into start-scan filter bits. "all" or an empty string
// yields protocol.FilterAll.
func ParseTypeMask(s string) (uint8, error) {
	if strings.TrimSpace(s) == "" {
		return protocol.FilterAll, nil
	}
	var mask uint8
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "all":
			return protocol.FilterAll, nil
		case "mgmt", "management":
			mask |= protocol.FilterMgmt
		case "ctrl", "control":
			mask |= protocol.FilterCtrl
		case "data":
			mask |= protocol.FilterData
		default:
			return 0, fmt.Errorf("%w: unknown frame type %q", protocol.ErrInvalidFilter, part)
		}
	}
	return mask, nil
}

// TypeFilter drops frames whose type is not in the mask. It applies the
// same bits the firmware filters on, for frames already in flight when the
// mask changes or when the device filters loosely.
type TypeFilter struct {
	mask    uint8
	vm      *bpf.VM
	metrics *metrics.Collectors
}

// NewTypeFilter compiles mask into a classic BPF program over the frame
// control byte. A zero mask passes every frame.
func NewTypeFilter(mask uint8, m *metrics.Collectors) (*TypeFilter, error) {
	if !protocol.ValidFilter(mask) {
		return nil, fmt.Errorf("%w: 0x%02x", protocol.ErrInvalidFilter, mask)
	}
	vm, err := bpf.NewVM(typeProgram(mask))
	if err != nil {
		return nil, fmt.Errorf("filter: compile type mask 0x%02x: %w", mask, err)
	}
	return &TypeFilter{mask: mask, vm: vm, metrics: m}, nil
}

// typeProgram returns a program that accepts a frame when
// (1 << type) & mask is non-zero. The type bits map onto the filter bits:
// management 1<<0, control 1<<1, data 1<<2.
func typeProgram(mask uint8) []bpf.Instruction {
	if mask == protocol.FilterAll {
		return []bpf.Instruction{bpf.RetConstant{Val: 0xFFFF}}
	}
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 0, Size: 1},
		bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: 0x0C},
		bpf.ALUOpConstant{Op: bpf.ALUOpShiftRight, Val: 2},
		bpf.TAX{},
		bpf.LoadConstant{Dst: bpf.RegA, Val: 1},
		bpf.ALUOpX{Op: bpf.ALUOpShiftLeft},
		bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: uint32(mask)},
		bpf.RetA{},
	}
}

func (f *TypeFilter) Mask() uint8 { return f.mask }

// Match reports whether raw passes the mask.
func (f *TypeFilter) Match(raw []byte) bool {
	n, err := f.vm.Run(raw)
	return err == nil && n > 0
}

func (f *TypeFilter) Filter(ex *Exchange, chain *Chain) {
	if !f.Match(ex.Frame.Raw()) {
		f.metrics.FrameFiltered("type")
		return
	}
	chain.Filter(ex)
}

// DefaultAlertCooldown is how long a network stays quiet after its first
// alert.
const DefaultAlertCooldown = time.Minute

// WatchFilter raises an alert for frames whose SSID contains one of the
// watch terms, compared case-insensitively. It never drops frames.
type WatchFilter struct {
	terms  []string
	alerts atomic.Uint64
	seen   *cache.Cache // BSSID (or SSID) -> matched term
}

func NewWatchFilter(terms ...string) *WatchFilter {
	f := &WatchFilter{seen: cache.New(DefaultAlertCooldown, 2*DefaultAlertCooldown)}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			f.terms = append(f.terms, t)
		}
	}
	return f
}

// WithCooldown replaces the alert cooldown. Non-positive values keep the
// current one.
func (f *WatchFilter) WithCooldown(d time.Duration) *WatchFilter {
	if d > 0 {
		f.seen = cache.New(d, 2*d)
	}
	return f
}

func (f *WatchFilter) Filter(ex *Exchange, chain *Chain) {
	if ssid, ok := ex.Frame.SSID(); ok && ssid != "" {
		lower := strings.ToLower(ssid)
		for _, term := range f.terms {
			if strings.Contains(lower, term) {
				ex.Alert = true
				ex.Match = term
				ex.FirstAlert = f.seen.Add(alertKey(ex.Frame, ssid), term, cache.DefaultExpiration) == nil
				f.alerts.Add(1)
				break
			}
		}
	}
	chain.Filter(ex)
}

func alertKey(f *dot11.Frame, ssid string) string {
	if bssid := f.BSSID(); len(bssid) > 0 {
		return bssid.String()
	}
	return "ssid:" + ssid
}

// Alerts returns the number of frames that matched a term.
func (f *WatchFilter) Alerts() uint64 { return f.alerts.Load() }

// CounterFilter counts frames per 802.11 type.
type CounterFilter struct {
	total  atomic.Uint64
	byType [4]atomic.Uint64
}

func NewCounterFilter() *CounterFilter {
	return &CounterFilter{}
}

func (f *CounterFilter) Filter(ex *Exchange, chain *Chain) {
	f.total.Add(1)
	f.byType[ex.Frame.Type()&0x03].Add(1)
	chain.Filter(ex)
}

func (f *CounterFilter) Count() uint64 { return f.total.Load() }

// CountType returns the number of frames of the given type.
func (f *CounterFilter) CountType(typ uint8) uint64 {
	if typ > dot11.TypeExt {
		return 0
	}
	return f.byType[typ].Load()
}
