// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command outcome labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultTimeout  = "timeout"
	ResultError    = "error"
)

// Collectors holds the per-session metrics. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	// FramesCaptured counts capture events delivered to the consumer
	FramesCaptured prometheus.Counter

	// FramesDropped accumulates the sequence-gap loss estimate
	FramesDropped prometheus.Counter

	// FramingDiscarded counts spans dropped by the framer
	FramingDiscarded prometheus.Counter

	// EventsMalformed counts capture events too short for their metadata
	EventsMalformed prometheus.Counter

	// Commands counts executed commands by outcome
	Commands *prometheus.CounterVec

	// CommandLatencySeconds measures command round trips
	CommandLatencySeconds *prometheus.HistogramVec

	// FramesFiltered counts frames removed by the host-side filter chain
	FramesFiltered *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "airsniff_frames_captured_total",
			Help: "Total number of capture events received from the device",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "airsniff_frames_dropped_estimate_total",
			Help: "Estimated frames lost between device and host, from sequence gaps",
		}),
		FramingDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "airsniff_framing_discarded_total",
			Help: "Total number of malformed or oversized spans dropped by the framer",
		}),
		EventsMalformed: f.NewCounter(prometheus.CounterOpts{
			Name: "airsniff_events_malformed_total",
			Help: "Total number of capture events too short to decode",
		}),
		Commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airsniff_commands_total",
				Help: "Total number of commands sent to the device",
			},
			[]string{"command", "result"},
		),
		CommandLatencySeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "airsniff_command_latency_seconds",
				Help:    "Command round-trip latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
			[]string{"command"},
		),
		FramesFiltered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airsniff_frames_filtered_total",
				Help: "Total number of frames removed by host-side filters",
			},
			[]string{"filter"},
		),
	}
}

// ObserveCommand records one command outcome.
func (c *Collectors) ObserveCommand(command, result string, seconds float64) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(command, result).Inc()
	if result == ResultOK || result == ResultRejected {
		c.CommandLatencySeconds.WithLabelValues(command).Observe(seconds)
	}
}

// FrameCaptured records one delivered frame and the loss estimate change.
func (c *Collectors) FrameCaptured(dropped uint64) {
	if c == nil {
		return
	}
	c.FramesCaptured.Inc()
	if dropped > 0 {
		c.FramesDropped.Add(float64(dropped))
	}
}

// SpansDiscarded records framer drops.
func (c *Collectors) SpansDiscarded(n uint64) {
	if c == nil || n == 0 {
		return
	}
	c.FramingDiscarded.Add(float64(n))
}

// EventMalformed records an undecodable capture event.
func (c *Collectors) EventMalformed() {
	if c == nil {
		return
	}
	c.EventsMalformed.Inc()
}

// FrameFiltered records a frame removed by the named filter.
func (c *Collectors) FrameFiltered(filter string) {
	if c == nil {
		return
	}
	c.FramesFiltered.WithLabelValues(filter).Inc()
}
