// Package kafka publishes captured frames to a Kafka topic as JSON records,
// with batching, compression, and retry handled by the writer.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/airsniff/internal/config"
	"firestige.xyz/airsniff/internal/filter"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
	writeTimeout        = 5 * time.Second
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Record is the JSON value of each message.
type Record struct {
	Timestamp  int64  `json:"timestamp"`    // host receive time, unix ms
	DeviceTime uint32 `json:"device_time_us"`
	Seq        uint16 `json:"seq"`
	Channel    uint8  `json:"channel"`
	RSSI       int8   `json:"rssi"`
	NoiseFloor int8   `json:"noise_floor"`
	Type       string `json:"type"`
	Src        string `json:"src,omitempty"`
	Dst        string `json:"dst,omitempty"`
	BSSID      string `json:"bssid,omitempty"`
	SSID       string `json:"ssid,omitempty"`
	FrameLen   uint16 `json:"frame_len"`
	Captured   int    `json:"captured_len"`
	Alert      bool   `json:"alert,omitempty"`
	Match      string `json:"match,omitempty"`
}

type Sink struct {
	w   messageWriter
	now func() time.Time

	reported atomic.Uint64
	failed   atomic.Uint64
}

// NewSink creates an asynchronous writer for cfg. No connection is made
// until the first batch is flushed.
func NewSink(cfg config.KafkaConfig) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	wc := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // frames from one BSSID stay on one partition
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		MaxAttempts:  defaultMaxAttempts,
		Async:        true,
	}
	if cfg.BatchSize > 0 {
		wc.BatchSize = cfg.BatchSize
	}
	if cfg.BatchTimeout > 0 {
		wc.BatchTimeout = cfg.BatchTimeout
	}
	if cfg.MaxAttempts > 0 {
		wc.MaxAttempts = cfg.MaxAttempts
	}

	switch cfg.Compression {
	case "none", "":
	case "gzip":
		wc.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		wc.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		wc.CompressionCodec = compress.Lz4.Codec()
	default:
		return nil, fmt.Errorf("kafka: invalid compression type: %s", cfg.Compression)
	}

	s := &Sink{now: time.Now}
	w := kafka.NewWriter(wc)
	w.Completion = s.complete
	s.w = w

	slog.Info("kafka sink started",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"batch_size", wc.BatchSize,
		"compression", cfg.Compression,
	)
	return s, nil
}

func newSink(w messageWriter, now func() time.Time) *Sink {
	return &Sink{w: w, now: now}
}

// complete runs once per flushed batch of an asynchronous writer.
func (s *Sink) complete(msgs []kafka.Message, err error) {
	if err != nil {
		s.failed.Add(uint64(len(msgs)))
		slog.Warn("kafka write failed", "messages", len(msgs), "error", err)
		return
	}
	s.reported.Add(uint64(len(msgs)))
}

// NewRecord converts an exchange to its JSON record.
func NewRecord(ex *filter.Exchange, received time.Time) Record {
	f := ex.Frame
	r := Record{
		Timestamp:  received.UnixMilli(),
		DeviceTime: f.Meta.Timestamp,
		Seq:        f.Meta.SeqNum,
		Channel:    f.Meta.Channel,
		RSSI:       f.Meta.RSSI,
		NoiseFloor: f.Meta.NoiseFloor,
		Type:       f.TypeName(),
		Src:        macString(f.Src()),
		Dst:        macString(f.Dst()),
		BSSID:      macString(f.BSSID()),
		FrameLen:   f.Meta.FrameLen,
		Captured:   len(f.Raw()),
		Alert:      ex.Alert,
		Match:      ex.Match,
	}
	if ssid, ok := f.SSID(); ok {
		r.SSID = ssid
	}
	return r
}

func macString(a net.HardwareAddr) string {
	if len(a) == 0 {
		return ""
	}
	return a.String()
}

// Send queues one frame. Messages are keyed by BSSID and alerts carry an
// "alert" header naming the matched term.
func (s *Sink) Send(ex *filter.Exchange) error {
	now := s.now()
	rec := NewRecord(ex, now)
	value, err := json.Marshal(rec)
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("kafka: serialize frame: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.BSSID),
		Value: value,
		Time:  now,
	}
	if ex.Alert {
		msg.Headers = []kafka.Header{{Key: "alert", Value: []byte(ex.Match)}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

// Reported returns the number of messages acknowledged by the brokers.
func (s *Sink) Reported() uint64 { return s.reported.Load() }

func (s *Sink) Failed() uint64 { return s.failed.Load() }

// Close flushes pending messages and closes the writer.
func (s *Sink) Close() error {
	if err := s.w.Close(); err != nil {
		return fmt.Errorf("kafka: close: %w", err)
	}
	slog.Info("kafka sink stopped", "total_reported", s.Reported(), "total_errors", s.Failed())
	return nil
}
