// Package emulator speaks the device side of the sniffer protocol. It backs
// the session tests and the emulate command.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"firestige.xyz/airsniff/internal/dot11"
	"firestige.xyz/airsniff/internal/protocol"
)

// maxCommandSpan matches the firmware's receive accumulator.
const maxCommandSpan = 128

// State is a snapshot of the emulated radio.
type State struct {
	Scanning    bool
	Promiscuous bool
	Channel     uint8
	Filter      uint8
}

type config struct {
	logger  *slog.Logger
	delay   time.Duration
	ignored map[protocol.MessageType]bool
}

// Option configures an Emulator.
type Option func(*config)

// WithLogger sets the emulator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithResponseDelay delays every response by d.
func WithResponseDelay(d time.Duration) Option {
	return func(c *config) { c.delay = d }
}

// WithIgnoredCommands makes the emulator swallow the given commands without
// answering.
func WithIgnoredCommands(cmds ...protocol.MessageType) Option {
	return func(c *config) {
		for _, cmd := range cmds {
			c.ignored[cmd] = true
		}
	}
}

// Emulator answers commands read from rw and writes capture events to it.
type Emulator struct {
	rw     io.ReadWriter
	cfg    config
	log    *slog.Logger
	framer *protocol.Framer

	writeMu sync.Mutex

	mu    sync.Mutex
	state State
	seq   uint16
	start time.Time
}

// New returns an emulator over rw.
func New(rw io.ReadWriter, opts ...Option) *Emulator {
	cfg := config{ignored: make(map[protocol.MessageType]bool)}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Emulator{
		rw:     rw,
		cfg:    cfg,
		log:    logger.With("component", "emulator"),
		framer: protocol.NewFramer(maxCommandSpan),
		start:  time.Now(),
	}
}

// Serve handles commands until the stream ends or ctx is cancelled. When rw
// is an io.Closer it is closed on cancellation to unblock the read.
func (e *Emulator) Serve(ctx context.Context) error {
	if c, ok := e.rw.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	buf := make([]byte, 64)
	for {
		n, err := e.rw.Read(buf)
		for _, m := range e.framer.Feed(buf[:n]) {
			if err := e.handle(m); err != nil {
				return err
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("emulator: read: %w", err)
		}
	}
}

// State returns the current radio state.
func (e *Emulator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Emulator) handle(m protocol.Message) error {
	if m.Type.IsResponse() || m.Type.IsEvent() {
		e.log.Debug("ignoring non-command message", "type", m.Type.String())
		return nil
	}
	if e.cfg.ignored[m.Type] {
		e.log.Debug("swallowing command", "cmd", m.Type.String())
		return nil
	}
	if e.cfg.delay > 0 {
		time.Sleep(e.cfg.delay)
	}

	e.mu.Lock()
	rsp := e.apply(m)
	e.mu.Unlock()

	return e.send(rsp)
}

// apply updates the radio state for one command and returns the response.
// Called with e.mu held.
func (e *Emulator) apply(m protocol.Message) protocol.Message {
	switch m.Type {
	case protocol.CmdScanStart:
		if len(m.Payload) < 2 || !protocol.ValidChannel(m.Payload[0]) {
			return errorResponse(m.Type, protocol.ErrCodeInvalidChannel)
		}
		if !protocol.ValidFilter(m.Payload[1]) {
			return errorResponse(m.Type, protocol.ErrCodeInvalidChannel)
		}
		e.state.Channel = m.Payload[0]
		e.state.Filter = m.Payload[1]
		e.state.Scanning = true
		e.state.Promiscuous = true
		e.seq = 0
		return ack(m.Type)

	case protocol.CmdScanStop:
		e.state.Scanning = false
		return ack(m.Type)

	case protocol.CmdPromiscOn:
		e.state.Promiscuous = true
		return ack(m.Type)

	case protocol.CmdPromiscOff:
		if e.state.Scanning {
			return errorResponse(m.Type, protocol.ErrCodeScanActive)
		}
		e.state.Promiscuous = false
		return ack(m.Type)

	case protocol.CmdPromiscQuery:
		var status byte
		if e.state.Promiscuous {
			status = 1
		}
		return protocol.Message{Type: protocol.RspPromiscStatus, Flags: protocol.FlagAck, Payload: []byte{status}}

	default:
		return errorResponse(m.Type, protocol.ErrCodeUnknownCommand)
	}
}

func ack(cmd protocol.MessageType) protocol.Message {
	return protocol.Message{Type: protocol.RspAck, Flags: protocol.FlagAck, Payload: []byte{byte(cmd)}}
}

func errorResponse(cmd protocol.MessageType, code protocol.ErrorCode) protocol.Message {
	return protocol.Message{Type: protocol.RspError, Flags: protocol.FlagError, Payload: []byte{byte(cmd), byte(code)}}
}

func (e *Emulator) send(m protocol.Message) error {
	wire, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return e.WriteRaw(wire)
}

// WriteRaw writes b to the stream unmodified.
func (e *Emulator) WriteRaw(b []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if _, err := e.rw.Write(b); err != nil {
		return fmt.Errorf("emulator: write: %w", err)
	}
	return nil
}

// Inject writes a capture event with the given metadata, regardless of the
// scanning state. raw may be shorter than meta.FrameLen.
func (e *Emulator) Inject(meta dot11.Metadata, raw []byte) error {
	payload := meta.AppendBinary(make([]byte, 0, dot11.MetadataSize+len(raw)))
	payload = append(payload, raw...)
	return e.send(protocol.Message{Type: protocol.EvtFrame, Payload: payload})
}

// Capture emits raw as if the radio had received it: nothing is sent unless
// a scan is active and the frame type passes the scan filter. Metadata is
// filled in with the next sequence number. It reports whether a frame was
// sent.
func (e *Emulator) Capture(raw []byte, rssi int8) (bool, error) {
	e.mu.Lock()
	if !e.state.Scanning || !passes(e.state.Filter, raw) {
		e.mu.Unlock()
		return false, nil
	}
	meta := dot11.Metadata{
		Timestamp:  uint32(time.Since(e.start).Microseconds()),
		FrameLen:   uint16(len(raw)),
		Channel:    e.state.Channel,
		RSSI:       rssi,
		NoiseFloor: -95,
		SeqNum:     e.seq,
	}
	if meta.Channel == protocol.ChannelAll {
		meta.Channel = 1
	}
	e.seq++
	e.mu.Unlock()

	return true, e.Inject(meta, raw)
}

func passes(filter uint8, raw []byte) bool {
	if filter == protocol.FilterAll || len(raw) == 0 {
		return true
	}
	typ := (raw[0] >> 2) & 0x03
	switch typ {
	case dot11.TypeMgmt:
		return filter&protocol.FilterMgmt != 0
	case dot11.TypeCtrl:
		return filter&protocol.FilterCtrl != 0
	case dot11.TypeData:
		return filter&protocol.FilterData != 0
	}
	return false
}
