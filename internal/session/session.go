// Package session drives a sniffer device over a byte stream: it sends
// commands one at a time, matches their responses, and hands capture
// events to a consumer in arrival order.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/airsniff/internal/dot11"
	"firestige.xyz/airsniff/internal/metrics"
	"firestige.xyz/airsniff/internal/protocol"
	"firestige.xyz/airsniff/internal/transport"
)

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("airsniff: session closed")

// Handler consumes captured frames. It runs on the reader goroutine, so a
// slow handler delays later events and command responses.
type Handler func(*dot11.Frame)

// Stats is a snapshot of the session counters.
type Stats struct {
	Frames          uint64 // capture events delivered to the handler
	Dropped         uint64 // estimated events lost, from sequence gaps
	Discarded       uint64 // malformed or oversized spans dropped by the framer
	StrayResponses  uint64 // responses with no command in flight
	MalformedEvents uint64 // capture events shorter than their metadata
}

type result struct {
	payload []byte
	err     error
}

type pendingCommand struct {
	cmd  protocol.MessageType
	done chan result
}

// Session owns a transport and its reader goroutine.
type Session struct {
	tr      transport.Transport
	handler Handler
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Collectors

	// turn holds one token while a command is in flight; blocked senders
	// are queued in arrival order.
	turn chan struct{}

	mu      sync.Mutex
	pending *pendingCommand

	// framer and seq belong to the reader goroutine.
	framer *protocol.Framer
	seq    SeqTracker

	frames    atomic.Uint64
	dropped   atomic.Uint64
	discarded atomic.Uint64
	stray     atomic.Uint64
	malformed atomic.Uint64

	errMu sync.Mutex
	err   error

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New starts a session on tr. The handler is fixed for the lifetime of the
// session and may be nil.
func New(tr transport.Transport, handler Handler, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := tr.SetReadTimeout(cfg.ReadTimeout); err != nil {
		return nil, fmt.Errorf("%w: set read timeout: %w", protocol.ErrTransportFailure, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		tr:      tr,
		handler: handler,
		cfg:     cfg,
		log:     logger.With("component", "session"),
		metrics: cfg.Metrics,
		turn:    make(chan struct{}, 1),
		framer:  protocol.NewFramer(protocol.DefaultMaxSpan),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Execute sends one command and waits for its response. Concurrent callers
// are served one at a time in the order they arrived. The returned payload
// belongs to the caller.
func (s *Session) Execute(ctx context.Context, cmd protocol.MessageType, payload []byte) ([]byte, error) {
	wire, err := protocol.EncodeMessage(cmd, payload)
	if err != nil {
		return nil, err
	}

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("command %s: %w", cmd, ctx.Err())
	case <-s.done:
		return nil, s.deadErr()
	}
	defer func() { <-s.turn }()

	if err := s.deadErr(); err != nil {
		return nil, err
	}

	p := &pendingCommand{cmd: cmd, done: make(chan result, 1)}
	s.mu.Lock()
	s.pending = p
	s.mu.Unlock()
	defer s.clearPending(p)

	start := time.Now()
	s.log.Debug("sending command", "cmd", cmd.String(), "len", len(payload))
	if _, err := s.tr.Write(wire); err != nil {
		s.metrics.ObserveCommand(cmd.String(), metrics.ResultError, 0)
		if derr := s.deadErr(); derr != nil {
			return nil, derr
		}
		return nil, fmt.Errorf("%w: write %s: %w", protocol.ErrTransportFailure, cmd, err)
	}

	timer := time.NewTimer(s.cfg.CommandTimeout)
	defer timer.Stop()

	select {
	case r := <-p.done:
		s.observe(cmd, r.err, time.Since(start))
		return r.payload, r.err
	case <-timer.C:
		s.log.Warn("command timed out", "cmd", cmd.String(), "timeout", s.cfg.CommandTimeout)
		s.metrics.ObserveCommand(cmd.String(), metrics.ResultTimeout, 0)
		return nil, &protocol.CommandTimeoutError{Command: cmd}
	case <-ctx.Done():
		s.metrics.ObserveCommand(cmd.String(), metrics.ResultError, 0)
		return nil, fmt.Errorf("command %s: %w", cmd, ctx.Err())
	case <-s.done:
		// The reader may have delivered just before exiting.
		select {
		case r := <-p.done:
			s.observe(cmd, r.err, time.Since(start))
			return r.payload, r.err
		default:
		}
		s.metrics.ObserveCommand(cmd.String(), metrics.ResultError, 0)
		return nil, s.deadErr()
	}
}

func (s *Session) observe(cmd protocol.MessageType, err error, elapsed time.Duration) {
	res := metrics.ResultOK
	switch {
	case errors.Is(err, protocol.ErrCommandRejected):
		res = metrics.ResultRejected
	case err != nil:
		res = metrics.ResultError
	}
	s.metrics.ObserveCommand(cmd.String(), res, elapsed.Seconds())
}

func (s *Session) clearPending(p *pendingCommand) {
	s.mu.Lock()
	if s.pending == p {
		s.pending = nil
	}
	s.mu.Unlock()
}

// StartScan starts capturing on channel (0 cycles all channels) with the
// given frame-type filter bits (0 passes everything). On success the loss
// estimator is re-armed.
func (s *Session) StartScan(ctx context.Context, channel, filter uint8) error {
	payload, err := protocol.ScanStartPayload(channel, filter)
	if err != nil {
		return err
	}
	_, err = s.Execute(ctx, protocol.CmdScanStart, payload)
	return err
}

func (s *Session) StopScan(ctx context.Context) error {
	_, err := s.Execute(ctx, protocol.CmdScanStop, nil)
	return err
}

func (s *Session) PromiscuousOn(ctx context.Context) error {
	_, err := s.Execute(ctx, protocol.CmdPromiscOn, nil)
	return err
}

func (s *Session) PromiscuousOff(ctx context.Context) error {
	_, err := s.Execute(ctx, protocol.CmdPromiscOff, nil)
	return err
}

// PromiscuousStatus queries whether promiscuous mode is enabled.
func (s *Session) PromiscuousStatus(ctx context.Context) (bool, error) {
	payload, err := s.Execute(ctx, protocol.CmdPromiscQuery, nil)
	if err != nil {
		return false, err
	}
	return protocol.ParsePromiscStatus(payload), nil
}

// FrameCount returns the number of frames delivered so far.
func (s *Session) FrameCount() uint64 { return s.frames.Load() }

// Dropped returns the running estimate of frames lost in transit.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

func (s *Session) Stats() Stats {
	return Stats{
		Frames:          s.frames.Load(),
		Dropped:         s.dropped.Load(),
		Discarded:       s.discarded.Load(),
		StrayResponses:  s.stray.Load(),
		MalformedEvents: s.malformed.Load(),
	}
}

// Err returns the transport failure that stopped the reader, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Done is closed when the reader goroutine exits.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) deadErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	return nil
}

// Close stops the reader and closes the transport. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		timer := time.NewTimer(s.cfg.CloseTimeout)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			s.log.Warn("reader did not stop in time, closing transport under it",
				"timeout", s.cfg.CloseTimeout)
		}

		s.closeErr = s.tr.Close()
		<-s.done
		s.log.Debug("session closed", "frames", s.frames.Load(), "dropped", s.dropped.Load())
	})
	return s.closeErr
}

func (s *Session) readLoop() {
	defer close(s.done)

	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		if s.ctx.Err() != nil {
			return
		}
		n, err := s.tr.Read(buf)
		if n > 0 {
			before := s.framer.Discarded()
			msgs := s.framer.Feed(buf[:n])
			if d := s.framer.Discarded() - before; d > 0 {
				s.discarded.Add(d)
				s.metrics.SpansDiscarded(d)
				s.log.Debug("framer discarded spans", "count", d)
			}
			for _, m := range msgs {
				s.route(m)
			}
		}
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.fail(err)
			return
		}
	}
}

func (s *Session) fail(cause error) {
	err := fmt.Errorf("%w: %w", protocol.ErrTransportFailure, cause)
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
	s.log.Error("transport read failed", "error", cause)

	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	if p != nil {
		p.done <- result{err: err}
	}
}

func (s *Session) route(m protocol.Message) {
	switch {
	case m.Type.IsEvent():
		s.handleEvent(m.Payload)
	case m.Type.IsResponse():
		s.handleResponse(m)
	default:
		s.log.Debug("ignoring unexpected message", "type", m.Type.String())
	}
}

func (s *Session) handleResponse(m protocol.Message) {
	s.mu.Lock()
	p := s.pending
	if p != nil && answers(m, p.cmd) {
		s.pending = nil
	} else {
		p = nil
	}
	s.mu.Unlock()

	if p == nil {
		s.stray.Add(1)
		s.log.Debug("dropping stray response", "type", m.Type.String())
		return
	}

	var r result
	switch m.Type {
	case protocol.RspError:
		failed, code, err := protocol.ParseErrorPayload(m.Payload)
		if err != nil {
			r.err = err
			break
		}
		s.log.Debug("command rejected", "cmd", failed.String(), "code", code.String())
		r.err = &protocol.CommandRejectedError{Command: failed, Code: code}
	default:
		r.payload = m.Payload
		if p.cmd == protocol.CmdScanStart && m.Type == protocol.RspAck {
			s.seq.Reset()
		}
	}
	p.done <- r
}

// answers reports whether m can be the response to cmd. Acks and error
// responses name the command they answer; one naming another command is a
// late reply to an earlier, timed-out exchange.
func answers(m protocol.Message, cmd protocol.MessageType) bool {
	switch m.Type {
	case protocol.RspAck, protocol.RspError:
		if len(m.Payload) > 0 {
			return protocol.MessageType(m.Payload[0]) == cmd
		}
	}
	return true
}

func (s *Session) handleEvent(payload []byte) {
	f, err := dot11.DecodeCapture(payload)
	if err != nil {
		s.malformed.Add(1)
		s.metrics.EventMalformed()
		s.log.Debug("dropping capture event", "error", err)
		return
	}

	gap := s.seq.Observe(f.Meta.SeqNum)
	if gap > 0 {
		s.dropped.Add(gap)
	}
	s.frames.Add(1)
	s.metrics.FrameCaptured(gap)

	s.dispatch(f)
}

func (s *Session) dispatch(f *dot11.Frame) {
	if s.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("frame handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	s.handler(f)
}
