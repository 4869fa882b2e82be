package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"firestige.xyz/airsniff/internal/config"
	"firestige.xyz/airsniff/internal/metrics"
	"firestige.xyz/airsniff/internal/session"
	"firestige.xyz/airsniff/internal/transport"
)

// DeviceClient is the device surface the commands need. *session.Session
// implements it.
type DeviceClient interface {
	StartScan(ctx context.Context, channel, filter uint8) error
	StopScan(ctx context.Context) error
	PromiscuousOn(ctx context.Context) error
	PromiscuousOff(ctx context.Context) error
	PromiscuousStatus(ctx context.Context) (bool, error)
	FrameCount() uint64
	Dropped() uint64
	Done() <-chan struct{}
	Err() error
	Close() error
}

var _ DeviceClient = (*session.Session)(nil)

// openSession opens the configured transport and starts a session on it.
func openSession(ctx context.Context, c *config.Config, handler session.Handler, m *metrics.Collectors) (*session.Session, error) {
	if c.Device.Port == "" {
		return nil, errors.New("no device port: pass it as the first argument or set airsniff.device.port")
	}
	tr, err := transport.Open(ctx, transport.Config{
		Address:     c.Device.Port,
		Baud:        c.Device.Baud,
		ReadTimeout: c.Device.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", c.Device.Port, err)
	}

	s, err := session.New(tr, handler,
		session.WithCommandTimeout(c.Session.CommandTimeout),
		session.WithCloseTimeout(c.Session.CloseTimeout),
		session.WithReadTimeout(c.Device.ReadTimeout),
		session.WithLogger(slog.Default()),
		session.WithMetrics(m),
	)
	if err != nil {
		tr.Close()
		return nil, err
	}
	slog.Debug("session opened", "port", c.Device.Port, "baud", c.Device.Baud)
	return s, nil
}

// withClient opens a session without a frame handler, runs fn and closes it.
func withClient(ctx context.Context, fn func(DeviceClient) error) error {
	s, err := openSession(ctx, cfg, nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
