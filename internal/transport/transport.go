// Package transport opens the byte stream the sniffer is attached to.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud is the firmware's UART rate. USB CDC-ACM ports ignore it.
const DefaultBaud = 115200

// Transport is a duplex byte stream with bounded reads. A read that times
// out returns (0, nil) or an error for which IsTimeout reports true.
type Transport interface {
	io.ReadWriteCloser
	SetReadTimeout(d time.Duration) error
}

// Config selects and configures a transport.
type Config struct {
	// Address is a serial device path (/dev/ttyACM0, COM3) or
	// tcp://host:port for a network serial bridge.
	Address     string
	Baud        int
	ReadTimeout time.Duration
}

const tcpScheme = "tcp://"

// Open opens the transport named by cfg.Address.
func Open(ctx context.Context, cfg Config) (Transport, error) {
	if cfg.Address == "" {
		return nil, errors.New("transport: address is required")
	}

	var (
		t   Transport
		err error
	)
	if addr, ok := strings.CutPrefix(cfg.Address, tcpScheme); ok {
		t, err = openTCP(ctx, addr)
	} else {
		t, err = openSerial(cfg.Address, cfg.Baud)
	}
	if err != nil {
		return nil, err
	}

	if cfg.ReadTimeout > 0 {
		if err := t.SetReadTimeout(cfg.ReadTimeout); err != nil {
			t.Close()
			return nil, fmt.Errorf("transport: set read timeout on %s: %w", cfg.Address, err)
		}
	}
	return t, nil
}

func openSerial(path string, baud int) (Transport, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", path, err)
	}
	return port, nil
}

func openTCP(ctx context.Context, addr string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return FromConn(conn), nil
}

// IsTimeout reports whether err is a read timeout rather than a failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
