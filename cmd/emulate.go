package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/airsniff/internal/emulator"
)

var (
	emulateListen   string
	emulateInterval time.Duration
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Serve an emulated sniffer over TCP",
	Long: `Serve the device side of the sniffer protocol on a TCP port, generating
synthetic traffic while a scan is active. Useful without hardware:

  airsniff emulate --listen 127.0.0.1:7000
  airsniff tcp://127.0.0.1:7000 scan`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", emulateListen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", emulateListen, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Emulated sniffer listening on tcp://%s\n", ln.Addr())
		return runEmulate(ctx, ln, emulateInterval)
	},
}

func init() {
	emulateCmd.Flags().StringVarP(&emulateListen, "listen", "l", "127.0.0.1:7000", "TCP address to listen on")
	emulateCmd.Flags().DurationVar(&emulateInterval, "interval", 200*time.Millisecond, "delay between generated frames")
}

// runEmulate accepts connections on ln until ctx ends, serving each with its
// own emulated device.
func runEmulate(ctx context.Context, ln net.Listener, interval time.Duration) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		slog.Info("emulator client connected", "remote", conn.RemoteAddr().String())

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveEmulated(ctx, conn, interval)
		}()
	}
}

func serveEmulated(ctx context.Context, conn net.Conn, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	emu := emulator.New(conn, emulator.WithLogger(slog.Default()))
	go func() {
		if err := emu.Generate(ctx, interval, emulator.SampleFrames()); err != nil {
			slog.Debug("frame generator stopped", "error", err)
		}
	}()

	if err := emu.Serve(ctx); err != nil {
		slog.Warn("emulator connection failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
	slog.Info("emulator client disconnected", "remote", conn.RemoteAddr().String())
}
