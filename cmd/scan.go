package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"firestige.xyz/airsniff/internal/dot11"
	"firestige.xyz/airsniff/internal/filter"
	"firestige.xyz/airsniff/internal/metrics"
	"firestige.xyz/airsniff/internal/sink"
	"firestige.xyz/airsniff/internal/sink/console"
	"firestige.xyz/airsniff/internal/sink/kafka"
	"firestige.xyz/airsniff/internal/sink/pcap"
)

var (
	scanChannel uint8
	scanFilter  string
	scanPcap    string
	scanWatch   []string
	scanNoColor bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Start scanning for Wi-Fi frames",
	Long: `Start a scan and print every captured frame until interrupted.

Examples:
  airsniff /dev/ttyACM0 scan                          # all channels, all frame types
  airsniff /dev/ttyACM0 scan -c 6 --filter mgmt       # beacons and probes on channel 6
  airsniff /dev/ttyACM0 scan --pcap out.pcap          # also record to a pcap file
  airsniff /dev/ttyACM0 scan --watch flock,raven      # highlight matching SSIDs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("channel") {
			cfg.Capture.Channel = scanChannel
		}
		if flags.Changed("filter") {
			cfg.Capture.Filter = scanFilter
		}
		if flags.Changed("pcap") {
			cfg.Capture.Pcap = scanPcap
		}
		if flags.Changed("watch") {
			cfg.Capture.Watch = scanWatch
		}
		if scanNoColor {
			cfg.Capture.Color = false
		}
		if err := cfg.ValidateAndApplyDefaults(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return scan(ctx, cmd.OutOrStdout())
	},
}

func init() {
	scanCmd.Flags().Uint8VarP(&scanChannel, "channel", "c", 0, "channel to scan (0 = all channels)")
	scanCmd.Flags().StringVarP(&scanFilter, "filter", "f", "all", "frame types: all, or any of mgmt,ctrl,data")
	scanCmd.Flags().StringVar(&scanPcap, "pcap", "", "write captured frames to this pcap file")
	scanCmd.Flags().StringSliceVarP(&scanWatch, "watch", "w", nil, "SSID substrings that raise an alert")
	scanCmd.Flags().BoolVar(&scanNoColor, "no-color", false, "disable colored alert lines")
}

type scanOptions struct {
	channel uint8
	filter  uint8
}

// pipeline is the host-side processing behind the session's frame handler.
type pipeline struct {
	chain   *filter.Chain
	counter *filter.CounterFilter
	sinks   sink.Multi
}

func newPipeline(w io.Writer, m *metrics.Collectors) (*pipeline, uint8, error) {
	mask, err := filter.ParseTypeMask(cfg.Capture.Filter)
	if err != nil {
		return nil, 0, err
	}
	types, err := filter.NewTypeFilter(mask, m)
	if err != nil {
		return nil, 0, err
	}

	sinks := sink.Multi{console.NewSink(w, cfg.Capture.Color)}
	if cfg.Capture.Pcap != "" {
		ps, err := pcap.Create(cfg.Capture.Pcap)
		if err != nil {
			return nil, 0, err
		}
		sinks = append(sinks, ps)
	}
	if cfg.Capture.Kafka.Enabled() {
		ks, err := kafka.NewSink(cfg.Capture.Kafka)
		if err != nil {
			sinks.Close()
			return nil, 0, err
		}
		sinks = append(sinks, ks)
	}

	watch := filter.NewWatchFilter(cfg.Capture.Watch...).WithCooldown(cfg.Capture.AlertCooldown)
	p := &pipeline{counter: filter.NewCounterFilter(), sinks: sinks}
	p.chain = filter.NewChain(p.deliver, types, p.counter, watch)
	return p, mask, nil
}

func (p *pipeline) handle(f *dot11.Frame) {
	p.chain.Filter(&filter.Exchange{Frame: f})
}

func (p *pipeline) deliver(ex *filter.Exchange) {
	if ex.FirstAlert {
		slog.Info("watched SSID seen", "match", ex.Match, "src", dot11.FormatMAC(ex.Frame.Src()))
	}
	if err := p.sinks.Send(ex); err != nil {
		slog.Warn("sink write failed", "error", err)
	}
}

func scan(ctx context.Context, w io.Writer) error {
	var m *metrics.Collectors
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, reg)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	p, mask, err := newPipeline(w, m)
	if err != nil {
		return err
	}
	defer p.sinks.Close()

	s, err := openSession(ctx, cfg, p.handle, m)
	if err != nil {
		return err
	}
	defer s.Close()

	err = runScan(ctx, s, scanOptions{channel: cfg.Capture.Channel, filter: mask}, w)
	slog.Debug("scan summary",
		"mgmt", p.counter.CountType(dot11.TypeMgmt),
		"ctrl", p.counter.CountType(dot11.TypeCtrl),
		"data", p.counter.CountType(dot11.TypeData))
	return err
}

// runScan starts a scan, waits for ctx to end or the device to fail, and
// stops the scan again.
func runScan(ctx context.Context, client DeviceClient, opts scanOptions, w io.Writer) error {
	if opts.channel != 0 {
		fmt.Fprintf(w, "Scanning channel %d... (Ctrl+C to stop)\n", opts.channel)
	} else {
		fmt.Fprintln(w, "Scanning all channels... (Ctrl+C to stop)")
	}

	if err := client.StartScan(ctx, opts.channel, opts.filter); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case <-client.Done():
		runErr = client.Err()
	}

	if runErr == nil {
		if err := client.StopScan(context.WithoutCancel(ctx)); err != nil {
			runErr = fmt.Errorf("stop scan: %w", err)
		}
	}

	fmt.Fprintf(w, "\nStopped. %d frames captured, ~%d dropped.\n", client.FrameCount(), client.Dropped())
	return runErr
}
