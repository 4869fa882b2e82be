package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop scanning",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(c DeviceClient) error {
			return runStop(cmd.Context(), c, cmd.OutOrStdout())
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query promiscuous mode status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(c DeviceClient) error {
			return runStatus(cmd.Context(), c, cmd.OutOrStdout())
		})
	},
}

var promiscCmd = &cobra.Command{
	Use:       "promisc [on|off]",
	Short:     "Control promiscuous mode (omit the action to query)",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var action string
		if len(args) > 0 {
			action = args[0]
		}
		return withClient(cmd.Context(), func(c DeviceClient) error {
			return runPromisc(cmd.Context(), c, action, cmd.OutOrStdout())
		})
	},
}

func runStop(ctx context.Context, client DeviceClient, w io.Writer) error {
	if err := client.StopScan(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "Scan stopped.")
	return nil
}

func runStatus(ctx context.Context, client DeviceClient, w io.Writer) error {
	enabled, err := client.PromiscuousStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Promiscuous mode: %s\n", onOff(enabled))
	return nil
}

func runPromisc(ctx context.Context, client DeviceClient, action string, w io.Writer) error {
	switch action {
	case "":
		return runStatus(ctx, client, w)
	case "on":
		if err := client.PromiscuousOn(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "Promiscuous mode enabled.")
	case "off":
		if err := client.PromiscuousOff(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "Promiscuous mode disabled.")
	default:
		return fmt.Errorf("unknown promisc action %q (must be on or off)", action)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
