// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/airsniff/internal/config"
	"firestige.xyz/airsniff/internal/log"
)

var (
	// Global flags
	configFile string
	portFlag   string
	baudFlag   int
	logLevel   string

	// cfg is the effective configuration, loaded before any subcommand runs.
	cfg       *config.Config
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "airsniff [port] <command>",
	Short: "airsniff - host driver for the ESP32 802.11 sniffer",
	Long: `airsniff drives an ESP32 Wi-Fi sniffer over USB serial (or a tcp:// serial
bridge): it starts and stops scans, toggles promiscuous mode, and prints or
records every captured 802.11 frame.

The device port may be given as the first argument:
  airsniff /dev/ttyACM0 scan
  airsniff /dev/ttyACM0 scan --channel 6
  airsniff /dev/ttyACM0 stop
  airsniff /dev/ttyACM0 status
  airsniff /dev/ttyACM0 promisc on
  airsniff /dev/ttyACM0 promisc off
  airsniff /dev/ttyACM0 promisc`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		logCloser, err = log.Init(cfg.Log)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	rootCmd.SetArgs(rewritePortArg(os.Args[1:], rootCmd))
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (default: ./airsniff.yaml, ~/.config/airsniff/airsniff.yaml)")
	rootCmd.PersistentFlags().StringVarP(&portFlag, "port", "p", "",
		"serial port (e.g. /dev/ttyACM0, COM3) or tcp://host:port")
	rootCmd.PersistentFlags().IntVar(&baudFlag, "baud", 115200, "baud rate")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug/info/warn/error)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(promiscCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(emulateCmd)
}

// loadConfig layers changed flags over the config file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Device.Port = portFlag
	}
	if flags.Changed("baud") {
		c.Device.Baud = baudFlag
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if err := c.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

// rewritePortArg turns the first positional argument into --port when it
// is not a command name, so that "airsniff /dev/ttyACM0 scan" and
// "airsniff --baud 9600 /dev/ttyACM0 scan" parse like "airsniff --port
// /dev/ttyACM0 ...". Leading flags are skipped, along with the value of any
// root flag that takes one.
func rewritePortArg(args []string, root *cobra.Command) []string {
	commands := commandNames(root)
	flags := root.PersistentFlags()

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return args
		case strings.HasPrefix(arg, "--"):
			name, _, hasValue := strings.Cut(arg[2:], "=")
			if f := flags.Lookup(name); f != nil && f.NoOptDefVal == "" && !hasValue {
				i++
			}
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			// -p X, or -pX with the value attached
			if f := flags.ShorthandLookup(arg[1:2]); f != nil && f.NoOptDefVal == "" && len(arg) == 2 {
				i++
			}
		default:
			if commands[arg] {
				return args
			}
			out := make([]string, 0, len(args)+1)
			out = append(out, args[:i]...)
			out = append(out, "--port", arg)
			return append(out, args[i+1:]...)
		}
	}
	return args
}

func commandNames(root *cobra.Command) map[string]bool {
	names := map[string]bool{"help": true, "completion": true}
	for _, c := range root.Commands() {
		names[c.Name()] = true
		for _, a := range c.Aliases {
			names[a] = true
		}
	}
	return names
}
