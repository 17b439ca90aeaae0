package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"i4.energy/across/vibralarm/logger"
)

// smsTimeout bounds the one-shot sms command, modem initialization included.
const smsTimeout = 2 * time.Minute

var (
	// configPath to the YAML configuration file.
	configPath string

	rootCmd = &cobra.Command{
		Use:   "vibralarm",
		Short: "Run the GSM vibration alarm controller.",
		Long: `Monitors the presence and vibration sensors, drives the relays and
escalates unattended alarms by calling the two authorized numbers.

Authorized numbers control the device by keyed SMS commands or by tones
during an answered call.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := NewApp(ctx, config)
			if err != nil {
				return err
			}

			logger.Logger().Infow("Starting vibration alarm",
				"serial_port", config.SerialPort, "numbers", config.Numbers, "bind_address", config.BindAddress)

			return app.Run(ctx)
		},
	}

	smsCmd = &cobra.Command{
		Use:   "sms <number> <text>",
		Short: "Send one SMS through the modem and exit.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, smsTimeout)
			defer cancel()

			return sendOnce(ctx, config, args[0], args[1])
		},
	}
)

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Logger().Errorw("Exiting", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	flags.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flags.Int("baud-rate", 115200, "Baud rate for serial communication")
	flags.String("bind-address", "", "Bind address for the diagnostics HTTP server (empty disables it)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("sim-pin", "", "SIM card PIN code (if required)")
	flags.String("state-file", "vibralarm-state.yaml", "Path to persist the runtime key and relay polarity")
	flags.String("num1", "", "First authorized phone number")
	flags.String("num2", "", "Second authorized phone number")

	rootCmd.AddCommand(smsCmd)
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	config, err := LoadConfig(WithDefaults(), WithFile(configPath), WithEnv(), WithFlags(cmd.Flags()))
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level, _ := logger.ParseLogLevel(config.LogLevel)
	logger.SetLevel(level)

	return config, nil
}

// sendOnce connects to the modem, sends one message and closes it.
func sendOnce(ctx context.Context, config *Config, to, text string) error {
	m, err := newModem(ctx, config, logger.Named("modem"))
	if err != nil {
		return err
	}
	defer m.Close()

	go func() { _ = m.Loop(ctx) }()

	if err := m.SendSMS(ctx, to, text); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}

	logger.Logger().Infow("SMS sent", "to", to)

	return nil
}
