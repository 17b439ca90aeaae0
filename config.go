package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"i4.energy/across/vibralarm/alarm"
	"i4.energy/across/vibralarm/board"
	"i4.energy/across/vibralarm/command"
	"i4.energy/across/vibralarm/logger"
)

var (
	errNumbersRequired = errors.New("both authorized numbers are required")
	errInvalidNumber   = errors.New("authorized number must be digits with an optional leading '+'")
	errInvalidBaudRate = errors.New("baud rate must be positive")
	errInvalidLevel    = errors.New("unknown log level")
	errInvalidBackoff  = errors.New("reconnect_max must not be below reconnect_min")
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the diagnostics server address (e.g. "127.0.0.1:8080").
	// Empty disables the server.
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// SimPIN is the SIM card PIN code
	SimPIN string `yaml:"sim_pin"`
	// StateFile keeps the runtime key and relay polarity across restarts.
	StateFile string `yaml:"state_file"`

	// Numbers are the two authorized phone numbers, in dialling order.
	Numbers [2]string `yaml:"numbers"`
	// Key is the initial shared secret, replaced by the state file if set.
	Key string `yaml:"key"`
	// CountryPrefix is prepended to caller IDs without an international prefix.
	CountryPrefix string `yaml:"country_prefix"`
	// RelayActiveHigh is the initial relay polarity.
	RelayActiveHigh bool `yaml:"relay_active_high"`
	// SendMenu texts the command list to an answered caller.
	SendMenu bool `yaml:"send_menu"`
	// RejectUnauthorized hangs up calls from unknown numbers.
	RejectUnauthorized bool `yaml:"reject_unauthorized"`

	// AudioDir holds the clips (0.wav .. 9.wav, menu.wav, alert.wav).
	AudioDir string `yaml:"audio_dir"`
	// AudioCommand is the external player binary.
	AudioCommand string `yaml:"audio_command"`

	TestDuration  time.Duration `yaml:"test_duration"`
	ForceDuration time.Duration `yaml:"force_duration"`
	ReconnectMin  time.Duration `yaml:"reconnect_min"`
	ReconnectMax  time.Duration `yaml:"reconnect_max"`

	Board board.Config `yaml:"board"`
	Alarm alarm.Timing `yaml:"alarm"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
// and validates the result.
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.StateFile = "vibralarm-state.yaml"
		c.Key = command.DefaultKey
		c.CountryPrefix = command.DefaultCountryPrefix
		c.AudioDir = "/var/lib/vibralarm/audio"
		c.TestDuration = command.DefaultTestDuration
		c.ForceDuration = command.DefaultForceDuration
		c.ReconnectMin = time.Second
		c.ReconnectMax = time.Minute
		c.Board = board.DefaultConfig()
		c.Alarm = alarm.DefaultTiming()
		return nil
	}
}

// WithFile overlays the YAML file at path. An empty path is skipped.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		if err := yaml.Unmarshal(contents, c); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}

		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if simPIN := os.Getenv("SIM_PIN"); simPIN != "" {
			c.SimPIN = simPIN
		}

		if state := os.Getenv("STATE_FILE"); state != "" {
			c.StateFile = state
		}

		if num := os.Getenv("NUM1"); num != "" {
			c.Numbers[0] = num
		}

		if num := os.Getenv("NUM2"); num != "" {
			c.Numbers[1] = num
		}

		return nil
	}
}

// WithFlags loads configuration from the command-line flags that were set
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "sim-pin":
				c.SimPIN = f.Value.String()
			case "state-file":
				c.StateFile = f.Value.String()
			case "num1":
				c.Numbers[0] = f.Value.String()
			case "num2":
				c.Numbers[1] = f.Value.String()
			}
		})
		return nil
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	for _, n := range c.Numbers {
		if n == "" {
			return errNumbersRequired
		}
		if !validNumber(n) {
			return fmt.Errorf("%w: %q", errInvalidNumber, n)
		}
	}

	if err := command.ValidateKey(c.Key); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}

	if c.BaudRate <= 0 {
		return errInvalidBaudRate
	}

	if _, ok := logger.ParseLogLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errInvalidLevel, c.LogLevel)
	}

	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		return errInvalidBackoff
	}

	return nil
}

func validNumber(s string) bool {
	if len(s) > 0 && s[0] == '+' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
