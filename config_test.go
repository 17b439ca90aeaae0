package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"i4.energy/across/vibralarm/command"
)

func withNumbers() ConfigOption {
	return func(c *Config) error {
		c.Numbers = [2]string{"+34600111222", "+34600333444"}
		return nil
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	config, err := LoadConfig(WithDefaults(), withNumbers())
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyUSB0", config.SerialPort)
	require.Equal(t, 115200, config.BaudRate)
	require.Equal(t, command.DefaultKey, config.Key)
	require.Equal(t, "+34", config.CountryPrefix)
	require.Empty(t, config.BindAddress, "diagnostics server is off by default")
	require.Equal(t, uint16(3), config.Alarm.Threshold)
	require.Equal(t, 800*time.Millisecond, config.Alarm.Window)
}

func TestLoadConfigRequiresNumbers(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(WithDefaults())
	require.ErrorIs(t, err, errNumbersRequired)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "Number with letters",
			mutate: func(c *Config) { c.Numbers[1] = "+34abc" },
			want:   errInvalidNumber,
		},
		{
			name:   "Key fills the buffer",
			mutate: func(c *Config) { c.Key = "0123456789abcdef" },
			want:   command.ErrKeyTooLong,
		},
		{
			name:   "Unknown log level",
			mutate: func(c *Config) { c.LogLevel = "verbose" },
			want:   errInvalidLevel,
		},
		{
			name:   "Zero baud rate",
			mutate: func(c *Config) { c.BaudRate = 0 },
			want:   errInvalidBaudRate,
		},
		{
			name:   "Inverted backoff",
			mutate: func(c *Config) { c.ReconnectMax = time.Millisecond },
			want:   errInvalidBackoff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfig(WithDefaults(), withNumbers(), func(c *Config) error {
				tt.mutate(c)
				return nil
			})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWithFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vibralarm.yaml")
	contents := `serial_port: /dev/ttyAMA0
numbers: ["+34600111222", "600333444"]
send_menu: true
alarm:
  attend_timeout: 45s
  vibration_threshold: 5
board:
  lamp_pin: GPIO26
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	config, err := LoadConfig(WithDefaults(), WithFile(path))
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyAMA0", config.SerialPort)
	require.Equal(t, [2]string{"+34600111222", "600333444"}, config.Numbers)
	require.True(t, config.SendMenu)
	require.Equal(t, 45*time.Second, config.Alarm.AttendTimeout)
	require.Equal(t, uint16(5), config.Alarm.Threshold)
	require.Equal(t, 800*time.Millisecond, config.Alarm.Window, "unset keys keep their default")
	require.Equal(t, "GPIO26", config.Board.LampPin)
	require.Equal(t, "GPIO17", config.Board.VibrationPin)
}

func TestWithFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(WithDefaults(), WithFile(filepath.Join(t.TempDir(), "missing.yaml")))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithEnv(t *testing.T) {
	t.Setenv("SERIAL_PORT", "/dev/ttyS1")
	t.Setenv("BAUD_RATE", "9600")
	t.Setenv("NUM1", "+34600111222")
	t.Setenv("NUM2", "+34600333444")

	config, err := LoadConfig(WithDefaults(), WithEnv())
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyS1", config.SerialPort)
	require.Equal(t, 9600, config.BaudRate)
	require.Equal(t, "+34600333444", config.Numbers[1])
}

// TestWithFlagsOnlyChanged checks that flags left at their default do not
// override earlier sources.
func TestWithFlagsOnlyChanged(t *testing.T) {
	t.Parallel()

	fSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fSet.String("serial-port", "/dev/ttyUSB0", "")
	fSet.Int("baud-rate", 115200, "")
	fSet.String("num1", "", "")
	require.NoError(t, fSet.Parse([]string{"--baud-rate=57600", "--num1=+34600999888"}))

	config, err := LoadConfig(WithDefaults(), withNumbers(), func(c *Config) error {
		c.SerialPort = "/dev/from-file"
		return nil
	}, WithFlags(fSet))
	require.NoError(t, err)

	require.Equal(t, "/dev/from-file", config.SerialPort)
	require.Equal(t, 57600, config.BaudRate)
	require.Equal(t, "+34600999888", config.Numbers[0])
}
