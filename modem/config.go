package modem

import (
	"time"

	"go.uber.org/zap"
)

// Config holds the settings of a Modem. Build one with NewConfigBuilder.
type Config struct {
	dialer        Dialer
	simPIN        string
	maxRetries    int
	retryDelay    time.Duration
	atTimeout     time.Duration
	initTimeout   time.Duration
	promptTimeout time.Duration
	smsTimeout    time.Duration
	dialTimeout   time.Duration
	bodyTimeout   time.Duration
	logger        *zap.SugaredLogger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryDelay == 0 {
		c.retryDelay = 200 * time.Millisecond
	}
	if c.atTimeout == 0 {
		c.atTimeout = 5 * time.Second
	}
	if c.initTimeout == 0 {
		c.initTimeout = 30 * time.Second
	}
	if c.promptTimeout == 0 {
		c.promptTimeout = 5 * time.Second
	}
	if c.smsTimeout == 0 {
		c.smsTimeout = 60 * time.Second
	}
	if c.dialTimeout == 0 {
		c.dialTimeout = 20 * time.Second
	}
	if c.bodyTimeout == 0 {
		c.bodyTimeout = 3 * time.Second
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder starts a Config with three retries per command.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{maxRetries: 3}}
}

// WithDialer sets the Dialer used to open the Transport. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithSimPIN sets the PIN entered when the SIM reports SIM PIN.
func (b *ConfigBuilder) WithSimPIN(pin string) *ConfigBuilder {
	b.config.simPIN = pin
	return b
}

// WithMaxRetries sets how many times a failed command is repeated.
func (b *ConfigBuilder) WithMaxRetries(n int) *ConfigBuilder {
	b.config.maxRetries = n
	return b
}

// WithRetryDelay sets the pause between command attempts.
func (b *ConfigBuilder) WithRetryDelay(d time.Duration) *ConfigBuilder {
	b.config.retryDelay = d
	return b
}

// WithATTimeout sets the default response timeout of a single command.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithInitTimeout bounds the whole initialization sequence.
func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

// WithPromptTimeout bounds the wait for the SMS text prompt.
func (b *ConfigBuilder) WithPromptTimeout(d time.Duration) *ConfigBuilder {
	b.config.promptTimeout = d
	return b
}

// WithSMSTimeout bounds the wait for the network to accept a message.
func (b *ConfigBuilder) WithSMSTimeout(d time.Duration) *ConfigBuilder {
	b.config.smsTimeout = d
	return b
}

// WithDialTimeout bounds the wait for the final response of ATD.
func (b *ConfigBuilder) WithDialTimeout(d time.Duration) *ConfigBuilder {
	b.config.dialTimeout = d
	return b
}

// WithBodyTimeout bounds the wait for the text line following +CMT.
func (b *ConfigBuilder) WithBodyTimeout(d time.Duration) *ConfigBuilder {
	b.config.bodyTimeout = d
	return b
}

// WithLogger sets the logger used for AT traffic and warnings.
func (b *ConfigBuilder) WithLogger(l *zap.SugaredLogger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	config.setDefaults()

	return config, nil
}
