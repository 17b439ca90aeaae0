// Package board binds the controller to the single-board computer's GPIO
// header through periph.io.
package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var ErrPinNotFound = errors.New("board: pin not found")

// DefaultEdgePoll bounds each wait for an edge so watchers notice
// cancellation.
const DefaultEdgePoll = 250 * time.Millisecond

// Config names the header pins and their input polarity.
type Config struct {
	VibrationPin string `yaml:"vibration_pin"`
	ButtonPin    string `yaml:"button_pin"`
	PresencePin  string `yaml:"presence_pin"`
	Vibrator1Pin string `yaml:"vibrator1_pin"`
	Vibrator2Pin string `yaml:"vibrator2_pin"`
	LampPin      string `yaml:"lamp_pin"`

	// VibrationActiveHigh is the sensor output level on vibration.
	VibrationActiveHigh bool `yaml:"vibration_active_high"`
	// ButtonActiveLow means the button shorts its pulled-up line to ground.
	ButtonActiveLow bool `yaml:"button_active_low"`
	// PresenceActiveHigh is the arming sensor level when present.
	PresenceActiveHigh bool `yaml:"presence_active_high"`

	EdgePoll time.Duration `yaml:"edge_poll"`
}

// DefaultConfig returns the wiring of the reference board.
func DefaultConfig() Config {
	return Config{
		VibrationPin:        "GPIO17",
		ButtonPin:           "GPIO27",
		PresencePin:         "GPIO22",
		Vibrator1Pin:        "GPIO5",
		Vibrator2Pin:        "GPIO6",
		LampPin:             "GPIO13",
		VibrationActiveHigh: true,
		ButtonActiveLow:     true,
		PresenceActiveHigh:  false,
		EdgePoll:            DefaultEdgePoll,
	}
}

// Lookup resolves a pin name.
type Lookup func(name string) gpio.PinIO

// Board holds the configured lines.
type Board struct {
	cfg Config
	log *zap.SugaredLogger

	vibration gpio.PinIn
	button    gpio.PinIn
	presence  gpio.PinIn

	Vibrator1 gpio.PinOut
	Vibrator2 gpio.PinOut
	Lamp      gpio.PinOut
}

// Open initializes the host drivers and configures the pins by name.
func Open(cfg Config, log *zap.SugaredLogger) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("board: init host drivers: %w", err)
	}

	return New(cfg, gpioreg.ByName, log)
}

// New configures the pins returned by lookup. Inputs get a pull towards
// their inactive level.
func New(cfg Config, lookup Lookup, log *zap.SugaredLogger) (*Board, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.EdgePoll <= 0 {
		cfg.EdgePoll = DefaultEdgePoll
	}

	pins := make(map[string]gpio.PinIO, 6)
	for _, name := range []string{
		cfg.VibrationPin, cfg.ButtonPin, cfg.PresencePin,
		cfg.Vibrator1Pin, cfg.Vibrator2Pin, cfg.LampPin,
	} {
		p := lookup(name)
		if p == nil {
			return nil, fmt.Errorf("%w: %q", ErrPinNotFound, name)
		}
		pins[name] = p
	}

	b := &Board{
		cfg:       cfg,
		log:       log,
		vibration: pins[cfg.VibrationPin],
		button:    pins[cfg.ButtonPin],
		presence:  pins[cfg.PresencePin],
		Vibrator1: pins[cfg.Vibrator1Pin],
		Vibrator2: pins[cfg.Vibrator2Pin],
		Lamp:      pins[cfg.LampPin],
	}

	inputs := []struct {
		pin        gpio.PinIn
		activeHigh bool
		edge       gpio.Edge
	}{
		{b.vibration, cfg.VibrationActiveHigh, activeEdge(cfg.VibrationActiveHigh)},
		{b.button, !cfg.ButtonActiveLow, activeEdge(!cfg.ButtonActiveLow)},
		{b.presence, cfg.PresenceActiveHigh, gpio.NoEdge},
	}
	for _, in := range inputs {
		if err := in.pin.In(idlePull(in.activeHigh), in.edge); err != nil {
			return nil, fmt.Errorf("board: configure %s: %w", in.pin, err)
		}
	}

	log.Infow("Board configured",
		"vibration", cfg.VibrationPin, "button", cfg.ButtonPin, "presence", cfg.PresencePin,
		"vibrator1", cfg.Vibrator1Pin, "vibrator2", cfg.Vibrator2Pin, "lamp", cfg.LampPin)

	return b, nil
}

// Present reports whether the arming sensor is asserted.
func (b *Board) Present() bool {
	return b.presence.Read() == gpio.Level(b.cfg.PresenceActiveHigh)
}

// Watch calls onVibration and onButton on each active edge until ctx is
// cancelled. Handlers run on the watcher goroutines and must not block.
func (b *Board) Watch(ctx context.Context, onVibration, onButton func()) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.watch(ctx, b.vibration, gpio.Level(b.cfg.VibrationActiveHigh), onVibration)
	})
	g.Go(func() error {
		return b.watch(ctx, b.button, gpio.Level(!b.cfg.ButtonActiveLow), onButton)
	})

	return g.Wait()
}

func (b *Board) watch(ctx context.Context, pin gpio.PinIn, active gpio.Level, fn func()) error {
	b.log.Debugw("Watching edges", "pin", pin, "active", active)

	for ctx.Err() == nil {
		if !pin.WaitForEdge(b.cfg.EdgePoll) {
			continue
		}
		if pin.Read() != active {
			continue
		}
		fn()
	}

	return nil
}

func activeEdge(activeHigh bool) gpio.Edge {
	if activeHigh {
		return gpio.RisingEdge
	}
	return gpio.FallingEdge
}

func idlePull(activeHigh bool) gpio.Pull {
	if activeHigh {
		return gpio.PullDown
	}
	return gpio.PullUp
}
