// Package relay drives the three output relays (two vibrators and a lamp).
//
// The physical level of a line is computed on every write from a single
// runtime polarity flag. A forced pattern (override) holds the outputs for
// a bounded time and suppresses normal writes until it expires or is
// cancelled.
package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"

	"i4.energy/across/vibralarm/swtimer"
)

// Channel identifies one relay output.
type Channel int

const (
	Vibrator1 Channel = iota
	Vibrator2
	Lamp

	channelCount
)

func (c Channel) String() string {
	switch c {
	case Vibrator1:
		return "vibrator1"
	case Vibrator2:
		return "vibrator2"
	case Lamp:
		return "lamp"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the bank state.
type Snapshot struct {
	Vibrator1     bool      `json:"vibrator1"`
	Vibrator2     bool      `json:"vibrator2"`
	Lamp          bool      `json:"lamp"`
	ActiveHigh    bool      `json:"active_high"`
	Override      bool      `json:"override"`
	OverrideUntil time.Time `json:"override_until,omitzero"`
}

// Bank owns the relay lines. All methods are safe for concurrent use and
// never block on anything but the bank mutex and the GPIO write.
type Bank struct {
	lines      [channelCount]gpio.PinOut
	activeHigh atomic.Bool
	log        *zap.SugaredLogger

	mu            sync.Mutex
	on            [channelCount]bool
	override      bool
	overrideUntil time.Time
	expiry        *swtimer.Timer
}

// NewBank creates a bank over the three lines and switches them off.
func NewBank(vib1, vib2, lamp gpio.PinOut, activeHigh bool, log *zap.SugaredLogger) *Bank {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	b := &Bank{
		lines: [channelCount]gpio.PinOut{vib1, vib2, lamp},
		log:   log,
	}
	b.activeHigh.Store(activeHigh)
	b.expiry = swtimer.New("override", time.Second, b.overrideExpired)

	b.mu.Lock()
	b.setLocked(false, false, false)
	b.mu.Unlock()

	return b
}

// Set writes all three channels. It is a no-op while an override holds the
// outputs and reports whether the write was applied.
func (b *Bank) Set(vib1, vib2, lamp bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.override {
		return false
	}
	b.setLocked(vib1, vib2, lamp)

	return true
}

// Write sets one channel. It is a no-op while an override holds the outputs.
func (b *Bank) Write(ch Channel, on bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.override {
		return false
	}
	b.writeLocked(ch, on)

	return true
}

// ForceFor holds the given pattern for d, replacing any override in
// progress. When d elapses all channels are switched off.
func (b *Bank) ForceFor(vib1, vib2, lamp bool, d time.Duration) {
	b.mu.Lock()
	b.override = true
	b.overrideUntil = time.Now().Add(d)
	b.setLocked(vib1, vib2, lamp)
	b.expiry.Reset(d)
	b.mu.Unlock()

	b.log.Infow("Relay override started", "vibrator1", vib1, "vibrator2", vib2, "lamp", lamp, "duration", d)
}

// TestFor switches every channel on for d.
func (b *Bank) TestFor(d time.Duration) {
	b.ForceFor(true, true, true, d)
}

// CancelOverride ends an active override immediately, switching every
// channel off. It reports whether an override was active.
func (b *Bank) CancelOverride() bool {
	b.mu.Lock()
	if !b.override {
		b.mu.Unlock()
		return false
	}
	b.override = false
	b.overrideUntil = time.Time{}
	b.setLocked(false, false, false)
	b.expiry.Stop()
	b.mu.Unlock()

	b.log.Info("Relay override cancelled")

	return true
}

// Overridden reports whether an override holds the outputs.
func (b *Bank) Overridden() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.override
}

// SetActiveHigh changes the polarity used by subsequent writes. Lines keep
// their current physical level until written again.
func (b *Bank) SetActiveHigh(activeHigh bool) {
	b.activeHigh.Store(activeHigh)
	b.log.Warnw("Relay polarity changed", "active_high", activeHigh)
}

// ActiveHigh reports the current polarity.
func (b *Bank) ActiveHigh() bool {
	return b.activeHigh.Load()
}

// Snapshot returns the logical channel states.
func (b *Bank) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Vibrator1:     b.on[Vibrator1],
		Vibrator2:     b.on[Vibrator2],
		Lamp:          b.on[Lamp],
		ActiveHigh:    b.activeHigh.Load(),
		Override:      b.override,
		OverrideUntil: b.overrideUntil,
	}
}

// Level returns the physical level for a logical state under the current
// polarity.
func (b *Bank) Level(on bool) gpio.Level {
	return gpio.Level(on == b.activeHigh.Load())
}

func (b *Bank) overrideExpired() {
	b.mu.Lock()
	// A late expiry of a replaced override must not end the new one.
	if !b.override || time.Now().Before(b.overrideUntil) {
		b.mu.Unlock()
		return
	}
	b.override = false
	b.overrideUntil = time.Time{}
	b.setLocked(false, false, false)
	b.mu.Unlock()

	b.log.Info("Relay override finished")
}

func (b *Bank) setLocked(vib1, vib2, lamp bool) {
	b.writeLocked(Vibrator1, vib1)
	b.writeLocked(Vibrator2, vib2)
	b.writeLocked(Lamp, lamp)
}

func (b *Bank) writeLocked(ch Channel, on bool) {
	line := b.lines[ch]
	if line == nil {
		b.on[ch] = on
		return
	}
	if err := line.Out(b.Level(on)); err != nil {
		b.log.Warnw("Relay write failed", "channel", ch, "on", on, "error", err)
		return
	}
	b.on[ch] = on
}
