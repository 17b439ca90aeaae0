// Package alarm implements the vibration alarm state machine.
//
// Sensor edges and the acknowledge button are delivered from edge watcher
// goroutines through OnVibration and OnButton; timer expiries arrive on
// swtimer goroutines. Both only take the machine mutex, write relays and
// start or stop timers. Modem traffic and audio run on the worker started
// by Run.
package alarm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"i4.energy/across/vibralarm/audio"
	"i4.energy/across/vibralarm/relay"
	"i4.energy/across/vibralarm/swtimer"
)

// State is the alarm state.
type State int32

const (
	// Idle means the presence sensor is absent and nothing escalates.
	Idle State = iota
	// Armed means presence is asserted and vibration is monitored.
	Armed
	// Alarm means the vibration threshold tripped and the attend timer runs.
	Alarm
	// Calling means the attend timer expired and the numbers are dialled.
	Calling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Armed:
		return "ARMED"
	case Alarm:
		return "ALARM"
	case Calling:
		return "CALLING"
	default:
		return "UNKNOWN"
	}
}

// Phone places the escalation calls.
type Phone interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
	Dial(ctx context.Context, number string) error
	Hangup(ctx context.Context) error
}

// Relays is the part of the relay bank the machine drives.
type Relays interface {
	Set(vib1, vib2, lamp bool) bool
	Write(ch relay.Channel, on bool) bool
	Overridden() bool
	CancelOverride() bool
}

// Presence reads the arming sensor. Present must not block.
type Presence interface {
	Present() bool
}

// PresenceFunc adapts a function to Presence.
type PresenceFunc func() bool

// Present calls f.
func (f PresenceFunc) Present() bool { return f() }

// Timing holds the machine's thresholds and durations.
type Timing struct {
	// Threshold is the number of vibration edges within Window that trips
	// the alarm.
	Threshold uint16        `yaml:"vibration_threshold"`
	Window    time.Duration `yaml:"vibration_window"`
	// AttendTimeout is how long the alarm waits for an acknowledge before
	// calling.
	AttendTimeout time.Duration `yaml:"attend_timeout"`
	LampOn        time.Duration `yaml:"lamp_on"`
	PresencePoll  time.Duration `yaml:"presence_poll"`
	// OverridePoll replaces PresencePoll while an override holds the relays.
	OverridePoll time.Duration `yaml:"override_poll"`
	DialSettle   time.Duration `yaml:"dial_settle"`
	RingHold     time.Duration `yaml:"ring_hold"`
	InterCall    time.Duration `yaml:"inter_call"`
}

// DefaultTiming returns the production timing.
func DefaultTiming() Timing {
	return Timing{
		Threshold:     3,
		Window:        800 * time.Millisecond,
		AttendTimeout: 30 * time.Second,
		LampOn:        30 * time.Second,
		PresencePoll:  100 * time.Millisecond,
		OverridePoll:  50 * time.Millisecond,
		DialSettle:    2500 * time.Millisecond,
		RingHold:      12 * time.Second,
		InterCall:     800 * time.Millisecond,
	}
}

// withDefaults fills zero fields from DefaultTiming.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.Threshold == 0 {
		t.Threshold = d.Threshold
	}
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.Window, d.Window)
	fill(&t.AttendTimeout, d.AttendTimeout)
	fill(&t.LampOn, d.LampOn)
	fill(&t.PresencePoll, d.PresencePoll)
	fill(&t.OverridePoll, d.OverridePoll)
	fill(&t.DialSettle, d.DialSettle)
	fill(&t.RingHold, d.RingHold)
	fill(&t.InterCall, d.InterCall)

	return t
}

// Config wires a Machine.
type Config struct {
	// Numbers are dialled in order when the alarm is not attended.
	Numbers  [2]string
	Phone    Phone
	Relays   Relays
	Presence Presence
	Player   audio.Player
	Logger   *zap.SugaredLogger
	Timing   Timing
}

// Machine is the alarm state machine. All methods are safe for concurrent
// use.
type Machine struct {
	cfg    Config
	timing Timing
	log    *zap.SugaredLogger

	attend *swtimer.Timer
	lamp   *swtimer.Timer
	window *swtimer.Timer

	calls   chan struct{}
	hangups chan struct{}

	mu       sync.Mutex
	state    State
	count    uint16
	present  bool
	dialling string
	// abort cancels the escalation in progress, if any.
	abort context.CancelFunc
}

// New creates a machine in Idle. Call Run to start the presence poller and
// the worker.
func New(cfg Config) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Player == nil {
		cfg.Player = audio.NopPlayer{}
	}
	if cfg.Presence == nil {
		cfg.Presence = PresenceFunc(func() bool { return false })
	}

	m := &Machine{
		cfg:     cfg,
		timing:  cfg.Timing.withDefaults(),
		log:     cfg.Logger,
		calls:   make(chan struct{}, 1),
		hangups: make(chan struct{}, 1),
	}
	m.attend = swtimer.New("attend", m.timing.AttendTimeout, m.attendExpired)
	m.lamp = swtimer.New("lamp", m.timing.LampOn, m.lampExpired)
	m.window = swtimer.New("vibration-window", m.timing.Window, m.windowExpired)

	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Dialling returns the number being called by the escalation, or "".
func (m *Machine) Dialling() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dialling
}

// Count returns the vibration edges counted in the current window.
func (m *Machine) Count() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.count
}

// Run starts the presence poller and the worker and blocks until ctx is
// cancelled. Timers are stopped on return.
func (m *Machine) Run(ctx context.Context) error {
	defer m.stopTimers()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.pollPresence(ctx) })
	g.Go(func() error { return m.work(ctx) })

	return g.Wait()
}

// OnVibration handles a vibration sensor edge.
func (m *Machine) OnVibration() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.Relays.Overridden() {
		return
	}
	if m.state != Armed || !m.cfg.Presence.Present() {
		return
	}

	m.count++
	m.window.Start()
	if m.count < m.timing.Threshold {
		return
	}

	m.count = 0
	m.window.Stop()
	m.state = Alarm
	m.cfg.Relays.Set(true, true, true)
	m.attend.Start()

	m.log.Errorw("Vibration alarm", "threshold", m.timing.Threshold, "window", m.timing.Window)
}

// OnButton handles an acknowledge button press.
func (m *Machine) OnButton() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.Relays.CancelOverride() {
		m.log.Info("Override cancelled by button")
	}

	if m.state == Alarm || m.state == Calling {
		m.cfg.Relays.Set(false, false, false)
		m.attend.Stop()
		m.cancelEscalationLocked()
		select {
		case m.hangups <- struct{}{}:
		default:
		}

		prev := m.state
		m.state = m.presenceStateLocked(m.cfg.Presence.Present())
		m.log.Infow("Alarm acknowledged", "from", prev, "to", m.state, "lamp_on", m.timing.LampOn)
	}

	m.cfg.Relays.Write(relay.Lamp, true)
	m.lamp.Start()
}

// Expiry callbacks run outside the timer lock. A callback that lost the
// race with a Start sees the timer active again and does nothing.

func (m *Machine) attendExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Alarm || m.attend.Active() {
		return
	}
	m.state = Calling
	m.log.Warnw("Alarm not attended, calling", "timeout", m.timing.AttendTimeout)

	select {
	case m.calls <- struct{}{}:
	default:
	}
}

func (m *Machine) lampExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lamp.Active() {
		return
	}
	m.cfg.Relays.Write(relay.Lamp, false)
	m.log.Info("Lamp off")
}

func (m *Machine) windowExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.window.Active() {
		return
	}
	m.count = 0
}

func (m *Machine) pollPresence(ctx context.Context) error {
	m.syncPresence(true)

	for {
		period := m.timing.PresencePoll
		if m.cfg.Relays.Overridden() {
			period = m.timing.OverridePoll
		}
		if !sleep(ctx, period) {
			return nil
		}
		m.syncPresence(false)
	}
}

// syncPresence samples the arming sensor and enters Armed or Idle on a
// change, or unconditionally when force is set. Samples are skipped while
// an override holds the relays.
func (m *Machine) syncPresence(force bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force && m.cfg.Relays.Overridden() {
		return
	}
	present := m.cfg.Presence.Present()
	if !force && present == m.present {
		return
	}
	m.present = present
	m.state = m.presenceStateLocked(present)
	m.attend.Stop()
	m.cancelEscalationLocked()
	if !m.cfg.Relays.Overridden() {
		m.cfg.Relays.Set(false, false, false)
	}

	m.log.Infow("Presence changed", "present", present, "state", m.state)
}

func (m *Machine) presenceStateLocked(present bool) State {
	if present {
		return Armed
	}
	return Idle
}

func (m *Machine) cancelEscalationLocked() {
	if m.abort != nil {
		m.abort()
		m.abort = nil
	}
}

func (m *Machine) stopTimers() {
	m.attend.Stop()
	m.lamp.Stop()
	m.window.Stop()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
