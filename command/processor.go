// Package command interprets the numeric commands sent by the whitelisted
// numbers, either as keyed SMS or as tones during an answered call.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/vibralarm/store"
)

// Command codes accepted over SMS.
const (
	CmdHelp         = 1
	CmdChangeKey    = 2
	CmdAlerts       = 3
	CmdTestCall     = 4
	CmdTestSMS      = 5
	CmdCancelAlert  = 6
	CmdRestart      = 7
	CmdSystemTest   = 8
	CmdUptime       = 9
	CmdForceVib1    = 41
	CmdForceVib2    = 42
	CmdForceLamp    = 43
	CmdForceAll     = 44
	CmdSetPolarity  = 90
	CmdShowPolarity = 91
)

const (
	DefaultTestDuration  = 10 * time.Second
	DefaultForceDuration = 5 * time.Second
	DefaultRestartDelay  = 500 * time.Millisecond
)

const helpText = "1: List commands\n" +
	"2: Change key\n" +
	"3: Show alerts\n" +
	"4: Test calls\n" +
	"5: Test SMS\n" +
	"6: Cancel alert\n" +
	"7: Restart device\n" +
	"8: System test\n" +
	"9: System status"

// toneMenu holds the reply for each in-call digit that only describes a command.
var toneMenu = [...]string{
	"Invalid option.",
	"Command 1: List commands.",
	"Command 2: Change key.",
	"Command 3: Show alerts.",
	"Command 4: Test calls.",
	"Command 5: Test SMS.",
	"Command 6: Cancel alert.",
	"Command 7: Restart device.",
	"Command 8: System test.",
	"Command 9: System status.",
}

// Messenger sends text messages.
type Messenger interface {
	SendSMS(ctx context.Context, to, text string) error
}

// Relays is the part of the relay bank the commands drive.
type Relays interface {
	ForceFor(vib1, vib2, lamp bool, d time.Duration)
	TestFor(d time.Duration)
	SetActiveHigh(activeHigh bool)
	ActiveHigh() bool
}

// Restarter restarts the device. Restart does not return in production.
type Restarter interface {
	Restart()
}

// Config wires a Processor to its collaborators.
type Config struct {
	Whitelist Whitelist
	Key       *Key
	Messenger Messenger
	Relays    Relays
	Restarter Restarter
	// Settings receives the key and polarity after a successful change.
	Settings store.Repository
	Logger   *zap.SugaredLogger

	// Started is the reference for the uptime reply.
	Started       time.Time
	TestDuration  time.Duration
	ForceDuration time.Duration
	RestartDelay  time.Duration
}

// Processor executes commands. It is safe for concurrent use.
type Processor struct {
	cfg Config
	log *zap.SugaredLogger
	now func() time.Time
}

// NewProcessor creates a Processor, filling unset durations with defaults.
func NewProcessor(cfg Config) *Processor {
	if cfg.Key == nil {
		cfg.Key = &Key{value: DefaultKey}
	}
	if cfg.Settings == nil {
		cfg.Settings = store.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Started.IsZero() {
		cfg.Started = time.Now()
	}
	if cfg.TestDuration <= 0 {
		cfg.TestDuration = DefaultTestDuration
	}
	if cfg.ForceDuration <= 0 {
		cfg.ForceDuration = DefaultForceDuration
	}
	if cfg.RestartDelay < 0 {
		cfg.RestartDelay = 0
	} else if cfg.RestartDelay == 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}

	return &Processor{
		cfg: cfg,
		log: cfg.Logger,
		now: time.Now,
	}
}

// Authorized reports whether number may command the alarm.
func (p *Processor) Authorized(number string) bool {
	return p.cfg.Whitelist.Authorized(number)
}

// Menu returns the command list sent to a caller after answering.
func (p *Processor) Menu() string {
	return strings.Join(toneMenu[1:], "\n")
}

// Handle executes the command in an SMS body. Messages from numbers outside
// the whitelist or without the current key are dropped without a reply.
func (p *Processor) Handle(ctx context.Context, sender, body string) {
	if !p.cfg.Whitelist.Authorized(sender) {
		p.log.Warnw("Unauthorized sender", "sender", sender)
		return
	}

	key := p.cfg.Key.Get()
	if !strings.HasPrefix(body, key) {
		p.log.Warnw("Invalid key", "sender", sender)
		return
	}

	text := strings.TrimLeft(body[len(key):], " ")
	code, _ := atoi(text)
	p.log.Infow("Command received", "sender", sender, "code", code)

	var reply string
	switch code {
	case CmdHelp:
		reply = helpText

	case CmdChangeKey:
		reply = p.changeKey(ctx, key, text)

	case CmdAlerts:
		reply = "Alerts: none"

	case CmdTestCall:
		reply = "Testing call..."

	case CmdTestSMS:
		p.send(ctx, sender, "Test SMS OK")
		return

	case CmdCancelAlert:
		reply = "Alert cancelled (not implemented in this version)"

	case CmdRestart:
		p.restart(ctx, sender)
		return

	case CmdSystemTest:
		p.cfg.Relays.TestFor(p.cfg.TestDuration)
		reply = fmt.Sprintf("System test: vibration %s (no calls)", seconds(p.cfg.TestDuration))

	case CmdUptime:
		reply = p.uptime()

	case CmdForceVib1:
		reply = p.force(true, false, false, "VIB1")

	case CmdForceVib2:
		reply = p.force(false, true, false, "VIB2")

	case CmdForceLamp:
		reply = p.force(false, false, true, "LAMP")

	case CmdForceAll:
		reply = p.force(true, true, true, "ALL")

	case CmdSetPolarity:
		reply = p.setPolarity(ctx, key, text)

	case CmdShowPolarity:
		reply = "Current polarity: " + polarity(p.cfg.Relays.ActiveHigh())

	default:
		reply = "Unknown command. Send '1' for help."
	}

	p.send(ctx, sender, reply)
}

// HandleTone executes the action bound to an in-call digit. The reply goes
// to caller, or to the primary number when the caller is unknown.
func (p *Processor) HandleTone(ctx context.Context, caller string, digit int) {
	to := caller
	if to == "" {
		to = p.cfg.Whitelist.Primary()
	}
	p.log.Infow("Tone command", "caller", caller, "digit", digit)

	switch digit {
	case CmdRestart:
		p.restart(ctx, to)
	case CmdSystemTest:
		p.send(ctx, to, "System test OK")
	case CmdUptime:
		p.send(ctx, to, p.uptime())
	default:
		if digit < 1 || digit >= len(toneMenu) {
			p.log.Warnw("Tone outside menu", "digit", digit)
			return
		}
		p.send(ctx, to, toneMenu[digit])
	}
}

// changeKey takes the new key from the text after the first space.
func (p *Processor) changeKey(ctx context.Context, current, text string) string {
	usage := fmt.Sprintf("Usage: %s 2 <new_key>", current)

	_, next, ok := strings.Cut(text, " ")
	if !ok {
		return usage
	}
	if err := p.cfg.Key.Set(next); err != nil {
		p.log.Warnw("Key change rejected", "error", err)
		return usage
	}

	p.persist(ctx)
	p.log.Infow("Key changed")

	return "Key changed to " + next
}

// setPolarity accepts exactly "0" (active-low) or "1" (active-high).
func (p *Processor) setPolarity(ctx context.Context, key, text string) string {
	_, arg, _ := strings.Cut(text, " ")

	var activeHigh bool
	switch strings.TrimSpace(arg) {
	case "0":
		activeHigh = false
	case "1":
		activeHigh = true
	default:
		return fmt.Sprintf("Usage: %s 90 <0|1>", key)
	}

	p.cfg.Relays.SetActiveHigh(activeHigh)
	p.persist(ctx)

	return "Polarity: " + polarity(activeHigh)
}

func (p *Processor) force(vib1, vib2, lamp bool, name string) string {
	p.cfg.Relays.ForceFor(vib1, vib2, lamp, p.cfg.ForceDuration)
	return fmt.Sprintf("%s ON %s", name, seconds(p.cfg.ForceDuration))
}

func (p *Processor) restart(ctx context.Context, to string) {
	p.send(ctx, to, "Restarting...")

	t := time.NewTimer(p.cfg.RestartDelay)
	select {
	case <-t.C:
	case <-ctx.Done():
		t.Stop()
	}

	p.log.Warnw("Restarting on request", "by", to)
	p.cfg.Restarter.Restart()
}

func (p *Processor) uptime() string {
	return fmt.Sprintf("Uptime: %d s", int64(p.now().Sub(p.cfg.Started)/time.Second))
}

func (p *Processor) persist(ctx context.Context) {
	s := store.Settings{
		Key:             p.cfg.Key.Get(),
		RelayActiveHigh: p.cfg.Relays.ActiveHigh(),
	}
	if err := p.cfg.Settings.Save(ctx, s); err != nil {
		p.log.Warnw("Could not persist settings", "error", err)
	}
}

func (p *Processor) send(ctx context.Context, to, text string) {
	if err := p.cfg.Messenger.SendSMS(ctx, to, text); err != nil {
		p.log.Errorw("Reply failed", "to", to, "error", err)
		return
	}
	p.log.Debugw("Replied", "to", to, "text", text)
}

// atoi parses the leading decimal digits of s after optional blanks and
// sign, the way C atoi does. ok is false when no digit is present.
func atoi(s string) (n int, ok bool) {
	s = strings.TrimLeft(s, " \t")

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if n > (1<<31)/10 {
			break
		}
		n = n*10 + int(s[i]-'0')
		ok = true
	}
	if neg {
		n = -n
	}
	return n, ok
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%ds", int64(d/time.Second))
}

func polarity(activeHigh bool) string {
	if activeHigh {
		return "ACTIVE-HIGH"
	}
	return "ACTIVE-LOW"
}
