// Package urc routes the modem's unsolicited indications to the call,
// tone and message handlers.
package urc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/vibralarm/at"
	"i4.energy/across/vibralarm/audio"
	"i4.energy/across/vibralarm/command"
	"i4.energy/across/vibralarm/modem"
)

//go:generate mockgen -source=urc.go -destination=mocks_test.go -package=urc

// DefaultSettleDelay separates answering a call from the first audio.
const DefaultSettleDelay = 300 * time.Millisecond

// Modem is the subset of modem operations the dispatcher issues.
type Modem interface {
	Answer(ctx context.Context) error
	Hangup(ctx context.Context) error
	SendSMS(ctx context.Context, to, text string) error
	ReadSMS(ctx context.Context, index int) (modem.SMS, error)
}

// Commands executes authorized requests.
type Commands interface {
	Authorized(number string) bool
	Handle(ctx context.Context, sender, body string)
	HandleTone(ctx context.Context, caller string, digit int)
	Menu() string
}

// Config wires a Dispatcher.
type Config struct {
	Modem    Modem
	Commands Commands
	Player   audio.Player
	Logger   *zap.SugaredLogger

	// CountryPrefix is prepended to caller IDs without one.
	CountryPrefix string
	SettleDelay   time.Duration
	// SendMenu sends the command list by SMS to an answered caller.
	SendMenu bool
	// RejectUnauthorized hangs up calls from numbers outside the
	// whitelist instead of leaving them ringing.
	RejectUnauthorized bool
}

// Dispatcher handles indications one at a time in its own goroutine.
type Dispatcher struct {
	cfg Config
	log *zap.SugaredLogger

	mu     sync.Mutex
	caller string
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Player == nil {
		cfg.Player = audio.NopPlayer{}
	}
	if cfg.CountryPrefix == "" {
		cfg.CountryPrefix = command.DefaultCountryPrefix
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}

	return &Dispatcher{
		cfg: cfg,
		log: cfg.Logger,
	}
}

// Serve handles indications until in is closed or ctx is cancelled.
func (d *Dispatcher) Serve(ctx context.Context, in <-chan at.Indication) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ind, ok := <-in:
			if !ok {
				return nil
			}
			d.Handle(ctx, ind)
		}
	}
}

// Caller returns the number of the answered call, if any.
func (d *Dispatcher) Caller() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.caller
}

// Handle processes a single indication. Malformed lines are logged and
// dropped.
func (d *Dispatcher) Handle(ctx context.Context, ind at.Indication) {
	switch ind.Kind {
	case at.URCCallerID:
		d.onCall(ctx, ind.Line)
	case at.URCTone:
		d.onTone(ctx, ind.Line)
	case at.URCMessageIndex:
		d.onStoredMessage(ctx, ind.Line)
	case at.URCMessagePush:
		d.onPushedMessage(ctx, ind)
	default:
		d.log.Debugw("Ignoring indication", "kind", ind.Kind, "line", ind.Line)
	}
}

func (d *Dispatcher) onCall(ctx context.Context, line string) {
	raw, err := at.ParseCallerID(line)
	if err != nil {
		d.log.Warnw("Malformed caller ID", "line", line, "error", err)
		return
	}

	caller := command.NormalizeCallerID(raw, d.cfg.CountryPrefix)
	if !d.cfg.Commands.Authorized(caller) {
		d.log.Warnw("Call from unauthorized number", "caller", caller)
		if d.cfg.RejectUnauthorized {
			if err := d.cfg.Modem.Hangup(ctx); err != nil {
				d.log.Warnw("Could not reject call", "caller", caller, "error", err)
			}
		}
		return
	}

	d.log.Infow("Answering call", "caller", caller)
	if err := d.cfg.Modem.Answer(ctx); err != nil {
		d.log.Errorw("Could not answer call", "caller", caller, "error", err)
		return
	}

	d.mu.Lock()
	d.caller = caller
	d.mu.Unlock()

	if !sleep(ctx, d.cfg.SettleDelay) {
		return
	}

	if d.cfg.SendMenu {
		if err := d.cfg.Modem.SendSMS(ctx, caller, d.cfg.Commands.Menu()); err != nil {
			d.log.Warnw("Could not send menu", "caller", caller, "error", err)
		}
	}
	d.play(ctx, audio.ClipMenu)
}

func (d *Dispatcher) onTone(ctx context.Context, line string) {
	tone, err := at.ParseTone(line)
	if err != nil {
		d.log.Warnw("Malformed tone", "line", line, "error", err)
		return
	}

	switch {
	case tone == '*':
		d.play(ctx, audio.ClipMenu)
		return
	case tone < '0' || tone > '9':
		d.log.Warnw("Tone out of range", "tone", string(tone))
		return
	}

	digit := int(tone - '0')
	d.play(ctx, audio.DigitClip(digit))
	if digit == 0 {
		return
	}

	d.cfg.Commands.HandleTone(ctx, d.Caller(), digit)

	if err := d.cfg.Modem.Hangup(ctx); err != nil {
		d.log.Warnw("Could not hang up after tone", "digit", digit, "error", err)
	}
	d.mu.Lock()
	d.caller = ""
	d.mu.Unlock()
}

func (d *Dispatcher) onStoredMessage(ctx context.Context, line string) {
	index, err := at.ParseMessageIndex(line)
	if err != nil {
		d.log.Warnw("Malformed message index", "line", line, "error", err)
		return
	}

	sms, err := d.cfg.Modem.ReadSMS(ctx, index)
	if err != nil {
		d.log.Errorw("Could not read message", "index", index, "error", err)
		return
	}

	d.cfg.Commands.Handle(ctx, sms.Sender, sms.Text)
}

func (d *Dispatcher) onPushedMessage(ctx context.Context, ind at.Indication) {
	sender, err := at.ParseMessagePush(ind.Line)
	if err != nil {
		d.log.Warnw("Malformed message header", "line", ind.Line, "error", err)
		return
	}

	d.cfg.Commands.Handle(ctx, sender, ind.Body)
}

func (d *Dispatcher) play(ctx context.Context, clip audio.Clip) {
	if err := d.cfg.Player.Play(ctx, clip); err != nil {
		d.log.Warnw("Could not play clip", "clip", clip, "error", err)
	}
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
