package alarm

import (
	"context"
	"errors"

	"i4.energy/across/vibralarm/audio"
)

// work runs the blocking side of the machine: escalation calls and the
// hangups queued by an acknowledge.
func (m *Machine) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.calls:
			m.escalate(ctx)
		case <-m.hangups:
			if err := m.cfg.Phone.Hangup(ctx); err != nil {
				m.log.Warnw("Hangup after acknowledge failed", "error", err)
			}
		}
	}
}

// escalate dials each number in turn while the machine stays in Calling,
// then switches the vibrators off and leaves the lamp on. An acknowledge or
// presence change cancels the sequence and the final lamp signal is not
// applied. A modem that cannot be reserved skips the calls only.
func (m *Machine) escalate(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	m.mu.Lock()
	if m.state != Calling {
		m.mu.Unlock()
		return
	}
	m.abort = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.dialling = ""
		m.abort = nil
		m.mu.Unlock()
	}()

	err := m.cfg.Phone.Exclusive(ctx, func(ctx context.Context) error {
		for _, number := range m.cfg.Numbers {
			if number == "" {
				continue
			}
			m.call(ctx, number)
			if !sleep(ctx, m.timing.InterCall) {
				return ctx.Err()
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, context.Canceled):
		m.log.Info("Escalation cancelled")
		return
	case err != nil:
		// Same as a failed dial: the calls are skipped, the lamp still shows
		// the unattended alarm.
		m.log.Errorw("Escalation calls skipped", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Calling && ctx.Err() == nil {
		m.cfg.Relays.Set(false, false, true)
		m.log.Warn("Escalation finished, lamp held until acknowledged")
	}
}

// call dials one number, plays the alert and hangs up. A failed dial only
// skips this number.
func (m *Machine) call(ctx context.Context, number string) {
	m.mu.Lock()
	m.dialling = number
	m.mu.Unlock()

	m.log.Infow("Calling", "number", number)
	if err := m.cfg.Phone.Dial(ctx, number); err != nil {
		m.log.Warnw("Dial failed", "number", number, "error", err)
		return
	}

	if sleep(ctx, m.timing.DialSettle) {
		if err := m.cfg.Player.Play(ctx, audio.ClipAlert); err != nil {
			m.log.Warnw("Could not play alert", "error", err)
		}
		sleep(ctx, m.timing.RingHold)
	}

	// The session is still held; only the cancellation is dropped.
	if err := m.cfg.Phone.Hangup(context.WithoutCancel(ctx)); err != nil {
		m.log.Warnw("Hangup failed", "number", number, "error", err)
	}
}
