package main

import (
	"context"
	"errors"
	"sync"

	"i4.energy/across/vibralarm/modem"
)

// ErrNotConnected is returned while no modem is connected.
var ErrNotConnected = errors.New("modem not connected")

// Link forwards modem operations to the currently connected modem. The
// supervisor swaps the modem on reconnect; callers keep a single Link.
type Link struct {
	mu    sync.RWMutex
	modem *modem.Modem
}

func (l *Link) set(m *modem.Modem) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.modem = m
}

func (l *Link) current() (*modem.Modem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.modem == nil {
		return nil, ErrNotConnected
	}
	return l.modem, nil
}

// Connected reports whether a modem is connected.
func (l *Link) Connected() bool {
	_, err := l.current()
	return err == nil
}

// Exclusive runs fn while holding the connected modem.
func (l *Link) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.Exclusive(ctx, fn)
}

// Dial calls number.
func (l *Link) Dial(ctx context.Context, number string) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.Dial(ctx, number)
}

// Answer picks up an incoming call.
func (l *Link) Answer(ctx context.Context) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.Answer(ctx)
}

// Hangup ends the active call.
func (l *Link) Hangup(ctx context.Context) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.Hangup(ctx)
}

// SendSMS sends a text message.
func (l *Link) SendSMS(ctx context.Context, to, text string) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.SendSMS(ctx, to, text)
}

// ReadSMS reads and deletes the stored message at index.
func (l *Link) ReadSMS(ctx context.Context, index int) (modem.SMS, error) {
	m, err := l.current()
	if err != nil {
		return modem.SMS{}, err
	}
	return m.ReadSMS(ctx, index)
}
