package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"i4.energy/across/vibralarm/at"
)

// MaxNumberLength is the longest dial string accepted by Dial and SendSMS.
const MaxNumberLength = 20

// Retry bounds one logical command: each attempt waits at most Timeout for
// a final response and failed attempts are repeated up to MaxRetries times.
type Retry struct {
	Timeout    time.Duration
	MaxRetries int
}

// DefaultRetry returns the retry policy configured for the modem.
func (m *Modem) DefaultRetry() Retry {
	return Retry{Timeout: m.config.atTimeout, MaxRetries: m.config.maxRetries}
}

type sessionKey struct{}

// Exclusive runs fn while holding the modem for a multi-step sequence,
// such as a dial followed by a hangup. Other callers of Command, Dial,
// Answer, Hangup, SendSMS and ReadSMS wait until fn returns. Operations
// invoked with the context passed to fn do not wait.
func (m *Modem) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn(context.WithValue(ctx, sessionKey{}, m))
}

// acquire reserves the modem unless ctx already carries the reservation.
func (m *Modem) acquire(ctx context.Context) (func(), error) {
	if owner, _ := ctx.Value(sessionKey{}).(*Modem); owner == m {
		return func() {}, nil
	}

	select {
	case m.session <- struct{}{}:
		return func() { <-m.session }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.loopCtx.Done():
		return nil, ErrAlreadyClosed
	}
}

// Command sends cmd and returns the response text without the final OK.
//
// Every attempt has its own timeout. A failed attempt is logged and repeated
// after the configured retry delay until retry.MaxRetries is exhausted; the
// returned error then wraps ErrCommandFailed and the last attempt's error.
// Errors that cannot recover (closed modem, broken transport, cancelled
// context) end the attempts early.
func (m *Modem) Command(ctx context.Context, cmd string, retry Retry) (string, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	return m.command(ctx, cmd, retry)
}

func (m *Modem) command(ctx context.Context, cmd string, retry Retry) (string, error) {
	if retry.Timeout <= 0 {
		retry.Timeout = m.config.atTimeout
	}

	var (
		lastErr  error
		attempts int
	)
	for attempts < retry.MaxRetries+1 {
		if attempts > 0 {
			if err := sleep(ctx, m.config.retryDelay); err != nil {
				break
			}
		}
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, retry.Timeout)
		resp, err := m.exec(attemptCtx, cmd)
		cancel()
		if err == nil {
			return trimFinal(resp), nil
		}
		lastErr = err

		if ctx.Err() != nil || fatal(err) {
			break
		}
		m.log.Warnw("AT command attempt failed", "cmd", cmd, "attempt", attempts, "error", err)
	}

	return "", fmt.Errorf("%w: %q after %d attempt(s): %w", ErrCommandFailed, cmd, attempts, lastErr)
}

// Dial places a voice call to number. The command is not repeated: a
// second ATD while the first is still being set up would be rejected.
func (m *Modem) Dial(ctx context.Context, number string) error {
	if err := validateNumber(number); err != nil {
		return err
	}

	_, err := m.Command(ctx, "ATD"+number+";", Retry{Timeout: m.config.dialTimeout})
	return err
}

// Answer picks up an incoming call.
func (m *Modem) Answer(ctx context.Context) error {
	_, err := m.Command(ctx, at.CmdAnswer, m.DefaultRetry())
	return err
}

// Hangup ends the current call, if any.
func (m *Modem) Hangup(ctx context.Context) error {
	_, err := m.Command(ctx, at.CmdHangup, m.DefaultRetry())
	return err
}

func validateNumber(number string) error {
	if number == "" || len(number) > MaxNumberLength {
		return fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	for i, r := range number {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' && i == 0:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidNumber, number)
		}
	}
	return nil
}

// trimFinal drops the terminating OK line from a response.
func trimFinal(resp string) string {
	if resp == at.OK {
		return ""
	}
	return strings.TrimSuffix(resp, "\n"+at.OK)
}

func fatal(err error) bool {
	return errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, io.EOF)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
