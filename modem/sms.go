package modem

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"i4.energy/across/vibralarm/at"
)

// SMS represents a text message stored on the modem.
type SMS struct {
	Index  int
	Status string // "REC UNREAD", "REC READ", "STO UNSENT", "STO SENT"
	Sender string
	Time   string
	Text   string
}

// SendSMS sends a text message to the specified recipient.
//
// The message is sent in text mode (not PDU mode). The wait for the text
// prompt is bounded by the prompt timeout, after which the send is aborted
// with ESC; once the body is submitted the wait for the network is bounded
// by the SMS timeout.
//
// This method blocks until the message is accepted by the network or an error
// occurs. Network delivery (to the final recipient) happens asynchronously.
func (m *Modem) SendSMS(ctx context.Context, recipient, message string) error {
	if err := validateNumber(recipient); err != nil {
		return err
	}

	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	promptCtx, cancel := context.WithTimeout(ctx, m.config.promptTimeout)
	resp, err := m.exec(promptCtx, fmt.Sprintf(`AT+CMGS="%s"`, recipient))
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			m.abortSend(ctx)
		}
		return fmt.Errorf("%w: AT+CMGS command failed: %w", ErrNoPrompt, err)
	}

	if !strings.Contains(resp, at.Prompt) {
		return fmt.Errorf("%w: got %q", ErrNoPrompt, resp)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.config.smsTimeout)
	defer cancel()

	resp, err = m.exec(sendCtx, message+at.CtrlZ)
	if err != nil {
		return fmt.Errorf("SMS send failed: %w", err)
	}

	// Check for successful send (should contain +CMGS and OK)
	if !strings.Contains(resp, at.OK) {
		return fmt.Errorf("unexpected SMS response: %s", resp)
	}

	m.log.Infow("SMS sent", "to", recipient, "length", len(message))

	return nil
}

// abortSend leaves text entry after a prompt that came too late or not at
// all, so the modem does not take the next command as message text.
func (m *Modem) abortSend(ctx context.Context) {
	if err := m.writeOnly(context.WithoutCancel(ctx), at.Esc); err != nil {
		m.log.Warnw("Could not abort pending send", "error", err)
	}
}

// ReadSMS reads the message stored at index in modem memory and deletes it
// afterwards. The slot is deleted even when reading or parsing fails so a
// bad message cannot block the storage.
func (m *Modem) ReadSMS(ctx context.Context, index int) (SMS, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return SMS{}, err
	}
	defer release()

	retry := m.DefaultRetry()
	if _, err := m.command(ctx, at.CmdSetTextMode, retry); err != nil {
		return SMS{}, err
	}
	if _, err := m.command(ctx, at.CmdStorageME, retry); err != nil {
		m.log.Warnw("Could not select modem message storage", "error", err)
	}

	sms, err := m.readSMS(ctx, index, retry)

	if derr := m.deleteSMS(ctx, index, retry); derr != nil {
		m.log.Warnw("Could not delete message", "index", index, "error", derr)
	}

	return sms, err
}

func (m *Modem) readSMS(ctx context.Context, index int, retry Retry) (SMS, error) {
	resp, err := m.command(ctx, fmt.Sprintf("AT+CMGR=%d", index), retry)
	if err != nil {
		return SMS{}, err
	}

	msg, err := at.ParseReadMessage(resp)
	if err != nil {
		return SMS{}, fmt.Errorf("read message %d: %w", index, err)
	}

	return SMS{
		Index:  index,
		Status: msg.Status,
		Sender: msg.Sender,
		Time:   msg.Time,
		Text:   msg.Text,
	}, nil
}

// DeleteSMS removes the message stored at index.
func (m *Modem) DeleteSMS(ctx context.Context, index int) error {
	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return m.deleteSMS(ctx, index, m.DefaultRetry())
}

func (m *Modem) deleteSMS(ctx context.Context, index int, retry Retry) error {
	_, err := m.command(ctx, fmt.Sprintf("AT+CMGD=%d", index), retry)
	return err
}
