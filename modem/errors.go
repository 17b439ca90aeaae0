package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when an operation is attempted on a Modem
	// that has been closed, including a second call to Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLoopRunning is returned when Loop is called while another Loop is
	// already serving the same Modem.
	ErrLoopRunning = errors.New("loop already running")

	// ErrSIMPinRequired is returned when the SIM card requires a PIN and no
	// PIN was provided in the Config.
	ErrSIMPinRequired = errors.New("SIM PIN required")

	// ErrLineTooLong is returned when a modem response line exceeds the
	// maximum allowed length.
	//
	// This typically indicates malformed input, unexpected binary data,
	// or a protocol framing error.
	ErrLineTooLong = errors.New("response line too long")

	// ErrRejected wraps a final error response (ERROR, +CME ERROR, +CMS ERROR,
	// NO CARRIER, BUSY, ...) reported by the modem for a command.
	ErrRejected = errors.New("command rejected")

	// ErrCommandFailed is returned by Command when every attempt failed. The
	// error of the last attempt is wrapped alongside it.
	ErrCommandFailed = errors.New("command failed")

	// ErrNoPrompt is returned by SendSMS when the modem did not offer the
	// text entry prompt.
	ErrNoPrompt = errors.New("no SMS prompt")

	// ErrInvalidNumber is returned when a phone number is empty, too long
	// or contains characters a dial string cannot carry.
	ErrInvalidNumber = errors.New("invalid phone number")
)
