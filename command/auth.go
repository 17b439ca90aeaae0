package command

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultKey is the shared secret used until a change key command succeeds.
const DefaultKey = "0000"

// KeyCapacity is the size of the key buffer. A key must be strictly
// shorter than the buffer.
const KeyCapacity = 16

// DefaultCountryPrefix is prepended to caller IDs reported without an
// international prefix.
const DefaultCountryPrefix = "+34"

// Whitelist holds the two numbers allowed to command the alarm.
type Whitelist [2]string

// Authorized reports whether number exactly matches a whitelisted number.
func (w Whitelist) Authorized(number string) bool {
	return number != "" && (number == w[0] || number == w[1])
}

// Primary returns the first whitelisted number.
func (w Whitelist) Primary() string {
	return w[0]
}

// NormalizeCallerID prepends prefix to raw unless raw already carries an
// international prefix.
func NormalizeCallerID(raw, prefix string) string {
	if raw == "" || strings.HasPrefix(raw, "+") {
		return raw
	}
	return prefix + raw
}

// Key is the shared secret that must prefix every command message.
type Key struct {
	mu    sync.RWMutex
	value string
}

// NewKey returns a key holding initial.
func NewKey(initial string) (*Key, error) {
	if err := ValidateKey(initial); err != nil {
		return nil, err
	}
	return &Key{value: initial}, nil
}

// Get returns the current key.
func (k *Key) Get() string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.value
}

// Set replaces the key. An invalid key leaves the current one untouched.
func (k *Key) Set(value string) error {
	if err := ValidateKey(value); err != nil {
		return err
	}

	k.mu.Lock()
	k.value = value
	k.mu.Unlock()

	return nil
}

// ValidateKey checks that value can be stored as a key.
func ValidateKey(value string) error {
	switch {
	case value == "":
		return ErrKeyEmpty
	case len(value) >= KeyCapacity:
		return fmt.Errorf("%w: %d bytes, at most %d", ErrKeyTooLong, len(value), KeyCapacity-1)
	}
	return nil
}
