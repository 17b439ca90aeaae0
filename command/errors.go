package command

import "errors"

var (
	// ErrKeyEmpty is returned when a key change carries no new key.
	ErrKeyEmpty = errors.New("key is empty")

	// ErrKeyTooLong is returned when a new key does not fit the key buffer.
	ErrKeyTooLong = errors.New("key too long")
)
