package settings

import "errors"

var (
	// ErrInvalidSettings indicates a rejected settings update.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrNotFound is returned by stores for an unknown key.
	ErrNotFound = errors.New("settings not found")
)
