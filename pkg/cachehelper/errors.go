package cachehelper

import "github.com/vnykmshr/cachehelper-go/pkg/keys"

// Key derivation failures, re-exported from pkg/keys. A call that fails to
// derive its key never reaches the backend and its function is not run.
var (
	ErrTooDeep         = keys.ErrTooDeep
	ErrMissingReceiver = keys.ErrMissingReceiver
	ErrUnconvertible   = keys.ErrUnconvertible
	ErrNotFunc         = keys.ErrNotFunc
)

// KeyDerivationError describes why a key could not be derived
type KeyDerivationError = keys.KeyDerivationError

// IsKeyDerivationError reports whether err is a key derivation failure
func IsKeyDerivationError(err error) bool {
	return keys.IsKeyDerivationError(err)
}
