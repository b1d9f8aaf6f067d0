package keys

import (
	"errors"
	"fmt"
)

// Key derivation failure classes. Match them with errors.Is.
var (
	// ErrTooDeep indicates an argument nests collections deeper than the
	// configured maximum depth (or, with Unbounded depth, refers to itself)
	ErrTooDeep = errors.New("collection nesting exceeds configured maximum depth")

	// ErrMissingReceiver indicates a Method or ClassMethod was called without
	// its receiver argument
	ErrMissingReceiver = errors.New("missing receiver argument")

	// ErrUnconvertible indicates a value has no stable string form
	ErrUnconvertible = errors.New("unconvertible value")
)

// KeyDerivationError is returned when a cache key cannot be built for a call.
// It is raised before any cache access and the memoized function is not run.
type KeyDerivationError struct {
	// Err is one of ErrTooDeep, ErrMissingReceiver or ErrUnconvertible
	Err error

	// Detail describes where the failure happened (type name, depth, callable)
	Detail string
}

func (e *KeyDerivationError) Error() string {
	if e.Detail == "" {
		return "keys: " + e.Err.Error()
	}
	return fmt.Sprintf("keys: %s: %s", e.Err.Error(), e.Detail)
}

// Unwrap returns the failure class
func (e *KeyDerivationError) Unwrap() error {
	return e.Err
}

func derivationError(class error, format string, args ...any) error {
	return &KeyDerivationError{Err: class, Detail: fmt.Sprintf(format, args...)}
}

// IsKeyDerivationError reports whether err (or anything it wraps) is a
// KeyDerivationError
func IsKeyDerivationError(err error) bool {
	var kde *KeyDerivationError
	return errors.As(err, &kde)
}
