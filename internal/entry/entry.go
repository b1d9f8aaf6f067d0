package entry

import (
	"time"
)

// Entry is a memoized result together with its expiry
type Entry struct {
	// Value is the result as returned by the memoized function, or its
	// decoded form when read back from a remote store
	Value any

	// ExpiresAt indicates when this entry expires (nil means no expiration)
	ExpiresAt *time.Time

	// CreatedAt is when the result was computed
	CreatedAt time.Time
}

// New creates an entry that expires after ttl; ttl <= 0 means never
func New(value any, ttl time.Duration) *Entry {
	now := time.Now()
	e := &Entry{
		Value:     value,
		CreatedAt: now,
	}

	if ttl > 0 {
		expiry := now.Add(ttl)
		e.ExpiresAt = &expiry
	}

	return e
}

// NewWithoutTTL creates an entry without expiration
func NewWithoutTTL(value any) *Entry {
	return New(value, 0)
}

// IsExpired returns true if the entry has expired
func (e *Entry) IsExpired() bool {
	if e.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*e.ExpiresAt)
}

// TTL returns the time remaining until expiration.
// Returns 0 if the entry has no expiration or has already expired.
func (e *Entry) TTL() time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}

	remaining := time.Until(*e.ExpiresAt)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// Age returns how long ago this entry was created
func (e *Entry) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// HasExpiry returns true if the entry has an expiration time set
func (e *Entry) HasExpiry() bool {
	return e.ExpiresAt != nil
}

// String returns a short description of the entry (for debugging)
func (e *Entry) String() string {
	if e.ExpiresAt == nil {
		return "Entry{no-expiry}"
	}
	return "Entry{expires: " + e.ExpiresAt.Format(time.RFC3339) + "}"
}
