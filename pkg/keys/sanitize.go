package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxKeyLength matches memcached's key length limit
	DefaultMaxKeyLength = 250

	// HashWidth is the length of the hex encoded SHA-256 suffix appended to
	// truncated keys
	HashWidth = sha256.Size * 2
)

// IsForbidden reports whether r may not appear in a cache key: the C0
// control characters, space, and DEL.
func IsForbidden(r rune) bool {
	return r <= 32 || r == 127
}

// Sanitize removes forbidden characters from key and, when the result is
// longer than maxLength-reservedLength bytes, truncates it and appends the
// SHA-256 of the whole cleaned key so distinct long keys stay distinct.
//
// reservedLength accounts for decoration the backend adds itself (a key
// prefix, a version suffix). The result is never longer than maxLength.
func Sanitize(key string, maxLength, reservedLength int) string {
	cleaned, _ := sanitize(key, maxLength, reservedLength)
	return cleaned
}

// sanitize is Sanitize that also reports whether the key was truncated
func sanitize(key string, maxLength, reservedLength int) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if IsForbidden(r) {
			return -1
		}
		return r
	}, key)

	budget := maxLength - reservedLength
	if budget < 0 {
		budget = 0
	}
	if len(cleaned) <= budget {
		return cleaned, false
	}

	digest := Digest(cleaned)
	if budget <= HashWidth {
		return digest[:budget], true
	}

	cut := budget - HashWidth
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return cleaned[:cut] + digest, true
}

// Digest returns the hex SHA-256 of a cleaned key, the suffix Sanitize
// appends on truncation
func Digest(cleaned string) string {
	sum := sha256.Sum256([]byte(cleaned))
	return hex.EncodeToString(sum[:])
}
