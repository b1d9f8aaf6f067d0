package keys

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsForbidden(t *testing.T) {
	got := Sanitize("a b\tc\x00d\x7fe\n", DefaultMaxKeyLength, 0)
	assert.Equal(t, "abcde", got)

	for _, r := range got {
		assert.False(t, IsForbidden(r))
	}
}

func TestSanitizeShortKeyUnchanged(t *testing.T) {
	key := "pkg.foo:14;1,2,;"
	assert.Equal(t, key, Sanitize(key, DefaultMaxKeyLength, 0))
	assert.Equal(t, key, Sanitize(key, len(key), 0))
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("x", 300)

	got := Sanitize(long, DefaultMaxKeyLength, 0)
	require.Len(t, got, DefaultMaxKeyLength)
	assert.Equal(t, strings.Repeat("x", DefaultMaxKeyLength-HashWidth), got[:DefaultMaxKeyLength-HashWidth])
	assert.Equal(t, Digest(long), got[DefaultMaxKeyLength-HashWidth:])

	reserved := Sanitize(long, DefaultMaxKeyLength, 12)
	assert.Len(t, reserved, DefaultMaxKeyLength-12)
	assert.True(t, strings.HasSuffix(reserved, Digest(long)))
}

func TestSanitizeHashesCleanedKey(t *testing.T) {
	long := strings.Repeat("y", 300)
	withSpaces := " " + long + " "

	assert.Equal(t, Sanitize(long, 100, 0), Sanitize(withSpaces, 100, 0))
}

func TestSanitizeKeepsLongKeysDistinct(t *testing.T) {
	prefix := strings.Repeat("p", 400)

	a := Sanitize(prefix+"a", DefaultMaxKeyLength, 0)
	b := Sanitize(prefix+"b", DefaultMaxKeyLength, 0)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a[:DefaultMaxKeyLength-HashWidth], b[:DefaultMaxKeyLength-HashWidth])
}

func TestSanitizeSmallBudget(t *testing.T) {
	long := strings.Repeat("z", 300)

	got := Sanitize(long, 40, 0)
	assert.Equal(t, Digest(long)[:40], got)

	assert.Equal(t, "", Sanitize(long, 10, 20))
}

func TestSanitizeRuneBoundary(t *testing.T) {
	long := "a" + strings.Repeat("é", 200)

	got := Sanitize(long, DefaultMaxKeyLength, 0)
	assert.LessOrEqual(t, len(got), DefaultMaxKeyLength)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, Digest(long)))
}

func TestSanitizeNeverExceedsMax(t *testing.T) {
	for _, max := range []int{0, 1, 63, 64, 65, 100, 250} {
		for _, n := range []int{0, 1, 64, 250, 1000} {
			got := Sanitize(strings.Repeat("k", n), max, 0)
			assert.LessOrEqual(t, len(got), max, "max=%d n=%d", max, n)
		}
	}
}
