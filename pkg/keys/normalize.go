package keys

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nilTerm is the canonical term for nil values and nil pointers
const nilTerm = "nil"

// transform.Chain keeps internal buffers, so each goroutine takes its own.
var asciiFolders = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKD,
			runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
		)
	},
}

// Normalize converts a scalar value to its canonical term: the value's string
// form, NFKD-decomposed, stripped of non-ASCII remnants, lowercased and trimmed.
//
// Canonicalization is deliberately lossy: "Café" and "cafe " produce the same
// term, trading strict distinctness for a higher hit rate.
//
// Values without a stable string form (funcs, channels, unsafe pointers)
// return a KeyDerivationError wrapping ErrUnconvertible.
func Normalize(v any) (string, error) {
	s, err := stringOf(v)
	if err != nil {
		return "", err
	}
	return NormalizeString(s), nil
}

// NormalizeString applies the canonical folding to an already stringified value
func NormalizeString(s string) string {
	if isPlainASCII(s) {
		return strings.ToLower(strings.TrimSpace(s))
	}

	t := asciiFolders.Get().(transform.Transformer)
	defer asciiFolders.Put(t)

	folded, _, err := transform.String(t, s)
	if err != nil {
		// Only malformed input reaches here; fall back to dropping non-ASCII bytes.
		folded = strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return -1
			}
			return r
		}, s)
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// stringOf returns the display form of v, before folding
func stringOf(v any) (string, error) {
	if v == nil {
		return nilTerm, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return "", derivationError(ErrUnconvertible, "%T has no stable string form", v)
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nilTerm, nil
		}
	}

	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case time.Time:
		// String() would include the monotonic clock reading
		return val.UTC().Format(time.RFC3339Nano), nil
	case *time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	case error:
		return val.Error(), nil
	case fmt.Stringer:
		return val.String(), nil
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	case reflect.Complex64:
		return strconv.FormatComplex(rv.Complex(), 'g', -1, 64), nil
	case reflect.Complex128:
		return strconv.FormatComplex(rv.Complex(), 'g', -1, 128), nil
	case reflect.Pointer:
		return stringOf(rv.Elem().Interface())
	default:
		return fmt.Sprint(v), nil
	}
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
