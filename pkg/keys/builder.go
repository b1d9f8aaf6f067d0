package keys

import "strings"

// segmentSep separates the name, positional and keyword segments of a key
const segmentSep = ";"

// Snapshot holds the key-relevant arguments of one call
type Snapshot struct {
	Args   []any
	Kwargs Kwargs
}

// Derived is a finished cache key
type Derived struct {
	// Key is the sanitized key handed to the backend
	Key string

	// Raw is the composed key before sanitization
	Raw string

	// Truncated reports whether Key ends in the SHA-256 suffix
	Truncated bool
}

// Builder composes and sanitizes cache keys
type Builder struct {
	flattener *Flattener
	maxLength int
	reserved  int
}

// NewBuilder creates a key builder. maxLength <= 0 selects DefaultMaxKeyLength.
func NewBuilder(maxDepth, maxLength, reservedLength int) *Builder {
	if maxLength <= 0 {
		maxLength = DefaultMaxKeyLength
	}
	if reservedLength < 0 {
		reservedLength = 0
	}
	return &Builder{
		flattener: NewFlattener(maxDepth),
		maxLength: maxLength,
		reserved:  reservedLength,
	}
}

// Flattener returns the flattener used for argument segments
func (b *Builder) Flattener() *Flattener {
	return b.flattener
}

// MaxLength returns the total key length bound
func (b *Builder) MaxLength() int {
	return b.maxLength
}

// ReservedLength returns the length held back for backend decoration
func (b *Builder) ReservedLength() int {
	return b.reserved
}

// Derive builds the key for a call of the described callable:
//
//	<qualified-name><disambiguator>;<positional>;<keyword>
//
// so foo(1, 2) declared on line 14 of package pkg yields "pkg.foo:14;1,2,;".
func (b *Builder) Derive(desc Descriptor, snap Snapshot) (Derived, error) {
	positional, err := b.flattener.Positional(snap.Args)
	if err != nil {
		return Derived{}, err
	}
	keyword, err := b.flattener.Keyword(snap.Kwargs)
	if err != nil {
		return Derived{}, err
	}

	var raw strings.Builder
	raw.Grow(len(desc.QualifiedName) + len(desc.Disambiguator) + len(positional) + len(keyword) + 2)
	raw.WriteString(desc.Name())
	raw.WriteString(segmentSep)
	raw.WriteString(positional)
	raw.WriteString(segmentSep)
	raw.WriteString(keyword)

	key, truncated := sanitize(raw.String(), b.maxLength, b.reserved)
	return Derived{Key: key, Raw: raw.String(), Truncated: truncated}, nil
}
