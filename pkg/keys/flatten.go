package keys

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

const (
	// DefaultMaxDepth is the default collection nesting bound
	DefaultMaxDepth = 2

	// Unbounded disables the nesting bound. Self-referencing values still fail.
	Unbounded = -1

	separator = ","
	pairSep   = ":"
)

// Kwargs carries keyword arguments of a memoized call. A function whose last
// parameter is Kwargs gets that argument rendered into the keyword segment
// of the key instead of the positional one.
type Kwargs map[string]any

// structural escapes the characters the flattener uses to encode structure,
// so that a scalar such as "1,2" never renders like the sequence [1, 2].
var structural = strings.NewReplacer(
	`\`, `\\`,
	",", `\,`,
	":", `\:`,
	";", `\;`,
	"[", `\[`,
	"]", `\]`,
	"{", `\{`,
	"}", `\}`,
)

var (
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	bytesType    = reflect.TypeOf([]byte(nil))
)

// Flattener renders arbitrary, possibly nested, argument values into a single
// canonical string. The zero value is not usable; use NewFlattener.
type Flattener struct {
	maxDepth int
}

// NewFlattener creates a flattener bounded to maxDepth levels of nesting.
// Pass Unbounded to disable the bound.
func NewFlattener(maxDepth int) *Flattener {
	if maxDepth < Unbounded {
		maxDepth = Unbounded
	}
	return &Flattener{maxDepth: maxDepth}
}

// MaxDepth returns the configured nesting bound (Unbounded when disabled)
func (f *Flattener) MaxDepth() int {
	return f.maxDepth
}

// Flatten renders v starting at depth 0.
//
//	Flatten([]int{3, 4})          == "3,4"
//	Flatten(map[int]string{1: "x"}) == "1:x"
//	Flatten([]any{1, []int{2}})   == "1,[2]"
func (f *Flattener) Flatten(v any) (string, error) {
	return f.FlattenAt(v, 0)
}

// FlattenAt renders v as if it were found at the given depth
func (f *Flattener) FlattenAt(v any, depth int) (string, error) {
	w := newWalker(f.maxDepth)
	rv, scalar, entered, err := w.indirect(reflect.ValueOf(v))
	defer w.leave(entered)
	if err != nil {
		return "", err
	}
	if scalar {
		return scalarTerm(rv)
	}
	return w.level(rv, depth)
}

// Positional renders the positional segment of a key: one "<element>,"
// per argument. The argument list itself sits at depth 0.
func (f *Flattener) Positional(args []any) (string, error) {
	if len(args) == 0 {
		return "", nil
	}

	w := newWalker(f.maxDepth)
	var b strings.Builder
	for _, arg := range args {
		term, err := w.element(reflect.ValueOf(arg), 1)
		if err != nil {
			return "", err
		}
		b.WriteString(term)
		b.WriteString(separator)
	}
	return b.String(), nil
}

// Keyword renders the keyword segment of a key: one "<key>:<element>," per
// entry, ordered by normalized key.
func (f *Flattener) Keyword(kwargs Kwargs) (string, error) {
	if len(kwargs) == 0 {
		return "", nil
	}

	w := newWalker(f.maxDepth)
	entries, err := w.mapEntries(reflect.ValueOf(kwargs), 0)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e)
		b.WriteString(separator)
	}
	return b.String(), nil
}

// walker carries per-call traversal state
type walker struct {
	maxDepth int
	path     map[visit]struct{}
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

func newWalker(maxDepth int) *walker {
	return &walker{maxDepth: maxDepth, path: make(map[visit]struct{})}
}

// indirect strips pointers and interfaces until it reaches a value that
// renders as a scalar or a collection. An invalid result means nil.
// Pointers followed are added to the walk path; the caller releases them
// with leave.
func (w *walker) indirect(rv reflect.Value) (reflect.Value, bool, []visit, error) {
	var entered []visit
	for rv.IsValid() {
		if hasStringForm(rv.Type()) {
			return rv, true, entered, nil
		}

		switch rv.Kind() {
		case reflect.Interface:
			if rv.IsNil() {
				return reflect.Value{}, true, entered, nil
			}
			rv = rv.Elem()
		case reflect.Pointer:
			if rv.IsNil() {
				return reflect.Value{}, true, entered, nil
			}
			v := visit{ptr: rv.Pointer(), typ: rv.Type()}
			if _, ok := w.path[v]; ok {
				return rv, false, entered, derivationError(ErrTooDeep, "cyclic pointer to %s", rv.Type())
			}
			w.path[v] = struct{}{}
			entered = append(entered, v)
			rv = rv.Elem()
		case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
			return rv, false, entered, nil
		default:
			return rv, true, entered, nil
		}
	}
	return rv, true, entered, nil
}

func (w *walker) leave(entered []visit) {
	for _, v := range entered {
		delete(w.path, v)
	}
}

// element renders v as a member of an enclosing collection at depth.
// Nested collections are bracketed, scalars are escaped.
func (w *walker) element(rv reflect.Value, depth int) (string, error) {
	rv, scalar, entered, err := w.indirect(rv)
	defer w.leave(entered)
	if err != nil {
		return "", err
	}

	if scalar {
		term, err := scalarTerm(rv)
		if err != nil {
			return "", err
		}
		return structural.Replace(term), nil
	}

	inner, err := w.level(rv, depth)
	if err != nil {
		return "", err
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		return "{" + inner + "}", nil
	default:
		return "[" + inner + "]", nil
	}
}

// level renders a collection found at depth, without brackets
func (w *walker) level(rv reflect.Value, depth int) (string, error) {
	if w.maxDepth != Unbounded && depth > w.maxDepth {
		return "", derivationError(ErrTooDeep, "%s at depth %d, max %d", rv.Type(), depth, w.maxDepth)
	}

	if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.Len() > 0 {
		v := visit{ptr: rv.Pointer(), typ: rv.Type()}
		if _, ok := w.path[v]; ok {
			return "", derivationError(ErrTooDeep, "cyclic reference to %s", rv.Type())
		}
		w.path[v] = struct{}{}
		defer delete(w.path, v)
	}

	var parts []string
	var err error
	switch rv.Kind() {
	case reflect.Map:
		parts, err = w.mapEntries(rv, depth)
	case reflect.Struct:
		parts, err = w.structEntries(rv, depth)
	default:
		parts, err = w.sequence(rv, depth)
	}
	if err != nil {
		return "", err
	}

	return NormalizeString(strings.Join(parts, separator)), nil
}

func (w *walker) sequence(rv reflect.Value, depth int) ([]string, error) {
	parts := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		term, err := w.element(rv.Index(i), depth+1)
		if err != nil {
			return nil, err
		}
		parts = append(parts, term)
	}
	return parts, nil
}

// mapEntries renders "<key>:<value>" pairs sorted by rendered key, then value
func (w *walker) mapEntries(rv reflect.Value, depth int) ([]string, error) {
	type pair struct{ key, value string }
	pairs := make([]pair, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		k, err := w.element(iter.Key(), depth+1)
		if err != nil {
			return nil, err
		}
		v, err := w.element(iter.Value(), depth+1)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{key: k, value: v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	entries := make([]string, len(pairs))
	for i, p := range pairs {
		entries[i] = p.key + pairSep + p.value
	}
	return entries, nil
}

// structEntries renders exported fields as a mapping of field name to value
func (w *walker) structEntries(rv reflect.Value, depth int) ([]string, error) {
	rt := rv.Type()
	entries := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		v, err := w.element(rv.Field(i), depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, structural.Replace(NormalizeString(field.Name))+pairSep+v)
	}
	sort.Strings(entries)
	return entries, nil
}

// scalarTerm normalizes a value already known to render as a scalar
func scalarTerm(rv reflect.Value) (string, error) {
	if !rv.IsValid() {
		return nilTerm, nil
	}
	if !rv.CanInterface() {
		return "", derivationError(ErrUnconvertible, "unexported value of type %s", rv.Type())
	}
	return Normalize(rv.Interface())
}

// hasStringForm reports whether values of t render through their own
// String or Error method, or are byte strings. A method promoted from an
// embedded field does not count: it would hide the struct's other fields.
func hasStringForm(t reflect.Type) bool {
	if t == bytesType {
		return true
	}
	if t.Kind() == reflect.Interface {
		return false
	}
	return (t.Implements(stringerType) && declaresMethod(t, "String")) ||
		(t.Implements(errorType) && declaresMethod(t, "Error"))
}

// declaresMethod reports whether the named method of t is declared on t
// itself rather than promoted from an embedded field
func declaresMethod(t reflect.Type, name string) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return true
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.Anonymous {
			continue
		}
		if _, ok := field.Type.MethodByName(name); ok {
			return false
		}
		if field.Type.Kind() != reflect.Pointer {
			if _, ok := reflect.PointerTo(field.Type).MethodByName(name); ok {
				return false
			}
		}
	}
	return true
}
