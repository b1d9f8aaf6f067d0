package keys

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// ErrNotFunc is returned when a callable identity is requested for a value
// that is not a non-nil function
var ErrNotFunc = errors.New("keys: not a function")

// Kind classifies a memoized callable by how it receives its context
type Kind int

const (
	// Function is a plain function; every argument is part of the key
	Function Kind = iota

	// Method is a method expression such as (*Fruit).Ripen: the first
	// argument is the instance receiver and names the class
	Method

	// ClassMethod takes a type token as its first argument (a reflect.Type,
	// or any value whose type names the class) instead of an instance
	ClassMethod
)

func (k Kind) String() string {
	switch k {
	case Function:
		return "function"
	case Method:
		return "method"
	case ClassMethod:
		return "class_method"
	default:
		return "unknown"
	}
}

// HasReceiver reports whether calls of this kind carry a leading receiver
func (k Kind) HasReceiver() bool {
	return k == Method || k == ClassMethod
}

// Descriptor identifies a memoized callable
type Descriptor struct {
	Kind          Kind
	QualifiedName string
	Disambiguator string
}

// Name is the key stem: qualified name followed by the disambiguator
func (d Descriptor) Name() string {
	return d.QualifiedName + d.Disambiguator
}

func (d Descriptor) String() string {
	return d.Kind.String() + " " + d.Name()
}

// FuncInfo is what the runtime knows about a function value
type FuncInfo struct {
	// Package is the declaring package import path
	Package string

	// Name is the function name within the package, e.g. "foo",
	// "(*Fruit).Ripen" or "TestWrap.func1"
	Name string

	File string
	Line int
}

// Inspect reads the runtime identity of fn
func Inspect(fn any) (FuncInfo, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return FuncInfo{}, fmt.Errorf("%w: %T", ErrNotFunc, fn)
	}

	f := runtime.FuncForPC(rv.Pointer())
	if f == nil {
		return FuncInfo{}, fmt.Errorf("%w: no runtime info for %T", ErrNotFunc, fn)
	}

	pkg, name := splitFuncName(f.Name())
	file, line := f.FileLine(f.Entry())
	return FuncInfo{Package: pkg, Name: name, File: file, Line: line}, nil
}

// Resolve derives the descriptor of fn for a call with args, classified as kind
func Resolve(fn any, kind Kind, args []any) (Descriptor, error) {
	info, err := Inspect(fn)
	if err != nil {
		return Descriptor{}, err
	}
	if !kind.HasReceiver() {
		return describe(info, kind, "", ""), nil
	}
	class, err := receiverClass(kind, args)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w (%s.%s)", err, info.Package, info.Name)
	}
	return describe(info, kind, className(class), ""), nil
}

// Resolver memoizes descriptors for one callable. Method and ClassMethod
// descriptors are memoized per receiver type, so methods promoted to several
// types still get distinct names. Safe for concurrent use.
type Resolver struct {
	info     FuncInfo
	kind     Kind
	override string

	byClass sync.Map // reflect.Type -> Descriptor
	plain   Descriptor
}

// NewResolver prepares a resolver for fn. A non-empty name replaces the
// runtime-derived package-qualified name and line; receiver kinds still
// append the class as "<name>.<Class>".
func NewResolver(fn any, kind Kind, name string) (*Resolver, error) {
	info, err := Inspect(fn)
	if err != nil {
		return nil, err
	}

	r := &Resolver{info: info, kind: kind, override: name}
	if !kind.HasReceiver() {
		r.plain = describe(info, kind, "", name)
	}
	return r, nil
}

// Kind returns the callable's classification
func (r *Resolver) Kind() Kind {
	return r.kind
}

// Info returns the runtime identity of the callable
func (r *Resolver) Info() FuncInfo {
	return r.info
}

// Resolve returns the descriptor for a call with args
func (r *Resolver) Resolve(args []any) (Descriptor, error) {
	if !r.kind.HasReceiver() {
		return r.plain, nil
	}

	class, err := receiverClass(r.kind, args)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w (%s.%s)", err, r.info.Package, r.info.Name)
	}

	if d, ok := r.byClass.Load(class); ok {
		return d.(Descriptor), nil
	}
	d := describe(r.info, r.kind, className(class), r.override)
	r.byClass.Store(class, d)
	return d, nil
}

// Snapshot separates the key-relevant arguments of a call: the receiver of a
// Method or ClassMethod is dropped unless includeReceiver is set
func (r *Resolver) Snapshot(args []any, kwargs Kwargs, includeReceiver bool) Snapshot {
	if r.kind.HasReceiver() && !includeReceiver && len(args) > 0 {
		args = args[1:]
	}
	return Snapshot{Args: args, Kwargs: kwargs}
}

func describe(info FuncInfo, kind Kind, class, override string) Descriptor {
	if override != "" {
		name := override
		if class != "" {
			name += "." + class
		}
		return Descriptor{Kind: kind, QualifiedName: name}
	}

	name := info.Name
	if class != "" {
		name = class + "." + methodName(info.Name)
	}
	qualified := name
	if info.Package != "" {
		qualified = info.Package + "." + name
	}
	return Descriptor{
		Kind:          kind,
		QualifiedName: qualified,
		Disambiguator: fmt.Sprintf(":%d", info.Line),
	}
}

// receiverClass returns the type that names the class of a receiver call
func receiverClass(kind Kind, args []any) (reflect.Type, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, derivationError(ErrMissingReceiver, "%s called without receiver", kind)
	}

	t := reflect.TypeOf(args[0])
	if kind == ClassMethod {
		if token, ok := args[0].(reflect.Type); ok {
			t = token
		}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, nil
}

func className(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// splitFuncName splits a runtime function name such as
// "github.com/a/b/pkg.(*T).M" into package path and in-package name
func splitFuncName(full string) (string, string) {
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return "", full
	}
	split := slash + 1 + dot
	return full[:split], full[split+1:]
}

// methodName strips the receiver from an in-package name: "(*T).M" -> "M".
// Method values carry a "-fm" suffix that is dropped as well.
func methodName(name string) string {
	name = strings.TrimSuffix(name, "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
