package cachehelper

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/vnykmshr/cachehelper-go/pkg/codec"
	"github.com/vnykmshr/cachehelper-go/pkg/keys"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	kwargsType  = reflect.TypeOf(keys.Kwargs(nil))
)

// WrapOptions holds configuration options for function wrapping
type WrapOptions struct {
	// Timeout overrides Config.DefaultTimeout for this function's results
	Timeout time.Duration

	// Kind classifies the function (default keys.Function)
	Kind keys.Kind

	// Name replaces the derived package-qualified name and line in keys
	Name string

	// IncludeReceiver keeps the receiver of a method in the key
	IncludeReceiver bool
}

// WrapOption is a function that configures WrapOptions
type WrapOption func(*WrapOptions)

// WithTimeout sets how long results of the wrapped function live
func WithTimeout(timeout time.Duration) WrapOption {
	return func(opts *WrapOptions) {
		opts.Timeout = timeout
	}
}

// WithKind marks the wrapped function as a plain function, a method
// expression whose first parameter is the instance, or a class method whose
// first parameter is a type token
func WithKind(kind keys.Kind) WrapOption {
	return func(opts *WrapOptions) {
		opts.Kind = kind
	}
}

// WithName gives the wrapped function a stable key name that survives
// refactors moving it to another package or line
func WithName(name string) WrapOption {
	return func(opts *WrapOptions) {
		opts.Name = name
	}
}

// WithReceiverInKey keeps the receiver of a method in the positional
// segment, so each instance gets its own results
func WithReceiverInKey() WrapOption {
	return func(opts *WrapOptions) {
		opts.IncludeReceiver = true
	}
}

// Memo is a memoized function. Fn has the wrapped function's type and is
// called exactly like it. A leading context.Context parameter (after the
// receiver, for methods) is left out of the key and passed to the backend;
// a trailing keys.Kwargs parameter becomes the keyword segment.
//
// When a call's key cannot be derived, or the backend fails, Fn returns the
// error as its trailing error result; functions without one panic with it.
type Memo[T any] struct {
	Fn T

	m        *Memoizer
	fn       any
	fnValue  reflect.Value
	fnType   reflect.Type
	opts     WrapOptions
	ctxIdx   int
	kwIdx    int
	hasError bool
}

// Wrap memoizes fn through m. It panics if fn cannot be wrapped.
func Wrap[T any](m *Memoizer, fn T, options ...WrapOption) *Memo[T] {
	opts := WrapOptions{Kind: keys.Function}
	for _, opt := range options {
		opt(&opts)
	}

	if err := ValidateWrappableFunction(fn); err != nil {
		panic("cachehelper.Wrap: " + err.Error())
	}
	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()
	if opts.Kind.HasReceiver() && fnType.NumIn() == 0 {
		panic(fmt.Sprintf("cachehelper.Wrap: %s needs a receiver parameter", opts.Kind))
	}
	if _, err := m.resolver(Call{Fn: fn, Kind: opts.Kind, Name: opts.Name}); err != nil {
		panic("cachehelper.Wrap: " + err.Error())
	}

	memo := &Memo[T]{
		m:        m,
		fn:       fn,
		fnValue:  fnValue,
		fnType:   fnType,
		opts:     opts,
		ctxIdx:   contextIndex(fnType, opts.Kind),
		hasError: hasErrorReturn(fnType),
	}
	memo.kwIdx = kwargsIndex(fnType, memo.ctxIdx)
	memo.Fn = reflect.MakeFunc(fnType, memo.call).Interface().(T)
	return memo
}

// Invalidate removes the stored result for the given arguments, which are
// Fn's arguments without the leading context. Invalidating an absent result
// is not an error.
func (w *Memo[T]) Invalidate(args ...any) error {
	return w.InvalidateContext(context.Background(), args...)
}

// InvalidateContext is Invalidate with a context for the backend call
func (w *Memo[T]) InvalidateContext(ctx context.Context, args ...any) error {
	call, err := w.callOf(args)
	if err != nil {
		return err
	}
	return w.m.Invalidate(ctx, call)
}

// Key returns the backend key for the given arguments (Fn's arguments
// without the leading context)
func (w *Memo[T]) Key(args ...any) (string, error) {
	call, err := w.callOf(args)
	if err != nil {
		return "", err
	}
	return w.m.Key(call)
}

func (w *Memo[T]) call(args []reflect.Value) []reflect.Value {
	ctx := context.Background()
	keyArgs := make([]any, 0, len(args))
	for i, arg := range args {
		if i == w.ctxIdx {
			if c, ok := arg.Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			continue
		}
		keyArgs = append(keyArgs, arg.Interface())
	}

	call, err := w.callOf(keyArgs)
	if err != nil {
		return w.fail(err)
	}

	value, err := w.m.Do(ctx, call, func(computeCtx context.Context) (any, error) {
		if w.ctxIdx >= 0 {
			args[w.ctxIdx] = reflect.ValueOf(&computeCtx).Elem()
		}
		return processResults(w.fnValue.Call(args), w.hasError)
	})
	if err != nil {
		return w.fail(err)
	}

	results, err := w.results(value)
	if err != nil {
		return w.fail(err)
	}
	return results
}

// callOf builds the Call for Fn's arguments without the leading context
func (w *Memo[T]) callOf(args []any) (Call, error) {
	want := w.fnType.NumIn()
	if w.ctxIdx >= 0 {
		want--
	}
	if len(args) != want {
		return Call{}, fmt.Errorf("cachehelper: %s takes %d arguments, got %d", w.fnType, want, len(args))
	}

	call := Call{
		Fn:              w.fn,
		Kind:            w.opts.Kind,
		Name:            w.opts.Name,
		Args:            args,
		IncludeReceiver: w.opts.IncludeReceiver,
		TTL:             w.opts.Timeout,
	}
	if w.kwIdx >= 0 {
		last := len(args) - 1
		if args[last] != nil {
			kw, ok := args[last].(keys.Kwargs)
			if !ok {
				return Call{}, fmt.Errorf("cachehelper: keyword arguments must be keys.Kwargs, got %T", args[last])
			}
			call.Kwargs = kw
		}
		call.Args = args[:last]
	}
	return call, nil
}

// results shapes a stored or computed value into Fn's results
func (w *Memo[T]) results(value any) ([]reflect.Value, error) {
	numOut := w.fnType.NumOut()
	out := make([]reflect.Value, numOut)
	values := numOut
	if w.hasError {
		values--
		out[numOut-1] = reflect.Zero(w.fnType.Out(numOut - 1))
	}

	switch values {
	case 0:
		return out, nil
	case 1:
		rv, err := codec.Convert(w.m.codec, value, w.fnType.Out(0))
		if err != nil {
			return nil, err
		}
		out[0] = rv
		return out, nil
	}

	parts, ok := value.([]any)
	if !ok || len(parts) != values {
		return nil, fmt.Errorf("cachehelper: stored value %T does not hold %d results", value, values)
	}
	for i, part := range parts {
		rv, err := codec.Convert(w.m.codec, part, w.fnType.Out(i))
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}

// fail returns err as Fn's error result, or panics when Fn has none
func (w *Memo[T]) fail(err error) []reflect.Value {
	if !w.hasError {
		panic(err)
	}
	return createErrorReturn(w.fnType, err)
}

func contextIndex(fnType reflect.Type, kind keys.Kind) int {
	i := 0
	if kind.HasReceiver() {
		i = 1
	}
	if fnType.NumIn() > i && fnType.In(i) == contextType {
		return i
	}
	return -1
}

// kwargsIndex returns the position of a trailing keys.Kwargs parameter in
// the argument list without the context, or -1
func kwargsIndex(fnType reflect.Type, ctxIdx int) int {
	n := fnType.NumIn()
	if n == 0 || n-1 == ctxIdx || fnType.In(n-1) != kwargsType {
		return -1
	}
	if ctxIdx >= 0 {
		return n - 2
	}
	return n - 1
}

// hasErrorReturn checks if function returns error as last result. A
// function returning only an error has no value results.
func hasErrorReturn(fnType reflect.Type) bool {
	return fnType.NumOut() >= 1 && fnType.Out(fnType.NumOut()-1) == errorType
}

// processResults packs a function's results for storage: a single value as
// is, several values as []any, nothing as nil. A non-nil error result is
// returned instead.
func processResults(results []reflect.Value, hasError bool) (any, error) {
	if hasError {
		last := results[len(results)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		results = results[:len(results)-1]
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0].Interface(), nil
	}
	values := make([]any, len(results))
	for i, result := range results {
		values[i] = result.Interface()
	}
	return values, nil
}

// createErrorReturn creates a return value slice with the given error
func createErrorReturn(fnType reflect.Type, err error) []reflect.Value {
	numOut := fnType.NumOut()
	results := make([]reflect.Value, numOut)
	for i := 0; i < numOut-1; i++ {
		results[i] = reflect.Zero(fnType.Out(i))
	}
	results[numOut-1] = reflect.ValueOf(err)
	return results
}

// ValidateWrappableFunction checks if a function can be wrapped
func ValidateWrappableFunction(fn any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return fmt.Errorf("not a function: %T", fn)
	}
	if reflect.ValueOf(fn).IsNil() {
		return fmt.Errorf("nil function: %T", fn)
	}

	if fnType.IsVariadic() {
		return fmt.Errorf("variadic functions are not supported")
	}

	numOut := fnType.NumOut()
	if numOut == 0 {
		return fmt.Errorf("functions with no return values cannot be cached")
	}
	if numOut > 1 && fnType.Out(numOut-1) != errorType {
		return fmt.Errorf("multi-return functions must have error as the last return value")
	}
	return nil
}
