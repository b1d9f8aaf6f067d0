package cachehelper

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHooksMerge(t *testing.T) {
	var order []string
	first := (&Hooks{}).AddOnMiss(func(context.Context, string, []any) { order = append(order, "first") })
	second := (&Hooks{}).AddOnMiss(func(context.Context, string, []any) { order = append(order, "second") })

	merged := first.Merge(nil, second)
	merged.invokeOnMiss(context.Background(), "k", nil)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("Expected hooks in merge order, got %v", order)
	}
	if len(first.OnMiss) != 1 {
		t.Fatal("Expected Merge to leave its receiver untouched")
	}
}

func TestHooksReceiveArguments(t *testing.T) {
	var gotKey string
	var gotValue any
	var gotArgs []any
	var gotErr error
	var gotFunction string

	hooks := (&Hooks{}).
		AddOnHit(func(_ context.Context, key string, value any, args []any) {
			gotKey, gotValue, gotArgs = key, value, args
		}).
		AddOnKeyError(func(_ context.Context, function string, err error, _ []any) {
			gotFunction, gotErr = function, err
		})

	hooks.invokeOnHit(context.Background(), "k", 7, []any{1, 2})
	if gotKey != "k" || gotValue != 7 || len(gotArgs) != 2 {
		t.Fatalf("Unexpected hit hook arguments: %q %v %v", gotKey, gotValue, gotArgs)
	}

	boom := errors.New("boom")
	hooks.invokeOnKeyError(context.Background(), "pkg.f", boom, nil)
	if gotFunction != "pkg.f" || gotErr != boom {
		t.Fatalf("Unexpected key error hook arguments: %q %v", gotFunction, gotErr)
	}
}

func TestNilHooksAreSafe(t *testing.T) {
	var hooks *Hooks
	ctx := context.Background()

	hooks.invokeOnHit(ctx, "k", nil, nil)
	hooks.invokeOnMiss(ctx, "k", nil)
	hooks.invokeOnInvalidate(ctx, "k", nil)
	hooks.invokeOnKeyError(ctx, "f", errors.New("x"), nil)

	withNil := &Hooks{OnMiss: []OnMissHook{nil}}
	withNil.invokeOnMiss(ctx, "k", nil)
}

func TestHooksSeeKeyErrorFunctionName(t *testing.T) {
	var function string
	hooks := (&Hooks{}).AddOnKeyError(func(_ context.Context, fn string, _ error, _ []any) {
		function = fn
	})
	m := newMemoizer(t, NewDefaultConfig().WithHooks(hooks))

	sum := Wrap(m, func(v any) (int, error) { return 0, nil })
	if _, err := sum.Fn(func() {}); err == nil {
		t.Fatal("Expected key derivation error")
	}
	if !strings.HasPrefix(function, pkgPath+".") {
		t.Fatalf("Expected function name in package %s, got %q", pkgPath, function)
	}
}
