package cachehelper

import "context"

// Hooks defines event callbacks for memoized calls. Every hook receives the
// call's context, the derived key and the key-relevant arguments.
type Hooks struct {
	// OnHit is called when a memoized result is served from the backend
	OnHit []OnHitHook

	// OnMiss is called when no result is stored for the key
	OnMiss []OnMissHook

	// OnInvalidate is called after a key is invalidated
	OnInvalidate []OnInvalidateHook

	// OnKeyError is called when a call's key cannot be derived
	OnKeyError []OnKeyErrorHook
}

// Hook function type definitions
type (
	// OnHitHook is called when a cache hit occurs
	OnHitHook func(ctx context.Context, key string, value any, args []any)

	// OnMissHook is called when a cache miss occurs
	OnMissHook func(ctx context.Context, key string, args []any)

	// OnInvalidateHook is called when a key is invalidated
	OnInvalidateHook func(ctx context.Context, key string, args []any)

	// OnKeyErrorHook is called with the name of the function whose key
	// could not be derived
	OnKeyErrorHook func(ctx context.Context, function string, err error, args []any)
)

// AddOnHit adds an OnHit hook
func (h *Hooks) AddOnHit(hook OnHitHook) *Hooks {
	h.OnHit = append(h.OnHit, hook)
	return h
}

// AddOnMiss adds an OnMiss hook
func (h *Hooks) AddOnMiss(hook OnMissHook) *Hooks {
	h.OnMiss = append(h.OnMiss, hook)
	return h
}

// AddOnInvalidate adds an OnInvalidate hook
func (h *Hooks) AddOnInvalidate(hook OnInvalidateHook) *Hooks {
	h.OnInvalidate = append(h.OnInvalidate, hook)
	return h
}

// AddOnKeyError adds an OnKeyError hook
func (h *Hooks) AddOnKeyError(hook OnKeyErrorHook) *Hooks {
	h.OnKeyError = append(h.OnKeyError, hook)
	return h
}

// Merge returns a new Hooks running h's hooks followed by each of others'
func (h *Hooks) Merge(others ...*Hooks) *Hooks {
	merged := &Hooks{}
	for _, src := range append([]*Hooks{h}, others...) {
		if src == nil {
			continue
		}
		merged.OnHit = append(merged.OnHit, src.OnHit...)
		merged.OnMiss = append(merged.OnMiss, src.OnMiss...)
		merged.OnInvalidate = append(merged.OnInvalidate, src.OnInvalidate...)
		merged.OnKeyError = append(merged.OnKeyError, src.OnKeyError...)
	}
	return merged
}

func (h *Hooks) invokeOnHit(ctx context.Context, key string, value any, args []any) {
	if h == nil {
		return
	}
	for _, hook := range h.OnHit {
		if hook != nil {
			hook(ctx, key, value, args)
		}
	}
}

func (h *Hooks) invokeOnMiss(ctx context.Context, key string, args []any) {
	if h == nil {
		return
	}
	for _, hook := range h.OnMiss {
		if hook != nil {
			hook(ctx, key, args)
		}
	}
}

func (h *Hooks) invokeOnInvalidate(ctx context.Context, key string, args []any) {
	if h == nil {
		return
	}
	for _, hook := range h.OnInvalidate {
		if hook != nil {
			hook(ctx, key, args)
		}
	}
}

func (h *Hooks) invokeOnKeyError(ctx context.Context, function string, err error, args []any) {
	if h == nil {
		return
	}
	for _, hook := range h.OnKeyError {
		if hook != nil {
			hook(ctx, function, err, args)
		}
	}
}
