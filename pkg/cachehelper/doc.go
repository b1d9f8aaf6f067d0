// Package cachehelper memoizes Go functions in a key-value backend.
//
// # Overview
//
// A wrapped function is called exactly like the function it wraps. Each
// call derives a deterministic cache key from the function's identity and
// its arguments, asks the backend for a stored result, and on a miss runs
// the function and stores what it returned. Errors are returned and never
// stored. Nothing is cached in process beyond what the backend itself
// keeps, so several processes sharing a Redis or memcached backend share
// results.
//
// # Basic Usage
//
//	m, err := cachehelper.New(cachehelper.NewDefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	getUser := cachehelper.Wrap(m, loadUser, cachehelper.WithTimeout(10*time.Minute))
//
//	u, err := getUser.Fn(ctx, 42) // runs loadUser
//	u, err = getUser.Fn(ctx, 42)  // served from the backend
//
//	// the next call runs loadUser again
//	err = getUser.InvalidateContext(ctx, 42)
//
// # Keys
//
// Keys have the form
//
//	<package>.<name>:<line>;<positional>;<keyword>
//
// so foo(1, 2), declared on line 14 of package example.com/pkg, is stored
// under "example.com/pkg.foo:14;1,2,;". Arguments are normalized (Unicode
// folded, lower-cased, whitespace removed) and collections are flattened
// with sorted map entries, so equal inputs always produce equal keys.
// Collections nested deeper than Config.MaxDepth, values without a stable
// string form, and methods called without their receiver fail with a
// KeyDerivationError before the backend is touched.
//
// Keys longer than Config.MaxKeyLength minus Config.ReservedKeyLength are
// cut and end in the SHA-256 hex digest of the full key.
//
// A leading context.Context parameter is not part of the key and is passed
// to the backend. A trailing keys.Kwargs parameter forms the keyword
// segment:
//
//	report := cachehelper.Wrap(m, func(day string, opts keys.Kwargs) (Report, error) { ... })
//	r, err := report.Fn("2024-05-01", keys.Kwargs{"region": "EU"})
//
// # Methods
//
// Method expressions are wrapped with WithKind(keys.Method); the receiver
// names the class in the key and, unless WithReceiverInKey is given, is not
// part of the arguments:
//
//	ripen := cachehelper.Wrap(m, (*Fruit).Ripen, cachehelper.WithKind(keys.Method))
//	ripen.Fn(apple, 3)
//
// # Backends
//
// Config.StoreType selects an in-process LRU store, Redis or memcached.
// Remote stores encode values with MessagePack (or JSON) and optional
// compression; Wrap converts what comes back into the function's result
// types. Any type implementing Backend can be used with NewWithBackend.
//
// # Observability
//
// Stats counts hits, misses, computations and failures. Hooks observe every
// event; LoggingHooks turns them into log lines. Metrics are exported to
// Prometheus or OpenTelemetry through pkg/metrics, and DebugHandler serves
// the current state as JSON.
package cachehelper
