package cachehelper

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vnykmshr/cachehelper-go/pkg/codec"
	"github.com/vnykmshr/cachehelper-go/pkg/keys"
	"github.com/vnykmshr/cachehelper-go/pkg/metrics"
)

// Call describes one invocation of a memoized function
type Call struct {
	// Fn identifies the memoized function. Only its identity is used.
	Fn any

	// Kind classifies Fn. Method and ClassMethod calls carry the receiver
	// (or type token) as Args[0].
	Kind keys.Kind

	// Name replaces the package-qualified name and line in the key
	Name string

	// Args are the positional arguments
	Args []any

	// Kwargs form the keyword segment of the key
	Kwargs keys.Kwargs

	// IncludeReceiver keeps the receiver of a Method or ClassMethod call
	// in the positional segment
	IncludeReceiver bool

	// TTL is how long the result lives; zero selects Config.DefaultTimeout
	TTL time.Duration
}

// ComputeFunc produces the value for a missed call
type ComputeFunc func(ctx context.Context) (any, error)

// FunctionInfo describes a function the memoizer has derived keys for
type FunctionInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
	Line int    `json:"line"`
}

type registryKey struct {
	pc   uintptr
	kind keys.Kind
	name string
}

// Memoizer derives cache keys for function calls and serves their results
// from a Backend, computing and storing them on a miss. It keeps no results
// in process.
type Memoizer struct {
	config  *Config
	backend Backend
	closer  io.Closer
	builder *keys.Builder
	codec   codec.Codec
	stats   *Stats
	hooks   *Hooks
	logger  Logger
	sf      *singleflight.Group

	registry sync.Map // registryKey -> *keys.Resolver

	// Metrics
	metricsExporter metrics.Exporter
	metricsLabels   metrics.Labels
	metricsStop     chan struct{}
	metricsWg       sync.WaitGroup

	closeOnce sync.Once
}

// New creates a Memoizer. Unless config.Backend is set, the backend is a
// Cache built from config and is closed with the memoizer.
func New(config *Config) (*Memoizer, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	m := &Memoizer{
		config:  config,
		backend: config.Backend,
		builder: keys.NewBuilder(config.MaxDepth, config.MaxKeyLength, config.ReservedKeyLength),
		codec:   codec.Default,
		stats:   &Stats{},
		hooks:   config.Hooks,
		logger:  config.Logger,
	}

	if m.backend == nil {
		cache, err := NewCache(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend: %w", err)
		}
		m.backend = cache
		m.closer = cache
	}
	if c, ok := m.backend.(interface{ Codec() codec.Codec }); ok {
		m.codec = c.Codec()
	}
	if m.logger == nil {
		m.logger = NewNoOpLogger()
	}
	if config.Singleflight {
		m.sf = &singleflight.Group{}
	}

	m.initializeMetrics()
	return m, nil
}

// NewWithBackend creates a Memoizer over an existing backend, which the
// caller keeps ownership of
func NewWithBackend(backend Backend, config *Config) (*Memoizer, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if config == nil {
		config = NewDefaultConfig()
	}
	withBackend := *config
	withBackend.Backend = backend
	return New(&withBackend)
}

// Do returns the stored result for call, or runs compute, stores its result
// and returns it. Errors from compute are returned as is and not stored.
// A key derivation failure is returned before the backend is touched.
// If storing fails, the computed value is returned together with the error.
// With single-flight enabled, compute runs under a context that keeps ctx's
// values but not its cancellation.
func (m *Memoizer) Do(ctx context.Context, call Call, compute ComputeFunc) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	derived, err := m.derive(ctx, call)
	if err != nil {
		return nil, err
	}
	key := derived.Key

	value, found, err := m.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		m.stats.incHits()
		m.hooks.invokeOnHit(ctx, key, value, call.Args)
		return value, nil
	}
	m.stats.incMisses()
	m.hooks.invokeOnMiss(ctx, key, call.Args)

	ttl := m.ttl(call.TTL)
	if m.sf == nil {
		return m.computeAndStore(ctx, key, ttl, compute)
	}
	// the shared computation outlives the cancellation of any one caller
	value, err, _ = m.sf.Do(key, func() (any, error) {
		return m.computeAndStore(context.WithoutCancel(ctx), key, ttl, compute)
	})
	return value, err
}

// Invalidate removes the stored result for call. Invalidating an absent key
// is not an error.
func (m *Memoizer) Invalidate(ctx context.Context, call Call) error {
	if ctx == nil {
		ctx = context.Background()
	}

	derived, err := m.derive(ctx, call)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := m.backend.Delete(ctx, derived.Key); err != nil {
		m.record(metrics.OperationDelete, metrics.ResultError, start)
		m.logger.Error("Cache delete failed", F("key", derived.Key), F("error", err))
		return fmt.Errorf("cachehelper: delete %s: %w", derived.Key, err)
	}
	m.record(metrics.OperationDelete, metrics.ResultOK, start)

	m.stats.incInvalidations()
	m.hooks.invokeOnInvalidate(ctx, derived.Key, call.Args)
	return nil
}

// Key returns the backend key for call without touching the backend
func (m *Memoizer) Key(call Call) (string, error) {
	derived, err := m.derive(context.Background(), call)
	if err != nil {
		return "", err
	}
	return derived.Key, nil
}

// Stats returns the memoizer statistics
func (m *Memoizer) Stats() *Stats {
	return m.stats
}

// Backend returns the backend results are stored in
func (m *Memoizer) Backend() Backend {
	return m.backend
}

// Functions lists the functions keys have been derived for, sorted by name
func (m *Memoizer) Functions() []FunctionInfo {
	var out []FunctionInfo
	m.registry.Range(func(k, v any) bool {
		rk := k.(registryKey)
		info := v.(*keys.Resolver).Info()
		name := rk.name
		if name == "" {
			name = info.Package + "." + info.Name
		}
		out = append(out, FunctionInfo{Name: name, Kind: rk.kind.String(), File: info.File, Line: info.Line})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// ExportStats sends the current statistics to the metrics exporter
func (m *Memoizer) ExportStats() error {
	return m.metricsExporter.ExportStats(m.stats, m.metricsLabels)
}

// Close stops metrics reporting, closes the exporter and, when the memoizer
// built its own backend, closes the backend
func (m *Memoizer) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.metricsStop != nil {
			close(m.metricsStop)
			m.metricsWg.Wait()
		}
		if m.metricsExporter != nil {
			_ = m.metricsExporter.Close() //nolint:errcheck // exporter shutdown is best effort
		}
		if m.closer != nil {
			err = m.closer.Close()
		}
	})
	return err
}

func (m *Memoizer) derive(ctx context.Context, call Call) (keys.Derived, error) {
	start := time.Now()

	r, err := m.resolver(call)
	var derived keys.Derived
	if err == nil {
		var desc keys.Descriptor
		desc, err = r.Resolve(call.Args)
		if err == nil {
			derived, err = m.builder.Derive(desc, r.Snapshot(call.Args, call.Kwargs, call.IncludeReceiver))
		}
	}

	if err != nil {
		m.record(metrics.OperationDeriveKey, metrics.ResultError, start)
		m.stats.incKeyErrors()
		name := functionName(call.Fn, r)
		m.logger.Warn("Cache key derivation failed", F("function", name), F("error", err))
		m.hooks.invokeOnKeyError(ctx, name, err, call.Args)
		return keys.Derived{}, err
	}

	m.record(metrics.OperationDeriveKey, metrics.ResultOK, start)
	if derived.Truncated {
		m.stats.incTruncatedKeys()
	}
	return derived, nil
}

func (m *Memoizer) resolver(call Call) (*keys.Resolver, error) {
	rv := reflect.ValueOf(call.Fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%w: %T", keys.ErrNotFunc, call.Fn)
	}

	rk := registryKey{pc: rv.Pointer(), kind: call.Kind, name: call.Name}
	if r, ok := m.registry.Load(rk); ok {
		return r.(*keys.Resolver), nil
	}

	r, err := keys.NewResolver(call.Fn, call.Kind, call.Name)
	if err != nil {
		return nil, err
	}
	actual, _ := m.registry.LoadOrStore(rk, r)
	return actual.(*keys.Resolver), nil
}

func (m *Memoizer) get(ctx context.Context, key string) (any, bool, error) {
	start := time.Now()
	value, found, err := m.backend.Get(ctx, key)
	switch {
	case err != nil:
		m.record(metrics.OperationGet, metrics.ResultError, start)
		m.logger.Error("Cache get failed", F("key", key), F("error", err))
		return nil, false, fmt.Errorf("cachehelper: get %s: %w", key, err)
	case found:
		m.record(metrics.OperationGet, metrics.ResultHit, start)
	default:
		m.record(metrics.OperationGet, metrics.ResultMiss, start)
	}
	return value, found, nil
}

func (m *Memoizer) computeAndStore(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (any, error) {
	m.stats.incInFlight()
	defer m.stats.decInFlight()
	m.stats.incComputes()

	start := time.Now()
	value, err := compute(ctx)
	if err != nil {
		m.stats.incComputeErrors()
		m.record(metrics.OperationCompute, metrics.ResultError, start)
		return nil, err
	}
	m.record(metrics.OperationCompute, metrics.ResultOK, start)

	start = time.Now()
	if err := m.backend.Set(ctx, key, value, ttl); err != nil {
		m.record(metrics.OperationSet, metrics.ResultError, start)
		m.logger.Error("Cache set failed", F("key", key), F("error", err))
		return value, fmt.Errorf("cachehelper: set %s: %w", key, err)
	}
	m.record(metrics.OperationSet, metrics.ResultOK, start)
	return value, nil
}

func (m *Memoizer) ttl(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return m.config.DefaultTimeout
}

func functionName(fn any, r *keys.Resolver) string {
	if r != nil {
		info := r.Info()
		return info.Package + "." + info.Name
	}
	return fmt.Sprintf("%T", fn)
}

// initializeMetrics sets up metrics collection if enabled
func (m *Memoizer) initializeMetrics() {
	cfg := m.config.Metrics
	if cfg == nil || !cfg.Enabled || cfg.Exporter == nil {
		m.metricsExporter = metrics.NewNoOpExporter()
		return
	}

	m.metricsExporter = cfg.Exporter
	m.metricsLabels = metrics.Labels{metrics.LabelCacheName: "default"}
	if cfg.CacheName != "" {
		m.metricsLabels[metrics.LabelCacheName] = cfg.CacheName
	}
	for k, v := range cfg.Labels {
		m.metricsLabels[k] = v
	}

	if cfg.ReportingInterval > 0 {
		m.metricsStop = make(chan struct{})
		m.metricsWg.Add(1)
		go m.metricsReporter(cfg.ReportingInterval)
	}
}

// metricsReporter periodically exports statistics
func (m *Memoizer) metricsReporter(interval time.Duration) {
	defer m.metricsWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.exportCurrentStats()
		case <-m.metricsStop:
			// final export before shutting down
			m.exportCurrentStats()
			return
		}
	}
}

func (m *Memoizer) exportCurrentStats() {
	if err := m.ExportStats(); err != nil {
		m.logger.Warn("Metrics export failed", F("error", err))
	}
}

func (m *Memoizer) record(operation metrics.Operation, result metrics.Result, start time.Time) {
	_ = m.metricsExporter.RecordOperation(operation, result, time.Since(start), m.metricsLabels) //nolint:errcheck // metrics are best effort
}
