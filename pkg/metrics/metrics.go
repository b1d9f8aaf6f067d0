package metrics

import (
	"sync"
	"time"
)

// Exporter defines the interface for memoization metrics exporters.
// This abstraction allows supporting multiple observability systems.
type Exporter interface {
	// ExportStats exports the current memoizer statistics. Counters are
	// cumulative; exporters forward only the increase since the last export.
	ExportStats(stats Stats, labels Labels) error

	// RecordOperation records a single operation with its outcome and timing
	RecordOperation(operation Operation, result Result, duration time.Duration, labels Labels) error

	// Close shuts down the exporter and flushes any pending metrics
	Close() error
}

// Labels represents key-value pairs for metric labels/tags
type Labels map[string]string

// LabelCacheName identifies the memoizer a metric belongs to
const LabelCacheName = "cache_name"

// Stats defines the memoizer statistics that can be exported.
// This allows the metrics package to work with any stats implementation.
type Stats interface {
	Hits() int64
	Misses() int64
	Computes() int64
	ComputeErrors() int64
	Invalidations() int64
	KeyErrors() int64
	TruncatedKeys() int64
	InFlight() int64
	HitRate() float64
}

// Operation represents the steps of a memoized call
type Operation string

const (
	OperationGet       Operation = "get"
	OperationSet       Operation = "set"
	OperationDelete    Operation = "delete"
	OperationCompute   Operation = "compute"
	OperationDeriveKey Operation = "derive_key"
)

// Result represents the outcome of an operation
type Result string

const (
	ResultHit   Result = "hit"
	ResultMiss  Result = "miss"
	ResultOK    Result = "ok"
	ResultError Result = "error"
)

// MetricNames defines standard metric names used across exporters
type MetricNames struct {
	// Counters
	HitsTotal          string
	MissesTotal        string
	ComputesTotal      string
	ComputeErrorsTotal string
	InvalidationsTotal string
	KeyErrorsTotal     string
	TruncatedKeysTotal string
	OperationsTotal    string

	// Histograms
	OperationDuration string

	// Gauges
	InFlightComputes string
	HitRate          string
}

// DefaultMetricNames returns the default metric names under the
// "cachehelper" namespace
func DefaultMetricNames() MetricNames {
	return MetricNamesFor("cachehelper")
}

// MetricNamesFor returns the standard metric names under namespace
func MetricNamesFor(namespace string) MetricNames {
	p := namespace + "_"
	return MetricNames{
		HitsTotal:          p + "hits_total",
		MissesTotal:        p + "misses_total",
		ComputesTotal:      p + "computes_total",
		ComputeErrorsTotal: p + "compute_errors_total",
		InvalidationsTotal: p + "invalidations_total",
		KeyErrorsTotal:     p + "key_errors_total",
		TruncatedKeysTotal: p + "truncated_keys_total",
		OperationsTotal:    p + "operations_total",
		OperationDuration:  p + "operation_duration_seconds",
		InFlightComputes:   p + "inflight_computes",
		HitRate:            p + "hit_rate",
	}
}

// Config holds configuration for metrics exporters
type Config struct {
	// Enabled determines whether metrics collection is enabled
	Enabled bool

	// Labels are default labels applied to all metrics
	Labels Labels

	// MetricNames allows customizing metric names
	MetricNames MetricNames

	// ReportingInterval determines how often stats are exported
	// (0 disables periodic export)
	ReportingInterval time.Duration

	// IncludeDetailedTimings enables operation duration histograms
	IncludeDetailedTimings bool
}

// NewDefaultConfig creates a default metrics configuration
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:                true,
		Labels:                 make(Labels),
		MetricNames:            DefaultMetricNames(),
		ReportingInterval:      30 * time.Second,
		IncludeDetailedTimings: false,
	}
}

// WithNamespace renames all metrics under namespace
func (c *Config) WithNamespace(namespace string) *Config {
	c.MetricNames = MetricNamesFor(namespace)
	return c
}

// WithLabels adds default labels to all metrics
func (c *Config) WithLabels(labels Labels) *Config {
	if c.Labels == nil {
		c.Labels = make(Labels)
	}
	for k, v := range labels {
		c.Labels[k] = v
	}
	return c
}

// WithReportingInterval sets how often stats are exported
func (c *Config) WithReportingInterval(interval time.Duration) *Config {
	c.ReportingInterval = interval
	return c
}

// WithDetailedTimings enables operation duration histograms
func (c *Config) WithDetailedTimings(enabled bool) *Config {
	c.IncludeDetailedTimings = enabled
	return c
}

// counters is a snapshot of the cumulative counters in Stats
type counters struct {
	hits, misses, computes, computeErrors, invalidations, keyErrors, truncated int64
}

func countersOf(s Stats) counters {
	return counters{
		hits:          s.Hits(),
		misses:        s.Misses(),
		computes:      s.Computes(),
		computeErrors: s.ComputeErrors(),
		invalidations: s.Invalidations(),
		keyErrors:     s.KeyErrors(),
		truncated:     s.TruncatedKeys(),
	}
}

// deltaTracker turns cumulative counters into increments per label set.
// A counter that went backwards (stats were reset) restarts from zero.
type deltaTracker struct {
	mu   sync.Mutex
	last map[string]counters
}

func newDeltaTracker() *deltaTracker {
	return &deltaTracker{last: make(map[string]counters)}
}

func (d *deltaTracker) advance(key string, cur counters) counters {
	d.mu.Lock()
	prev := d.last[key]
	d.last[key] = cur
	d.mu.Unlock()

	return counters{
		hits:          delta(prev.hits, cur.hits),
		misses:        delta(prev.misses, cur.misses),
		computes:      delta(prev.computes, cur.computes),
		computeErrors: delta(prev.computeErrors, cur.computeErrors),
		invalidations: delta(prev.invalidations, cur.invalidations),
		keyErrors:     delta(prev.keyErrors, cur.keyErrors),
		truncated:     delta(prev.truncated, cur.truncated),
	}
}

func delta(prev, cur int64) int64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

// MultiExporter allows using multiple exporters simultaneously
type MultiExporter struct {
	exporters []Exporter
}

// NewMultiExporter creates an exporter that writes to multiple backends
func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{
		exporters: exporters,
	}
}

// ExportStats exports to all configured exporters
func (m *MultiExporter) ExportStats(stats Stats, labels Labels) error {
	for _, exporter := range m.exporters {
		if err := exporter.ExportStats(stats, labels); err != nil {
			return err
		}
	}
	return nil
}

// RecordOperation records to all configured exporters
func (m *MultiExporter) RecordOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	for _, exporter := range m.exporters {
		if err := exporter.RecordOperation(operation, result, duration, labels); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all configured exporters
func (m *MultiExporter) Close() error {
	for _, exporter := range m.exporters {
		if err := exporter.Close(); err != nil {
			return err
		}
	}
	return nil
}

// NoOpExporter provides a no-op implementation for when metrics are disabled
type NoOpExporter struct{}

// NewNoOpExporter creates a no-op exporter
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

// ExportStats does nothing
func (n *NoOpExporter) ExportStats(Stats, Labels) error { return nil }

// RecordOperation does nothing
func (n *NoOpExporter) RecordOperation(Operation, Result, time.Duration, Labels) error { return nil }

// Close does nothing
func (n *NoOpExporter) Close() error { return nil }

// Ensure interfaces are implemented
var (
	_ Exporter = (*MultiExporter)(nil)
	_ Exporter = (*NoOpExporter)(nil)
)
