package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter implements the Exporter interface for Prometheus metrics
type PrometheusExporter struct {
	config   *Config
	registry prometheus.Registerer
	deltas   *deltaTracker

	// Counters fed from Stats
	hitsTotal          *prometheus.CounterVec
	missesTotal        *prometheus.CounterVec
	computesTotal      *prometheus.CounterVec
	computeErrorsTotal *prometheus.CounterVec
	invalidationsTotal *prometheus.CounterVec
	keyErrorsTotal     *prometheus.CounterVec
	truncatedKeysTotal *prometheus.CounterVec

	// Per operation
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	// Gauges
	inFlight *prometheus.GaugeVec
	hitRate  *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// PrometheusConfig holds Prometheus-specific configuration
type PrometheusConfig struct {
	// Registry is the Prometheus registry to use (optional, uses default if nil)
	Registry prometheus.Registerer

	// DefaultLabels are applied to all metrics
	DefaultLabels prometheus.Labels

	// DurationBuckets for the operation duration histogram
	DurationBuckets []float64
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(config *Config, promConfig *PrometheusConfig) (*PrometheusExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if promConfig == nil {
		promConfig = &PrometheusConfig{}
	}

	registry := promConfig.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	durationBuckets := promConfig.DurationBuckets
	if durationBuckets == nil {
		durationBuckets = []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	}

	constLabels := make(prometheus.Labels)
	for k, v := range promConfig.DefaultLabels {
		constLabels[k] = v
	}
	for k, v := range config.Labels {
		constLabels[k] = v
	}

	exporter := &PrometheusExporter{
		config:   config,
		registry: registry,
		deltas:   newDeltaTracker(),
	}

	if err := exporter.createStandardMetrics(constLabels, durationBuckets); err != nil {
		exporter.Close()
		return nil, fmt.Errorf("failed to create standard metrics: %w", err)
	}

	return exporter, nil
}

func (p *PrometheusExporter) createStandardMetrics(constLabels prometheus.Labels, durationBuckets []float64) error {
	names := p.config.MetricNames
	base := []string{LabelCacheName}
	op := []string{LabelCacheName, "operation", "result"}

	instruments := []struct {
		target **prometheus.CounterVec
		name   string
		help   string
		labels []string
	}{
		{&p.hitsTotal, names.HitsTotal, "Total number of memoized calls served from cache", base},
		{&p.missesTotal, names.MissesTotal, "Total number of memoized calls not found in cache", base},
		{&p.computesTotal, names.ComputesTotal, "Total number of underlying function executions", base},
		{&p.computeErrorsTotal, names.ComputeErrorsTotal, "Total number of underlying function executions that failed", base},
		{&p.invalidationsTotal, names.InvalidationsTotal, "Total number of explicit invalidations", base},
		{&p.keyErrorsTotal, names.KeyErrorsTotal, "Total number of calls whose cache key could not be derived", base},
		{&p.truncatedKeysTotal, names.TruncatedKeysTotal, "Total number of keys shortened with a hash suffix", base},
		{&p.operationsTotal, names.OperationsTotal, "Total number of cache operations by outcome", op},
	}
	for _, c := range instruments {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        c.name,
			Help:        c.help,
			ConstLabels: constLabels,
		}, c.labels)
		if err := p.register(vec); err != nil {
			return err
		}
		*c.target = vec
	}

	if p.config.IncludeDetailedTimings {
		p.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        names.OperationDuration,
			Help:        "Cache operation duration in seconds",
			ConstLabels: constLabels,
			Buckets:     durationBuckets,
		}, []string{LabelCacheName, "operation"})
		if err := p.register(p.operationDuration); err != nil {
			return err
		}
	}

	p.inFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        names.InFlightComputes,
		Help:        "Current number of underlying function executions in progress",
		ConstLabels: constLabels,
	}, base)
	if err := p.register(p.inFlight); err != nil {
		return err
	}

	p.hitRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        names.HitRate,
		Help:        "Cache hit rate as a percentage",
		ConstLabels: constLabels,
	}, base)
	return p.register(p.hitRate)
}

// ExportStats forwards the counter increases since the previous export and
// sets the gauges
func (p *PrometheusExporter) ExportStats(stats Stats, labels Labels) error {
	base := prometheus.Labels{LabelCacheName: labels[LabelCacheName]}
	d := p.deltas.advance(base[LabelCacheName], countersOf(stats))

	p.hitsTotal.With(base).Add(float64(d.hits))
	p.missesTotal.With(base).Add(float64(d.misses))
	p.computesTotal.With(base).Add(float64(d.computes))
	p.computeErrorsTotal.With(base).Add(float64(d.computeErrors))
	p.invalidationsTotal.With(base).Add(float64(d.invalidations))
	p.keyErrorsTotal.With(base).Add(float64(d.keyErrors))
	p.truncatedKeysTotal.With(base).Add(float64(d.truncated))

	p.inFlight.With(base).Set(float64(stats.InFlight()))
	p.hitRate.With(base).Set(stats.HitRate())
	return nil
}

// RecordOperation records an operation outcome and, when enabled, its timing
func (p *PrometheusExporter) RecordOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	cacheName := labels[LabelCacheName]

	p.operationsTotal.With(prometheus.Labels{
		LabelCacheName: cacheName,
		"operation":    string(operation),
		"result":       string(result),
	}).Inc()

	if p.operationDuration != nil {
		p.operationDuration.With(prometheus.Labels{
			LabelCacheName: cacheName,
			"operation":    string(operation),
		}).Observe(duration.Seconds())
	}
	return nil
}

// Close unregisters the exporter's collectors so a new exporter can take
// the same names
func (p *PrometheusExporter) Close() error {
	for _, c := range p.collectors {
		p.registry.Unregister(c)
	}
	p.collectors = nil
	return nil
}

func (p *PrometheusExporter) register(c prometheus.Collector) error {
	if err := p.registry.Register(c); err != nil {
		return err
	}
	p.collectors = append(p.collectors, c)
	return nil
}

// Ensure interface is implemented
var _ Exporter = (*PrometheusExporter)(nil)
