package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetryExporter implements the Exporter interface for OpenTelemetry metrics
type OpenTelemetryExporter struct {
	config *Config
	meter  metric.Meter
	ctx    context.Context
	deltas *deltaTracker

	hitsCounter          metric.Int64Counter
	missesCounter        metric.Int64Counter
	computesCounter      metric.Int64Counter
	computeErrorsCounter metric.Int64Counter
	invalidationsCounter metric.Int64Counter
	keyErrorsCounter     metric.Int64Counter
	truncatedCounter     metric.Int64Counter
	operationsCounter    metric.Int64Counter

	operationDuration metric.Float64Histogram

	inFlightGauge metric.Int64Gauge
	hitRateGauge  metric.Float64Gauge
}

// OpenTelemetryConfig holds OpenTelemetry-specific configuration
type OpenTelemetryConfig struct {
	// Meter is the OpenTelemetry meter to use
	Meter metric.Meter

	// Context is the context to use for metric operations
	Context context.Context
}

// NewOpenTelemetryExporter creates a new OpenTelemetry metrics exporter
func NewOpenTelemetryExporter(config *Config, otelConfig *OpenTelemetryConfig) (*OpenTelemetryExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if otelConfig == nil {
		return nil, fmt.Errorf("OpenTelemetry configuration is required")
	}

	if otelConfig.Meter == nil {
		return nil, fmt.Errorf("OpenTelemetry meter is required")
	}

	ctx := otelConfig.Context
	if ctx == nil {
		ctx = context.Background()
	}

	exporter := &OpenTelemetryExporter{
		config: config,
		meter:  otelConfig.Meter,
		ctx:    ctx,
		deltas: newDeltaTracker(),
	}

	if err := exporter.createStandardMetrics(); err != nil {
		return nil, fmt.Errorf("failed to create standard metrics: %w", err)
	}

	return exporter, nil
}

func (o *OpenTelemetryExporter) createStandardMetrics() error {
	names := o.config.MetricNames

	instruments := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&o.hitsCounter, names.HitsTotal, "Total number of memoized calls served from cache"},
		{&o.missesCounter, names.MissesTotal, "Total number of memoized calls not found in cache"},
		{&o.computesCounter, names.ComputesTotal, "Total number of underlying function executions"},
		{&o.computeErrorsCounter, names.ComputeErrorsTotal, "Total number of underlying function executions that failed"},
		{&o.invalidationsCounter, names.InvalidationsTotal, "Total number of explicit invalidations"},
		{&o.keyErrorsCounter, names.KeyErrorsTotal, "Total number of calls whose cache key could not be derived"},
		{&o.truncatedCounter, names.TruncatedKeysTotal, "Total number of keys shortened with a hash suffix"},
		{&o.operationsCounter, names.OperationsTotal, "Total number of cache operations by outcome"},
	}
	for _, c := range instruments {
		counter, err := o.meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}

	var err error
	if o.config.IncludeDetailedTimings {
		o.operationDuration, err = o.meter.Float64Histogram(
			names.OperationDuration,
			metric.WithDescription("Cache operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return fmt.Errorf("failed to create operation duration histogram: %w", err)
		}
	}

	o.inFlightGauge, err = o.meter.Int64Gauge(
		names.InFlightComputes,
		metric.WithDescription("Current number of underlying function executions in progress"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create in-flight gauge: %w", err)
	}

	o.hitRateGauge, err = o.meter.Float64Gauge(
		names.HitRate,
		metric.WithDescription("Cache hit rate as a percentage"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return fmt.Errorf("failed to create hit rate gauge: %w", err)
	}

	return nil
}

// ExportStats forwards the counter increases since the previous export and
// records the gauges
func (o *OpenTelemetryExporter) ExportStats(stats Stats, labels Labels) error {
	attrs := metric.WithAttributes(o.convertLabels(labels)...)
	d := o.deltas.advance(labels[LabelCacheName], countersOf(stats))

	o.hitsCounter.Add(o.ctx, d.hits, attrs)
	o.missesCounter.Add(o.ctx, d.misses, attrs)
	o.computesCounter.Add(o.ctx, d.computes, attrs)
	o.computeErrorsCounter.Add(o.ctx, d.computeErrors, attrs)
	o.invalidationsCounter.Add(o.ctx, d.invalidations, attrs)
	o.keyErrorsCounter.Add(o.ctx, d.keyErrors, attrs)
	o.truncatedCounter.Add(o.ctx, d.truncated, attrs)

	o.inFlightGauge.Record(o.ctx, stats.InFlight(), attrs)
	o.hitRateGauge.Record(o.ctx, stats.HitRate(), attrs)
	return nil
}

// RecordOperation records an operation outcome and, when enabled, its timing
func (o *OpenTelemetryExporter) RecordOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	attrs := append(o.convertLabels(labels), attribute.String("operation", string(operation)))

	o.operationsCounter.Add(o.ctx, 1,
		metric.WithAttributes(append(attrs, attribute.String("result", string(result)))...))

	if o.operationDuration != nil {
		o.operationDuration.Record(o.ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	return nil
}

// Close shuts down the exporter. The meter provider owns flushing.
func (o *OpenTelemetryExporter) Close() error {
	return nil
}

func (o *OpenTelemetryExporter) convertLabels(labels Labels) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels)+len(o.config.Labels)+1)
	for k, v := range o.config.Labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// Ensure interface is implemented
var _ Exporter = (*OpenTelemetryExporter)(nil)
