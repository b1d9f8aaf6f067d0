package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric/noop"
)

type fakeStats struct {
	hits, misses, computes, computeErrors, invalidations, keyErrors, truncated, inFlight int64
}

func (f *fakeStats) Hits() int64          { return f.hits }
func (f *fakeStats) Misses() int64        { return f.misses }
func (f *fakeStats) Computes() int64      { return f.computes }
func (f *fakeStats) ComputeErrors() int64 { return f.computeErrors }
func (f *fakeStats) Invalidations() int64 { return f.invalidations }
func (f *fakeStats) KeyErrors() int64     { return f.keyErrors }
func (f *fakeStats) TruncatedKeys() int64 { return f.truncated }
func (f *fakeStats) InFlight() int64      { return f.inFlight }
func (f *fakeStats) HitRate() float64 {
	total := f.hits + f.misses
	if total == 0 {
		return 0
	}
	return float64(f.hits) / float64(total) * 100
}

// gatheredValue returns the value of the first sample of a metric family
func gatheredValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name || len(mf.GetMetric()) == 0 {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("Metric %s not found", name)
	return 0
}

func TestPrometheusExporterExportsDeltas(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter, err := NewPrometheusExporter(NewDefaultConfig(), &PrometheusConfig{Registry: reg})
	if err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}
	defer exporter.Close()

	labels := Labels{LabelCacheName: "pricing"}
	stats := &fakeStats{hits: 3, misses: 1, computes: 1, inFlight: 2}

	if err := exporter.ExportStats(stats, labels); err != nil {
		t.Fatalf("ExportStats failed: %v", err)
	}
	if err := exporter.ExportStats(stats, labels); err != nil {
		t.Fatalf("ExportStats failed: %v", err)
	}
	if got := gatheredValue(t, reg, "cachehelper_hits_total"); got != 3 {
		t.Fatalf("Expected hits counter 3 after repeated export, got %v", got)
	}

	stats.hits = 5
	exporter.ExportStats(stats, labels)
	if got := gatheredValue(t, reg, "cachehelper_hits_total"); got != 5 {
		t.Fatalf("Expected hits counter 5, got %v", got)
	}
	if got := gatheredValue(t, reg, "cachehelper_inflight_computes"); got != 2 {
		t.Fatalf("Expected in-flight gauge 2, got %v", got)
	}
	if got := gatheredValue(t, reg, "cachehelper_hit_rate"); got < 83 || got > 84 {
		t.Fatalf("Expected hit rate ~83.3, got %v", got)
	}
}

func TestPrometheusExporterRecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	config := NewDefaultConfig().WithDetailedTimings(true).WithNamespace("memo")
	exporter, err := NewPrometheusExporter(config, &PrometheusConfig{Registry: reg})
	if err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}

	labels := Labels{LabelCacheName: "pricing"}
	exporter.RecordOperation(OperationGet, ResultMiss, time.Millisecond, labels)
	exporter.RecordOperation(OperationGet, ResultMiss, time.Millisecond, labels)

	if got := gatheredValue(t, reg, "memo_operations_total"); got != 2 {
		t.Fatalf("Expected 2 operations, got %v", got)
	}

	// names are free again once the exporter is closed
	exporter.Close()
	if _, err := NewPrometheusExporter(config, &PrometheusConfig{Registry: reg}); err != nil {
		t.Fatalf("Expected re-registration after Close, got %v", err)
	}
}

func TestPrometheusExporterDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusExporter(nil, &PrometheusConfig{Registry: reg}); err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}
	if _, err := NewPrometheusExporter(nil, &PrometheusConfig{Registry: reg}); err == nil {
		t.Fatal("Expected duplicate registration error")
	}
}

func TestOpenTelemetryExporter(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("cachehelper-test")
	exporter, err := NewOpenTelemetryExporter(NewDefaultConfig().WithDetailedTimings(true), &OpenTelemetryConfig{Meter: meter})
	if err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}

	labels := Labels{LabelCacheName: "pricing"}
	if err := exporter.ExportStats(&fakeStats{hits: 1}, labels); err != nil {
		t.Fatalf("ExportStats failed: %v", err)
	}
	if err := exporter.RecordOperation(OperationCompute, ResultOK, time.Millisecond, labels); err != nil {
		t.Fatalf("RecordOperation failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := NewOpenTelemetryExporter(nil, nil); err == nil {
		t.Fatal("Expected error without OpenTelemetry config")
	}
	if _, err := NewOpenTelemetryExporter(nil, &OpenTelemetryConfig{}); err == nil {
		t.Fatal("Expected error without meter")
	}
}

func TestDeltaTracker(t *testing.T) {
	d := newDeltaTracker()

	if got := d.advance("a", counters{hits: 4}); got.hits != 4 {
		t.Fatalf("Expected first delta 4, got %d", got.hits)
	}
	if got := d.advance("a", counters{hits: 6}); got.hits != 2 {
		t.Fatalf("Expected delta 2, got %d", got.hits)
	}
	if got := d.advance("b", counters{hits: 1}); got.hits != 1 {
		t.Fatalf("Expected independent label sets, got %d", got.hits)
	}
	// stats were reset
	if got := d.advance("a", counters{hits: 1}); got.hits != 1 {
		t.Fatalf("Expected delta 1 after reset, got %d", got.hits)
	}
}

type recordingExporter struct {
	ops    int
	closed bool
	err    error
}

func (r *recordingExporter) ExportStats(Stats, Labels) error { return r.err }
func (r *recordingExporter) RecordOperation(Operation, Result, time.Duration, Labels) error {
	r.ops++
	return r.err
}
func (r *recordingExporter) Close() error { r.closed = true; return nil }

func TestMultiExporter(t *testing.T) {
	a, b := &recordingExporter{}, &recordingExporter{}
	multi := NewMultiExporter(a, NewNoOpExporter(), b)

	multi.RecordOperation(OperationSet, ResultOK, 0, nil)
	if a.ops != 1 || b.ops != 1 {
		t.Fatalf("Expected both exporters to record, got %d and %d", a.ops, b.ops)
	}

	multi.Close()
	if !a.closed || !b.closed {
		t.Fatal("Expected all exporters to be closed")
	}

	failing := &recordingExporter{err: errors.New("push failed")}
	if err := NewMultiExporter(failing).ExportStats(&fakeStats{}, nil); err == nil {
		t.Fatal("Expected error from failing exporter")
	}
}
