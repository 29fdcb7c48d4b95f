// Package observe provides application-wide observability primitives for
// Cantora: OpenTelemetry metrics, structured logging helpers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Cantora metrics.
const meterName = "github.com/mirelo-dev/cantora"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecordDuration tracks per-line audio capture time.
	RecordDuration metric.Float64Histogram

	// TranscribeDuration tracks speech-to-text transcription latency.
	TranscribeDuration metric.Float64Histogram

	// LineDuration tracks end-to-end record→grade→persist time per line.
	LineDuration metric.Float64Histogram

	// --- Counters ---

	// LinesGraded counts graded lines. Use with attribute:
	//   attribute.String("rating", ...)
	LinesGraded metric.Int64Counter

	// LinesFailed counts lines abandoned mid-pipeline. Use with attribute:
	//   attribute.String("stage", ...) — "record", "transcribe", or "persist"
	LinesFailed metric.Int64Counter

	// BackendRequests counts STT backend calls. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("status", ...)
	BackendRequests metric.Int64Counter

	// Lapses counts Again ratings on previously learned lines.
	Lapses metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of practice sessions in flight.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// per-line pipeline latencies: sub-second transcription up to multi-second
// recordings.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecordDuration, err = m.Float64Histogram("cantora.record.duration",
		metric.WithDescription("Time spent capturing one lyric line."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("cantora.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LineDuration, err = m.Float64Histogram("cantora.line.duration",
		metric.WithDescription("End-to-end per-line pipeline time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.LinesGraded, err = m.Int64Counter("cantora.lines.graded",
		metric.WithDescription("Total graded lines by rating."),
	); err != nil {
		return nil, err
	}
	if met.LinesFailed, err = m.Int64Counter("cantora.lines.failed",
		metric.WithDescription("Total lines abandoned mid-pipeline by stage."),
	); err != nil {
		return nil, err
	}
	if met.BackendRequests, err = m.Int64Counter("cantora.backend.requests",
		metric.WithDescription("Total STT backend requests by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.Lapses, err = m.Int64Counter("cantora.lapses",
		metric.WithDescription("Total lapses (Again on a previously learned line)."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("cantora.active_sessions",
		metric.WithDescription("Number of practice sessions in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("cantora.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLineGraded records one graded line with its rating name.
func (m *Metrics) RecordLineGraded(ctx context.Context, rating string) {
	m.LinesGraded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("rating", rating)),
	)
}

// RecordLineFailed records a line abandoned at the named pipeline stage.
func (m *Metrics) RecordLineFailed(ctx context.Context, stage string) {
	m.LinesFailed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordBackendRequest records an STT backend call outcome.
func (m *Metrics) RecordBackendRequest(ctx context.Context, backend, status string) {
	m.BackendRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", status),
		),
	)
}
