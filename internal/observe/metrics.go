// Package observe provides application-wide observability primitives for
// chordsinger: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all chordsinger
// metrics.
const meterName = "github.com/chordsinger/chordsinger"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SynthesisDuration tracks per-segment speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// PitchShiftDuration tracks per-segment pitch shifting latency.
	PitchShiftDuration metric.Float64Histogram

	// AssemblyDuration tracks vocal-track assembly and final-mix latency.
	AssemblyDuration metric.Float64Histogram

	// JobDuration tracks end-to-end job processing time, from accepted
	// upload to downloadable mix.
	JobDuration metric.Float64Histogram

	// --- Counters ---

	// SegmentsRendered counts rendered utterance segments. Use with attributes:
	//   attribute.String("mode", "spoken"|"sung"), attribute.String("status", ...)
	SegmentsRendered metric.Int64Counter

	// JobsCompleted counts finished jobs. Use with attribute:
	//   attribute.String("status", "completed"|"error"|"cancelled")
	JobsCompleted metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveJobs tracks the number of jobs currently being processed.
	ActiveJobs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// segmentBuckets defines histogram bucket boundaries (in seconds) sized for
// per-segment synthesis and DSP latencies.
var segmentBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// jobBuckets covers whole-job processing, which runs seconds to minutes.
var jobBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("chordsinger.tts.duration",
		metric.WithDescription("Latency of per-segment speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PitchShiftDuration, err = m.Float64Histogram("chordsinger.pitchshift.duration",
		metric.WithDescription("Latency of per-segment pitch shifting."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AssemblyDuration, err = m.Float64Histogram("chordsinger.assembly.duration",
		metric.WithDescription("Latency of vocal-track assembly and final mix."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JobDuration, err = m.Float64Histogram("chordsinger.job.duration",
		metric.WithDescription("End-to-end job processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SegmentsRendered, err = m.Int64Counter("chordsinger.segments.rendered",
		metric.WithDescription("Total rendered utterance segments by mode and status."),
	); err != nil {
		return nil, err
	}
	if met.JobsCompleted, err = m.Int64Counter("chordsinger.jobs.completed",
		metric.WithDescription("Total finished jobs by terminal status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("chordsinger.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveJobs, err = m.Int64UpDownCounter("chordsinger.active_jobs",
		metric.WithDescription("Number of jobs currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("chordsinger.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordSegment is a convenience method that records a rendered segment with
// the standard attribute set.
func (m *Metrics) RecordSegment(ctx context.Context, mode, status string) {
	m.SegmentsRendered.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("status", status),
		),
	)
}

// RecordJobCompleted is a convenience method that records a finished job.
func (m *Metrics) RecordJobCompleted(ctx context.Context, status string) {
	m.JobsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
