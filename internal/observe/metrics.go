// Package observe provides application-wide observability primitives for
// Pulox: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

	"github.com/pulox/pulox/internal/correction"
)

// meterName is the instrumentation scope name used for all Pulox metrics.
const meterName = "github.com/pulox/pulox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CorrectionDuration tracks end-to-end text correction latency.
	CorrectionDuration metric.Float64Histogram

	// TranscriptionDuration tracks audio transcription latency.
	TranscriptionDuration metric.Float64Histogram

	// LLMDuration tracks generative rewrite latency.
	LLMDuration metric.Float64Histogram

	// Corrections counts finished corrections. Use with attributes:
	//   attribute.String("method", ...), attribute.String("language", ...)
	Corrections metric.Int64Counter

	// Changes counts individual correction changes. Use with attribute:
	//   attribute.String("type", ...)
	Changes metric.Int64Counter

	// CacheHits and CacheMisses count result cache lookups.
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	// ProviderErrors counts upstream backend errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveStreams tracks the number of live WebSocket correction streams.
	ActiveStreams metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// text-correction and transcription latencies.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CorrectionDuration, err = m.Float64Histogram("pulox.correction.duration",
		metric.WithDescription("End-to-end latency of one text correction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("pulox.transcription.duration",
		metric.WithDescription("Latency of audio transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("pulox.llm.duration",
		metric.WithDescription("Latency of generative rewrites."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Corrections, err = m.Int64Counter("pulox.corrections",
		metric.WithDescription("Total finished corrections by method and language."),
	); err != nil {
		return nil, err
	}
	if met.Changes, err = m.Int64Counter("pulox.correction.changes",
		metric.WithDescription("Total correction changes by error type."),
	); err != nil {
		return nil, err
	}
	if met.CacheHits, err = m.Int64Counter("pulox.cache.hits",
		metric.WithDescription("Result cache hits."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("pulox.cache.misses",
		metric.WithDescription("Result cache misses."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("pulox.provider.errors",
		metric.WithDescription("Total upstream backend errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveStreams, err = m.Int64UpDownCounter("pulox.active_streams",
		metric.WithDescription("Number of live WebSocket correction streams."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("pulox.http.request.duration",
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

// Compile-time assertion that Metrics can observe the correction pipeline.
var _ correction.Observer = (*Metrics)(nil)

// CorrectionDone implements [correction.Observer]: it records the duration
// histogram, the corrections counter, and one changes increment per change.
func (m *Metrics) CorrectionDone(ctx context.Context, res *correction.Result) {
	m.CorrectionDuration.Record(ctx, res.ProcessingTime.Seconds())
	m.Corrections.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", string(res.Method)),
			attribute.String("language", string(res.Language)),
		),
	)
	for _, ch := range res.Changes {
		m.Changes.Add(ctx, 1,
			metric.WithAttributes(attribute.String("type", string(ch.Type))),
		)
	}
}

// RecordCacheLookup records a result cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if hit {
		m.CacheHits.Add(ctx, 1)
	} else {
		m.CacheMisses.Add(ctx, 1)
	}
}

// RecordProviderError records one upstream backend error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
