// Package observe provides application-wide observability primitives for the
// caller agent: OpenTelemetry metrics, tracing helpers, and HTTP middleware
// that ties them together.
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

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/AmaanP314/AI-Caller-Agent"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ─── Latency histograms per pipeline stage ───

	// STTDuration tracks per-utterance transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks per-sentence synthesis latency.
	TTSDuration metric.Float64Histogram

	// LLMFirstSentence tracks the time from sending a turn to the LLM until
	// the first complete sentence is ready for synthesis. This is the number
	// that bounds perceived response latency.
	LLMFirstSentence metric.Float64Histogram

	// TurnDuration tracks the full duration of one agent turn, from
	// transcript to last audio chunk queued.
	TurnDuration metric.Float64Histogram

	// ─── Counters ───

	// Calls counts calls by final status. Use with attribute:
	//   attribute.String("status", ...)
	Calls metric.Int64Counter

	// BargeIns counts caller interruptions of agent speech.
	BargeIns metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ─── Gauges ───

	// ActiveCalls tracks the number of calls currently connected.
	ActiveCalls metric.Int64UpDownCounter

	// ─── HTTP middleware ───

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("caller_agent.stt.duration",
		metric.WithDescription("Latency of per-utterance transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("caller_agent.tts.duration",
		metric.WithDescription("Latency of per-sentence synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMFirstSentence, err = m.Float64Histogram("caller_agent.llm.first_sentence",
		metric.WithDescription("Time from turn start until the first sentence is ready for synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("caller_agent.turn.duration",
		metric.WithDescription("Full duration of one agent turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Calls, err = m.Int64Counter("caller_agent.calls",
		metric.WithDescription("Total calls by final status."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("caller_agent.barge_ins",
		metric.WithDescription("Total caller interruptions of agent speech."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("caller_agent.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("caller_agent.active_calls",
		metric.WithDescription("Number of calls currently connected."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("caller_agent.http.request.duration",
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

// RecordCall records a completed call with its final status.
func (m *Metrics) RecordCall(ctx context.Context, status string) {
	m.Calls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordBargeIn records a caller interruption.
func (m *Metrics) RecordBargeIn(ctx context.Context) {
	m.BargeIns.Add(ctx, 1)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
