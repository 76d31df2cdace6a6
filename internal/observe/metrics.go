// Package observe provides application-wide observability primitives for
// Plexus: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge; this module serves no /metrics
// endpoint for it. A package-level default
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

// meterName is the instrumentation scope name used for all Plexus metrics.
const meterName = "github.com/nrgforge/plexus"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Commit-path latency ---

	// EmissionApplyDuration tracks Engine.ApplyEmission latency.
	EmissionApplyDuration metric.Float64Histogram

	// IngestDuration tracks a full IngestPipeline.Ingest call, including
	// every adapter in the fan-out and every enrichment round it triggers.
	IngestDuration metric.Float64Histogram

	// --- Counters ---

	// EmissionsCommitted counts successful ApplyEmission commits. Use with
	// attribute.String("adapter", ...).
	EmissionsCommitted metric.Int64Counter

	// EnrichmentRounds counts enrichment loop rounds executed, including
	// rounds that produced no events. Use with attribute.String("enrichment", ...).
	EnrichmentRounds metric.Int64Counter

	// EnrichmentSafetyValveTrips counts enrichment loops that hit
	// max_rounds without reaching quiescence.
	EnrichmentSafetyValveTrips metric.Int64Counter

	// Retractions counts Engine.RetractContributions calls. Use with
	// attribute.String("status", ...).
	Retractions metric.Int64Counter

	// Rejections counts per-item ApplyEmission rejections. Use with
	// attribute.String("reason", ...).
	Rejections metric.Int64Counter

	// --- Gauges ---

	// ActiveContexts tracks the number of contexts currently held in the
	// engine's cache.
	ActiveContexts metric.Int64UpDownCounter

	// AdapterCircuitTransitions counts adapter circuit breaker state
	// transitions. Use with attribute.String("adapter", ...),
	// attribute.String("from", ...), attribute.String("to", ...).
	AdapterCircuitTransitions metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) suited to
// in-process graph-commit latencies, which run far faster than the
// network-bound voice-provider calls the teacher's buckets were tuned for.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EmissionApplyDuration, err = m.Float64Histogram("plexus.emission_apply.duration",
		metric.WithDescription("Latency of Engine.ApplyEmission."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IngestDuration, err = m.Float64Histogram("plexus.ingest.duration",
		metric.WithDescription("Latency of a full IngestPipeline.Ingest call, including fan-out and enrichment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.EmissionsCommitted, err = m.Int64Counter("plexus_emissions_committed_total",
		metric.WithDescription("Total emissions committed, by adapter."),
	); err != nil {
		return nil, err
	}
	if met.EnrichmentRounds, err = m.Int64Counter("plexus_enrichment_rounds_total",
		metric.WithDescription("Total enrichment loop rounds executed, by enrichment id."),
	); err != nil {
		return nil, err
	}
	if met.EnrichmentSafetyValveTrips, err = m.Int64Counter("plexus_enrichment_safety_valve_total",
		metric.WithDescription("Total enrichment loops that hit max_rounds without reaching quiescence."),
	); err != nil {
		return nil, err
	}
	if met.Retractions, err = m.Int64Counter("plexus_retractions_total",
		metric.WithDescription("Total contribution retractions, by status."),
	); err != nil {
		return nil, err
	}
	if met.Rejections, err = m.Int64Counter("plexus_rejections_total",
		metric.WithDescription("Total per-item ApplyEmission rejections, by reason."),
	); err != nil {
		return nil, err
	}

	if met.ActiveContexts, err = m.Int64UpDownCounter("plexus_active_contexts",
		metric.WithDescription("Number of contexts currently held in the engine cache."),
	); err != nil {
		return nil, err
	}
	if met.AdapterCircuitTransitions, err = m.Int64Counter("plexus_adapter_circuit_transitions_total",
		metric.WithDescription("Total adapter circuit breaker state transitions, by adapter, from-state, and to-state."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("plexus.http.request.duration",
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

// RecordEmissionCommitted records a successful ApplyEmission commit.
func (m *Metrics) RecordEmissionCommitted(ctx context.Context, adapter string) {
	m.EmissionsCommitted.Add(ctx, 1, metric.WithAttributes(attribute.String("adapter", adapter)))
}

// RecordEnrichmentRound records one enrichment loop round for enrichmentID.
func (m *Metrics) RecordEnrichmentRound(ctx context.Context, enrichmentID string) {
	m.EnrichmentRounds.Add(ctx, 1, metric.WithAttributes(attribute.String("enrichment", enrichmentID)))
}

// RecordSafetyValveTrip records an enrichment loop hitting max_rounds.
func (m *Metrics) RecordSafetyValveTrip(ctx context.Context) {
	m.EnrichmentSafetyValveTrips.Add(ctx, 1)
}

// RecordRetraction records a contribution retraction with its outcome status
// ("ok" or "not_found").
func (m *Metrics) RecordRetraction(ctx context.Context, status string) {
	m.Retractions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordRejection records a single ApplyEmission item rejection by reason.
func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	m.Rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordCircuitTransition records an adapter circuit breaker moving from one
// state to another.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, adapter, from, to string) {
	m.AdapterCircuitTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("adapter", adapter),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
