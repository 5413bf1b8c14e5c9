// Package observe provides application-wide observability primitives for
// Parlando: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Parlando metrics.
const meterName = "github.com/parlando-ai/parlando"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// AssessmentDuration tracks one synchronous scoring cycle (rule-based
	// evaluation plus blending).
	AssessmentDuration metric.Float64Histogram

	// OracleDuration tracks background model-based evaluation latency.
	OracleDuration metric.Float64Histogram

	// --- Counters ---

	// OracleRequests counts model-based evaluation calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	OracleRequests metric.Int64Counter

	// EvaluationSkips counts scoring cycles where the oracle was not
	// invoked. Use with attribute:
	//   attribute.String("reason", ...)
	EvaluationSkips metric.Int64Counter

	// LevelTransitions counts committed difficulty changes. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	LevelTransitions metric.Int64Counter

	// --- Score distribution ---

	// OverallScores records the overall score of every assessment cycle.
	OverallScores metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of live practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The low
// end covers the synchronous rule-based path, the high end the oracle calls.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30,
}

// scoreBuckets covers the 0–100 score range in ten-point steps.
var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AssessmentDuration, err = m.Float64Histogram("parlando.assessment.duration",
		metric.WithDescription("Latency of one synchronous assessment cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.OracleDuration, err = m.Float64Histogram("parlando.oracle.duration",
		metric.WithDescription("Latency of background model-based evaluation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.OracleRequests, err = m.Int64Counter("parlando.oracle.requests",
		metric.WithDescription("Total model-based evaluation requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.EvaluationSkips, err = m.Int64Counter("parlando.evaluation.skips",
		metric.WithDescription("Scoring cycles where the oracle was not invoked, by reason."),
	); err != nil {
		return nil, err
	}
	if met.LevelTransitions, err = m.Int64Counter("parlando.level.transitions",
		metric.WithDescription("Committed difficulty transitions by from and to level."),
	); err != nil {
		return nil, err
	}

	// Score distribution.
	if met.OverallScores, err = m.Float64Histogram("parlando.overall.scores",
		metric.WithDescription("Distribution of overall assessment scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("parlando.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("parlando.http.request.duration",
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

// RecordOracleRequest records a model-based evaluation request with the
// standard attribute set.
func (m *Metrics) RecordOracleRequest(ctx context.Context, provider, status string) {
	m.OracleRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordEvaluationSkip records a scoring cycle that did not invoke the
// oracle.
func (m *Metrics) RecordEvaluationSkip(ctx context.Context, reason string) {
	m.EvaluationSkips.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordLevelTransition records a committed difficulty change.
func (m *Metrics) RecordLevelTransition(ctx context.Context, from, to string) {
	m.LevelTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}
