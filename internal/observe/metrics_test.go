package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// findMetric collects from the reader and returns the named metric, failing
// the test when it is absent.
func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name == name {
				return met
			}
		}
	}
	t.Fatalf("metric %q not collected", name)
	return metricdata.Metrics{}
}

// counterValue returns the int64 sum data point carrying the given attribute,
// or -1 when none matches.
func counterValue(t *testing.T, met metricdata.Metrics, attrKey, attrVal string) int64 {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", met.Name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == attrKey && kv.Value.AsString() == attrVal {
				return dp.Value
			}
		}
	}
	return -1
}

func TestScoreHistogramRecordsDistribution(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// A session drifting upward through the bands.
	for _, score := range []float64{42.5, 48.0, 55.5, 61.0} {
		m.OverallScores.Record(ctx, score)
	}

	met := findMetric(t, reader, "parlando.overall.scores")
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("want a float64 histogram, got %T", met.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("want 1 data point, got %d", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 4 {
		t.Errorf("want 4 samples, got %d", dp.Count)
	}
	if dp.Sum != 207.0 {
		t.Errorf("want sample sum 207.0, got %v", dp.Sum)
	}
}

func TestDurationHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.AssessmentDuration.Record(ctx, 0.012)
	m.OracleDuration.Record(ctx, 3.4)

	for _, name := range []string{
		"parlando.assessment.duration",
		"parlando.oracle.duration",
	} {
		met := findMetric(t, reader, name)
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatalf("%s: want a float64 histogram, got %T", name, met.Data)
		}
		if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
			t.Errorf("%s: want 1 recorded sample", name)
		}
	}
}

func TestRecordOracleRequestByStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// Two clean evaluations, one malformed response, one transport error.
	m.RecordOracleRequest(ctx, "openai", "ok")
	m.RecordOracleRequest(ctx, "openai", "ok")
	m.RecordOracleRequest(ctx, "openai", "unparseable")
	m.RecordOracleRequest(ctx, "ollama", "error")

	met := findMetric(t, reader, "parlando.oracle.requests")
	if got := counterValue(t, met, "status", "ok"); got != 2 {
		t.Errorf("want 2 ok requests, got %d", got)
	}
	if got := counterValue(t, met, "status", "unparseable"); got != 1 {
		t.Errorf("want 1 unparseable request, got %d", got)
	}
	if got := counterValue(t, met, "provider", "ollama"); got != 1 {
		t.Errorf("want 1 request attributed to ollama, got %d", got)
	}
}

func TestRecordEvaluationSkip(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEvaluationSkip(ctx, "in_flight")
	m.RecordEvaluationSkip(ctx, "in_flight")

	met := findMetric(t, reader, "parlando.evaluation.skips")
	if got := counterValue(t, met, "reason", "in_flight"); got != 2 {
		t.Errorf("want 2 in-flight skips, got %d", got)
	}
}

func TestRecordLevelTransition(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLevelTransition(ctx, "intermediate", "upper_intermediate")

	met := findMetric(t, reader, "parlando.level.transitions")
	if got := counterValue(t, met, "from", "intermediate"); got != 1 {
		t.Errorf("want 1 transition from intermediate, got %d", got)
	}
	if got := counterValue(t, met, "to", "upper_intermediate"); got != 1 {
		t.Errorf("want 1 transition to upper_intermediate, got %d", got)
	}
}

func TestActiveSessionsUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// Three sessions start, two end.
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -2)

	met := findMetric(t, reader, "parlando.active_sessions")
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("want an int64 sum, got %T", met.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("want 1 session still active, got %+v", sum.DataPoints)
	}
}

func TestDefaultMetricsSingleton(t *testing.T) {
	if a, b := DefaultMetrics(), DefaultMetrics(); a != b {
		t.Error("want repeated DefaultMetrics calls to share one instance")
	}
}
