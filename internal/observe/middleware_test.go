package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newInstrumentedHandler wraps handler in the middleware with test-local
// metric and trace pipelines, and returns the hooks to inspect both.
func newInstrumentedHandler(t *testing.T, handler http.HandlerFunc) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	return Middleware(m)(handler), reader, exp
}

func TestMiddlewareCorrelationID(t *testing.T) {
	var seenByHandler string
	handler, _, _ := newInstrumentedHandler(t, func(w http.ResponseWriter, r *http.Request) {
		seenByHandler = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions", nil))

	if len(seenByHandler) != 32 {
		t.Fatalf("want a 32-char correlation ID in the handler context, got %q", seenByHandler)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != seenByHandler {
		t.Errorf("want response header to carry the same ID %q, got %q", seenByHandler, got)
	}
}

func TestMiddlewareSpanPerRequest(t *testing.T) {
	handler, _, exp := newInstrumentedHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/history", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("want 1 span, got %d", len(spans))
	}
	if spans[0].Name != "HTTP GET /api/history" {
		t.Errorf("want span named after method and path, got %q", spans[0].Name)
	}
}

func TestMiddlewareDurationMetric(t *testing.T) {
	handler, reader, _ := newInstrumentedHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions", nil))

	met := findMetric(t, reader, "parlando.http.request.duration")
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("want a float64 histogram, got %T", met.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("want 1 data point, got %d", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("want 1 sample, got %d", dp.Count)
	}

	got := map[string]any{}
	for _, kv := range dp.Attributes.ToSlice() {
		got[string(kv.Key)] = kv.Value.AsInterface()
	}
	if got["method"] != "POST" || got["path"] != "/api/sessions" {
		t.Errorf("want method/path attributes, got %v", got)
	}
	if got["status"] != int64(201) {
		t.Errorf("want status attribute 201, got %v", got["status"])
	}
}

func TestMiddlewareStatusOnSpan(t *testing.T) {
	handler, _, exp := newInstrumentedHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("want the handler's 404 passed through, got %d", rec.Code)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatal("want the request span recorded")
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == 404 {
			found = true
		}
	}
	if !found {
		t.Error("want http.response.status_code=404 on the span")
	}
}

func TestMiddlewareHonorsIncomingTraceparent(t *testing.T) {
	const upstream = "8f2a6e41d3c5b7092e1f4a6c8d0b3e57"

	var seenByHandler string
	handler, _, _ := newInstrumentedHandler(t, func(w http.ResponseWriter, r *http.Request) {
		seenByHandler = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("traceparent", "00-"+upstream+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenByHandler != upstream {
		t.Errorf("want the upstream trace ID continued, got %q", seenByHandler)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != upstream {
		t.Errorf("want X-Correlation-ID %q, got %q", upstream, got)
	}
}
