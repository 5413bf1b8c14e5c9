package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// passing and failing build simple checkers for the tables below.
func passing(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return nil }}
}

func failing(name, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return errors.New(msg) }}
}

// decodeResult parses the handler's JSON response body.
func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	// Liveness ignores the checkers entirely: a process that answers is alive.
	h := New(failing("database", "score history unreachable"))
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("want 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("want JSON content type, got %q", got)
	}
	if body := decodeResult(t, rec); body.Status != "ok" {
		t.Errorf("want status ok, got %q", body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "all dependencies healthy",
			checkers:   []Checker{passing("database"), passing("profiles")},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"database": "ok", "profiles": "ok"},
		},
		{
			name:       "score database down",
			checkers:   []Checker{failing("database", "connection refused"), passing("profiles")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"database": "fail: connection refused", "profiles": "ok"},
		},
		{
			name: "everything down",
			checkers: []Checker{
				failing("database", "timeout"),
				failing("profiles", "read-only filesystem"),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{
				"database": "fail: timeout",
				"profiles": "fail: read-only filesystem",
			},
		},
		{
			name:       "no checkers registered",
			checkers:   nil,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := New(tt.checkers...)
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("want %d, got %d", tt.wantCode, rec.Code)
			}
			body := decodeResult(t, rec)
			if body.Status != tt.wantStatus {
				t.Errorf("want status %q, got %q", tt.wantStatus, body.Status)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %q: want %q, got %q", name, want, got)
				}
			}
		})
	}
}

func TestReadyzCanceledRequest(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("want 503 when the request context is gone, got %d", rec.Code)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	New(passing("database")).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: want 200, got %d", path, rec.Code)
		}
	}
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestDatabaseChecker(t *testing.T) {
	t.Parallel()

	healthy := Database(fakePinger{})
	if healthy.Name != "database" {
		t.Errorf("want name database, got %q", healthy.Name)
	}
	if err := healthy.Check(context.Background()); err != nil {
		t.Errorf("healthy pool: %v", err)
	}

	down := Database(fakePinger{err: errors.New("connection refused")})
	err := down.Check(context.Background())
	if err == nil {
		t.Fatal("want an error from a failing ping")
	}
	if got := err.Error(); got != "ping: connection refused" {
		t.Errorf("want ping-wrapped message, got %q", got)
	}
}

func TestDirWritableChecker(t *testing.T) {
	t.Parallel()

	c := DirWritable("profiles", t.TempDir())
	if c.Name != "profiles" {
		t.Errorf("want name profiles, got %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("writable dir: %v", err)
	}

	missing := DirWritable("history", "/nonexistent/parlando-health")
	if err := missing.Check(context.Background()); err == nil {
		t.Error("want an error for a missing directory")
	}
}

func TestProviderChecker(t *testing.T) {
	t.Parallel()

	c := Provider("openai-realtime", func(context.Context) error { return nil })
	if c.Name != "provider:openai-realtime" {
		t.Errorf("want prefixed name, got %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check: %v", err)
	}
}
