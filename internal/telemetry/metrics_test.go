package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
}

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(Decisions.WithLabelValues("flag", "rollout", "true"))
	RecordDecision("flag", "rollout", true)
	RecordDecision("flag", "rollout", true)
	after := testutil.ToFloat64(Decisions.WithLabelValues("flag", "rollout", "true"))
	if after-before != 2 {
		t.Fatalf("decisions_total grew by %v, want 2", after-before)
	}

	before = testutil.ToFloat64(Decisions.WithLabelValues("flag", "none", "false"))
	RecordDecision("flag", "", false)
	if got := testutil.ToFloat64(Decisions.WithLabelValues("flag", "none", "false")) - before; got != 1 {
		t.Fatalf("empty source should be counted as none, grew by %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/experiments/{key}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpReqs.WithLabelValues("/v1/experiments/{key}", http.MethodGet, http.StatusText(http.StatusTeapot)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/experiments/abc", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
	after := testutil.ToFloat64(httpReqs.WithLabelValues("/v1/experiments/{key}", http.MethodGet, http.StatusText(http.StatusTeapot)))
	if after-before != 1 {
		t.Fatalf("http_requests_total grew by %v, want 1", after-before)
	}
}
