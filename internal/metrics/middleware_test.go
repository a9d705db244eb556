package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/documents/segment", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"chunks":[]}`))
	})

	req := httptest.NewRequest("POST", "/v1/documents/segment", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	requests := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/documents/segment", "200"))
	if requests < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", requests)
	}

	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddleware_LabelsByStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	r.Get("/v1/progress", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	tests := []struct {
		method string
		path   string
		status string
	}{
		{"GET", "/healthz", "200"},
		{"POST", "/v1/search", "422"},
		{"GET", "/v1/progress", "500"},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, http.NoBody)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.path, tc.status))
			if val < 1 {
				t.Errorf("expected requests_total for %s %s with status %s >= 1, got %f", tc.method, tc.path, tc.status, val)
			}
		})
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/tenants/{tenant}/documents", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tenant := range []string{"acme", "globex"} {
		req := httptest.NewRequest("GET", "/v1/tenants/"+tenant+"/documents", http.NoBody)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
	}

	// Both tenants collapse into the route pattern, not per-tenant labels.
	val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/tenants/{tenant}/documents", "200"))
	if val < 2 {
		t.Errorf("expected requests_total for route pattern >= 2, got %f", val)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/v1/documents/segment", "/v1/documents/segment"},
		{"/healthz", "/healthz"},
	}

	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
