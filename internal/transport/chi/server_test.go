package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/veritract/docpipe/internal/domain"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(_ context.Context) error { return f.err }

type fakeProgress struct {
	rows []domain.BootstrapProgress
	err  error
}

func (f fakeProgress) LoadAll(_ context.Context, _ []string) ([]domain.BootstrapProgress, error) {
	return f.rows, f.err
}

func newTestServer(p fakePinger, pr fakeProgress) http.Handler {
	return NewServer(p, pr, testPipeline(fakeEmbedder{}, &fakeSearcher{}), []string{"cuad"}, zap.NewNop()).Router()
}

func TestHealthz(t *testing.T) {
	h := newTestServer(fakePinger{}, fakeProgress{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Database != "ok" {
		t.Fatalf("body = %+v", body)
	}
}

func TestHealthz_DatabaseDown(t *testing.T) {
	h := newTestServer(fakePinger{err: errors.New("connection refused")}, fakeProgress{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("body = %+v", body)
	}
}

func TestBootstrapProgressEndpoint(t *testing.T) {
	started := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	h := newTestServer(fakePinger{}, fakeProgress{rows: []domain.BootstrapProgress{
		{
			Source:           "cuad",
			Status:           domain.StatusInProgress,
			ProcessedRecords: 100,
			EmbeddedRecords:  90,
			ErrorCount:       10,
			LastBatchIndex:   1,
			StartedAt:        started,
		},
	}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/bootstrap/progress", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Sources []progressResponse `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sources) != 1 {
		t.Fatalf("sources = %+v", body.Sources)
	}
	got := body.Sources[0]
	if got.Source != "cuad" || got.Status != "in_progress" || got.ErrorRate != 0.1 {
		t.Fatalf("row = %+v", got)
	}
	if got.StartedAt != "2026-02-01T12:00:00Z" || got.CompletedAt != "" {
		t.Fatalf("timestamps = %q / %q", got.StartedAt, got.CompletedAt)
	}
}

func TestBootstrapProgressEndpoint_StoreFailure(t *testing.T) {
	h := newTestServer(fakePinger{}, fakeProgress{err: errors.New("db gone")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/bootstrap/progress", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	h := newTestServer(fakePinger{}, fakeProgress{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestServer(fakePinger{}, fakeProgress{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID header must be set on responses")
	}
}
