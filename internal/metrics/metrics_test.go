package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRouteAndStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/entity/{type}/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodGet, "/entity/widget/widget-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	got := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/entity/{type}/{name}", "201"))
	if got < 1 {
		t.Fatalf("expected RequestTotal to be incremented for the matched route pattern, got %v", got)
	}
}

func TestMiddlewareFallsBackToRawPathWithoutChiRoute(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	got := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/health", "204"))
	if got < 1 {
		t.Fatalf("expected RequestTotal to be recorded against the raw path, got %v", got)
	}
}
