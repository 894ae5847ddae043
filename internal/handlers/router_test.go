package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/platform/requestctx"
	"github.com/easyorder/quickorder/internal/services"
)

func TestNewRouter_DefaultMounts(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	healthHandlers := NewHealthHandlers(
		WithHealthSystemService(&stubSystemService{
			report: services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				Uptime:      5 * time.Second,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
				},
			},
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	router := NewRouter(WithHealthHandlers(healthHandlers))

	t.Run("healthz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected content-type application/json, got %s", ct)
		}
	})

	t.Run("readyz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("default not implemented group", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/quote/shipping", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", rr.Code)
		}

		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("expected JSON body: %v", err)
		}
		if body["error"] != "not_implemented" {
			t.Fatalf("expected not_implemented error, got %v", body["error"])
		}
		if body["success"] != false {
			t.Fatalf("expected success false, got %v", body["success"])
		}
	})

	t.Run("default storefront route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/config", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", rr.Code)
		}
	})
}

func TestNewRouter_WithRegistrars(t *testing.T) {
	registrar := func(r chi.Router) {
		r.Post("/shipping", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	router := NewRouter(WithQuoteRoutes(registrar))

	req := httptest.NewRequest(http.MethodPost, "/quote/shipping", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}

func TestNewRouter_NotFound(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/does/not/exist", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("expected route_not_found error, got %v", body["error"])
	}
}

func TestNewRouter_OrderGroupMiddleware(t *testing.T) {
	orderHeader := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test-Middleware", "order")
			next.ServeHTTP(w, r)
		})
	}
	registrar := func(r chi.Router) {
		r.Post("/create", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}

	router := NewRouter(WithOrderRoutes(registrar), WithOrderMiddlewares(orderHeader))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/order/create", nil))
	if rr.Header().Get("X-Test-Middleware") != "order" {
		t.Fatalf("expected order middleware to set header")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Header().Get("X-Test-Middleware") != "" {
		t.Fatalf("expected order middleware to be scoped to /order")
	}
}

func TestNewRouter_StoreScope(t *testing.T) {
	var seen string
	registrar := func(r chi.Router) {
		r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
			seen = requestctx.Store(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	}

	router := NewRouter(
		WithMiddlewares(StoreScopeMiddleware("default")),
		WithStorefrontRoutes(registrar),
	)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.Header.Set(StoreHeader, " EG_Store ")
	router.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "eg_store" {
		t.Fatalf("expected header store eg_store, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/config", nil)
	req.Header.Set(StoreHeader, "bad store!")
	router.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "default" {
		t.Fatalf("expected default store for invalid header, got %q", seen)
	}
}
