package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/cedarstore/api/internal/domain"
	"github.com/cedarstore/api/internal/services"
)

func TestRouterHealthz(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestRouterReadyzReportsDependencyOutage(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	repo := &stubHealthRepo{
		collectFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"redis":     {Status: domain.HealthStatusError, Error: "dial timeout"},
					"firestore": {Status: domain.HealthStatusOK},
				},
				GeneratedAt: now,
			}, nil
		},
	}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(WithReadinessChecks(repo))))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var resp readinessPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "error" || resp.Checks["redis"].Error == "" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestRouterReadyzDegradedStillReady(t *testing.T) {
	repo := &stubHealthRepo{
		collectFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"pubsub": {Status: domain.HealthStatusDegraded, Error: "publish backlog"},
				},
				GeneratedAt: time.Now(),
			}, nil
		},
	}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(WithReadinessChecks(repo))))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for degraded, got %d", rr.Code)
	}
}

func TestRouterUnknownRouteReturnsJSONError(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
}

func TestRouterUnconfiguredGroupIs501(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rr.Code)
	}
}

func TestRouterMountsRouteGroups(t *testing.T) {
	cartService := &stubCartService{
		getFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			return services.Cart{ID: cartID, Items: []services.CartItem{}}, nil
		},
	}
	orderService := &stubOrderService{
		getFunc: func(ctx context.Context, buyerEmail string, orderID string) (services.Order, error) {
			if buyerEmail != "avery@example.com" {
				return services.Order{}, errors.New("principal not propagated")
			}
			return sampleOrder(), nil
		},
	}
	adminService := &stubOrderService{
		listAllFunc: func(ctx context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error) {
			return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
		},
	}

	router := NewRouter(
		WithCartRoutes(NewCartHandlers(cartService).Routes),
		WithOrderRoutes(NewOrderHandlers(orderService).Routes),
		WithAdminRoutes(NewAdminOrderHandlers(adminService).Routes),
		WithAdminMiddlewares(RequireAdminToken(testAdminToken)),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts/cart-7", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("carts group: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1", nil)
	req.Header.Set(buyerEmailHeader, "avery@example.com")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("orders group: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin group: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
