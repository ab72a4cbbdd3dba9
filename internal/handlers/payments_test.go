package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/cedarstore/api/internal/services"
)

func newPaymentRouter(service services.PaymentService) chi.Router {
	router := chi.NewRouter()
	router.Route("/payments", NewPaymentHandlers(service).Routes)
	return router
}

func TestPaymentHandlersReconcileReturnsUpdatedCart(t *testing.T) {
	service := &stubPaymentService{
		reconcileFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			if cartID != "cart-7" {
				t.Fatalf("unexpected cart id %q", cartID)
			}
			return services.Cart{
				ID:              "cart-7",
				PaymentIntentID: "pi_1",
				ClientSecret:    "pi_1_secret",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/cart-7", nil)
	rr := httptest.NewRecorder()
	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp cartPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentIntentID != "pi_1" || resp.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestPaymentHandlersReconcileMissingCart(t *testing.T) {
	service := &stubPaymentService{
		reconcileFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			return services.Cart{}, services.ErrPaymentCartNotFound
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/absent", nil)
	rr := httptest.NewRecorder()
	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestPaymentHandlersReconcileMissingCatalogReference(t *testing.T) {
	service := &stubPaymentService{
		reconcileFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			return services.Cart{}, services.ErrPaymentReferenceMissing
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/cart-7", nil)
	rr := httptest.NewRecorder()
	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestPaymentHandlersReconcileRateLimited(t *testing.T) {
	service := &stubPaymentService{
		reconcileFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			return services.Cart{ID: cartID}, nil
		},
	}
	router := newPaymentRouter(service)

	var last int
	for i := 0; i < reconcileRateLimit+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/payments/cart-7", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 after %d requests, got %d", reconcileRateLimit+1, last)
	}

	// Another cart key is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/payments/cart-8", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for a different cart, got %d", rr.Code)
	}
}

func TestPaymentHandlersNilServiceIs503(t *testing.T) {
	router := chi.NewRouter()
	router.Route("/payments", NewPaymentHandlers(nil).Routes)

	req := httptest.NewRequest(http.MethodPost, "/payments/cart-7", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestPaymentHandlersGatewayOutageStillReturnsCart(t *testing.T) {
	// The reconcile contract contains gateway failures: the service answers
	// with a degraded cart instead of an error.
	service := &stubPaymentService{
		reconcileFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			return services.Cart{ID: cartID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/cart-7", nil)
	rr := httptest.NewRecorder()
	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp cartPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentIntentID != "" || resp.SetupIntentID != "" {
		t.Fatalf("expected degraded cart without intents, got %+v", resp)
	}
}
