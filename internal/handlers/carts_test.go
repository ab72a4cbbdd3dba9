package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cedarstore/api/internal/services"
)

func newCartRouter(service services.CartService) chi.Router {
	router := chi.NewRouter()
	router.Route("/carts", NewCartHandlers(service).Routes)
	return router
}

func TestCartHandlersGetCartSuccess(t *testing.T) {
	updated := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	service := &stubCartService{
		getFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			if cartID != "cart-7" {
				t.Fatalf("unexpected cart id %q", cartID)
			}
			return services.Cart{
				ID: "cart-7",
				Items: []services.CartItem{
					{ProductID: "desk", ProductName: "Walnut Desk", UnitPrice: 4000, Quantity: 1},
				},
				DeliveryMethodID: "standard",
				PaymentIntentID:  "pi_1",
				ClientSecret:     "pi_1_secret",
				UpdatedAt:        updated,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/carts/cart-7", nil)
	rr := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp cartPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "cart-7" || len(resp.Items) != 1 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.Items[0].ProductID != "desk" || resp.Items[0].UnitPrice != 4000 {
		t.Errorf("unexpected item: %+v", resp.Items[0])
	}
	if resp.PaymentIntentID != "pi_1" || resp.ClientSecret != "pi_1_secret" {
		t.Errorf("expected intent fields, got %+v", resp)
	}

	// The wire format is camelCase end to end.
	body := rr.Body.String()
	for _, key := range []string{"\"productId\"", "\"unitPrice\"", "\"paymentIntentId\"", "\"deliveryMethodId\""} {
		if !strings.Contains(body, key) {
			t.Errorf("expected %s in body: %s", key, body)
		}
	}
}

func TestCartHandlersGetMissingCartReturnsEmptyCart(t *testing.T) {
	service := &stubCartService{
		getFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			return services.Cart{ID: cartID, Items: []services.CartItem{}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/carts/fresh", nil)
	rr := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp cartPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "fresh" || len(resp.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", resp)
	}
}

func TestCartHandlersSaveCart(t *testing.T) {
	var saved services.Cart
	service := &stubCartService{
		setFunc: func(ctx context.Context, cart services.Cart) (services.Cart, error) {
			saved = cart
			cart.UpdatedAt = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
			return cart, nil
		},
	}

	body := `{"id":"cart-7","items":[{"productId":"desk","unitPrice":4000,"quantity":2}],"deliveryMethodId":"standard","coupon":{"couponId":"TEN","percentOff":10}}`
	req := httptest.NewRequest(http.MethodPost, "/carts/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if saved.ID != "cart-7" || len(saved.Items) != 1 || saved.Items[0].Quantity != 2 {
		t.Fatalf("unexpected saved cart: %+v", saved)
	}
	if saved.Coupon == nil || saved.Coupon.CouponID != "TEN" || saved.Coupon.PercentOff != 10 {
		t.Fatalf("unexpected coupon: %+v", saved.Coupon)
	}
}

func TestCartHandlersSaveCartRejectsInvalidItems(t *testing.T) {
	service := &stubCartService{
		setFunc: func(ctx context.Context, cart services.Cart) (services.Cart, error) {
			return services.Cart{}, services.ErrCartInvalidInput
		},
	}

	body := `{"id":"cart-7","items":[{"productId":"desk","unitPrice":4000,"quantity":0}]}`
	req := httptest.NewRequest(http.MethodPost, "/carts/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCartHandlersSaveCartRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/carts/", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	newCartRouter(&stubCartService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCartHandlersDeleteCart(t *testing.T) {
	var deleted string
	service := &stubCartService{
		deleteFunc: func(ctx context.Context, cartID string) error {
			deleted = cartID
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/carts/cart-7", nil)
	rr := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if deleted != "cart-7" {
		t.Fatalf("deleted %q, want cart-7", deleted)
	}
}

func TestCartHandlersStoreOutageMapsTo503(t *testing.T) {
	service := &stubCartService{
		getFunc: func(ctx context.Context, cartID string) (services.Cart, error) {
			return services.Cart{}, services.ErrCartUnavailable
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/carts/cart-7", nil)
	rr := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
