package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domain "github.com/cedarstore/api/internal/domain"
)

func TestEncodeCartWritesCamelCaseKeys(t *testing.T) {
	cart := domain.Cart{
		ID: "cart-1",
		Items: []domain.CartItem{{
			ProductID:   "prod-1",
			ProductName: "Walnut Desk",
			UnitPrice:   7000,
			Quantity:    1,
		}},
		DeliveryMethodID: "dm-1",
		Coupon:           &domain.CartCoupon{CouponID: "SPRING10", PercentOff: 10},
		PaymentIntentID:  "pi_123",
		ClientSecret:     "pi_123_secret",
		UpdatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	payload, err := json.Marshal(encodeCart(cart))
	if err != nil {
		t.Fatalf("marshal cart: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	for _, key := range []string{"items", "deliveryMethodId", "coupon", "paymentIntentId", "clientSecret", "updatedAt"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in payload, got keys %v", key, keysOf(raw))
		}
	}
	if _, ok := raw["Items"]; ok {
		t.Error("payload must not contain PascalCase keys")
	}
}

func TestDecodeCartAcceptsLegacyPascalCasePayload(t *testing.T) {
	legacy := []byte(`{
		"Items": [{
			"ProductId": "prod-9",
			"ProductName": "Oak Chair",
			"UnitPrice": 2500,
			"Quantity": 2,
			"PictureUrl": "https://img.example/oak.png",
			"QuantityInStock": 7
		}],
		"DeliveryMethodId": "dm-2",
		"Coupon": {"CouponId": "WELCOME", "AmountOff": 500},
		"PaymentIntentId": "pi_legacy",
		"ClientSecret": "pi_legacy_secret",
		"UpdatedAt": "2025-11-02T08:30:00Z"
	}`)

	cart, err := decodeCart(legacy)
	if err != nil {
		t.Fatalf("decode legacy cart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(cart.Items))
	}
	item := cart.Items[0]
	if item.ProductID != "prod-9" || item.UnitPrice != 2500 || item.Quantity != 2 {
		t.Errorf("unexpected item decoded: %+v", item)
	}
	if item.QuantityInStock != 7 {
		t.Errorf("expected stock 7, got %d", item.QuantityInStock)
	}
	if cart.DeliveryMethodID != "dm-2" {
		t.Errorf("expected delivery method dm-2, got %q", cart.DeliveryMethodID)
	}
	if cart.Coupon == nil || cart.Coupon.CouponID != "WELCOME" || cart.Coupon.AmountOff != 500 {
		t.Errorf("unexpected coupon: %+v", cart.Coupon)
	}
	if cart.PaymentIntentID != "pi_legacy" || cart.ClientSecret != "pi_legacy_secret" {
		t.Errorf("unexpected intent fields: %q %q", cart.PaymentIntentID, cart.ClientSecret)
	}
	if cart.UpdatedAt.IsZero() {
		t.Error("expected updatedAt to be decoded")
	}
}

func TestDecodeCartRoundTripsCurrentPayload(t *testing.T) {
	original := domain.Cart{
		ID: "cart-7",
		Items: []domain.CartItem{{
			ProductID: "prod-1",
			UnitPrice: 9_007_199_254_741_000,
			Quantity:  1,
		}},
		SetupIntentID:     "seti_1",
		SetupClientSecret: "seti_1_secret",
	}

	payload, err := json.Marshal(encodeCart(original))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := decodeCart(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Items[0].UnitPrice != original.Items[0].UnitPrice {
		t.Errorf("large unit price mangled: got %d want %d", decoded.Items[0].UnitPrice, original.Items[0].UnitPrice)
	}
	if decoded.SetupIntentID != "seti_1" || decoded.SetupClientSecret != "seti_1_secret" {
		t.Errorf("setup intent fields lost: %+v", decoded)
	}
	if decoded.Coupon != nil {
		t.Errorf("expected no coupon, got %+v", decoded.Coupon)
	}
}

func TestDecodeCartRejectsMalformedPayload(t *testing.T) {
	if _, err := decodeCart([]byte(`{"items": [`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestClassifyRedisErrors(t *testing.T) {
	if kind := classify(goredis.Nil); kind != kindNotFound {
		t.Errorf("redis.Nil should classify as not found, got %v", kind)
	}
	if kind := classify(context.DeadlineExceeded); kind != kindUnavailable {
		t.Errorf("deadline exceeded should classify as unavailable, got %v", kind)
	}
	if kind := classify(errors.New("boom")); kind != kindInternal {
		t.Errorf("generic errors should classify as internal, got %v", kind)
	}

	wrapped := wrapCartError("carts.get", goredis.Nil)
	if !wrapped.IsNotFound() || wrapped.IsConflict() || wrapped.IsUnavailable() {
		t.Errorf("unexpected categorisation: %+v", wrapped)
	}
	if !errors.Is(wrapped, goredis.Nil) {
		t.Error("wrapped error should unwrap to redis.Nil")
	}
}

func TestNewCartRepositoryValidatesConfig(t *testing.T) {
	if _, err := NewCartRepository(CartRepositoryConfig{}); err == nil {
		t.Fatal("expected error when client is missing")
	}
}

func keysOf(raw map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	return keys
}
