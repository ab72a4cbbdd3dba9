package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	goredis "github.com/redis/go-redis/v9"

	domain "github.com/cedarstore/api/internal/domain"
	"github.com/cedarstore/api/internal/repositories"
)

const (
	defaultKeyPrefix = "cart:"
	defaultCartTTL   = 720 * time.Hour
)

// CartRepositoryConfig wires the Redis-backed cart store.
type CartRepositoryConfig struct {
	Client    goredis.UniversalClient
	KeyPrefix string
	// TTL bounds how long an untouched cart survives. Every Set refreshes it.
	TTL   time.Duration
	Clock func() time.Time
}

// CartRepository persists carts as JSON strings under a key prefix with a
// rolling expiry.
type CartRepository struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Redis-backed cart repository.
func NewCartRepository(cfg CartRepositoryConfig) (*CartRepository, error) {
	if cfg.Client == nil {
		return nil, errors.New("cart repository requires redis client")
	}
	prefix := cfg.KeyPrefix
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &CartRepository{
		client: cfg.Client,
		prefix: prefix,
		ttl:    ttl,
		now:    func() time.Time { return clock().UTC() },
	}, nil
}

// Get loads the cart stored under cartID. Missing carts surface as a
// not-found repository error.
func (r *CartRepository) Get(ctx context.Context, cartID string) (domain.Cart, error) {
	if r == nil || r.client == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	payload, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.Cart{}, newCartError("carts.get", kindNotFound, fmt.Errorf("cart %s not found", id))
		}
		return domain.Cart{}, wrapCartError("carts.get", err)
	}

	cart, err := decodeCart(payload)
	if err != nil {
		return domain.Cart{}, newCartError("carts.get", kindInternal, err)
	}
	cart.ID = id
	return cart, nil
}

// Set stores the cart and resets its expiry to the configured TTL. The
// last write wins; there is no optimistic concurrency on carts.
func (r *CartRepository) Set(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.client == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cart.ID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	cart.ID = id
	cart.UpdatedAt = r.now()

	payload, err := json.Marshal(encodeCart(cart))
	if err != nil {
		return domain.Cart{}, newCartError("carts.set", kindInternal, err)
	}
	if err := r.client.Set(ctx, r.key(id), payload, r.ttl).Err(); err != nil {
		return domain.Cart{}, wrapCartError("carts.set", err)
	}
	return cart, nil
}

// Delete removes the cart. Deleting an absent cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	if r == nil || r.client == nil {
		return errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return errors.New("cart repository: cart id is required")
	}
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return wrapCartError("carts.delete", err)
	}
	return nil
}

func (r *CartRepository) key(id string) string {
	return r.prefix + id
}

// cartRecord is the wire shape written to Redis. Fields are camelCase;
// earlier writers used PascalCase keys, so reads normalise key casing
// before decoding and existing carts stay readable.
type cartRecord struct {
	Items             []cartItemRecord  `json:"items"`
	DeliveryMethodID  string            `json:"deliveryMethodId,omitempty"`
	Coupon            *cartCouponRecord `json:"coupon,omitempty"`
	PaymentIntentID   string            `json:"paymentIntentId,omitempty"`
	ClientSecret      string            `json:"clientSecret,omitempty"`
	SetupIntentID     string            `json:"setupIntentId,omitempty"`
	SetupClientSecret string            `json:"setupClientSecret,omitempty"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

type cartItemRecord struct {
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	UnitPrice       int64  `json:"unitPrice"`
	Quantity        int    `json:"quantity"`
	PictureURL      string `json:"pictureUrl,omitempty"`
	QuantityInStock int    `json:"quantityInStock"`
}

type cartCouponRecord struct {
	CouponID   string  `json:"couponId"`
	AmountOff  int64   `json:"amountOff,omitempty"`
	PercentOff float64 `json:"percentOff,omitempty"`
}

func encodeCart(cart domain.Cart) cartRecord {
	record := cartRecord{
		Items:             make([]cartItemRecord, 0, len(cart.Items)),
		DeliveryMethodID:  cart.DeliveryMethodID,
		PaymentIntentID:   cart.PaymentIntentID,
		ClientSecret:      cart.ClientSecret,
		SetupIntentID:     cart.SetupIntentID,
		SetupClientSecret: cart.SetupClientSecret,
		UpdatedAt:         cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		record.Items = append(record.Items, cartItemRecord{
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			UnitPrice:       item.UnitPrice,
			Quantity:        item.Quantity,
			PictureURL:      item.PictureURL,
			QuantityInStock: item.QuantityInStock,
		})
	}
	if cart.Coupon != nil {
		record.Coupon = &cartCouponRecord{
			CouponID:   cart.Coupon.CouponID,
			AmountOff:  cart.Coupon.AmountOff,
			PercentOff: cart.Coupon.PercentOff,
		}
	}
	return record
}

func decodeCart(payload []byte) (domain.Cart, error) {
	normalised, err := normaliseJSONKeys(payload)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
	}

	var record cartRecord
	if err := json.Unmarshal(normalised, &record); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
	}

	cart := domain.Cart{
		Items:             make([]domain.CartItem, 0, len(record.Items)),
		DeliveryMethodID:  record.DeliveryMethodID,
		PaymentIntentID:   record.PaymentIntentID,
		ClientSecret:      record.ClientSecret,
		SetupIntentID:     record.SetupIntentID,
		SetupClientSecret: record.SetupClientSecret,
		UpdatedAt:         record.UpdatedAt,
	}
	for _, item := range record.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			UnitPrice:       item.UnitPrice,
			Quantity:        item.Quantity,
			PictureURL:      item.PictureURL,
			QuantityInStock: item.QuantityInStock,
		})
	}
	if record.Coupon != nil {
		cart.Coupon = &domain.CartCoupon{
			CouponID:   record.Coupon.CouponID,
			AmountOff:  record.Coupon.AmountOff,
			PercentOff: record.Coupon.PercentOff,
		}
	}
	return cart, nil
}

// normaliseJSONKeys lower-cases the first rune of every object key at any
// nesting depth. Numbers pass through as json.Number so integer amounts
// survive the round trip unchanged.
func normaliseJSONKeys(payload []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return json.Marshal(lowerKeys(value))
}

func lowerKeys(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, nested := range typed {
			out[lowerFirst(key)] = lowerKeys(nested)
		}
		return out
	case []any:
		for i, nested := range typed {
			typed[i] = lowerKeys(nested)
		}
		return typed
	default:
		return value
	}
}

func lowerFirst(key string) string {
	if key == "" {
		return key
	}
	runes := []rune(key)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
