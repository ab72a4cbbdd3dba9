package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cedarstore/api/internal/repositories"
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartUnavailable indicates the cart store could not be reached.
	ErrCartUnavailable = errors.New("cart: unavailable")
)

// CartServiceDeps wires the dependencies required by the cart service.
type CartServiceDeps struct {
	Carts  repositories.CartRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts  repositories.CartRepository
	now    func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewCartService constructs a CartService validating required dependencies.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts: deps.Carts,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Get returns the stored cart. A cart id that was never stored, or whose
// entry has expired, yields an empty cart with that id so clients can start
// adding items without a separate create call.
func (s *cartService) Get(ctx context.Context, cartID string) (Cart, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.carts.Get(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Cart{ID: id, Items: []CartItem{}}, nil
		}
		return Cart{}, wrapCartStoreError(err)
	}
	return cart, nil
}

// Set overwrites the stored cart and refreshes its expiry.
func (s *cartService) Set(ctx context.Context, cart Cart) (Cart, error) {
	cart.ID = strings.TrimSpace(cart.ID)
	if cart.ID == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if err := validateCartItems(cart.Items); err != nil {
		return Cart{}, err
	}

	saved, err := s.carts.Set(ctx, cart)
	if err != nil {
		return Cart{}, wrapCartStoreError(err)
	}

	s.logger(ctx, "cart.saved", map[string]any{
		"cartId": saved.ID,
		"items":  len(saved.Items),
	})
	return saved, nil
}

// Delete removes the stored cart. Missing carts are not an error.
func (s *cartService) Delete(ctx context.Context, cartID string) error {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return ErrCartInvalidInput
	}
	if err := s.carts.Delete(ctx, id); err != nil {
		return wrapCartStoreError(err)
	}
	s.logger(ctx, "cart.deleted", map[string]any{"cartId": id})
	return nil
}

func validateCartItems(items []CartItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return ErrCartInvalidInput
		}
		if _, dup := seen[productID]; dup {
			return ErrCartInvalidInput
		}
		seen[productID] = struct{}{}
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return ErrCartInvalidInput
		}
	}
	return nil
}

func wrapCartStoreError(err error) error {
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}
