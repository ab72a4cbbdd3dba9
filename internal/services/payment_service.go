package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cedarstore/api/internal/payments"
	"github.com/cedarstore/api/internal/repositories"
)

// DefaultMinimumCharge is the smallest amount the gateway will charge, in
// minor units. Totals below it get a setup intent instead of a payment intent.
const DefaultMinimumCharge int64 = 50

var (
	// ErrPaymentCartNotFound indicates the cart id has no stored cart.
	ErrPaymentCartNotFound = errors.New("payment: cart not found")
	// ErrPaymentInvalidInput indicates the caller supplied invalid parameters.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentReferenceMissing indicates a product, delivery method, or coupon no longer resolves.
	ErrPaymentReferenceMissing = errors.New("payment: reference data missing")
	// ErrPaymentUnavailable indicates the cart store or catalog could not be reached.
	ErrPaymentUnavailable = errors.New("payment: unavailable")
)

// PaymentServiceDeps wires the dependencies required by the payment service.
type PaymentServiceDeps struct {
	Carts         repositories.CartRepository
	Catalog       repositories.CatalogRepository
	Gateway       payments.Gateway
	Currency      string
	MinimumCharge int64
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	carts     repositories.CartRepository
	catalog   repositories.CatalogRepository
	gateway   payments.Gateway
	currency  string
	minCharge int64
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewPaymentService constructs a PaymentService validating required dependencies.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Carts == nil {
		return nil, errors.New("payment service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("payment service: catalog repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: gateway is required")
	}

	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "usd"
	}
	minCharge := deps.MinimumCharge
	if minCharge <= 0 {
		minCharge = DefaultMinimumCharge
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		carts:     deps.Carts,
		catalog:   deps.Catalog,
		gateway:   deps.Gateway,
		currency:  currency,
		minCharge: minCharge,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Reconcile refreshes the cart against the catalog, recomputes the total, and
// drives the gateway so the cart ends up with a payment intent sized to the
// total, a setup intent for sub-minimum totals, or no intent at all when the
// gateway is unreachable. Gateway failures never surface to the caller; the
// cart is persisted in whatever state was achieved.
func (s *paymentService) Reconcile(ctx context.Context, cartID string) (Cart, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return Cart{}, ErrPaymentInvalidInput
	}

	cart, err := s.carts.Get(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Cart{}, fmt.Errorf("%w: %s", ErrPaymentCartNotFound, id)
		}
		return Cart{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	if err := s.refreshFromCatalog(ctx, &cart); err != nil {
		return Cart{}, err
	}

	breakdown, err := s.price(ctx, cart)
	if err != nil {
		return Cart{}, err
	}

	if breakdown.Total >= s.minCharge {
		s.ensurePaymentIntent(ctx, &cart, breakdown.Total)
	} else {
		s.ensureSetupIntent(ctx, &cart)
	}

	saved, err := s.carts.Set(ctx, cart)
	if err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	s.logger(ctx, "payment.reconciled", map[string]any{
		"cartId":        saved.ID,
		"total":         breakdown.Total,
		"paymentIntent": saved.PaymentIntentID != "",
		"setupIntent":   saved.SetupIntentID != "",
	})
	return saved, nil
}

// refreshFromCatalog overwrites each line's price and stock snapshot with
// current catalog truth so the charge always reflects live prices.
func (s *paymentService) refreshFromCatalog(ctx context.Context, cart *Cart) error {
	if len(cart.Items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	for i := range cart.Items {
		product, ok := products[cart.Items[i].ProductID]
		if !ok {
			return fmt.Errorf("%w: product %s", ErrPaymentReferenceMissing, cart.Items[i].ProductID)
		}
		cart.Items[i].ProductName = product.Name
		cart.Items[i].UnitPrice = product.Price
		cart.Items[i].PictureURL = product.PictureURL
		cart.Items[i].QuantityInStock = product.QuantityInStock
	}
	return nil
}

func (s *paymentService) price(ctx context.Context, cart Cart) (PricingBreakdown, error) {
	var delivery *DeliveryMethod
	if methodID := strings.TrimSpace(cart.DeliveryMethodID); methodID != "" {
		method, err := s.catalog.GetDeliveryMethod(ctx, methodID)
		if err != nil {
			return PricingBreakdown{}, referenceError("delivery method", methodID, err)
		}
		delivery = &method
	}

	var coupon *Coupon
	if cart.Coupon != nil {
		found, err := s.catalog.GetCoupon(ctx, cart.Coupon.CouponID)
		if err != nil {
			return PricingBreakdown{}, referenceError("coupon", cart.Coupon.CouponID, err)
		}
		coupon = &found
	}

	breakdown, err := ComputeTotals(cart.Items, delivery, coupon)
	if err != nil {
		return PricingBreakdown{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
	}
	return breakdown, nil
}

// ensurePaymentIntent creates or resizes the cart's payment intent. Business
// errors drive explicit transitions; everything else degrades the cart.
func (s *paymentService) ensurePaymentIntent(ctx context.Context, cart *Cart, total int64) {
	clearSetupIntent(cart)

	if cart.PaymentIntentID == "" {
		s.createPaymentIntent(ctx, cart, total)
		return
	}

	intent, err := s.gateway.UpdatePaymentIntent(ctx, cart.PaymentIntentID, total)
	switch payments.OutcomeOf(err) {
	case payments.OutcomeOk:
		cart.PaymentIntentID = intent.ID
		if intent.ClientSecret != "" {
			cart.ClientSecret = intent.ClientSecret
		}
		if cart.ClientSecret == "" {
			s.refreshClientSecret(ctx, cart)
		}
	case payments.OutcomeResourceMissing:
		// Stale reference, a new intent replaces it.
		clearPaymentIntent(cart)
		s.createPaymentIntent(ctx, cart, total)
	case payments.OutcomeAmountTooSmall:
		s.cancelPaymentIntent(ctx, cart)
		s.ensureSetupIntent(ctx, cart)
	default:
		s.degrade(ctx, cart, err)
	}
}

func (s *paymentService) createPaymentIntent(ctx context.Context, cart *Cart, total int64) {
	intent, err := s.gateway.CreatePaymentIntent(ctx, payments.CreatePaymentIntentRequest{
		Amount:             total,
		Currency:           s.currency,
		CartID:             cart.ID,
		PaymentMethodTypes: payments.DefaultPaymentMethodTypes,
	})
	switch payments.OutcomeOf(err) {
	case payments.OutcomeOk:
		cart.PaymentIntentID = intent.ID
		cart.ClientSecret = intent.ClientSecret
	case payments.OutcomeAmountTooSmall:
		s.ensureSetupIntent(ctx, cart)
	default:
		s.degrade(ctx, cart, err)
	}
}

func (s *paymentService) refreshClientSecret(ctx context.Context, cart *Cart) {
	intent, err := s.gateway.GetPaymentIntent(ctx, cart.PaymentIntentID)
	if payments.OutcomeOf(err) != payments.OutcomeOk {
		s.degrade(ctx, cart, err)
		return
	}
	cart.ClientSecret = intent.ClientSecret
}

// ensureSetupIntent guarantees a setup intent for totals the gateway will not
// charge. Any existing payment intent is cancelled best-effort first.
func (s *paymentService) ensureSetupIntent(ctx context.Context, cart *Cart) {
	s.cancelPaymentIntent(ctx, cart)

	if cart.SetupIntentID != "" {
		intent, err := s.gateway.GetSetupIntent(ctx, cart.SetupIntentID)
		switch payments.OutcomeOf(err) {
		case payments.OutcomeOk:
			cart.SetupClientSecret = intent.ClientSecret
			return
		case payments.OutcomeResourceMissing:
			clearSetupIntent(cart)
		default:
			clearSetupIntent(cart)
			s.logGatewayFailure(ctx, cart.ID, "setup intent lookup", err)
			return
		}
	}

	intent, err := s.gateway.CreateSetupIntent(ctx, payments.CreateSetupIntentRequest{
		CartID:             cart.ID,
		PaymentMethodTypes: payments.DefaultPaymentMethodTypes,
		Usage:              payments.SetupUsageOffSession,
	})
	if payments.OutcomeOf(err) != payments.OutcomeOk {
		clearSetupIntent(cart)
		s.logGatewayFailure(ctx, cart.ID, "setup intent create", err)
		return
	}
	cart.SetupIntentID = intent.ID
	cart.SetupClientSecret = intent.ClientSecret
}

// degrade strips the cart's payment intent after an unrecoverable gateway
// failure and falls back to a best-effort setup intent, so checkout can still
// proceed and order creation will reject the unpaid cart instead.
func (s *paymentService) degrade(ctx context.Context, cart *Cart, cause error) {
	s.logGatewayFailure(ctx, cart.ID, "payment intent reconcile", cause)
	s.cancelPaymentIntent(ctx, cart)
	s.ensureSetupIntent(ctx, cart)
}

func (s *paymentService) cancelPaymentIntent(ctx context.Context, cart *Cart) {
	staleID := cart.PaymentIntentID
	clearPaymentIntent(cart)
	if staleID == "" {
		return
	}
	if err := s.gateway.CancelPaymentIntent(ctx, staleID); err != nil {
		s.logGatewayFailure(ctx, cart.ID, "payment intent cancel", err)
	}
}

func (s *paymentService) logGatewayFailure(ctx context.Context, cartID string, op string, err error) {
	if err == nil {
		return
	}
	s.logger(ctx, "payment.gateway_failure", map[string]any{
		"cartId":  cartID,
		"op":      op,
		"outcome": payments.OutcomeOf(err).String(),
		"error":   err.Error(),
	})
}

func clearPaymentIntent(cart *Cart) {
	cart.PaymentIntentID = ""
	cart.ClientSecret = ""
}

func clearSetupIntent(cart *Cart) {
	cart.SetupIntentID = ""
	cart.SetupClientSecret = ""
}

func referenceError(kind string, id string, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s %s", ErrPaymentReferenceMissing, kind, id)
	}
	return fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
}
