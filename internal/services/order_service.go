package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/cedarstore/api/internal/domain"
	"github.com/cedarstore/api/internal/payments"
	"github.com/cedarstore/api/internal/platform/idempotency"
	"github.com/cedarstore/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid order data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderCartNotFound indicates the cart id has no stored cart.
	ErrOrderCartNotFound = errors.New("order: cart not found")
	// ErrOrderReferenceMissing indicates a product or delivery method no longer resolves.
	ErrOrderReferenceMissing = errors.New("order: there was a problem with the order")
	// ErrOrderPaymentRequired indicates the cart has no payment intent although payment is required.
	ErrOrderPaymentRequired = errors.New("order: payment intent missing")
	// ErrOrderPaymentSummaryMissing indicates the intent exists but carries no usable payment summary.
	ErrOrderPaymentSummaryMissing = errors.New("order: payment summary missing")
	// ErrOrderDuplicateSubmission indicates another finalization for the same cart and intent is in flight.
	ErrOrderDuplicateSubmission = errors.New("order: duplicate submission in progress")
	// ErrOrderNotFound indicates the order id does not resolve for the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderAlreadyRefunded indicates the order was refunded before.
	ErrOrderAlreadyRefunded = errors.New("order: already refunded")
	// ErrOrderRefundFailed indicates the gateway rejected or could not process the refund.
	ErrOrderRefundFailed = errors.New("order: refund failed")
	// ErrOrderConflict indicates a concurrent modification was detected.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates a dependency could not be reached.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Carts       repositories.CartRepository
	Orders      repositories.OrderRepository
	Catalog     repositories.CatalogRepository
	Counters    repositories.CounterRepository
	Gateway     payments.Gateway
	Idempotency idempotency.Store
	Publisher   OrderEventPublisher
	Policy      PaymentPolicy
	IDGenerator func() string
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	carts     repositories.CartRepository
	orders    repositories.OrderRepository
	catalog   repositories.CatalogRepository
	counters  repositories.CounterRepository
	gateway   payments.Gateway
	reserved  idempotency.Store
	publisher OrderEventPublisher
	policy    PaymentPolicy
	newID     func() string
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: gateway is required")
	}
	if deps.Idempotency == nil {
		return nil, errors.New("order service: idempotency store is required")
	}

	policy := deps.Policy
	if policy == "" {
		policy = domain.PaymentPolicyAlwaysRequirePayment
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("order service: unknown payment policy %q", policy)
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		carts:     deps.Carts,
		orders:    deps.Orders,
		catalog:   deps.Catalog,
		counters:  deps.Counters,
		gateway:   deps.Gateway,
		reserved:  deps.Idempotency,
		publisher: deps.Publisher,
		policy:    policy,
		newID:     idGen,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Create finalizes the cart into a durable order. Items snapshot current
// catalog prices, not cart prices, closing the price-drift window between
// reconcile and submission. The order is inserted first and the cart deleted
// last; a failed delete is logged and left to the cart TTL.
func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	cartID := strings.TrimSpace(cmd.CartID)
	buyerEmail := strings.ToLower(strings.TrimSpace(cmd.BuyerEmail))
	if cartID == "" || buyerEmail == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderCartNotFound, cartID)
		}
		return Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	if len(cart.Items) == 0 {
		return Order{}, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}

	items, err := s.snapshotItems(ctx, cart)
	if err != nil {
		return Order{}, err
	}

	delivery, err := s.resolveDelivery(ctx, cart)
	if err != nil {
		return Order{}, err
	}

	coupon, err := s.resolveCoupon(ctx, cart)
	if err != nil {
		return Order{}, err
	}

	cartItems := make([]CartItem, len(items))
	for i, item := range items {
		cartItems[i] = CartItem{ProductID: item.ProductID, UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	breakdown, err := ComputeTotals(cartItems, &delivery, coupon)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	paymentRequired := s.policy == domain.PaymentPolicyAlwaysRequirePayment || breakdown.Total > 0

	var summary *PaymentSummary
	if paymentRequired {
		if !cart.HasPaymentIntent() {
			return Order{}, ErrOrderPaymentRequired
		}
		summary, err = s.paymentSummaryFor(ctx, cart.PaymentIntentID)
		if err != nil {
			return Order{}, err
		}
	}

	now := s.now()
	key := idempotency.KeyFor(cart.ID, cart.PaymentIntentID)
	fingerprint := idempotency.Fingerprint(cart.ID, cart.PaymentIntentID, buyerEmail)

	reservation, err := s.reserved.Reserve(ctx, key, fingerprint, now, idempotency.DefaultTTL)
	if err != nil {
		if errors.Is(err, idempotency.ErrFingerprintMismatch) {
			return Order{}, fmt.Errorf("%w: cart already submitted by another buyer", ErrOrderConflict)
		}
		return Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	switch reservation.State {
	case idempotency.ReservationStateCompleted:
		return s.replayOrder(ctx, reservation.Record.OrderID)
	case idempotency.ReservationStatePending:
		return Order{}, ErrOrderDuplicateSubmission
	}

	orderNumber, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		s.release(ctx, key, fingerprint)
		return Order{}, err
	}

	status := domain.OrderStatusPending
	if !paymentRequired && breakdown.Total == 0 && !cart.HasPaymentIntent() {
		// Free orders have nothing to confirm, so they settle immediately.
		status = domain.OrderStatusPaymentReceived
	}

	order := Order{
		ID:              s.newID(),
		OrderNumber:     orderNumber,
		BuyerEmail:      buyerEmail,
		ShippingAddress: cmd.ShippingAddress,
		DeliveryMethod:  delivery,
		Items:           items,
		Subtotal:        breakdown.Subtotal,
		Discount:        breakdown.Discount,
		Status:          status,
		PaymentSummary:  summary,
		PaymentIntentID: cart.PaymentIntentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	inserted, err := s.orders.Insert(ctx, order)
	if err != nil {
		s.release(ctx, key, fingerprint)
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return Order{}, fmt.Errorf("%w: order %s already exists", ErrOrderConflict, order.ID)
		}
		return Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	result := idempotency.Result{OrderID: inserted.ID, OrderNumber: inserted.OrderNumber}
	if err := s.reserved.SaveResult(ctx, key, fingerprint, result, now, idempotency.DefaultTTL); err != nil {
		s.logger(ctx, "order.idempotency_save_failed", map[string]any{
			"orderId": inserted.ID,
			"error":   err.Error(),
		})
	}

	if err := s.carts.Delete(ctx, cart.ID); err != nil {
		// The cart TTL will reclaim it; duplicates are blocked by the reservation.
		s.logger(ctx, "order.cart_delete_failed", map[string]any{
			"cartId":  cart.ID,
			"orderId": inserted.ID,
			"error":   err.Error(),
		})
	}

	s.notifyCompleted(ctx, inserted)

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     inserted.ID,
		"orderNumber": inserted.OrderNumber,
		"total":       inserted.Total(),
		"status":      string(inserted.Status),
	})
	return inserted, nil
}

// GetByID loads an order. A non-empty buyerEmail scopes the lookup to that
// buyer; foreign orders read as not found.
func (s *orderService) GetByID(ctx context.Context, buyerEmail string, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateOrderLookup(err, id)
	}

	if email := strings.ToLower(strings.TrimSpace(buyerEmail)); email != "" && order.BuyerEmail != email {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return order, nil
}

// List returns the buyer's orders, newest first.
func (s *orderService) List(ctx context.Context, buyerEmail string, query OrderListQuery) (domain.CursorPage[Order], error) {
	email := strings.ToLower(strings.TrimSpace(buyerEmail))
	if email == "" {
		return domain.CursorPage[Order]{}, ErrOrderInvalidInput
	}

	page, err := s.orders.ListByBuyer(ctx, email, repositories.OrderListFilter{
		Status: query.Status,
		Pager:  query.Pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return page, nil
}

// ListAll returns orders across all buyers for back-office use.
func (s *orderService) ListAll(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status: query.Status,
		Pager:  query.Pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return page, nil
}

// Refund reverses the order's charge. Already-refunded orders are rejected
// before any gateway call; the local status flips only after the gateway
// confirms. Orders without a payment intent transition directly.
func (s *orderService) Refund(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateOrderLookup(err, id)
	}
	if order.Status == domain.OrderStatusRefunded {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderAlreadyRefunded, id)
	}

	if order.PaymentIntentID != "" {
		refund, err := s.gateway.Refund(ctx, payments.RefundRequest{
			PaymentIntentID: order.PaymentIntentID,
			IdempotencyKey:  "refund-" + order.ID,
		})
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderRefundFailed, err)
		}
		s.logger(ctx, "order.refund_gateway_ok", map[string]any{
			"orderId":  order.ID,
			"refundId": refund.ID,
		})
	}

	now := s.now()
	order.Status = domain.OrderStatusRefunded
	order.RefundedAt = &now

	updated, err := s.orders.Update(ctx, order, order.UpdatedAt)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return Order{}, fmt.Errorf("%w: order %s changed concurrently", ErrOrderConflict, id)
		}
		return Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	s.logger(ctx, "order.refunded", map[string]any{
		"orderId":     updated.ID,
		"orderNumber": updated.OrderNumber,
	})
	return updated, nil
}

// snapshotItems builds order lines from live catalog prices.
func (s *orderService) snapshotItems(ctx context.Context, cart Cart) ([]OrderItem, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	items := make([]OrderItem, 0, len(cart.Items))
	var missing []string
	for _, line := range cart.Items {
		product, ok := products[line.ProductID]
		if !ok {
			missing = append(missing, line.ProductID)
			continue
		}
		items = append(items, OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			PictureURL:  product.PictureURL,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
		})
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: products %s not found", ErrOrderReferenceMissing, strings.Join(missing, ", "))
	}
	return items, nil
}

func (s *orderService) resolveDelivery(ctx context.Context, cart Cart) (DeliveryMethod, error) {
	methodID := strings.TrimSpace(cart.DeliveryMethodID)
	if methodID == "" {
		return DeliveryMethod{}, fmt.Errorf("%w: no delivery method selected", ErrOrderReferenceMissing)
	}

	delivery, err := s.catalog.GetDeliveryMethod(ctx, methodID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return DeliveryMethod{}, fmt.Errorf("%w: delivery method %s not found", ErrOrderReferenceMissing, methodID)
		}
		return DeliveryMethod{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return delivery, nil
}

func (s *orderService) resolveCoupon(ctx context.Context, cart Cart) (*Coupon, error) {
	if cart.Coupon == nil {
		return nil, nil
	}

	coupon, err := s.catalog.GetCoupon(ctx, cart.Coupon.CouponID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, fmt.Errorf("%w: coupon %s not found", ErrOrderReferenceMissing, cart.Coupon.CouponID)
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return &coupon, nil
}

// paymentSummaryFor fetches the masked card details behind the intent. An
// intent without a retrievable summary blocks finalization; the message
// distinguishes this from a missing intent.
func (s *orderService) paymentSummaryFor(ctx context.Context, paymentIntentID string) (*PaymentSummary, error) {
	intent, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderPaymentSummaryMissing, err)
	}
	if intent.Card == nil {
		return nil, ErrOrderPaymentSummaryMissing
	}
	return &PaymentSummary{
		Last4:    intent.Card.Last4,
		Brand:    intent.Card.Brand,
		ExpMonth: int(intent.Card.ExpMonth),
		ExpYear:  int(intent.Card.ExpYear),
	}, nil
}

func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	seq, err := s.counters.Next(ctx, fmt.Sprintf("orders-%d", year))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return fmt.Sprintf("CS-%d-%d", year, seq), nil
}

func (s *orderService) replayOrder(ctx context.Context, orderID string) (Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderLookup(err, orderID)
	}
	return order, nil
}

func (s *orderService) release(ctx context.Context, key string, fingerprint string) {
	if err := s.reserved.Release(ctx, key, fingerprint); err != nil {
		s.logger(ctx, "order.idempotency_release_failed", map[string]any{"error": err.Error()})
	}
}

// notifyCompleted publishes the order event without blocking the response.
// Publish failures are logged only; the order is already committed.
func (s *orderService) notifyCompleted(ctx context.Context, order Order) {
	if s.publisher == nil {
		return
	}

	message := OrderEventMessage{
		Event:       OrderEventCompleted,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BuyerEmail:  order.BuyerEmail,
		Total:       order.Total(),
		OccurredAt:  s.now(),
	}

	go func(ctx context.Context) {
		if _, err := s.publisher.PublishOrderEvent(ctx, message); err != nil {
			s.logger(ctx, "order.notify_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}(context.WithoutCancel(ctx))
}

func (s *orderService) translateOrderLookup(err error, orderID string) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
}

func validateShippingAddress(address Address) error {
	if strings.TrimSpace(address.Name) == "" ||
		strings.TrimSpace(address.Line1) == "" ||
		strings.TrimSpace(address.City) == "" ||
		strings.TrimSpace(address.PostalCode) == "" ||
		strings.TrimSpace(address.Country) == "" {
		return fmt.Errorf("%w: incomplete shipping address", ErrOrderInvalidInput)
	}
	return nil
}
