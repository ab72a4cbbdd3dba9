package services

import (
	"context"
	"time"

	domain "github.com/cedarstore/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination       = domain.Pagination
	Cart             = domain.Cart
	CartItem         = domain.CartItem
	CartCoupon       = domain.CartCoupon
	Product          = domain.Product
	DeliveryMethod   = domain.DeliveryMethod
	Coupon           = domain.Coupon
	Address          = domain.Address
	PaymentSummary   = domain.PaymentSummary
	PricingBreakdown = domain.PricingBreakdown
	Order            = domain.Order
	OrderItem        = domain.OrderItem
	OrderStatus      = domain.OrderStatus
	PaymentPolicy    = domain.PaymentPolicy
)

// CartService owns read/write access to the ephemeral cart store.
type CartService interface {
	// Get returns the stored cart, or an empty cart carrying the requested
	// id when nothing is stored yet.
	Get(ctx context.Context, cartID string) (Cart, error)
	Set(ctx context.Context, cart Cart) (Cart, error)
	Delete(ctx context.Context, cartID string) error
}

// PaymentService reconciles a cart against the payment gateway so the cart
// is either payment-ready or visibly lacks an intent.
type PaymentService interface {
	Reconcile(ctx context.Context, cartID string) (Cart, error)
}

// CreateOrderCommand carries the inputs for finalizing a cart into an order.
type CreateOrderCommand struct {
	CartID          string
	BuyerEmail      string
	ShippingAddress Address
}

// OrderListQuery narrows order listings.
type OrderListQuery struct {
	Status *OrderStatus
	Pager  Pagination
}

// OrderService finalizes carts into orders and manages the order lifecycle.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetByID(ctx context.Context, buyerEmail string, orderID string) (Order, error)
	List(ctx context.Context, buyerEmail string, query OrderListQuery) (domain.CursorPage[Order], error)
	ListAll(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error)
	Refund(ctx context.Context, orderID string) (Order, error)
}

// OrderEventCompleted is published after an order commits.
const OrderEventCompleted = "order.completed"

// OrderEventMessage is the payload published on the order events topic.
type OrderEventMessage struct {
	Event       string    `json:"event"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	BuyerEmail  string    `json:"buyerEmail"`
	Total       int64     `json:"total"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// OrderEventPublisher pushes order lifecycle events to the notification channel.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
