package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// PaymentPolicy controls whether orders may be finalized without a charge.
type PaymentPolicy string

const (
	// PaymentPolicyFreeOrdersAllowed lets zero-total carts finalize without payment provenance.
	PaymentPolicyFreeOrdersAllowed PaymentPolicy = "free-orders-allowed"
	// PaymentPolicyAlwaysRequirePayment rejects any order that lacks a payment intent.
	PaymentPolicyAlwaysRequirePayment PaymentPolicy = "always-require-payment"
)

// Valid reports whether the policy is one of the recognised values.
func (p PaymentPolicy) Valid() bool {
	switch p {
	case PaymentPolicyFreeOrdersAllowed, PaymentPolicyAlwaysRequirePayment:
		return true
	default:
		return false
	}
}

// Cart aggregates the mutable pre-order basket state keyed by a client-chosen id.
type Cart struct {
	ID               string
	Items            []CartItem
	DeliveryMethodID string
	Coupon           *CartCoupon
	PaymentIntentID  string
	ClientSecret     string
	SetupIntentID    string
	SetupClientSecret string
	UpdatedAt        time.Time
}

// HasPaymentIntent reports whether the cart carries a chargeable intent pair.
func (c Cart) HasPaymentIntent() bool {
	return c.PaymentIntentID != "" && c.ClientSecret != ""
}

// HasSetupIntent reports whether the cart carries a zero-charge setup intent pair.
func (c Cart) HasSetupIntent() bool {
	return c.SetupIntentID != "" && c.SetupClientSecret != ""
}

// CartItem stores a single product entry within a cart. Quantity is always positive
// and the items list holds at most one entry per product id.
type CartItem struct {
	ProductID       string
	ProductName     string
	UnitPrice       int64
	Quantity        int
	PictureURL      string
	QuantityInStock int
}

// CartCoupon captures the coupon reference stored on a cart. At most one of
// AmountOff and PercentOff is meaningful for a given coupon.
type CartCoupon struct {
	CouponID   string
	AmountOff  int64
	PercentOff float64
}

// Product is the catalog projection the checkout core reads; prices are minor units.
type Product struct {
	ID              string
	Name            string
	Price           int64
	PictureURL      string
	QuantityInStock int
}

// DeliveryMethod is read-only reference data priced in minor units.
type DeliveryMethod struct {
	ID           string
	ShortName    string
	Description  string
	DeliveryTime string
	Price        int64
}

// Coupon is read-only discount reference data.
type Coupon struct {
	ID         string
	Name       string
	AmountOff  int64
	PercentOff float64
}

// Address represents the postal address snapshot stored on orders.
type Address struct {
	Name       string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
}

// PaymentSummary is the masked payment-method descriptor snapshotted on orders.
type PaymentSummary struct {
	Last4    string
	Brand    string
	ExpMonth int
	ExpYear  int
}

// OrderStatus enumerates valid lifecycle states for finalized orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaymentReceived indicates the charge has been confirmed.
	OrderStatusPaymentReceived OrderStatus = "payment_received"
	// OrderStatusPaymentMismatch indicates the charged amount disagrees with the order total.
	OrderStatusPaymentMismatch OrderStatus = "payment_mismatch"
	// OrderStatusRefunded indicates the charge has been reversed.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Valid reports whether the status is one of the recognised values.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaymentReceived, OrderStatusPaymentMismatch, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// Order is the immutable durable record produced from a payment-ready cart.
// Only Status and refund metadata change after creation.
type Order struct {
	ID              string
	OrderNumber     string
	BuyerEmail      string
	ShippingAddress Address
	DeliveryMethod  DeliveryMethod
	Items           []OrderItem
	Subtotal        int64
	Discount        int64
	Status          OrderStatus
	PaymentSummary  *PaymentSummary
	PaymentIntentID string
	RefundedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Total derives the amount charged for the order in minor units.
func (o Order) Total() int64 {
	total := o.Subtotal - o.Discount + o.DeliveryMethod.Price
	if total < 0 {
		return 0
	}
	return total
}

// OrderItem mirrors a cart line with the catalog price captured at order-creation time.
type OrderItem struct {
	ProductID   string
	ProductName string
	PictureURL  string
	UnitPrice   int64
	Quantity    int
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
