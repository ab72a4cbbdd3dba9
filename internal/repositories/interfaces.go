package repositories

import (
	"context"
	"time"

	domain "github.com/cedarstore/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Orders() OrderRepository
	Catalog() CatalogRepository
	Counters() CounterRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository owns the ephemeral cart store. Carts expire after the
// configured TTL; every Set refreshes the expiry.
type CartRepository interface {
	Get(ctx context.Context, cartID string) (domain.Cart, error)
	Set(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Delete(ctx context.Context, cartID string) error
}

// OrderRepository persists the durable order ledger.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	Update(ctx context.Context, order domain.Order, expectedUpdatedAt time.Time) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerEmail string, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter narrows order queries.
type OrderListFilter struct {
	Status *domain.OrderStatus
	Pager  domain.Pagination
}

// CatalogRepository serves the reference data carts are validated against.
type CatalogRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	GetDeliveryMethod(ctx context.Context, methodID string) (domain.DeliveryMethod, error)
	GetCoupon(ctx context.Context, couponID string) (domain.Coupon, error)
}

// CounterRepository issues monotonically increasing sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// HealthRepository probes the service's dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
