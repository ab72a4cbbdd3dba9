package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/cedarstore/api/internal/domain"
	"github.com/cedarstore/api/internal/payments"
	"github.com/cedarstore/api/internal/platform/config"
	"github.com/cedarstore/api/internal/platform/idempotency"
	"github.com/cedarstore/api/internal/repositories"
	"github.com/cedarstore/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Carts    services.CartService
	Payments services.PaymentService
	Orders   services.OrderService
}

// Deps carries the infrastructure the container assembles services from.
// Tests can supply in-memory implementations.
type Deps struct {
	Registry    repositories.Registry
	Gateway     payments.Gateway
	Idempotency idempotency.Store
	Publisher   services.OrderEventPublisher
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and supporting infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies.
func NewContainer(ctx context.Context, cfg config.Config, deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	if deps.Idempotency == nil {
		return nil, errors.New("idempotency store is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	svc, err := buildServices(cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, deps Deps) (Services, error) {
	var svc Services
	reg := deps.Registry

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:  reg.Carts(),
		Clock:  deps.Clock,
		Logger: deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Carts = cartSvc

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Carts:         reg.Carts(),
		Catalog:       reg.Catalog(),
		Gateway:       deps.Gateway,
		Currency:      cfg.Payments.Currency,
		MinimumCharge: cfg.Payments.MinimumCharge,
		Clock:         deps.Clock,
		Logger:        deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Carts:       reg.Carts(),
		Orders:      reg.Orders(),
		Catalog:     reg.Catalog(),
		Counters:    reg.Counters(),
		Gateway:     deps.Gateway,
		Idempotency: deps.Idempotency,
		Publisher:   deps.Publisher,
		Policy:      domain.PaymentPolicy(cfg.Payments.Policy),
		Clock:       deps.Clock,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	return svc, nil
}
