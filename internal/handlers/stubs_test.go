package handlers

import (
	"context"
	"errors"

	domain "github.com/cedarstore/api/internal/domain"
	"github.com/cedarstore/api/internal/services"
)

var errStubNotConfigured = errors.New("stub not configured")

type stubCartService struct {
	getFunc    func(ctx context.Context, cartID string) (services.Cart, error)
	setFunc    func(ctx context.Context, cart services.Cart) (services.Cart, error)
	deleteFunc func(ctx context.Context, cartID string) error
}

func (s *stubCartService) Get(ctx context.Context, cartID string) (services.Cart, error) {
	if s.getFunc == nil {
		return services.Cart{}, errStubNotConfigured
	}
	return s.getFunc(ctx, cartID)
}

func (s *stubCartService) Set(ctx context.Context, cart services.Cart) (services.Cart, error) {
	if s.setFunc == nil {
		return services.Cart{}, errStubNotConfigured
	}
	return s.setFunc(ctx, cart)
}

func (s *stubCartService) Delete(ctx context.Context, cartID string) error {
	if s.deleteFunc == nil {
		return errStubNotConfigured
	}
	return s.deleteFunc(ctx, cartID)
}

type stubPaymentService struct {
	reconcileFunc func(ctx context.Context, cartID string) (services.Cart, error)
}

func (s *stubPaymentService) Reconcile(ctx context.Context, cartID string) (services.Cart, error) {
	if s.reconcileFunc == nil {
		return services.Cart{}, errStubNotConfigured
	}
	return s.reconcileFunc(ctx, cartID)
}

type stubOrderService struct {
	createFunc  func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getFunc     func(ctx context.Context, buyerEmail string, orderID string) (services.Order, error)
	listFunc    func(ctx context.Context, buyerEmail string, query services.OrderListQuery) (domain.CursorPage[services.Order], error)
	listAllFunc func(ctx context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error)
	refundFunc  func(ctx context.Context, orderID string) (services.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFunc == nil {
		return services.Order{}, errStubNotConfigured
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubOrderService) GetByID(ctx context.Context, buyerEmail string, orderID string) (services.Order, error) {
	if s.getFunc == nil {
		return services.Order{}, errStubNotConfigured
	}
	return s.getFunc(ctx, buyerEmail, orderID)
}

func (s *stubOrderService) List(ctx context.Context, buyerEmail string, query services.OrderListQuery) (domain.CursorPage[services.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Order]{}, errStubNotConfigured
	}
	return s.listFunc(ctx, buyerEmail, query)
}

func (s *stubOrderService) ListAll(ctx context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error) {
	if s.listAllFunc == nil {
		return domain.CursorPage[services.Order]{}, errStubNotConfigured
	}
	return s.listAllFunc(ctx, query)
}

func (s *stubOrderService) Refund(ctx context.Context, orderID string) (services.Order, error) {
	if s.refundFunc == nil {
		return services.Order{}, errStubNotConfigured
	}
	return s.refundFunc(ctx, orderID)
}

type stubHealthRepo struct {
	collectFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthRepo) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collectFunc == nil {
		return domain.SystemHealthReport{}, errStubNotConfigured
	}
	return s.collectFunc(ctx)
}
