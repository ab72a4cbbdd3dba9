package services

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/cedarstore/api/internal/domain"
	"github.com/cedarstore/api/internal/payments"
	"github.com/cedarstore/api/internal/repositories"
)

var errNotConfigured = errors.New("fake gateway: not configured")

// repoError satisfies repositories.RepositoryError for fakes.
type repoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repoError) Error() string       { return e.msg }
func (e *repoError) IsNotFound() bool    { return e.notFound }
func (e *repoError) IsConflict() bool    { return e.conflict }
func (e *repoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error    { return &repoError{msg: msg, notFound: true} }
func conflictErr(msg string) error    { return &repoError{msg: msg, conflict: true} }
func unavailableErr(msg string) error { return &repoError{msg: msg, unavailable: true} }

type fakeCartRepo struct {
	mu      sync.Mutex
	carts   map[string]domain.Cart
	getErr  error
	setErr  error
	delErr  error
	deleted []string
}

func newFakeCartRepo(carts ...domain.Cart) *fakeCartRepo {
	repo := &fakeCartRepo{carts: make(map[string]domain.Cart)}
	for _, cart := range carts {
		repo.carts[cart.ID] = cart
	}
	return repo
}

func (f *fakeCartRepo) Get(ctx context.Context, cartID string) (domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Cart{}, f.getErr
	}
	cart, ok := f.carts[cartID]
	if !ok {
		return domain.Cart{}, notFoundErr("cart " + cartID + " not found")
	}
	return cart, nil
}

func (f *fakeCartRepo) Set(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return domain.Cart{}, f.setErr
	}
	f.carts[cart.ID] = cart
	return cart, nil
}

func (f *fakeCartRepo) Delete(ctx context.Context, cartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.carts, cartID)
	f.deleted = append(f.deleted, cartID)
	return nil
}

func (f *fakeCartRepo) stored(cartID string) (domain.Cart, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[cartID]
	return cart, ok
}

type fakeCatalogRepo struct {
	products   map[string]domain.Product
	deliveries map[string]domain.DeliveryMethod
	coupons    map[string]domain.Coupon
	getErr     error
}

func (f *fakeCatalogRepo) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if f.getErr != nil {
		return domain.Product{}, f.getErr
	}
	product, ok := f.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr("product " + productID + " not found")
	}
	return product, nil
}

func (f *fakeCatalogRepo) GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	found := make(map[string]domain.Product)
	for _, id := range productIDs {
		if product, ok := f.products[id]; ok {
			found[id] = product
		}
	}
	return found, nil
}

func (f *fakeCatalogRepo) GetDeliveryMethod(ctx context.Context, methodID string) (domain.DeliveryMethod, error) {
	if f.getErr != nil {
		return domain.DeliveryMethod{}, f.getErr
	}
	method, ok := f.deliveries[methodID]
	if !ok {
		return domain.DeliveryMethod{}, notFoundErr("delivery method " + methodID + " not found")
	}
	return method, nil
}

func (f *fakeCatalogRepo) GetCoupon(ctx context.Context, couponID string) (domain.Coupon, error) {
	if f.getErr != nil {
		return domain.Coupon{}, f.getErr
	}
	coupon, ok := f.coupons[couponID]
	if !ok {
		return domain.Coupon{}, notFoundErr("coupon " + couponID + " not found")
	}
	return coupon, nil
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	insertErr error
	updateErr error
	inserted  []domain.Order
}

func newFakeOrderRepo(orders ...domain.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{orders: make(map[string]domain.Order)}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (f *fakeOrderRepo) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return domain.Order{}, f.insertErr
	}
	if _, exists := f.orders[order.ID]; exists {
		return domain.Order{}, conflictErr("order " + order.ID + " exists")
	}
	f.orders[order.ID] = order
	f.inserted = append(f.inserted, order)
	return order, nil
}

func (f *fakeOrderRepo) Update(ctx context.Context, order domain.Order, expectedUpdatedAt time.Time) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Order{}, f.updateErr
	}
	current, ok := f.orders[order.ID]
	if !ok {
		return domain.Order{}, notFoundErr("order " + order.ID + " not found")
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return domain.Order{}, conflictErr("order " + order.ID + " changed")
	}
	order.UpdatedAt = expectedUpdatedAt.Add(time.Second)
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundErr("order " + orderID + " not found")
	}
	return order, nil
}

func (f *fakeOrderRepo) ListByBuyer(ctx context.Context, buyerEmail string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := domain.CursorPage[domain.Order]{Items: []domain.Order{}}
	for _, order := range f.orders {
		if order.BuyerEmail != buyerEmail {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		page.Items = append(page.Items, order)
	}
	return page, nil
}

func (f *fakeOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := domain.CursorPage[domain.Order]{Items: []domain.Order{}}
	for _, order := range f.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		page.Items = append(page.Items, order)
	}
	return page, nil
}

type fakeCounterRepo struct {
	mu      sync.Mutex
	values  map[string]int64
	nextErr error
}

func (f *fakeCounterRepo) Next(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		return 0, f.nextErr
	}
	if f.values == nil {
		f.values = make(map[string]int64)
	}
	f.values[name]++
	return f.values[name], nil
}

type fakeGateway struct {
	createIntentFn func(ctx context.Context, req payments.CreatePaymentIntentRequest) (payments.PaymentIntent, error)
	updateIntentFn func(ctx context.Context, id string, amount int64) (payments.PaymentIntent, error)
	getIntentFn    func(ctx context.Context, id string) (payments.PaymentIntent, error)
	cancelIntentFn func(ctx context.Context, id string) error
	createSetupFn  func(ctx context.Context, req payments.CreateSetupIntentRequest) (payments.SetupIntent, error)
	getSetupFn     func(ctx context.Context, id string) (payments.SetupIntent, error)
	refundFn       func(ctx context.Context, req payments.RefundRequest) (payments.Refund, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeGateway) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeGateway) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if call == name {
			count++
		}
	}
	return count
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, req payments.CreatePaymentIntentRequest) (payments.PaymentIntent, error) {
	f.record("createIntent")
	if f.createIntentFn == nil {
		return payments.PaymentIntent{}, &payments.GatewayError{Outcome: payments.OutcomeOtherFailure, Err: errNotConfigured}
	}
	return f.createIntentFn(ctx, req)
}

func (f *fakeGateway) UpdatePaymentIntent(ctx context.Context, id string, amount int64) (payments.PaymentIntent, error) {
	f.record("updateIntent")
	if f.updateIntentFn == nil {
		return payments.PaymentIntent{}, &payments.GatewayError{Outcome: payments.OutcomeOtherFailure, Err: errNotConfigured}
	}
	return f.updateIntentFn(ctx, id, amount)
}

func (f *fakeGateway) GetPaymentIntent(ctx context.Context, id string) (payments.PaymentIntent, error) {
	f.record("getIntent")
	if f.getIntentFn == nil {
		return payments.PaymentIntent{}, &payments.GatewayError{Outcome: payments.OutcomeOtherFailure, Err: errNotConfigured}
	}
	return f.getIntentFn(ctx, id)
}

func (f *fakeGateway) CancelPaymentIntent(ctx context.Context, id string) error {
	f.record("cancelIntent")
	if f.cancelIntentFn == nil {
		return nil
	}
	return f.cancelIntentFn(ctx, id)
}

func (f *fakeGateway) CreateSetupIntent(ctx context.Context, req payments.CreateSetupIntentRequest) (payments.SetupIntent, error) {
	f.record("createSetup")
	if f.createSetupFn == nil {
		return payments.SetupIntent{}, &payments.GatewayError{Outcome: payments.OutcomeOtherFailure, Err: errNotConfigured}
	}
	return f.createSetupFn(ctx, req)
}

func (f *fakeGateway) GetSetupIntent(ctx context.Context, id string) (payments.SetupIntent, error) {
	f.record("getSetup")
	if f.getSetupFn == nil {
		return payments.SetupIntent{}, &payments.GatewayError{Outcome: payments.OutcomeOtherFailure, Err: errNotConfigured}
	}
	return f.getSetupFn(ctx, id)
}

func (f *fakeGateway) Refund(ctx context.Context, req payments.RefundRequest) (payments.Refund, error) {
	f.record("refund")
	if f.refundFn == nil {
		return payments.Refund{}, &payments.GatewayError{Outcome: payments.OutcomeOtherFailure, Err: errNotConfigured}
	}
	return f.refundFn(ctx, req)
}

type fakePublisher struct {
	mu        sync.Mutex
	messages  []OrderEventMessage
	publishFn func(ctx context.Context, message OrderEventMessage) (string, error)
	published chan OrderEventMessage
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan OrderEventMessage, 8)}
}

func (f *fakePublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.mu.Unlock()
	if f.published != nil {
		f.published <- message
	}
	if f.publishFn != nil {
		return f.publishFn(ctx, message)
	}
	return "msg-1", nil
}
