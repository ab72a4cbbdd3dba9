package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/cedarstore/api/internal/domain"
	pfirestore "github.com/cedarstore/api/internal/platform/firestore"
	"github.com/cedarstore/api/internal/platform/pagination"
	"github.com/cedarstore/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository stores finalized orders in Firestore. Documents are
// keyed by the order ID and listed newest first.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
	now      func() time.Time
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// OrderRepositoryOption customises the repository.
type OrderRepositoryOption func(*OrderRepository)

// WithOrderClock overrides the time source used to stamp document updates.
func WithOrderClock(clock func() time.Time) OrderRepositoryOption {
	return func(r *OrderRepository) {
		if clock != nil {
			r.now = func() time.Time { return clock().UTC() }
		}
	}
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider, opts ...OrderRepositoryOption) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	repo := &OrderRepository{
		base:     base,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// Insert writes a new order document, failing on duplicate IDs.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := encodeOrder(order)
	result, err := r.base.Create(ctx, id, doc)
	if err != nil {
		return domain.Order{}, err
	}

	order.ID = id
	order.UpdatedAt = result.UpdateTime
	return order, nil
}

// Update rewrites the mutable order fields guarded by the document's last
// update time. A stale expectation surfaces as a conflict.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedUpdatedAt time.Time) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	if expectedUpdatedAt.IsZero() {
		return domain.Order{}, errors.New("order repository: expected update time is required")
	}

	result, err := r.base.Update(ctx, id, r.updateEntries(order), firestore.LastUpdateTime(expectedUpdatedAt.UTC()))
	if err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = result.UpdateTime
	return order, nil
}

// updateEntries lists the mutable fields an Update rewrites.
func (r *OrderRepository) updateEntries(order domain.Order) []firestore.Update {
	updates := []firestore.Update{
		{Path: "status", Value: string(order.Status)},
		{Path: "updatedAt", Value: r.now()},
	}
	if order.RefundedAt != nil {
		updates = append(updates, firestore.Update{Path: "refundedAt", Value: order.RefundedAt.UTC()})
	}
	if order.PaymentSummary != nil {
		updates = append(updates, firestore.Update{Path: "paymentSummary", Value: encodePaymentSummary(order.PaymentSummary)})
	}
	return updates
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc)
}

// ListByBuyer returns the buyer's orders, newest first.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerEmail string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	email := strings.ToLower(strings.TrimSpace(buyerEmail))
	if email == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository: buyer email is required")
	}
	return r.list(ctx, filter, func(query firestore.Query) firestore.Query {
		return query.Where("buyerEmail", "==", email)
	})
}

// List returns orders across all buyers, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return r.list(ctx, filter, nil)
}

func (r *OrderRepository) list(ctx context.Context, filter repositories.OrderListFilter, scope pfirestore.QueryBuilder) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	cursor, err := decodeOrderCursor(filter.Pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if scope != nil {
			query = scope(query)
		}
		if filter.Status != nil {
			query = query.Where("status", "==", string(*filter.Status))
		}
		query = query.
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			query = query.StartAfter(cursor.createdAt, cursor.id)
		}
		// One extra row tells us whether another page exists.
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(docs))}
	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}

	for _, doc := range docs {
		order, err := decodeOrder(doc)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
	}

	if hasMore && len(page.Items) > 0 {
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt.UTC().Format(time.RFC3339Nano), last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type orderCursor struct {
	createdAt time.Time
	id        string
}

func decodeOrderCursor(token string) (*orderCursor, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil
	}
	cursor, err := pagination.DecodeToken(trimmed)
	if err != nil {
		return nil, err
	}
	if len(cursor.StartAfter) != 2 {
		return nil, fmt.Errorf("%w: unexpected cursor shape", pagination.ErrInvalidPageToken)
	}
	rawTime, okTime := cursor.StartAfter[0].(string)
	rawID, okID := cursor.StartAfter[1].(string)
	if !okTime || !okID {
		return nil, fmt.Errorf("%w: unexpected cursor values", pagination.ErrInvalidPageToken)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	return &orderCursor{createdAt: createdAt, id: rawID}, nil
}

type orderDocument struct {
	OrderNumber     string                  `firestore:"orderNumber"`
	BuyerEmail      string                  `firestore:"buyerEmail"`
	ShippingAddress addressDocument         `firestore:"shippingAddress"`
	DeliveryMethod  deliveryMethodDocument  `firestore:"deliveryMethod"`
	Items           []orderItemDocument     `firestore:"items"`
	Subtotal        int64                   `firestore:"subtotal"`
	Discount        int64                   `firestore:"discount"`
	Status          string                  `firestore:"status"`
	PaymentSummary  *paymentSummaryDocument `firestore:"paymentSummary,omitempty"`
	PaymentIntentID string                  `firestore:"paymentIntentId,omitempty"`
	RefundedAt      *time.Time              `firestore:"refundedAt,omitempty"`
	CreatedAt       time.Time               `firestore:"createdAt"`
	UpdatedAt       time.Time               `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	PictureURL  string `firestore:"pictureUrl,omitempty"`
	UnitPrice   int64  `firestore:"unitPrice"`
	Quantity    int    `firestore:"quantity"`
}

type addressDocument struct {
	Name       string  `firestore:"name"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
}

type deliveryMethodDocument struct {
	ID           string `firestore:"id"`
	ShortName    string `firestore:"shortName"`
	Description  string `firestore:"description,omitempty"`
	DeliveryTime string `firestore:"deliveryTime,omitempty"`
	Price        int64  `firestore:"price"`
}

type paymentSummaryDocument struct {
	Last4    string `firestore:"last4"`
	Brand    string `firestore:"brand"`
	ExpMonth int    `firestore:"expMonth"`
	ExpYear  int    `firestore:"expYear"`
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber: order.OrderNumber,
		BuyerEmail:  strings.ToLower(strings.TrimSpace(order.BuyerEmail)),
		ShippingAddress: addressDocument{
			Name:       order.ShippingAddress.Name,
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		DeliveryMethod: deliveryMethodDocument{
			ID:           order.DeliveryMethod.ID,
			ShortName:    order.DeliveryMethod.ShortName,
			Description:  order.DeliveryMethod.Description,
			DeliveryTime: order.DeliveryMethod.DeliveryTime,
			Price:        order.DeliveryMethod.Price,
		},
		Items:           make([]orderItemDocument, 0, len(order.Items)),
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		Status:          string(order.Status),
		PaymentIntentID: order.PaymentIntentID,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			PictureURL:  item.PictureURL,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	doc.PaymentSummary = encodePaymentSummary(order.PaymentSummary)
	if order.RefundedAt != nil {
		refundedAt := order.RefundedAt.UTC()
		doc.RefundedAt = &refundedAt
	}
	return doc
}

func encodePaymentSummary(summary *domain.PaymentSummary) *paymentSummaryDocument {
	if summary == nil {
		return nil
	}
	return &paymentSummaryDocument{
		Last4:    summary.Last4,
		Brand:    summary.Brand,
		ExpMonth: summary.ExpMonth,
		ExpYear:  summary.ExpYear,
	}
}

func decodeOrder(doc pfirestore.Document[orderDocument]) (domain.Order, error) {
	status := domain.OrderStatus(doc.Data.Status)
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("order %s has unknown status %q", doc.ID, doc.Data.Status)
	}

	order := domain.Order{
		ID:          doc.ID,
		OrderNumber: doc.Data.OrderNumber,
		BuyerEmail:  doc.Data.BuyerEmail,
		ShippingAddress: domain.Address{
			Name:       doc.Data.ShippingAddress.Name,
			Line1:      doc.Data.ShippingAddress.Line1,
			Line2:      doc.Data.ShippingAddress.Line2,
			City:       doc.Data.ShippingAddress.City,
			State:      doc.Data.ShippingAddress.State,
			PostalCode: doc.Data.ShippingAddress.PostalCode,
			Country:    doc.Data.ShippingAddress.Country,
		},
		DeliveryMethod: domain.DeliveryMethod{
			ID:           doc.Data.DeliveryMethod.ID,
			ShortName:    doc.Data.DeliveryMethod.ShortName,
			Description:  doc.Data.DeliveryMethod.Description,
			DeliveryTime: doc.Data.DeliveryMethod.DeliveryTime,
			Price:        doc.Data.DeliveryMethod.Price,
		},
		Items:           make([]domain.OrderItem, 0, len(doc.Data.Items)),
		Subtotal:        doc.Data.Subtotal,
		Discount:        doc.Data.Discount,
		Status:          status,
		PaymentIntentID: doc.Data.PaymentIntentID,
		CreatedAt:       doc.Data.CreatedAt,
		UpdatedAt:       doc.UpdateTime,
	}
	for _, item := range doc.Data.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			PictureURL:  item.PictureURL,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	if doc.Data.PaymentSummary != nil {
		order.PaymentSummary = &domain.PaymentSummary{
			Last4:    doc.Data.PaymentSummary.Last4,
			Brand:    doc.Data.PaymentSummary.Brand,
			ExpMonth: doc.Data.PaymentSummary.ExpMonth,
			ExpYear:  doc.Data.PaymentSummary.ExpYear,
		}
	}
	if doc.Data.RefundedAt != nil {
		refundedAt := doc.Data.RefundedAt.UTC()
		order.RefundedAt = &refundedAt
	}
	return order, nil
}
