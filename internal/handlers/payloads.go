package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/cedarstore/api/internal/domain"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = 16 * 1024
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type cartItemPayload struct {
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName,omitempty"`
	UnitPrice       int64  `json:"unitPrice"`
	Quantity        int    `json:"quantity"`
	PictureURL      string `json:"pictureUrl,omitempty"`
	QuantityInStock int    `json:"quantityInStock,omitempty"`
}

type cartCouponPayload struct {
	CouponID   string  `json:"couponId"`
	AmountOff  int64   `json:"amountOff,omitempty"`
	PercentOff float64 `json:"percentOff,omitempty"`
}

type cartPayload struct {
	ID                string             `json:"id"`
	Items             []cartItemPayload  `json:"items"`
	DeliveryMethodID  string             `json:"deliveryMethodId,omitempty"`
	Coupon            *cartCouponPayload `json:"coupon,omitempty"`
	PaymentIntentID   string             `json:"paymentIntentId,omitempty"`
	ClientSecret      string             `json:"clientSecret,omitempty"`
	SetupIntentID     string             `json:"setupIntentId,omitempty"`
	SetupClientSecret string             `json:"setupClientSecret,omitempty"`
	UpdatedAt         string             `json:"updatedAt,omitempty"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	payload := cartPayload{
		ID:                cart.ID,
		Items:             make([]cartItemPayload, 0, len(cart.Items)),
		DeliveryMethodID:  cart.DeliveryMethodID,
		PaymentIntentID:   cart.PaymentIntentID,
		ClientSecret:      cart.ClientSecret,
		SetupIntentID:     cart.SetupIntentID,
		SetupClientSecret: cart.SetupClientSecret,
		UpdatedAt:         formatTime(cart.UpdatedAt),
	}
	for _, item := range cart.Items {
		payload.Items = append(payload.Items, cartItemPayload{
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			UnitPrice:       item.UnitPrice,
			Quantity:        item.Quantity,
			PictureURL:      item.PictureURL,
			QuantityInStock: item.QuantityInStock,
		})
	}
	if cart.Coupon != nil {
		payload.Coupon = &cartCouponPayload{
			CouponID:   cart.Coupon.CouponID,
			AmountOff:  cart.Coupon.AmountOff,
			PercentOff: cart.Coupon.PercentOff,
		}
	}
	return payload
}

func (p cartPayload) toDomain() domain.Cart {
	cart := domain.Cart{
		ID:               strings.TrimSpace(p.ID),
		Items:            make([]domain.CartItem, 0, len(p.Items)),
		DeliveryMethodID: strings.TrimSpace(p.DeliveryMethodID),
	}
	for _, item := range p.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:       strings.TrimSpace(item.ProductID),
			ProductName:     item.ProductName,
			UnitPrice:       item.UnitPrice,
			Quantity:        item.Quantity,
			PictureURL:      item.PictureURL,
			QuantityInStock: item.QuantityInStock,
		})
	}
	if p.Coupon != nil {
		cart.Coupon = &domain.CartCoupon{
			CouponID:   strings.TrimSpace(p.Coupon.CouponID),
			AmountOff:  p.Coupon.AmountOff,
			PercentOff: p.Coupon.PercentOff,
		}
	}
	return cart
}

type addressPayload struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
}

func buildAddressPayload(address domain.Address) addressPayload {
	return addressPayload{
		Name:       address.Name,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}

func (p addressPayload) toDomain() domain.Address {
	return domain.Address{
		Name:       strings.TrimSpace(p.Name),
		Line1:      strings.TrimSpace(p.Line1),
		Line2:      p.Line2,
		City:       strings.TrimSpace(p.City),
		State:      p.State,
		PostalCode: strings.TrimSpace(p.PostalCode),
		Country:    strings.TrimSpace(p.Country),
	}
}

type deliveryMethodPayload struct {
	ID           string `json:"id"`
	ShortName    string `json:"shortName"`
	Description  string `json:"description,omitempty"`
	DeliveryTime string `json:"deliveryTime,omitempty"`
	Price        int64  `json:"price"`
}

type orderItemPayload struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

type paymentSummaryPayload struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	BuyerEmail      string                 `json:"buyerEmail"`
	ShippingAddress addressPayload         `json:"shippingAddress"`
	DeliveryMethod  deliveryMethodPayload  `json:"deliveryMethod"`
	Items           []orderItemPayload     `json:"items"`
	Subtotal        int64                  `json:"subtotal"`
	Discount        int64                  `json:"discount"`
	Total           int64                  `json:"total"`
	Status          string                 `json:"status"`
	PaymentSummary  *paymentSummaryPayload `json:"paymentSummary,omitempty"`
	RefundedAt      string                 `json:"refundedAt,omitempty"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		BuyerEmail:      order.BuyerEmail,
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		DeliveryMethod: deliveryMethodPayload{
			ID:           order.DeliveryMethod.ID,
			ShortName:    order.DeliveryMethod.ShortName,
			Description:  order.DeliveryMethod.Description,
			DeliveryTime: order.DeliveryMethod.DeliveryTime,
			Price:        order.DeliveryMethod.Price,
		},
		Items:     make([]orderItemPayload, 0, len(order.Items)),
		Subtotal:  order.Subtotal,
		Discount:  order.Discount,
		Total:     order.Total(),
		Status:    string(order.Status),
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			PictureURL:  item.PictureURL,
		})
	}
	if order.PaymentSummary != nil {
		payload.PaymentSummary = &paymentSummaryPayload{
			Brand:    order.PaymentSummary.Brand,
			Last4:    order.PaymentSummary.Last4,
			ExpMonth: order.PaymentSummary.ExpMonth,
			ExpYear:  order.PaymentSummary.ExpYear,
		}
	}
	if order.RefundedAt != nil {
		payload.RefundedAt = formatTime(*order.RefundedAt)
	}
	return payload
}

type orderListPayload struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func buildOrderListPayload(page domain.CursorPage[domain.Order]) orderListPayload {
	payload := orderListPayload{Orders: make([]orderPayload, 0, len(page.Items))}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	payload.NextPageToken = page.NextPageToken
	return payload
}
