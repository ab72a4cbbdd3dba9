package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/cedarstore/api/internal/domain"
	"github.com/cedarstore/api/internal/platform/httpx"
	"github.com/cedarstore/api/internal/platform/pagination"
	"github.com/cedarstore/api/internal/platform/requestctx"
	"github.com/cedarstore/api/internal/services"
)

const maxOrderBodySize = 32 * 1024

type createOrderRequest struct {
	CartID          string          `json:"cartId"`
	ShippingAddress *addressPayload `json:"shippingAddress"`
}

// OrderHandlers exposes buyer-scoped order endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs the order endpoint handlers.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(RequireBuyer())
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, _ := requestctx.PrincipalFromContext(ctx)

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}
	if req.ShippingAddress == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shippingAddress is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Create(ctx, services.CreateOrderCommand{
		CartID:          strings.TrimSpace(req.CartID),
		BuyerEmail:      principal.BuyerEmail,
		ShippingAddress: req.ShippingAddress.toDomain(),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, _ := requestctx.PrincipalFromContext(ctx)

	query, err := parseOrderListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.List(ctx, principal.BuyerEmail, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, _ := requestctx.PrincipalFromContext(ctx)

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetByID(ctx, principal.BuyerEmail, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func parseOrderListQuery(r *http.Request) (services.OrderListQuery, error) {
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		return services.OrderListQuery{}, err
	}

	query := services.OrderListQuery{
		Pager: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.OrderStatus(strings.ToLower(raw))
		if !status.Valid() {
			return services.OrderListQuery{}, errors.New("status filter is not a recognised order status")
		}
		query.Status = &status
	}
	return query, nil
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderPaymentRequired):
		httpx.WriteError(ctx, w, httpx.NewError("payment_required", "cart has no payment intent", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrOrderPaymentSummaryMissing):
		httpx.WriteError(ctx, w, httpx.NewError("payment_summary_missing", "payment method details are not available yet", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrOrderReferenceMissing):
		httpx.WriteError(ctx, w, httpx.NewError("order_reference_problem", "there was a problem with the order", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderDuplicateSubmission):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_submission", "an identical order submission is already in flight", http.StatusConflict))
	case errors.Is(err, services.ErrOrderAlreadyRefunded):
		httpx.WriteError(ctx, w, httpx.NewError("already_refunded", "order has already been refunded", http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "order was modified concurrently", http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderRefundFailed):
		httpx.WriteError(ctx, w, httpx.NewError("refund_failed", "payment gateway rejected the refund", http.StatusBadGateway))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order storage is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
