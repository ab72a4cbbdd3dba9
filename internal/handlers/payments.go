package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cedarstore/api/internal/platform/httpx"
	"github.com/cedarstore/api/internal/services"
)

const (
	reconcileRateLimit  = 30
	reconcileRateWindow = time.Minute
)

// PaymentHandlers exposes the payment reconciliation endpoint.
type PaymentHandlers struct {
	payments services.PaymentService
	limiter  rateLimiter
}

// NewPaymentHandlers constructs the payment endpoint handlers. Reconciliation
// talks to the payment gateway, so requests are rate limited per cart.
func NewPaymentHandlers(payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{
		payments: payments,
		limiter:  newSimpleRateLimiter(reconcileRateLimit, reconcileRateWindow, time.Now),
	}
}

// Routes wires the /payments endpoints onto the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{cartID}", h.reconcile)
}

func (h *PaymentHandlers) reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cartID := strings.TrimSpace(chi.URLParam(r, "cartID"))
	if cartID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cart id is required", http.StatusBadRequest))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(cartID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many reconcile requests for this cart", http.StatusTooManyRequests))
		return
	}

	cart, err := h.payments.Reconcile(ctx, cartID)
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *PaymentHandlers) writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPaymentCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentReferenceMissing):
		httpx.WriteError(ctx, w, httpx.NewError("reference_missing", "cart references missing catalog data", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPaymentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_unavailable", "payment reconciliation is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
