// Package payments abstracts the payment gateway used by checkout.
package payments

import (
	"context"
	"errors"
	"fmt"
)

// Outcome classifies gateway failures into the categories the checkout
// state machine reacts to. Anything the gateway returns maps onto exactly
// one of these values.
type Outcome int

const (
	// OutcomeOk means the call succeeded.
	OutcomeOk Outcome = iota
	// OutcomeAmountTooSmall means the charge amount is below the gateway minimum.
	OutcomeAmountTooSmall
	// OutcomeResourceMissing means the referenced gateway object no longer exists.
	OutcomeResourceMissing
	// OutcomeTransientFailure means the call may succeed if retried.
	OutcomeTransientFailure
	// OutcomeOtherFailure covers every other gateway error.
	OutcomeOtherFailure
)

// String returns a stable label for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeAmountTooSmall:
		return "amount_too_small"
	case OutcomeResourceMissing:
		return "resource_missing"
	case OutcomeTransientFailure:
		return "transient_failure"
	default:
		return "other_failure"
	}
}

// GatewayError carries the classified outcome alongside the underlying error.
type GatewayError struct {
	Outcome Outcome
	Code    string
	Err     error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("payments: %s (%s): %v", e.Outcome, e.Code, e.Err)
	}
	return fmt.Sprintf("payments: %s: %v", e.Outcome, e.Err)
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// OutcomeOf extracts the classified outcome from an error. A nil error is
// OutcomeOk; unclassified errors count as OutcomeOtherFailure.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOk
	}
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Outcome
	}
	return OutcomeOtherFailure
}

// CardDetails summarises the card attached to a completed payment.
type CardDetails struct {
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// PaymentIntent is the gateway-neutral view of a payment intent.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
	Card         *CardDetails
}

// SetupIntent is the gateway-neutral view of a setup intent.
type SetupIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Refund is the gateway-neutral view of a refund.
type Refund struct {
	ID     string
	Status string
}

// DefaultPaymentMethodTypes restricts intents to card payments.
var DefaultPaymentMethodTypes = []string{"card"}

// SetupUsageOffSession marks a setup intent for charging the stored
// payment method later without the buyer present.
const SetupUsageOffSession = "off_session"

// CreatePaymentIntentRequest describes a new payment intent.
type CreatePaymentIntentRequest struct {
	Amount   int64
	Currency string
	CartID   string
	// PaymentMethodTypes limits the methods the intent accepts.
	// Empty means DefaultPaymentMethodTypes.
	PaymentMethodTypes []string
}

// CreateSetupIntentRequest describes a new setup intent.
type CreateSetupIntentRequest struct {
	CartID string
	// PaymentMethodTypes limits the methods the intent accepts.
	// Empty means DefaultPaymentMethodTypes.
	PaymentMethodTypes []string
	// Usage defaults to SetupUsageOffSession.
	Usage string
}

// RefundRequest describes a refund against a payment intent.
type RefundRequest struct {
	PaymentIntentID string
	IdempotencyKey  string
}

// Gateway is the payment provider contract used by the checkout services.
// Implementations classify every failure as a GatewayError so callers can
// switch on the Outcome without knowing provider error shapes.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, id string, amount int64) (PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) error
	CreateSetupIntent(ctx context.Context, req CreateSetupIntentRequest) (SetupIntent, error)
	GetSetupIntent(ctx context.Context, id string) (SetupIntent, error)
	Refund(ctx context.Context, req RefundRequest) (Refund, error)
}
