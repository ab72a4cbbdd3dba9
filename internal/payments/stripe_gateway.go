package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe gateway operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Update(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type stripeSetupIntentAPI interface {
	New(params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
	Get(id string, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents      stripePaymentIntentAPI
	setupIntents stripeSetupIntentAPI
	refunds      stripeRefundAPI
}

const defaultGatewayCallTimeout = 20 * time.Second

// StripeGatewayConfig configures the StripeGateway.
type StripeGatewayConfig struct {
	APIKey      string
	Backends    *stripe.Backends
	Logger      StripeLogger
	MaxAttempts int
	Backoff     time.Duration
	// Timeout bounds each gateway operation, retries included.
	Timeout time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
	Clients *stripeClients
}

// StripeGateway implements Gateway using the Stripe APIs. Transient failures
// are retried with exponential backoff before surfacing to the caller.
type StripeGateway struct {
	api         stripeClients
	logger      StripeLogger
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewStripeGateway constructs a Stripe-backed Gateway using the given configuration.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents:      sc.PaymentIntents,
			setupIntents: sc.SetupIntents,
			refunds:      sc.Refunds,
		}
	}

	if clients.intents == nil || clients.setupIntents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayCallTimeout
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	return &StripeGateway{
		api:         clients,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		timeout:     timeout,
		sleep:       sleep,
	}, nil
}

// callContext bounds a single gateway operation, retries included.
func (g *StripeGateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

func methodTypes(types []string) []string {
	if len(types) == 0 {
		return DefaultPaymentMethodTypes
	}
	return types
}

// CreatePaymentIntent creates a payment intent for the given amount.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (PaymentIntent, error) {
	if g == nil {
		return PaymentIntent{}, errors.New("stripe: gateway is nil")
	}
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	var intent *stripe.PaymentIntent
	err := g.withRetry(ctx, "intent.create", func() error {
		params := &stripe.PaymentIntentParams{
			Amount:             stripe.Int64(req.Amount),
			Currency:           stripe.String(strings.ToLower(req.Currency)),
			PaymentMethodTypes: stripe.StringSlice(methodTypes(req.PaymentMethodTypes)),
		}
		params.Context = ctx
		if cartID := strings.TrimSpace(req.CartID); cartID != "" {
			params.Metadata = map[string]string{"cartId": cartID}
		}

		var err error
		intent, err = g.api.intents.New(params)
		return err
	})
	if err != nil {
		return PaymentIntent{}, err
	}

	g.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
	})
	return stripePaymentIntent(intent), nil
}

// UpdatePaymentIntent changes the amount of an existing payment intent.
func (g *StripeGateway) UpdatePaymentIntent(ctx context.Context, id string, amount int64) (PaymentIntent, error) {
	if g == nil {
		return PaymentIntent{}, errors.New("stripe: gateway is nil")
	}
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	var intent *stripe.PaymentIntent
	err := g.withRetry(ctx, "intent.update", func() error {
		params := &stripe.PaymentIntentParams{
			Amount: stripe.Int64(amount),
		}
		params.Context = ctx

		var err error
		intent, err = g.api.intents.Update(id, params)
		return err
	})
	if err != nil {
		return PaymentIntent{}, err
	}

	g.logger(ctx, "payments.stripe.intent.updated", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
	})
	return stripePaymentIntent(intent), nil
}

// GetPaymentIntent retrieves a payment intent including its latest charge.
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (PaymentIntent, error) {
	if g == nil {
		return PaymentIntent{}, errors.New("stripe: gateway is nil")
	}
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	var intent *stripe.PaymentIntent
	err := g.withRetry(ctx, "intent.get", func() error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		params.AddExpand("latest_charge")

		var err error
		intent, err = g.api.intents.Get(id, params)
		return err
	})
	if err != nil {
		return PaymentIntent{}, err
	}
	return stripePaymentIntent(intent), nil
}

// CancelPaymentIntent cancels a payment intent.
func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, id string) error {
	if g == nil {
		return errors.New("stripe: gateway is nil")
	}
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	err := g.withRetry(ctx, "intent.cancel", func() error {
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx

		_, err := g.api.intents.Cancel(id, params)
		return err
	})
	if err != nil {
		return err
	}

	g.logger(ctx, "payments.stripe.intent.canceled", map[string]any{
		"paymentIntent": id,
	})
	return nil
}

// CreateSetupIntent creates a setup intent for collecting a payment method.
func (g *StripeGateway) CreateSetupIntent(ctx context.Context, req CreateSetupIntentRequest) (SetupIntent, error) {
	if g == nil {
		return SetupIntent{}, errors.New("stripe: gateway is nil")
	}
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	usage := req.Usage
	if usage == "" {
		usage = SetupUsageOffSession
	}

	var intent *stripe.SetupIntent
	err := g.withRetry(ctx, "setup.create", func() error {
		params := &stripe.SetupIntentParams{
			PaymentMethodTypes: stripe.StringSlice(methodTypes(req.PaymentMethodTypes)),
			Usage:              stripe.String(usage),
		}
		params.Context = ctx
		if cartID := strings.TrimSpace(req.CartID); cartID != "" {
			params.Metadata = map[string]string{"cartId": cartID}
		}

		var err error
		intent, err = g.api.setupIntents.New(params)
		return err
	})
	if err != nil {
		return SetupIntent{}, err
	}

	g.logger(ctx, "payments.stripe.setup.created", map[string]any{
		"setupIntent": intent.ID,
	})
	return stripeSetupIntent(intent), nil
}

// GetSetupIntent retrieves a setup intent.
func (g *StripeGateway) GetSetupIntent(ctx context.Context, id string) (SetupIntent, error) {
	if g == nil {
		return SetupIntent{}, errors.New("stripe: gateway is nil")
	}
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	var intent *stripe.SetupIntent
	err := g.withRetry(ctx, "setup.get", func() error {
		params := &stripe.SetupIntentParams{}
		params.Context = ctx

		var err error
		intent, err = g.api.setupIntents.Get(id, params)
		return err
	})
	if err != nil {
		return SetupIntent{}, err
	}
	return stripeSetupIntent(intent), nil
}

// Refund refunds the full amount of a payment intent.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (Refund, error) {
	if g == nil {
		return Refund{}, errors.New("stripe: gateway is nil")
	}
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	var refund *stripe.Refund
	err := g.withRetry(ctx, "refund.create", func() error {
		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(req.PaymentIntentID),
		}
		params.Context = ctx
		if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
			params.SetIdempotencyKey(key)
		}

		var err error
		refund, err = g.api.refunds.New(params)
		return err
	})
	if err != nil {
		return Refund{}, err
	}

	g.logger(ctx, "payments.stripe.refund.created", map[string]any{
		"paymentIntent": req.PaymentIntentID,
		"refund":        refund.ID,
	})
	return Refund{ID: refund.ID, Status: string(refund.Status)}, nil
}

// withRetry runs fn, retrying transient failures with exponential backoff.
// The returned error is always a classified *GatewayError.
func (g *StripeGateway) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := g.backoff
	var lastErr *GatewayError
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = classifyStripeError(err)
		if lastErr.Outcome != OutcomeTransientFailure || attempt == g.maxAttempts {
			break
		}

		g.logger(ctx, "payments.stripe.retry", map[string]any{
			"op":      op,
			"attempt": attempt,
			"code":    lastErr.Code,
		})
		if err := g.sleep(ctx, delay); err != nil {
			return &GatewayError{Outcome: OutcomeTransientFailure, Err: err}
		}
		delay *= 2
	}
	return lastErr
}

func classifyStripeError(err error) *GatewayError {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &GatewayError{Outcome: OutcomeTransientFailure, Err: err}
		}
		return &GatewayError{Outcome: OutcomeOtherFailure, Err: err}
	}

	code := string(stripeErr.Code)
	switch stripeErr.Code {
	case stripe.ErrorCodeAmountTooSmall:
		return &GatewayError{Outcome: OutcomeAmountTooSmall, Code: code, Err: err}
	case stripe.ErrorCodeResourceMissing:
		return &GatewayError{Outcome: OutcomeResourceMissing, Code: code, Err: err}
	}

	if stripeErr.HTTPStatusCode == 429 || stripeErr.HTTPStatusCode >= 500 {
		return &GatewayError{Outcome: OutcomeTransientFailure, Code: code, Err: err}
	}
	return &GatewayError{Outcome: OutcomeOtherFailure, Code: code, Err: err}
}

func stripePaymentIntent(intent *stripe.PaymentIntent) PaymentIntent {
	if intent == nil {
		return PaymentIntent{}
	}

	out := PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     strings.ToLower(string(intent.Currency)),
		Status:       string(intent.Status),
	}

	if charge := intent.LatestCharge; charge != nil && charge.PaymentMethodDetails != nil && charge.PaymentMethodDetails.Card != nil {
		card := charge.PaymentMethodDetails.Card
		out.Card = &CardDetails{
			Brand:    string(card.Brand),
			Last4:    card.Last4,
			ExpMonth: card.ExpMonth,
			ExpYear:  card.ExpYear,
		}
	}
	return out
}

func stripeSetupIntent(intent *stripe.SetupIntent) SetupIntent {
	if intent == nil {
		return SetupIntent{}
	}
	return SetupIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
