package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type fakeIntentAPI struct {
	newFn    func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	updateFn func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getFn    func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	cancelFn func(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

func (f *fakeIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.newFn(params)
}

func (f *fakeIntentAPI) Update(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.updateFn(id, params)
}

func (f *fakeIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.getFn(id, params)
}

func (f *fakeIntentAPI) Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	return f.cancelFn(id, params)
}

type fakeSetupAPI struct {
	newFn func(params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
	getFn func(id string, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
}

func (f *fakeSetupAPI) New(params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
	return f.newFn(params)
}

func (f *fakeSetupAPI) Get(id string, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
	return f.getFn(id, params)
}

type fakeRefundAPI struct {
	newFn func(params *stripe.RefundParams) (*stripe.Refund, error)
}

func (f *fakeRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	return f.newFn(params)
}

func newTestGateway(t *testing.T, clients stripeClients) *StripeGateway {
	t.Helper()
	if clients.setupIntents == nil {
		clients.setupIntents = &fakeSetupAPI{}
	}
	if clients.refunds == nil {
		clients.refunds = &fakeRefundAPI{}
	}
	if clients.intents == nil {
		clients.intents = &fakeIntentAPI{}
	}
	gw, err := NewStripeGateway(StripeGatewayConfig{
		Clients: &clients,
		Backoff: time.Millisecond,
		Sleep:   func(context.Context, time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("NewStripeGateway: %v", err)
	}
	return gw
}

func TestCreatePaymentIntentMapsFields(t *testing.T) {
	intents := &fakeIntentAPI{
		newFn: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			if *params.Amount != 7300 {
				t.Fatalf("expected amount 7300, got %d", *params.Amount)
			}
			if *params.Currency != "usd" {
				t.Fatalf("expected currency usd, got %s", *params.Currency)
			}
			if params.Metadata["cartId"] != "cart-1" {
				t.Fatalf("expected cart metadata, got %#v", params.Metadata)
			}
			if len(params.PaymentMethodTypes) != 1 || *params.PaymentMethodTypes[0] != "card" {
				t.Fatalf("expected card-only method types, got %#v", params.PaymentMethodTypes)
			}
			return &stripe.PaymentIntent{
				ID:           "pi_123",
				ClientSecret: "pi_123_secret",
				Amount:       7300,
				Currency:     "usd",
				Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
			}, nil
		},
	}

	gw := newTestGateway(t, stripeClients{intents: intents})

	intent, err := gw.CreatePaymentIntent(context.Background(), CreatePaymentIntentRequest{
		Amount:   7300,
		Currency: "USD",
		CartID:   "cart-1",
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent %#v", intent)
	}
	if intent.Amount != 7300 || intent.Currency != "usd" {
		t.Fatalf("unexpected amount/currency %#v", intent)
	}
}

func TestUpdatePaymentIntentClassifiesResourceMissing(t *testing.T) {
	intents := &fakeIntentAPI{
		updateFn: func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return nil, &stripe.Error{
				Code:           stripe.ErrorCodeResourceMissing,
				HTTPStatusCode: 404,
			}
		},
	}

	gw := newTestGateway(t, stripeClients{intents: intents})

	_, err := gw.UpdatePaymentIntent(context.Background(), "pi_gone", 500)
	if err == nil {
		t.Fatal("expected error")
	}
	if OutcomeOf(err) != OutcomeResourceMissing {
		t.Fatalf("expected resource missing outcome, got %v", OutcomeOf(err))
	}
}

func TestUpdatePaymentIntentClassifiesAmountTooSmall(t *testing.T) {
	intents := &fakeIntentAPI{
		updateFn: func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return nil, &stripe.Error{
				Code:           stripe.ErrorCodeAmountTooSmall,
				HTTPStatusCode: 400,
			}
		},
	}

	gw := newTestGateway(t, stripeClients{intents: intents})

	_, err := gw.UpdatePaymentIntent(context.Background(), "pi_123", 30)
	if OutcomeOf(err) != OutcomeAmountTooSmall {
		t.Fatalf("expected amount too small outcome, got %v", OutcomeOf(err))
	}
}

func TestWithRetryRetriesTransientFailures(t *testing.T) {
	calls := 0
	intents := &fakeIntentAPI{
		newFn: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			calls++
			if calls < 3 {
				return nil, &stripe.Error{HTTPStatusCode: 503}
			}
			return &stripe.PaymentIntent{ID: "pi_ok", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, nil
		},
	}

	gw := newTestGateway(t, stripeClients{intents: intents})

	intent, err := gw.CreatePaymentIntent(context.Background(), CreatePaymentIntentRequest{Amount: 1000, Currency: "usd"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if intent.ID != "pi_ok" {
		t.Fatalf("unexpected intent %#v", intent)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	intents := &fakeIntentAPI{
		newFn: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			calls++
			return nil, &stripe.Error{HTTPStatusCode: 503}
		},
	}

	gw := newTestGateway(t, stripeClients{intents: intents})

	_, err := gw.CreatePaymentIntent(context.Background(), CreatePaymentIntentRequest{Amount: 1000, Currency: "usd"})
	if OutcomeOf(err) != OutcomeTransientFailure {
		t.Fatalf("expected transient outcome, got %v", OutcomeOf(err))
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithRetryDoesNotRetryBusinessErrors(t *testing.T) {
	calls := 0
	intents := &fakeIntentAPI{
		updateFn: func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			calls++
			return nil, &stripe.Error{Code: stripe.ErrorCodeAmountTooSmall, HTTPStatusCode: 400}
		},
	}

	gw := newTestGateway(t, stripeClients{intents: intents})

	_, _ = gw.UpdatePaymentIntent(context.Background(), "pi_123", 30)
	if calls != 1 {
		t.Fatalf("expected single attempt for business error, got %d", calls)
	}
}

func TestGetPaymentIntentExtractsCardDetails(t *testing.T) {
	intents := &fakeIntentAPI{
		getFn: func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return &stripe.PaymentIntent{
				ID:     id,
				Amount: 7300,
				Status: stripe.PaymentIntentStatusSucceeded,
				LatestCharge: &stripe.Charge{
					PaymentMethodDetails: &stripe.ChargePaymentMethodDetails{
						Card: &stripe.ChargePaymentMethodDetailsCard{
							Brand:    stripe.PaymentMethodCardBrandVisa,
							Last4:    "4242",
							ExpMonth: 12,
							ExpYear:  2030,
						},
					},
				},
			}, nil
		},
	}

	gw := newTestGateway(t, stripeClients{intents: intents})

	intent, err := gw.GetPaymentIntent(context.Background(), "pi_123")
	if err != nil {
		t.Fatalf("GetPaymentIntent: %v", err)
	}
	if intent.Card == nil {
		t.Fatal("expected card details")
	}
	if intent.Card.Last4 != "4242" || intent.Card.Brand != "visa" {
		t.Fatalf("unexpected card %#v", intent.Card)
	}
}

func TestRefundSetsIdempotencyKey(t *testing.T) {
	var gotKey string
	refunds := &fakeRefundAPI{
		newFn: func(params *stripe.RefundParams) (*stripe.Refund, error) {
			gotKey = *params.IdempotencyKey
			return &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded}, nil
		},
	}

	gw := newTestGateway(t, stripeClients{refunds: refunds})

	refund, err := gw.Refund(context.Background(), RefundRequest{PaymentIntentID: "pi_123", IdempotencyKey: "refund-ord-1"})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refund.ID != "re_1" {
		t.Fatalf("unexpected refund %#v", refund)
	}
	if gotKey != "refund-ord-1" {
		t.Fatalf("expected idempotency key, got %q", gotKey)
	}
}

func TestCreateSetupIntentSendsCardOffSession(t *testing.T) {
	setups := &fakeSetupAPI{
		newFn: func(params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
			if len(params.PaymentMethodTypes) != 1 || *params.PaymentMethodTypes[0] != "card" {
				t.Fatalf("expected card-only method types, got %#v", params.PaymentMethodTypes)
			}
			if params.Usage == nil || *params.Usage != "off_session" {
				t.Fatalf("expected off_session usage, got %#v", params.Usage)
			}
			return &stripe.SetupIntent{
				ID:           "seti_1",
				ClientSecret: "seti_1_secret",
				Status:       stripe.SetupIntentStatusRequiresPaymentMethod,
			}, nil
		},
	}

	gw := newTestGateway(t, stripeClients{setupIntents: setups})

	intent, err := gw.CreateSetupIntent(context.Background(), CreateSetupIntentRequest{CartID: "cart-1"})
	if err != nil {
		t.Fatalf("CreateSetupIntent: %v", err)
	}
	if intent.ID != "seti_1" || intent.ClientSecret != "seti_1_secret" {
		t.Fatalf("unexpected setup intent %#v", intent)
	}
}

func TestGatewayCallsCarryBoundedDeadline(t *testing.T) {
	const timeout = 15 * time.Second

	intents := &fakeIntentAPI{
		newFn: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			deadline, ok := params.Context.Deadline()
			if !ok {
				t.Fatal("expected a deadline on the gateway call context")
			}
			if remaining := time.Until(deadline); remaining > timeout {
				t.Fatalf("deadline exceeds configured timeout: %s", remaining)
			}
			return &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, nil
		},
	}

	gw, err := NewStripeGateway(StripeGatewayConfig{
		Clients: &stripeClients{
			intents:      intents,
			setupIntents: &fakeSetupAPI{},
			refunds:      &fakeRefundAPI{},
		},
		Timeout: timeout,
		Backoff: time.Millisecond,
		Sleep:   func(context.Context, time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("NewStripeGateway: %v", err)
	}

	if _, err := gw.CreatePaymentIntent(context.Background(), CreatePaymentIntentRequest{Amount: 7300, Currency: "usd"}); err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
}

func TestOutcomeOfUnclassifiedError(t *testing.T) {
	if OutcomeOf(errors.New("boom")) != OutcomeOtherFailure {
		t.Fatal("expected other failure for plain error")
	}
	if OutcomeOf(nil) != OutcomeOk {
		t.Fatal("expected ok outcome for nil error")
	}
}
