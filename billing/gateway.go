package billing

import "context"

// IntentStatus values mirror Stripe PaymentIntent statuses we act on.
const (
	IntentStatusRequiresAction        = "requires_action"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusProcessing            = "processing"
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
)

// Intent is the provider-neutral view of a payment intent. Handlers work
// against this so tests can run without Stripe.
type Intent struct {
	ID           string
	Status       string
	ClientSecret string
	AmountPence  int64
	Currency     string
	CustomerId   string
	Metadata     map[string]string

	FailureCode    string
	FailureMessage string
}

type CreateIntentParams struct {
	AmountPence     int64
	Currency        string
	CustomerId      string
	PaymentMethodId string
	Description     string
	Metadata        map[string]string
}

type TransferParams struct {
	AmountPence        int64
	Currency           string
	DestinationAccount string
	// TransferGroup ties the transfer back to the originating payment.
	TransferGroup string
	Description   string
}

type ConnectedAccount struct {
	ID               string
	TransfersActive  bool
	PayoutsActive    bool
	DetailsSubmitted bool
}

// Gateway is the payment provider surface the engine depends on.
type Gateway interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	// ConfirmIntent confirms off-session against the saved payment method.
	ConfirmIntent(ctx context.Context, intentId string, paymentMethodId string) (*Intent, error)
	GetIntent(ctx context.Context, intentId string) (*Intent, error)
	CreateTransfer(ctx context.Context, params TransferParams) (string, error)
	CreatePayout(ctx context.Context, amountPence int64, currency string, stripeAccountId string) (string, error)
	GetAccount(ctx context.Context, accountId string) (*ConnectedAccount, error)
}
