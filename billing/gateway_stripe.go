package billing

import (
	"context"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/account"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/payout"
	"github.com/stripe/stripe-go/v74/transfer"
)

// StripeGateway implements Gateway against the live Stripe API. The API key
// is set process-wide by config at startup.
type StripeGateway struct{}

func NewStripeGateway() *StripeGateway {
	return &StripeGateway{}
}

func (s *StripeGateway) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	piParams := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(params.AmountPence),
		Currency:    stripe.String(params.Currency),
		Customer:    stripe.String(params.CustomerId),
		Description: stripe.String(params.Description),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}
	if params.PaymentMethodId != "" {
		piParams.PaymentMethod = stripe.String(params.PaymentMethodId)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, err
	}
	return intentFromStripe(pi), nil
}

func (s *StripeGateway) ConfirmIntent(ctx context.Context, intentId string, paymentMethodId string) (*Intent, error) {
	confirmParams := &stripe.PaymentIntentConfirmParams{
		Params:     stripe.Params{Context: ctx},
		OffSession: stripe.Bool(true),
	}
	if paymentMethodId != "" {
		confirmParams.PaymentMethod = stripe.String(paymentMethodId)
	}

	pi, err := paymentintent.Confirm(intentId, confirmParams)
	if err != nil {
		// Stripe still returns the intent alongside card errors; surface it so
		// callers can read requires_action state off the declined confirm.
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.PaymentIntent != nil {
			return intentFromStripe(stripeErr.PaymentIntent), err
		}
		return nil, err
	}
	return intentFromStripe(pi), nil
}

func (s *StripeGateway) GetIntent(ctx context.Context, intentId string) (*Intent, error) {
	pi, err := paymentintent.Get(intentId, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, err
	}
	return intentFromStripe(pi), nil
}

func (s *StripeGateway) CreateTransfer(ctx context.Context, params TransferParams) (string, error) {
	t, err := transfer.New(&stripe.TransferParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(params.AmountPence),
		Currency:    stripe.String(params.Currency),
		Destination: stripe.String(params.DestinationAccount),
		TransferGroup: stripe.String(params.TransferGroup),
		Description:   stripe.String(params.Description),
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

func (s *StripeGateway) CreatePayout(ctx context.Context, amountPence int64, currency string, stripeAccountId string) (string, error) {
	p, err := payout.New(&stripe.PayoutParams{
		Params: stripe.Params{
			Context:       ctx,
			StripeAccount: stripe.String(stripeAccountId),
		},
		Amount:   stripe.Int64(amountPence),
		Currency: stripe.String(currency),
	})
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func (s *StripeGateway) GetAccount(ctx context.Context, accountId string) (*ConnectedAccount, error) {
	acct, err := account.GetByID(accountId, &stripe.AccountParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, err
	}
	return &ConnectedAccount{
		ID:               acct.ID,
		TransfersActive:  acct.Capabilities != nil && acct.Capabilities.Transfers == stripe.AccountCapabilityStatusActive,
		PayoutsActive:    acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	out := &Intent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		AmountPence:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.Customer != nil {
		out.CustomerId = pi.Customer.ID
	}
	if pi.LastPaymentError != nil {
		out.FailureCode = string(pi.LastPaymentError.DeclineCode)
		if out.FailureCode == "" {
			out.FailureCode = string(pi.LastPaymentError.Code)
		}
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out
}
