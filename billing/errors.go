package billing

import (
	"errors"

	"github.com/stripe/stripe-go/v74"
)

var (
	ErrGigNotPayable     = errors.New("gig has no accepted applicant to pay")
	ErrGigAlreadyPaid    = errors.New("gig is already paid")
	ErrFeeNotFound       = errors.New("no fee recorded for this payment")
	ErrFeeInDispute      = errors.New("fee is under dispute and cannot be cleared")
	ErrFeeNotCleared     = errors.New("fee has not reached its clearing time")
	ErrNothingToWithdraw = errors.New("no withdrawable earnings")
	ErrTransfersInactive = errors.New("stripe account cannot receive transfers")
	ErrMissingBandAdmin  = errors.New("band profile has no admin musician linked")
)

// DeclineKind buckets provider failures into how the caller should react.
type DeclineKind string

const (
	// DeclineKindAuthenticationRequired means the card needs 3DS; the client
	// must complete the action with the intent's client secret.
	DeclineKindAuthenticationRequired DeclineKind = "authentication_required"
	// DeclineKindCard is a hard decline the venue must fix (new card, bank).
	DeclineKindCard DeclineKind = "card_declined"
	// DeclineKindTransient is retriable without user involvement.
	DeclineKindTransient DeclineKind = "transient"
	DeclineKindUnknown   DeclineKind = "unknown"
)

// ClassifyStripeError maps a Stripe API error to a decline kind. Anything
// that is not a stripe.Error is treated as transient (network, timeouts).
func ClassifyStripeError(err error) DeclineKind {
	if err == nil {
		return DeclineKindUnknown
	}
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return DeclineKindTransient
	}
	if stripeErr.Code == stripe.ErrorCodeAuthenticationRequired {
		return DeclineKindAuthenticationRequired
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		return DeclineKindCard
	case stripe.ErrorTypeAPI:
		return DeclineKindTransient
	}
	if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429 {
		return DeclineKindTransient
	}
	return DeclineKindUnknown
}

// DeclineDetail pulls a stable (code, message) pair out of a Stripe error
// for persisting on the payment row. Decline codes are more specific than
// error codes, so they win when present.
func DeclineDetail(err error) (code string, message string) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		if err != nil {
			return "", err.Error()
		}
		return "", ""
	}
	code = string(stripeErr.DeclineCode)
	if code == "" {
		code = string(stripeErr.Code)
	}
	return code, stripeErr.Msg
}
