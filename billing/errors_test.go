package billing

import (
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v74"
)

func TestClassifyStripeError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want DeclineKind
	}{
		{
			name: "authentication required",
			err:  &stripe.Error{Code: stripe.ErrorCodeAuthenticationRequired, Type: stripe.ErrorTypeCard},
			want: DeclineKindAuthenticationRequired,
		},
		{
			name: "card declined",
			err:  &stripe.Error{Code: stripe.ErrorCodeCardDeclined, Type: stripe.ErrorTypeCard, DeclineCode: stripe.DeclineCodeInsufficientFunds},
			want: DeclineKindCard,
		},
		{
			name: "stripe api outage",
			err:  &stripe.Error{Type: stripe.ErrorTypeAPI},
			want: DeclineKindTransient,
		},
		{
			name: "rate limited",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 429},
			want: DeclineKindTransient,
		},
		{
			name: "network failure",
			err:  errors.New("dial tcp: i/o timeout"),
			want: DeclineKindTransient,
		},
		{
			name: "invalid request",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 400},
			want: DeclineKindUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyStripeError(tc.err); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeclineDetailPrefersDeclineCode(t *testing.T) {
	err := &stripe.Error{
		Code:        stripe.ErrorCodeCardDeclined,
		DeclineCode: stripe.DeclineCodeInsufficientFunds,
		Msg:         "Your card has insufficient funds.",
	}
	code, msg := DeclineDetail(err)
	if code != string(stripe.DeclineCodeInsufficientFunds) {
		t.Errorf("code = %q, want decline code", code)
	}
	if msg != "Your card has insufficient funds." {
		t.Errorf("msg = %q", msg)
	}
}

func TestDeclineDetailFallsBackToErrorCode(t *testing.T) {
	err := &stripe.Error{Code: stripe.ErrorCodeExpiredCard, Msg: "Your card has expired."}
	code, _ := DeclineDetail(err)
	if code != string(stripe.ErrorCodeExpiredCard) {
		t.Errorf("code = %q, want error code fallback", code)
	}
}

func TestDeclineDetailNonStripe(t *testing.T) {
	code, msg := DeclineDetail(errors.New("boom"))
	if code != "" || msg != "boom" {
		t.Errorf("got (%q, %q)", code, msg)
	}
}
