package billing

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
)

// NOTE: These tests are intentionally DB-free and Stripe-free. They validate
// the dispatch semantics: routing by event type, dedupe on event id, and
// acking unknown events. Signature verification is Stripe library code.

func paymentIntentEvent(t *testing.T, eventType string, id string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":     "pi_123",
		"amount": 10000,
		"metadata": map[string]string{
			MetaGigId:               "gig-1",
			MetaRecipientMusicianId: "mus-1",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &stripe.Event{
		ID:   id,
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func newTestProcessor() (*WebhookProcessor, *[]string) {
	var calls []string
	seen := map[string]bool{}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	p := &WebhookProcessor{
		Logger: quiet,
		OnSucceeded: func(ctx context.Context, intent *Intent) error {
			calls = append(calls, "succeeded:"+intent.ID)
			return nil
		},
		OnFailed: func(ctx context.Context, intent *Intent) error {
			calls = append(calls, "failed:"+intent.ID)
			return nil
		},
		OnAccountUpdated: func(ctx context.Context, acct *ConnectedAccount) error {
			calls = append(calls, "account:"+acct.ID)
			return nil
		},
		MarkSeen: func(eventId string) (bool, error) {
			if seen[eventId] {
				return false, nil
			}
			seen[eventId] = true
			return true, nil
		},
	}
	return p, &calls
}

func TestDispatchRoutesPaymentEvents(t *testing.T) {
	p, calls := newTestProcessor()
	ctx := context.Background()

	if err := p.dispatch(ctx, paymentIntentEvent(t, "payment_intent.succeeded", "evt_1")); err != nil {
		t.Fatal(err)
	}
	if err := p.dispatch(ctx, paymentIntentEvent(t, "payment_intent.payment_failed", "evt_2")); err != nil {
		t.Fatal(err)
	}

	want := []string{"succeeded:pi_123", "failed:pi_123"}
	if len(*calls) != 2 || (*calls)[0] != want[0] || (*calls)[1] != want[1] {
		t.Errorf("calls = %v, want %v", *calls, want)
	}
}

func TestDispatchDedupesByEventId(t *testing.T) {
	p, calls := newTestProcessor()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := p.dispatch(ctx, paymentIntentEvent(t, "payment_intent.succeeded", "evt_dup")); err != nil {
			t.Fatal(err)
		}
	}
	if len(*calls) != 1 {
		t.Errorf("redelivered event dispatched %d times, want 1", len(*calls))
	}
}

func TestDispatchAcksUnknownEvents(t *testing.T) {
	p, calls := newTestProcessor()

	evt := &stripe.Event{
		ID:   "evt_3",
		Type: "charge.refunded",
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	if err := p.dispatch(context.Background(), evt); err != nil {
		t.Fatalf("unknown event should ack, got %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("unknown event reached a handler: %v", *calls)
	}
}

func TestDispatchAccountUpdated(t *testing.T) {
	p, calls := newTestProcessor()

	raw, _ := json.Marshal(map[string]interface{}{
		"id":              "acct_9",
		"payouts_enabled": true,
		"capabilities":    map[string]string{"transfers": "active"},
	})
	evt := &stripe.Event{
		ID:   "evt_4",
		Type: "account.updated",
		Data: &stripe.EventData{Raw: raw},
	}
	if err := p.dispatch(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 1 || (*calls)[0] != "account:acct_9" {
		t.Errorf("calls = %v", *calls)
	}
}

func TestDispatchProcessesWhenDedupeUnavailable(t *testing.T) {
	p, calls := newTestProcessor()
	p.MarkSeen = func(string) (bool, error) { return false, context.DeadlineExceeded }

	if err := p.dispatch(context.Background(), paymentIntentEvent(t, "payment_intent.succeeded", "evt_5")); err != nil {
		t.Fatal(err)
	}
	// Handlers are idempotent, so processing is the safe direction.
	if len(*calls) != 1 {
		t.Errorf("calls = %v, want the handler to run", *calls)
	}
}
