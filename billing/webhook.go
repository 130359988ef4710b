package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/giginltd/gigin_backend/config"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

// seenEventTTL keeps webhook event ids around long enough to absorb Stripe's
// redelivery window.
const seenEventTTL = 24 * time.Hour

var ErrBadSignature = errors.New("webhook signature verification failed")

// WebhookProcessor verifies, deduplicates, and dispatches Stripe events.
// The handler funcs are fields so tests can observe dispatch without Stripe
// or a database.
type WebhookProcessor struct {
	Secret string
	Logger *logrus.Logger

	OnSucceeded      func(ctx context.Context, intent *Intent) error
	OnFailed         func(ctx context.Context, intent *Intent) error
	OnAccountUpdated func(ctx context.Context, acct *ConnectedAccount) error

	// MarkSeen returns true the first time an event id is offered. Defaults
	// to a redis SETNX.
	MarkSeen func(eventId string) (bool, error)
}

func NewWebhookProcessor(engine *Engine, secret string, logger *logrus.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		Secret:           secret,
		Logger:           logger,
		OnSucceeded:      engine.HandlePaymentSucceeded,
		OnFailed:         engine.HandlePaymentFailed,
		OnAccountUpdated: engine.HandleAccountUpdated,
		MarkSeen: func(eventId string) (bool, error) {
			return config.SetRedisValueIfAbsent("stripe-event:"+eventId, "1", seenEventTTL)
		},
	}
}

// Process handles one webhook delivery. Unknown event types are
// acknowledged so Stripe stops retrying them.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.Secret)
	if err != nil {
		return ErrBadSignature
	}
	return p.dispatch(ctx, &event)
}

func (p *WebhookProcessor) dispatch(ctx context.Context, event *stripe.Event) error {
	if p.MarkSeen != nil {
		first, err := p.MarkSeen(event.ID)
		if err != nil {
			// Redis down: process anyway, the handlers are idempotent.
			config.LogError(p.Logger, "billing", "dispatch", "webhook dedupe check", event.ID, err)
		} else if !first {
			return nil
		}
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return err
		}
		return p.OnSucceeded(ctx, intentFromStripe(&pi))

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return err
		}
		return p.OnFailed(ctx, intentFromStripe(&pi))

	case "account.updated":
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return err
		}
		return p.OnAccountUpdated(ctx, &ConnectedAccount{
			ID:               acct.ID,
			TransfersActive:  acct.Capabilities != nil && acct.Capabilities.Transfers == stripe.AccountCapabilityStatusActive,
			PayoutsActive:    acct.PayoutsEnabled,
			DetailsSubmitted: acct.DetailsSubmitted,
		})

	default:
		// Ack everything else.
		return nil
	}
}
