package billing

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/models"
	"github.com/sirupsen/logrus"
)

const (
	// SweepMinAge keeps the sweeper away from payments a webhook is probably
	// still in flight for.
	SweepMinAge = 10 * time.Minute
	// SweepPageSize bounds one keyset page of stale payments.
	SweepPageSize = 100
	// SweepLeaseTTL bounds how long one instance holds the sweep lease.
	SweepLeaseTTL = 4 * time.Minute

	sweepLeaseKey = "payment-sweeper-lease"
)

// Leaser grants a single-holder lease for the sweep. Only one instance may
// sweep at a time; others back off until the next tick.
type Leaser interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// RedisLeaser implements Leaser on a redis lock.
type RedisLeaser struct {
	Locker *redislock.Client
	Key    string
	TTL    time.Duration
}

func NewRedisLeaser(locker *redislock.Client) *RedisLeaser {
	return &RedisLeaser{Locker: locker, Key: sweepLeaseKey, TTL: SweepLeaseTTL}
}

func (r *RedisLeaser) Acquire(ctx context.Context) (func(), bool, error) {
	if r.Locker == nil {
		return nil, false, errors.New("redis lock client not ready")
	}
	lock, err := r.Locker.Obtain(ctx, r.Key, r.TTL, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return func() { _ = lock.Release(context.Background()) }, true, nil
}

// Sweeper finds payments stuck in a non-terminal state and reconciles them
// against the provider's view. It exists because webhooks get lost: a
// delivery failure otherwise leaves a paid gig looking unpaid forever.
type Sweeper struct {
	Leaser    Leaser
	ListStale func(ctx context.Context, cutoff time.Time, afterId string, limit int) ([]models.Payment, error)
	Reconcile func(ctx context.Context, payment *models.Payment) error
	Logger    *logrus.Logger

	PageSize int
	MinAge   time.Duration
	Now      func() time.Time
}

func NewSweeper(engine *Engine, leaser Leaser, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		Leaser:    leaser,
		ListStale: models.ListStalePayments,
		Reconcile: engine.ReconcilePayment,
		Logger:    logger,
		PageSize:  SweepPageSize,
		MinAge:    SweepMinAge,
		Now:       time.Now,
	}
}

// Sweep runs one pass. Returns how many payments were examined. A zero
// count with nil error usually means another instance holds the lease.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	release, ok, err := s.Leaser.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	defer release()

	cutoff := s.now().Add(-s.MinAge)
	examined := 0
	afterId := ""
	for {
		page, err := s.ListStale(ctx, cutoff, afterId, s.PageSize)
		if err != nil {
			return examined, err
		}
		if len(page) == 0 {
			return examined, nil
		}
		for i := range page {
			examined++
			if err := s.Reconcile(ctx, &page[i]); err != nil {
				// One bad payment must not stall the rest of the sweep.
				config.LogError(s.Logger, "billing", "Sweep", "reconcile payment", page[i].ID, err)
			}
		}
		afterId = page[len(page)-1].ID
		if len(page) < s.PageSize {
			return examined, nil
		}
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ReconcilePayment re-reads one stuck payment from the provider and replays
// whatever the lost webhook would have done.
func (e *Engine) ReconcilePayment(ctx context.Context, payment *models.Payment) error {
	intent, err := e.Gateway.GetIntent(ctx, payment.ID)
	if err != nil {
		return err
	}

	switch intent.Status {
	case IntentStatusSucceeded:
		return e.HandlePaymentSucceeded(ctx, intent)
	case IntentStatusCanceled:
		return e.markPayment(ctx, payment.ID, models.PaymentStatusFailed, "canceled", "payment intent was canceled")
	case IntentStatusRequiresPaymentMethod:
		if intent.FailureCode != "" || intent.FailureMessage != "" {
			return e.HandlePaymentFailed(ctx, intent)
		}
		// Checkout never finished; leave it for expiry.
		return nil
	case IntentStatusRequiresAction:
		if payment.Status == models.PaymentStatusRequiresAction {
			// Already recorded. Rewriting it bumps updated_at and keeps an
			// abandoned 3DS challenge in every future sweep.
			return nil
		}
		return e.markPayment(ctx, payment.ID, models.PaymentStatusRequiresAction, "", "")
	default:
		// processing / requires_confirmation: provider still working.
		return nil
	}
}
