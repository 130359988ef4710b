package billing

import (
	"context"
	"time"

	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/tasks"
	"github.com/sirupsen/logrus"
)

// Engine wires the payment flows together: intent creation, webhook
// reconciliation, fee clearance, and the stuck-payment sweep all hang off it.
type Engine struct {
	Gateway   Gateway
	Scheduler *tasks.Scheduler
	Logger    *logrus.Logger
	Now       func() time.Time

	// Model access the reconciliation paths go through. NewEngine wires the
	// real stores; tests substitute their own.
	pendingFeeByIntent func(ctx context.Context, paymentIntentId string) (*models.PendingFee, error)
	clearedFeeByIntent func(ctx context.Context, paymentIntentId string) (*models.ClearedFee, error)
	markPayment        func(ctx context.Context, paymentIntentId string, status models.PaymentStatus, failureCode string, failureMessage string) error
}

func NewEngine(gateway Gateway, scheduler *tasks.Scheduler, logger *logrus.Logger) *Engine {
	return &Engine{
		Gateway:            gateway,
		Scheduler:          scheduler,
		Logger:             logger,
		Now:                time.Now,
		pendingFeeByIntent: models.GetPendingFeeByIntent,
		clearedFeeByIntent: models.GetClearedFeeByIntent,
		markPayment:        models.MarkPaymentStatus,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}
