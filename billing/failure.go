package billing

import (
	"context"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/notify"
)

// HandlePaymentFailed records the decline on the payment row, reopens the gig
// so the venue can retry with another card, and tells the venue. Redeliveries
// just rewrite the same state.
func (e *Engine) HandlePaymentFailed(ctx context.Context, intent *Intent) error {
	if err := e.markPayment(ctx, intent.ID, models.PaymentStatusFailed, intent.FailureCode, intent.FailureMessage); err != nil {
		return err
	}

	gigId := intent.Metadata[MetaGigId]
	if gigId == "" {
		return nil
	}
	gig, err := models.GetGigByID(ctx, gigId)
	if err != nil {
		config.LogError(e.Logger, "billing", "HandlePaymentFailed", "load gig", gigId, err)
		return nil
	}

	applicantId := intent.Metadata[MetaApplicantId]
	if gig.RevertPaymentFailure(applicantId, intent.ID) {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&models.Gig{}).Where("id = ?", gig.ID).Updates(map[string]interface{}{
			"applicants":        gig.Applicants,
			"status":            gig.Status,
			"paid":              false,
			"payment_status":    gig.PaymentStatus,
			"payment_intent_id": gig.PaymentIntentId,
		}).Error; err != nil {
			config.LogError(e.Logger, "billing", "HandlePaymentFailed", "reopen gig", gig.ID, err)
		}
		if err := notify.AnnouncePaymentFailed(ctx, gig, applicantId); err != nil {
			config.LogError(e.Logger, "billing", "HandlePaymentFailed", "announce failure", gig.ID, err)
		}
	}

	venue, err := models.GetVenueByID(ctx, gig.VenueId)
	if err != nil {
		config.LogError(e.Logger, "billing", "HandlePaymentFailed", "load venue", gig.VenueId, err)
		return nil
	}
	if err := notify.EnqueuePaymentFailedEmail(ctx, venue, gig, intent.FailureMessage); err != nil {
		config.LogError(e.Logger, "billing", "HandlePaymentFailed", "enqueue failure email", gig.ID, err)
	}

	e.publishEvent(ctx, "payment.failed", gig, intent)
	return nil
}
