package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/notify"
	"github.com/giginltd/gigin_backend/tasks"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type clearAction int

const (
	clearProceed clearAction = iota
	clearSkipAlreadyCleared
	clearBlockedDispute
	clearBlockedTooEarly
	clearFeeMissing
)

// clearanceDecision is the gate in front of fee release. State is re-read
// at execution time, never trusted from the task payload: the task was
// scheduled days ago and a dispute may have been raised since.
func clearanceDecision(fee *models.PendingFee, cleared *models.ClearedFee, disputeOpen bool, now time.Time) clearAction {
	if cleared != nil {
		return clearSkipAlreadyCleared
	}
	if fee == nil {
		return clearFeeMissing
	}
	if disputeOpen || fee.Status == models.PendingFeeStatusInDispute {
		return clearBlockedDispute
	}
	if now.Before(fee.DisputeClearingTime) {
		return clearBlockedTooEarly
	}
	return clearProceed
}

// ClearPendingFee releases a held fee to the musician: ledger moves from
// pending to cleared, the applicant flips to paid, and the earnings counters
// update, all in one transaction. When transfers are live for the musician
// the money also moves to their connected account.
func (e *Engine) ClearPendingFee(ctx context.Context, payload *tasks.ClearFeePayload) error {
	fee, err := e.pendingFeeByIntent(ctx, payload.PaymentIntentId)
	if err != nil {
		return err
	}
	cleared, err := e.clearedFeeByIntent(ctx, payload.PaymentIntentId)
	if err != nil {
		return err
	}
	gig, err := models.GetGigByID(ctx, payload.GigId)
	if err != nil {
		return err
	}
	disputeOpen := gig.DisputeLogged
	if !disputeOpen {
		disputeOpen, err = models.HasOpenDispute(ctx, gig.ID)
		if err != nil {
			return err
		}
	}

	switch clearanceDecision(fee, cleared, disputeOpen, e.now()) {
	case clearSkipAlreadyCleared:
		return nil
	case clearFeeMissing:
		// Neither ledger knows this intent. Retrying the task cannot fix that,
		// so surface the sentinel and let the handler return a 4xx.
		return fmt.Errorf("intent %s: %w", payload.PaymentIntentId, ErrFeeNotFound)
	case clearBlockedDispute:
		return ErrFeeInDispute
	case clearBlockedTooEarly:
		return ErrFeeNotCleared
	}

	musician, err := models.GetMusicianByID(ctx, fee.MusicianId)
	if err != nil {
		return err
	}

	// Transfer first, commit second. If the commit fails after a transfer we
	// would rather double-check by hand than silently hold money that Stripe
	// already moved.
	transferId := ""
	if config.TransfersEnabled() && musician.TransfersEnabled && musician.StripeAccountId != "" {
		transferId, err = e.Gateway.CreateTransfer(ctx, TransferParams{
			AmountPence:        AmountToPence(fee.FeeAmount),
			Currency:           fee.Currency,
			DestinationAccount: musician.StripeAccountId,
			TransferGroup:      fee.PaymentIntentId,
			Description:        fmt.Sprintf("Gig fee %s (%s)", fee.GigId, fee.GigDate),
		})
		if err != nil {
			return fmt.Errorf("transfer to %s: %w", musician.StripeAccountId, err)
		}
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clearedRow := models.ClearedFee{
			PaymentIntentId:  fee.PaymentIntentId,
			GigId:            fee.GigId,
			VenueId:          fee.VenueId,
			MusicianId:       fee.MusicianId,
			GrossAmount:      fee.GrossAmount,
			FeeAmount:        fee.FeeAmount,
			Currency:         fee.Currency,
			GigDate:          fee.GigDate,
			StripeTransferId: transferId,
			ClearedAt:        e.now(),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_intent_id"}},
			DoNothing: true,
		}).Create(&clearedRow)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent run beat us; it owns the rest of the batch.
			return nil
		}

		if err := tx.Delete(&models.PendingFee{}, "payment_intent_id = ?", fee.PaymentIntentId).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"total_earnings": gorm.Expr("total_earnings + ?", fee.FeeAmount),
			"pending_funds":  gorm.Expr("pending_funds - ?", fee.FeeAmount),
		}
		// Money transferred out does not become withdrawable balance.
		if transferId == "" {
			updates["withdrawable_earnings"] = gorm.Expr("withdrawable_earnings + ?", fee.FeeAmount)
		}
		if err := tx.Model(&models.MusicianProfile{}).Where("id = ?", musician.ID).Updates(updates).Error; err != nil {
			return err
		}

		// The confirmed applicant may be a band profile whose earnings route
		// elsewhere; it is the applicant entry, not the earnings profile,
		// that flips to paid.
		flipped := false
		if applicant := gig.ConfirmedApplicant(); applicant != nil {
			flipped = gig.SetApplicantStatus(applicant.MusicianId, models.ApplicantStatusPaid)
		} else {
			flipped = gig.SetApplicantStatus(fee.MusicianId, models.ApplicantStatusPaid)
		}
		gigUpdates := map[string]interface{}{
			"musician_fee_status":         models.FeeStatusCleared,
			"clear_pending_fee_task_name": "",
		}
		if flipped {
			gigUpdates["applicants"] = gig.Applicants
		}
		return tx.Model(&models.Gig{}).Where("id = ?", gig.ID).Updates(gigUpdates).Error
	})
	if err != nil {
		return err
	}

	e.refreshGigsPerformed(ctx, musician.ID)

	if err := notify.EnqueueFeeReleasedEmail(ctx, musician, gig, fee.FeeAmount); err != nil {
		config.LogError(e.Logger, "billing", "ClearPendingFee", "enqueue fee released email", gig.ID, err)
	}

	evt := config.BillingEvent{
		EventType:       "fee.cleared",
		GigId:           gig.ID,
		PaymentIntentId: fee.PaymentIntentId,
		VenueId:         fee.VenueId,
		MusicianId:      fee.MusicianId,
		AmountPence:     AmountToPence(fee.FeeAmount),
		Currency:        fee.Currency,
		OccurredAt:      e.now(),
	}
	if err := config.PublishBillingEvent(evt); err != nil {
		config.LogError(e.Logger, "billing", "ClearPendingFee", "publish fee.cleared", fee.PaymentIntentId, err)
	}
	return nil
}

// refreshGigsPerformed recounts from the ledger rather than incrementing, so
// replays and races cannot drift the counter.
func (e *Engine) refreshGigsPerformed(ctx context.Context, musicianId string) {
	count, err := models.CountGigsPerformed(ctx, musicianId)
	if err != nil {
		config.LogError(e.Logger, "billing", "refreshGigsPerformed", "count cleared gigs", musicianId, err)
		return
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&models.MusicianProfile{}).
		Where("id = ?", musicianId).
		Update("gigs_performed", count).Error; err != nil {
		config.LogError(e.Logger, "billing", "refreshGigsPerformed", "update counter", musicianId, err)
	}
}

// MarkFeeInDispute freezes a pending fee inside the dispute window and
// cancels the scheduled clearance task.
func (e *Engine) MarkFeeInDispute(ctx context.Context, input *models.NewDispute) (*models.Dispute, error) {
	fee, err := e.pendingFeeByIntent(ctx, input.PaymentIntentId)
	if err != nil {
		return nil, err
	}
	if fee == nil {
		return nil, fmt.Errorf("intent %s: %w", input.PaymentIntentId, ErrFeeNotFound)
	}
	gig, err := models.GetGigByID(ctx, input.GigId)
	if err != nil {
		return nil, err
	}
	if e.now().After(fee.DisputeClearingTime) {
		return nil, fmt.Errorf("dispute window has closed for gig %s", gig.ID)
	}

	dispute, err := models.CreateDispute(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := models.MarkPendingFeeStatus(ctx, input.PaymentIntentId, models.PendingFeeStatusInDispute); err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&models.Gig{}).
		Where("id = ?", gig.ID).
		Update("dispute_logged", true).Error; err != nil {
		return nil, err
	}

	// The clearance task will refuse anyway, but cancelling keeps the queue
	// clean.
	if e.Scheduler != nil && gig.ClearPendingFeeTaskName != "" {
		if err := e.Scheduler.Cancel(ctx, gig.ClearPendingFeeTaskName); err != nil {
			config.LogError(e.Logger, "billing", "MarkFeeInDispute", "cancel clearance task", gig.ID, err)
		}
	}
	return dispute, nil
}
