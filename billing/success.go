package billing

import (
	"context"
	"errors"
	"time"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/notify"
	"github.com/giginltd/gigin_backend/tasks"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type creditAction int

const (
	creditNew creditAction = iota
	creditSkipAlreadyPending
	creditSkipAlreadyCleared
)

// creditDecision is the idempotency gate for the success engine: a pending
// or cleared fee keyed on this intent means the credit already happened and
// a redelivered webhook must do nothing.
func creditDecision(pending *models.PendingFee, cleared *models.ClearedFee) creditAction {
	if cleared != nil {
		return creditSkipAlreadyCleared
	}
	if pending != nil {
		return creditSkipAlreadyPending
	}
	return creditNew
}

// HandlePaymentSucceeded runs the post-payment pipeline: hold the musician's
// share as a pending fee, mark the gig paid, schedule the deferred clearance
// and review jobs, and notify both sides. Safe to call any number of times
// for the same intent.
func (e *Engine) HandlePaymentSucceeded(ctx context.Context, intent *Intent) error {
	gigId := intent.Metadata[MetaGigId]
	applicantId := intent.Metadata[MetaApplicantId]
	musicianId := intent.Metadata[MetaRecipientMusicianId]
	if gigId == "" || musicianId == "" {
		// Not a gig payment (or metadata lost); nothing for this engine.
		return nil
	}

	pending, err := e.pendingFeeByIntent(ctx, intent.ID)
	if err != nil {
		return err
	}
	cleared, err := e.clearedFeeByIntent(ctx, intent.ID)
	if err != nil {
		return err
	}
	if creditDecision(pending, cleared) != creditNew {
		// The credit landed on an earlier delivery, which may have died before
		// it reached the payment row. Settle the row here or the sweeper keeps
		// finding this intent forever.
		return e.markPayment(ctx, intent.ID, models.PaymentStatusSucceeded, "", "")
	}

	gig, err := models.GetGigByID(ctx, gigId)
	if err != nil {
		return err
	}
	musician, err := models.GetMusicianByID(ctx, musicianId)
	if err != nil {
		return err
	}

	gross := PenceToAmount(intent.AmountPence)
	fee := MusicianShare(gross)
	clearingTime := DisputeClearingTime(gig.StartDateTime, config.DisputeWindow())

	if applicantId != "" && gig.FindApplicant(applicantId) == nil {
		config.LogError(e.Logger, "billing", "HandlePaymentSucceeded", "applicant missing from gig",
			map[string]string{"gig_id": gigId, "applicant_id": applicantId}, errors.New("applicant not on gig"))
	}

	db := config.GetDB()
	credited := false
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		feeRow := models.PendingFee{
			PaymentIntentId:     intent.ID,
			GigId:               gig.ID,
			VenueId:             gig.VenueId,
			MusicianId:          musician.ID,
			GrossAmount:         gross,
			FeeAmount:           fee,
			Currency:            intent.Currency,
			Status:              models.PendingFeeStatusPending,
			GigDate:             gig.Date,
			DisputeClearingTime: clearingTime,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_intent_id"}},
			DoNothing: true,
		}).Create(&feeRow)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race against a concurrent delivery; it owns the credit.
			return nil
		}
		credited = true

		if err := tx.Model(&models.MusicianProfile{}).
			Where("id = ?", musician.ID).
			Update("pending_funds", gorm.Expr("pending_funds + ?", fee)).Error; err != nil {
			return err
		}

		gig.CompletePayment(applicantId, intent.ID)
		return tx.Model(&models.Gig{}).Where("id = ?", gig.ID).Updates(map[string]interface{}{
			"applicants":            gig.Applicants,
			"status":                gig.Status,
			"paid":                  true,
			"payment_status":        gig.PaymentStatus,
			"payment_intent_id":     gig.PaymentIntentId,
			"musician_fee_status":   gig.MusicianFeeStatus,
			"dispute_clearing_time": clearingTime,
			"dispute_logged":        false,
		}).Error
	})
	if err != nil {
		return err
	}
	if !credited {
		// Lost the race, but the winner may not have reached the payment row.
		return e.markPayment(ctx, intent.ID, models.PaymentStatusSucceeded, "", "")
	}

	if err := e.markPayment(ctx, intent.ID, models.PaymentStatusSucceeded, "", ""); err != nil {
		config.LogError(e.Logger, "billing", "HandlePaymentSucceeded", "mark payment succeeded", intent.ID, err)
	}

	e.scheduleClearance(ctx, gig, intent.ID, musician.ID, clearingTime)
	e.scheduleReviewPrompt(ctx, gig, musician.ID)

	// Notifications are best effort; a failed email never fails the webhook.
	if err := notify.AnnouncePaymentReceived(ctx, gig, applicantId); err != nil {
		config.LogError(e.Logger, "billing", "HandlePaymentSucceeded", "announce payment", gig.ID, err)
	}
	venue, err := models.GetVenueByID(ctx, gig.VenueId)
	if err != nil {
		config.LogError(e.Logger, "billing", "HandlePaymentSucceeded", "load venue", gig.VenueId, err)
	} else if err := notify.EnqueueGigConfirmedEmails(ctx, gig, musician, venue, fee); err != nil {
		config.LogError(e.Logger, "billing", "HandlePaymentSucceeded", "enqueue confirmation emails", gig.ID, err)
	}

	e.publishEvent(ctx, "payment.succeeded", gig, intent)
	return nil
}

func (e *Engine) scheduleClearance(ctx context.Context, gig *models.Gig, intentId string, musicianId string, clearingTime time.Time) {
	if e.Scheduler == nil {
		return
	}
	name, err := e.Scheduler.ScheduleAt(ctx, tasks.ClearFeePath, tasks.ClearFeePayload{
		GigId:           gig.ID,
		PaymentIntentId: intentId,
		MusicianId:      musicianId,
	}, clearingTime)
	if err != nil {
		// The sweeper-independent safety net here is manual clearance via the
		// ops endpoint; log loudly and move on.
		config.LogError(e.Logger, "billing", "scheduleClearance", "enqueue clear fee task", gig.ID, err)
		return
	}
	if err := saveGigTaskName(ctx, gig.ID, "clear_pending_fee_task_name", name); err != nil {
		config.LogError(e.Logger, "billing", "scheduleClearance", "save task name", gig.ID, err)
	}
}

func (e *Engine) scheduleReviewPrompt(ctx context.Context, gig *models.Gig, musicianId string) {
	if e.Scheduler == nil {
		return
	}
	// The prompt lands when the gig starts, matching when the dispute window
	// opens; both sides see it as soon as the night is underway.
	name, err := e.Scheduler.ScheduleAt(ctx, tasks.ReviewPromptPath, tasks.ReviewPromptPayload{
		GigId:      gig.ID,
		MusicianId: musicianId,
		VenueId:    gig.VenueId,
	}, gig.StartDateTime)
	if err != nil {
		config.LogError(e.Logger, "billing", "scheduleReviewPrompt", "enqueue review task", gig.ID, err)
		return
	}
	if err := saveGigTaskName(ctx, gig.ID, "review_prompt_task_name", name); err != nil {
		config.LogError(e.Logger, "billing", "scheduleReviewPrompt", "save task name", gig.ID, err)
	}
}

func saveGigTaskName(ctx context.Context, gigId string, column string, taskName string) error {
	db := config.GetDB()
	if db == nil {
		return errors.New("database not initialised")
	}
	return db.WithContext(ctx).Model(&models.Gig{}).
		Where("id = ?", gigId).
		Update(column, taskName).Error
}
