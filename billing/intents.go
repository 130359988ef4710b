package billing

import (
	"context"
	"fmt"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/utils"
	"gorm.io/gorm"
)

// Metadata keys stamped on every gig payment intent. The webhook engine
// reads these back to find the gig without a DB lookup on the intent id.
const (
	MetaGigId               = "gigId"
	MetaApplicantId         = "applicantId"
	MetaRecipientMusicianId = "recipientMusicianId"
	MetaVenueId             = "venueId"
	MetaGigDate             = "date"
	MetaGigTime             = "time"
)

type CreateIntentInput struct {
	GigId      string `json:"gig_id" binding:"required"`
	MusicianId string `json:"musician_id" binding:"required"`
	// PaymentMethodId is optional; when present the intent is created ready to
	// confirm against that saved card.
	PaymentMethodId string `json:"payment_method_id"`
}

type IntentResult struct {
	PaymentIntentId string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	AmountPence     int64  `json:"amount_pence"`
	Currency        string `json:"currency"`
}

// CreateGigPaymentIntent sets up the charge a venue pays to book a musician.
// The applicant must already be accepted on the gig, and a band applicant
// must have an admin musician to credit. Confirmation is what moves the
// applicant on from accepted; creating the intent changes nothing yet.
func (e *Engine) CreateGigPaymentIntent(ctx context.Context, input *CreateIntentInput) (*IntentResult, error) {
	gig, err := models.GetGigByID(ctx, input.GigId)
	if err != nil {
		return nil, err
	}
	if gig.Paid {
		return nil, ErrGigAlreadyPaid
	}

	applicant := gig.FindApplicant(input.MusicianId)
	if applicant == nil || applicant.Status != models.ApplicantStatusAccepted {
		return nil, ErrGigNotPayable
	}

	recipient, err := models.GetMusicianByID(ctx, input.MusicianId)
	if err != nil {
		return nil, err
	}
	if recipient.IsBand {
		if applicant.BandAdminMusicianId == "" && recipient.BandAdminMusicianId == "" {
			return nil, ErrMissingBandAdmin
		}
	}
	earningsMusicianId := applicant.EarningsMusicianId()
	if earningsMusicianId == applicant.MusicianId && recipient.IsBand && recipient.BandAdminMusicianId != "" {
		earningsMusicianId = recipient.BandAdminMusicianId
	}

	venue, err := models.GetVenueByID(ctx, gig.VenueId)
	if err != nil {
		return nil, err
	}

	gross := applicant.Fee
	if gross.IsZero() {
		gross = gig.AgreedFee
	}
	amountPence := AmountToPence(gross)
	if amountPence <= 0 {
		return nil, fmt.Errorf("gig %s has no agreed fee", gig.ID)
	}
	currency := gig.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	intent, err := e.Gateway.CreateIntent(ctx, CreateIntentParams{
		AmountPence:     amountPence,
		Currency:        currency,
		CustomerId:      venue.StripeCustomerId,
		PaymentMethodId: input.PaymentMethodId,
		Description:     fmt.Sprintf("Gig booking %s on %s", gig.ID, gig.Date),
		Metadata: map[string]string{
			MetaGigId:               gig.ID,
			MetaApplicantId:         applicant.MusicianId,
			MetaRecipientMusicianId: earningsMusicianId,
			MetaVenueId:             gig.VenueId,
			MetaGigDate:             gig.Date,
			MetaGigTime:             gig.StartTime,
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = models.UpsertPayment(ctx, &models.NewPayment{
		ID:           intent.ID,
		GigId:        gig.ID,
		VenueId:      gig.VenueId,
		ApplicantId:  applicant.MusicianId,
		MusicianId:   earningsMusicianId,
		AmountPence:  amountPence,
		Currency:     currency,
		GigDate:      gig.Date,
		GigStartTime: gig.StartTime,
	})
	if err != nil {
		return nil, err
	}

	e.publishEvent(ctx, "payment_intent.created", gig, intent)

	return &IntentResult{
		PaymentIntentId: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountPence:     amountPence,
		Currency:        currency,
	}, nil
}

type ConfirmInput struct {
	PaymentIntentId string `json:"payment_intent_id" binding:"required"`
	PaymentMethodId string `json:"payment_method_id"`
}

type ConfirmResult struct {
	Status         string `json:"status"`
	RequiresAction bool   `json:"requires_action"`
	ClientSecret   string `json:"client_secret,omitempty"`
}

// ConfirmGigPayment confirms the intent off-session against the venue's
// saved card. A card that needs 3DS comes back as requires_action with the
// client secret so the frontend can finish the challenge. A confirm that
// goes through flips the gig into payment processing; side effects of
// success still run from the webhook, not from here.
func (e *Engine) ConfirmGigPayment(ctx context.Context, input *ConfirmInput) (*ConfirmResult, error) {
	payment, err := models.GetPaymentByID(ctx, input.PaymentIntentId)
	if err != nil {
		return nil, err
	}

	intent, err := e.Gateway.ConfirmIntent(ctx, input.PaymentIntentId, input.PaymentMethodId)
	if err != nil {
		switch ClassifyStripeError(err) {
		case DeclineKindAuthenticationRequired:
			if markErr := e.markPayment(ctx, input.PaymentIntentId, models.PaymentStatusRequiresAction, "", ""); markErr != nil {
				config.LogError(e.Logger, "billing", "ConfirmGigPayment", "mark requires_action", input.PaymentIntentId, markErr)
			}
			result := &ConfirmResult{Status: IntentStatusRequiresAction, RequiresAction: true}
			if intent != nil {
				result.ClientSecret = intent.ClientSecret
			}
			return result, nil
		case DeclineKindCard:
			code, msg := DeclineDetail(err)
			if markErr := e.markPayment(ctx, input.PaymentIntentId, models.PaymentStatusFailed, code, msg); markErr != nil {
				config.LogError(e.Logger, "billing", "ConfirmGigPayment", "mark failed", input.PaymentIntentId, markErr)
			}
			return nil, err
		default:
			// Transient: leave the payment row as-is; the sweeper or a retry
			// will settle it.
			return nil, err
		}
	}

	switch intent.Status {
	case IntentStatusRequiresAction:
		// The gig only flips once the charge actually lands; until the 3DS
		// challenge completes the applicant stays accepted.
		if markErr := e.markPayment(ctx, intent.ID, models.PaymentStatusRequiresAction, "", ""); markErr != nil {
			config.LogError(e.Logger, "billing", "ConfirmGigPayment", "mark requires_action", intent.ID, markErr)
		}
		return &ConfirmResult{
			Status:         intent.Status,
			RequiresAction: true,
			ClientSecret:   intent.ClientSecret,
		}, nil
	case IntentStatusSucceeded:
		// The webhook drives the success engine; recording the processing
		// state here just keeps reads consistent before it lands.
		if err := e.recordPaymentProcessing(ctx, payment, intent.ID, models.PaymentStatusSucceeded); err != nil {
			config.LogError(e.Logger, "billing", "ConfirmGigPayment", "record processing state", intent.ID, err)
		}
		return &ConfirmResult{Status: intent.Status}, nil
	default:
		if err := e.recordPaymentProcessing(ctx, payment, intent.ID, models.PaymentStatusPending); err != nil {
			return nil, err
		}
		return &ConfirmResult{Status: intent.Status}, nil
	}
}

// recordPaymentProcessing flips the gig and the payment row together after a
// confirm attempt goes through: the applicant moves to payment processing and
// the intent is pinned on the gig, unpaid until the success webhook lands.
// One transaction, so the gig's view of the payment cannot drift from the
// payments table.
func (e *Engine) recordPaymentProcessing(ctx context.Context, payment *models.Payment, intentId string, status models.PaymentStatus) error {
	gig, err := models.GetGigByID(ctx, payment.GigId)
	if err != nil {
		return err
	}
	if gig.Paid {
		// The success webhook already landed; nothing to unwind.
		return nil
	}
	if !gig.BeginPaymentProcessing(payment.ApplicantId, intentId, status) {
		return ErrGigNotPayable
	}
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Gig{}).Where("id = ?", gig.ID).Updates(map[string]interface{}{
			"applicants":        gig.Applicants,
			"payment_status":    gig.PaymentStatus,
			"payment_intent_id": gig.PaymentIntentId,
			"paid":              false,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Payment{}).Where("id = ?", intentId).Updates(map[string]interface{}{
			"status":          status,
			"failure_code":    "",
			"failure_message": "",
		}).Error
	})
}

func (e *Engine) publishEvent(ctx context.Context, eventType string, gig *models.Gig, intent *Intent) {
	evt := config.BillingEvent{
		EventType:       eventType,
		GigId:           gig.ID,
		PaymentIntentId: intent.ID,
		VenueId:         gig.VenueId,
		AmountPence:     intent.AmountPence,
		Currency:        intent.Currency,
		OccurredAt:      e.now(),
	}
	if musicianId, ok := intent.Metadata[MetaRecipientMusicianId]; ok {
		evt.MusicianId = musicianId
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		evt.CorrelationId = cid
	}
	if err := config.PublishBillingEvent(evt); err != nil {
		config.LogError(e.Logger, "billing", "publishEvent", eventType, intent.ID, err)
	}
}
