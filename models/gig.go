package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GigApplicant is one musician (or band) applying to play a gig. Applicants
// live on the gig row as a JSON column; a gig rarely has more than a handful.
type GigApplicant struct {
	MusicianId string `json:"musician_id"`
	// BandAdminMusicianId is set when the applicant profile is a band; earnings
	// are credited to the band admin's musician profile.
	BandAdminMusicianId string          `json:"band_admin_musician_id,omitempty"`
	Status              ApplicantStatus `json:"status"`
	Fee                 decimal.Decimal `json:"fee"`
	Invited             bool            `json:"invited,omitempty"`
}

type GigApplicantList []GigApplicant

type Gig struct {
	ID            string           `gorm:"primaryKey;size:64" json:"id"`
	VenueId       string           `gorm:"size:64;index;not null" json:"venue_id" binding:"required"`
	VenueName     string           `gorm:"size:255" json:"venue_name"`
	Date          string           `gorm:"size:32;not null" json:"date" binding:"required"`
	StartTime     string           `gorm:"size:16;not null" json:"start_time" binding:"required"`
	StartDateTime time.Time        `gorm:"index;not null" json:"start_date_time"`
	DurationMins  int              `gorm:"default:60" json:"duration_mins"`
	AgreedFee     decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"agreed_fee"`
	Currency      string           `gorm:"size:8;default:GBP" json:"currency"`
	Applicants    GigApplicantList `gorm:"serializer:json" json:"applicants"`
	Status        GigStatus        `gorm:"size:16;default:OPEN" json:"status"`
	Paid          bool             `gorm:"default:false" json:"paid"`
	DisputeLogged bool             `gorm:"default:false" json:"dispute_logged"`

	// PaymentStatus and PaymentIntentId mirror the booking payment on the gig
	// row so gig reads never join the payments table. Paid is only ever true
	// with PaymentStatus succeeded.
	PaymentStatus     PaymentStatus `gorm:"size:32" json:"payment_status"`
	PaymentIntentId   string        `gorm:"size:255;index" json:"payment_intent_id"`
	MusicianFeeStatus FeeStatus     `gorm:"size:16;default:NONE" json:"musician_fee_status"`

	// DisputeClearingTime is set once payment succeeds: gig start plus the
	// dispute window. Fees release only after it passes.
	DisputeClearingTime *time.Time `json:"dispute_clearing_time"`

	// Cloud Tasks bookkeeping. Each deferred job stores its current task name
	// so a reschedule or cancel can find the in-flight task.
	ClearPendingFeeTaskName string `gorm:"size:512" json:"clear_pending_fee_task_name"`
	ReviewPromptTaskName    string `gorm:"size:512" json:"review_prompt_task_name"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetGigByID(ctx context.Context, id string) (*Gig, error) {
	if id == "" {
		return nil, errors.New("gig id is required")
	}
	db := config.GetDB()
	var gig Gig
	if err := db.WithContext(ctx).First(&gig, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("gig %s: %w", id, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &gig, nil
}

// FindApplicant returns the applicant entry for the given musician id, or nil.
func (g *Gig) FindApplicant(musicianId string) *GigApplicant {
	for i := range g.Applicants {
		if g.Applicants[i].MusicianId == musicianId {
			return &g.Applicants[i]
		}
	}
	return nil
}

// ConfirmedApplicant returns the single confirmed applicant, if any.
func (g *Gig) ConfirmedApplicant() *GigApplicant {
	for i := range g.Applicants {
		if g.Applicants[i].Status == ApplicantStatusConfirmed {
			return &g.Applicants[i]
		}
	}
	return nil
}

// SetApplicantStatus rewrites the applicants list with the given musician's
// status replaced. Returns false when the musician is not an applicant.
func (g *Gig) SetApplicantStatus(musicianId string, status ApplicantStatus) bool {
	for i := range g.Applicants {
		if g.Applicants[i].MusicianId == musicianId {
			g.Applicants[i].Status = status
			return true
		}
	}
	return false
}

// BeginPaymentProcessing pins an in-flight payment on the gig: the applicant
// moves to payment processing and the intent id is recorded, but the gig
// stays unpaid until the success webhook lands. Returns false when the
// musician is not an applicant.
func (g *Gig) BeginPaymentProcessing(musicianId string, paymentIntentId string, status PaymentStatus) bool {
	if !g.SetApplicantStatus(musicianId, ApplicantStatusPaymentProcessing) {
		return false
	}
	g.PaymentStatus = status
	g.PaymentIntentId = paymentIntentId
	g.Paid = false
	return true
}

// CompletePayment records a succeeded booking payment: the applicant is
// confirmed, the gig closes, and the musician's fee enters its held state.
func (g *Gig) CompletePayment(musicianId string, paymentIntentId string) {
	if musicianId != "" {
		g.SetApplicantStatus(musicianId, ApplicantStatusConfirmed)
	}
	g.Status = GigStatusClosed
	g.Paid = true
	g.PaymentStatus = PaymentStatusSucceeded
	g.PaymentIntentId = paymentIntentId
	g.MusicianFeeStatus = FeeStatusPending
}

// RevertPaymentFailure reopens the gig after a failed payment so the venue
// can retry with another card. The applicant drops back to accepted. A gig
// that is already paid is left alone; a stale failure event for a superseded
// intent must not reopen it.
func (g *Gig) RevertPaymentFailure(musicianId string, paymentIntentId string) bool {
	if g.Paid {
		return false
	}
	if musicianId != "" {
		if a := g.FindApplicant(musicianId); a != nil && a.Status == ApplicantStatusPaymentProcessing {
			a.Status = ApplicantStatusAccepted
		}
	}
	g.Status = GigStatusOpen
	g.PaymentStatus = PaymentStatusFailed
	g.PaymentIntentId = paymentIntentId
	return true
}

// EarningsMusicianId resolves which musician profile gets credited for this
// applicant: the band admin when one is linked, otherwise the applicant.
func (a *GigApplicant) EarningsMusicianId() string {
	if a.BandAdminMusicianId != "" {
		return a.BandAdminMusicianId
	}
	return a.MusicianId
}
