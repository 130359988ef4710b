package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Payment mirrors one Stripe PaymentIntent. The primary key is the intent id
// so webhook reconciliation and the sweeper never create duplicates.
type Payment struct {
	ID          string        `gorm:"primaryKey;size:255" json:"id"`
	GigId       string        `gorm:"size:64;index;not null" json:"gig_id"`
	VenueId     string        `gorm:"size:64;index;not null" json:"venue_id"`
	ApplicantId string        `gorm:"size:64;not null" json:"applicant_id"`
	MusicianId  string        `gorm:"size:64;index;not null" json:"musician_id"`
	AmountPence int64         `gorm:"not null" json:"amount_pence"`
	Currency    string        `gorm:"size:8;default:GBP" json:"currency"`
	Status      PaymentStatus `gorm:"size:32;index;not null" json:"status"`

	FailureCode    string `gorm:"size:128" json:"failure_code"`
	FailureMessage string `gorm:"type:text" json:"failure_message"`

	GigDate      string `gorm:"size:32" json:"gig_date"`
	GigStartTime string `gorm:"size:16" json:"gig_start_time"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type NewPayment struct {
	ID          string
	GigId       string
	VenueId     string
	ApplicantId string
	MusicianId  string
	AmountPence int64
	Currency    string
	GigDate     string
	GigStartTime string
}

// UpsertPayment records a freshly created intent, or refreshes the row when
// the same intent is created twice (e.g. a retried checkout).
func UpsertPayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	if input.ID == "" {
		return nil, errors.New("payment intent id is required")
	}
	payment := Payment{
		ID:           input.ID,
		GigId:        input.GigId,
		VenueId:      input.VenueId,
		ApplicantId:  input.ApplicantId,
		MusicianId:   input.MusicianId,
		AmountPence:  input.AmountPence,
		Currency:     input.Currency,
		Status:       PaymentStatusPending,
		GigDate:      input.GigDate,
		GigStartTime: input.GigStartTime,
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount_pence", "currency", "updated_at"}),
	}).Create(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func GetPaymentByID(ctx context.Context, id string) (*Payment, error) {
	if id == "" {
		return nil, errors.New("payment intent id is required")
	}
	db := config.GetDB()
	var payment Payment
	if err := db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment %s: %w", id, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &payment, nil
}

// MarkPaymentStatus flips the payment row status. Failure detail is cleared
// on success so stale errors do not survive a retry that worked.
func MarkPaymentStatus(ctx context.Context, id string, status PaymentStatus, failureCode string, failureMessage string) error {
	if id == "" {
		return errors.New("payment intent id is required")
	}
	db := config.GetDB()
	updates := map[string]interface{}{
		"status":          status,
		"failure_code":    failureCode,
		"failure_message": failureMessage,
	}
	return db.WithContext(ctx).Model(&Payment{}).Where("id = ?", id).Updates(updates).Error
}

// RequiresActionMaxAge bounds how long a payment waiting on a 3DS challenge
// stays in the sweep. Past this the challenge is abandoned; the venue has to
// start a fresh payment anyway.
const RequiresActionMaxAge = 48 * time.Hour

// ListStalePayments pages through payments still PENDING or REQUIRES_ACTION
// whose last update is older than the cutoff. Keyset pagination on id keeps
// the scan cheap; pass the last id of the previous page as afterId.
func ListStalePayments(ctx context.Context, cutoff time.Time, afterId string, limit int) ([]Payment, error) {
	db := config.GetDB()
	actionFloor := time.Now().UTC().Add(-RequiresActionMaxAge)
	q := db.WithContext(ctx).
		Where("(status = ? OR (status = ? AND created_at >= ?))",
			PaymentStatusPending, PaymentStatusRequiresAction, actionFloor).
		Where("updated_at < ?", cutoff).
		Order("id ASC").
		Limit(limit)
	if afterId != "" {
		q = q.Where("id > ?", afterId)
	}
	var payments []Payment
	if err := q.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
