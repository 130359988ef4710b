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

// PendingFee is a musician's share of a succeeded payment, held until the
// dispute window passes. The unique key on payment_intent_id is what makes
// webhook redelivery safe: a second delivery finds the row and credits
// nothing twice.
type PendingFee struct {
	ID                  int              `gorm:"primary_key" json:"id"`
	PaymentIntentId     string           `gorm:"size:255;not null;uniqueIndex" json:"payment_intent_id"`
	GigId               string           `gorm:"size:64;index;not null" json:"gig_id"`
	VenueId             string           `gorm:"size:64;not null" json:"venue_id"`
	MusicianId          string           `gorm:"size:64;index;not null" json:"musician_id"`
	GrossAmount         decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"gross_amount"`
	FeeAmount           decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"fee_amount"`
	Currency            string           `gorm:"size:8;default:GBP" json:"currency"`
	Status              PendingFeeStatus `gorm:"size:32;index;not null" json:"status"`
	GigDate             string           `gorm:"size:32" json:"gig_date"`
	DisputeClearingTime time.Time        `gorm:"not null" json:"dispute_clearing_time"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClearedFee is the terminal ledger record written when a pending fee is
// released to the musician.
type ClearedFee struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PaymentIntentId string          `gorm:"size:255;not null;uniqueIndex" json:"payment_intent_id"`
	GigId           string          `gorm:"size:64;index;not null" json:"gig_id"`
	VenueId         string          `gorm:"size:64;not null" json:"venue_id"`
	MusicianId      string          `gorm:"size:64;index;not null" json:"musician_id"`
	GrossAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"gross_amount"`
	FeeAmount       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"fee_amount"`
	Currency        string          `gorm:"size:8;default:GBP" json:"currency"`
	GigDate         string          `gorm:"size:32" json:"gig_date"`
	// StripeTransferId is set when the fee was paid out via an automatic
	// transfer to the musician's connected account.
	StripeTransferId string    `gorm:"size:255" json:"stripe_transfer_id"`
	ClearedAt        time.Time `gorm:"not null" json:"cleared_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetPendingFeeByIntent(ctx context.Context, paymentIntentId string) (*PendingFee, error) {
	if paymentIntentId == "" {
		return nil, errors.New("payment intent id is required")
	}
	db := config.GetDB()
	var fee PendingFee
	if err := db.WithContext(ctx).First(&fee, "payment_intent_id = ?", paymentIntentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

func GetClearedFeeByIntent(ctx context.Context, paymentIntentId string) (*ClearedFee, error) {
	if paymentIntentId == "" {
		return nil, errors.New("payment intent id is required")
	}
	db := config.GetDB()
	var fee ClearedFee
	if err := db.WithContext(ctx).First(&fee, "payment_intent_id = ?", paymentIntentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

func MarkPendingFeeStatus(ctx context.Context, paymentIntentId string, status PendingFeeStatus) error {
	if paymentIntentId == "" {
		return errors.New("payment intent id is required")
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&PendingFee{}).
		Where("payment_intent_id = ?", paymentIntentId).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("pending fee for %s: %w", paymentIntentId, utils.ErrorRecordNotFound)
	}
	return nil
}
