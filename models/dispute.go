package models

import (
	"context"
	"errors"
	"time"

	"github.com/giginltd/gigin_backend/config"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

var ErrDisputeExists = errors.New("a dispute is already logged for this payment")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// Dispute is a venue's challenge to a gig fee inside the dispute window.
// While one is open the pending fee cannot clear.
type Dispute struct {
	ID              string        `gorm:"primaryKey;size:64" json:"id"`
	GigId           string        `gorm:"size:64;index;not null" json:"gig_id"`
	PaymentIntentId string        `gorm:"size:255;uniqueIndex;not null" json:"payment_intent_id"`
	VenueId         string        `gorm:"size:64;not null" json:"venue_id"`
	Reason          string        `gorm:"type:text" json:"reason"`
	Status          DisputeStatus `gorm:"size:32;index;not null" json:"status"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDispute struct {
	GigId           string `json:"gig_id" binding:"required"`
	PaymentIntentId string `json:"payment_intent_id" binding:"required"`
	VenueId         string `json:"venue_id" binding:"required"`
	Reason          string `json:"reason"`
}

func CreateDispute(ctx context.Context, input *NewDispute) (*Dispute, error) {
	dispute := Dispute{
		ID:              uuid.NewString(),
		GigId:           input.GigId,
		PaymentIntentId: input.PaymentIntentId,
		VenueId:         input.VenueId,
		Reason:          input.Reason,
		Status:          DisputeStatusOpen,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&dispute).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrDisputeExists
		}
		return nil, err
	}
	return &dispute, nil
}

func HasOpenDispute(ctx context.Context, gigId string) (bool, error) {
	if gigId == "" {
		return false, errors.New("gig id is required")
	}
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&Dispute{}).
		Where("gig_id = ? AND status = ?", gigId, DisputeStatusOpen).
		Count(&count).Error
	return count > 0, err
}
