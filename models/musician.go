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

// MusicianProfile carries the earnings counters that the billing engine
// maintains. All three counters are money in GBP:
//   - TotalEarnings: lifetime sum of cleared fees
//   - PendingFunds: fees credited but still inside the dispute window
//   - WithdrawableEarnings: cleared fees not yet paid out
type MusicianProfile struct {
	ID     string `gorm:"primaryKey;size:64" json:"id"`
	UserId string `gorm:"size:64;index" json:"user_id"`
	Name   string `gorm:"size:255;not null" json:"name" binding:"required"`
	Email  string `gorm:"size:255;index" json:"email"`

	// IsBand marks a band profile; its earnings route to the admin's profile.
	IsBand              bool   `gorm:"default:false" json:"is_band"`
	BandAdminMusicianId string `gorm:"size:64" json:"band_admin_musician_id"`

	StripeAccountId  string `gorm:"size:255;index" json:"stripe_account_id"`
	TransfersEnabled bool   `gorm:"default:false" json:"transfers_enabled"`
	// LastEarningsTransferAccountId remembers which connected account already
	// received the one-time legacy balance transfer, so account.updated
	// redeliveries cannot double-pay.
	LastEarningsTransferAccountId string `gorm:"size:255" json:"last_earnings_transfer_account_id"`

	TotalEarnings        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_earnings"`
	PendingFunds         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"pending_funds"`
	WithdrawableEarnings decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"withdrawable_earnings"`
	GigsPerformed        int             `gorm:"default:0" json:"gigs_performed"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetMusicianByID(ctx context.Context, id string) (*MusicianProfile, error) {
	if id == "" {
		return nil, errors.New("musician id is required")
	}
	db := config.GetDB()
	var musician MusicianProfile
	if err := db.WithContext(ctx).First(&musician, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("musician %s: %w", id, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &musician, nil
}

// CountGigsPerformed recounts from the cleared fee ledger. Source of truth
// for the profile counter when it drifts.
func CountGigsPerformed(ctx context.Context, musicianId string) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&ClearedFee{}).
		Where("musician_id = ?", musicianId).
		Distinct("gig_id").
		Count(&count).Error
	return count, err
}
