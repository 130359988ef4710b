package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/utils"
	"gorm.io/gorm"
)

type VenueProfile struct {
	ID     string `gorm:"primaryKey;size:64" json:"id"`
	UserId string `gorm:"size:64;index" json:"user_id"`
	Name   string `gorm:"size:255;not null" json:"name" binding:"required"`
	Email  string `gorm:"size:255;index" json:"email"`
	City   string `gorm:"size:128" json:"city"`

	// StripeCustomerId holds the venue's saved card customer; payments for
	// this venue's gigs charge against it.
	StripeCustomerId string `gorm:"size:255;index" json:"stripe_customer_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetVenueByID(ctx context.Context, id string) (*VenueProfile, error) {
	if id == "" {
		return nil, errors.New("venue id is required")
	}
	db := config.GetDB()
	var venue VenueProfile
	if err := db.WithContext(ctx).First(&venue, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("venue %s: %w", id, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &venue, nil
}

// GetVenueByStripeCustomer resolves a venue from its Stripe customer id.
// Used by webhook handlers that only carry Stripe identifiers.
func GetVenueByStripeCustomer(ctx context.Context, customerId string) (*VenueProfile, error) {
	if customerId == "" {
		return nil, errors.New("stripe customer id is required")
	}
	db := config.GetDB()
	var venue VenueProfile
	if err := db.WithContext(ctx).First(&venue, "stripe_customer_id = ?", customerId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("venue for customer %s: %w", customerId, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &venue, nil
}
