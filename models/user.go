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

type User struct {
	ID      string `gorm:"primaryKey;size:64" json:"id"`
	Name    string `gorm:"size:255;not null" json:"name" binding:"required"`
	Email   string `gorm:"size:255;uniqueIndex;not null" json:"email" binding:"required,email"`
	Role    string `gorm:"size:32;default:user" json:"role"`
	IsAdmin bool   `gorm:"default:false" json:"is_admin"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetUserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &user, nil
}
