package models

import (
	"context"
	"errors"
	"time"

	"github.com/giginltd/gigin_backend/config"
)

// MailMessage is a durable outbox row for transactional email. Handlers
// enqueue inside their own DB transaction; the dispatcher claims and sends
// later, so a Stripe webhook never blocks on an SMTP provider.
type MailMessage struct {
	ID            int        `gorm:"primary_key" json:"id"`
	ToEmail       string     `gorm:"size:255;not null" json:"to_email"`
	ToName        string     `gorm:"size:255" json:"to_name"`
	Subject       string     `gorm:"size:512;not null" json:"subject"`
	HtmlBody      string     `gorm:"type:mediumtext;not null" json:"html_body"`
	Status        MailStatus `gorm:"size:16;index;not null;default:PENDING" json:"status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      *string    `gorm:"size:64" json:"locked_by"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMailMessage struct {
	ToEmail  string
	ToName   string
	Subject  string
	HtmlBody string
}

func EnqueueMail(ctx context.Context, input *NewMailMessage) error {
	if input.ToEmail == "" {
		return errors.New("to email is required")
	}
	now := time.Now().UTC()
	msg := MailMessage{
		ToEmail:       input.ToEmail,
		ToName:        input.ToName,
		Subject:       input.Subject,
		HtmlBody:      input.HtmlBody,
		Status:        MailStatusPending,
		NextAttemptAt: &now,
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&msg).Error
}
