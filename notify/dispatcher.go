package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/giginltd/gigin_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MailDispatcher drains the mail outbox. Rows are claimed under SKIP LOCKED
// so multiple instances can run; stale PROCESSING claims are reclaimed after
// LockTimeout in case a dispatcher died mid-batch.
type MailDispatcher struct {
	DB           *gorm.DB
	Sender       Sender
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewMailDispatcher(db *gorm.DB, sender Sender, logger *logrus.Logger) *MailDispatcher {
	return &MailDispatcher{
		DB:             db,
		Sender:         sender,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   2 * time.Second,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    10,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *MailDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *MailDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil {
		return
	}

	var claimed []models.MailMessage
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale, reclaim after LockTimeout
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []models.MailStatus{models.MailStatusPending, models.MailStatusFailed}, now, models.MailStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			// Poison messages go terminal after max attempts.
			if d.MaxAttempts > 0 && claimed[i].Attempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max send attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].Status = models.MailStatusDead
				if err := tx.Model(&models.MailMessage{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":          models.MailStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].Status = models.MailStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].Attempts = claimed[i].Attempts + 1
			if err := tx.Model(&models.MailMessage{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          models.MailStatusProcessing,
				"locked_at":       claimed[i].LockedAt,
				"locked_by":       claimed[i].LockedBy,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, msg := range claimed {
		if msg.Status == models.MailStatusDead {
			continue
		}
		sendErr := d.Sender.Send(ctx, msg.ToEmail, msg.ToName, msg.Subject, msg.HtmlBody)
		if sendErr != nil {
			d.markSendFailed(ctx, msg.ID, sendErr, msg.Attempts)
			continue
		}
		d.markSent(ctx, msg.ID)
	}
}

func (d *MailDispatcher) markSent(ctx context.Context, id int) {
	_ = d.DB.WithContext(ctx).Model(&models.MailMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          models.MailStatusSent,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
}

func (d *MailDispatcher) markSendFailed(ctx context.Context, id int, err error, attempt int) {
	now := time.Now().UTC()
	msg := err.Error()

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = d.DB.WithContext(ctx).Model(&models.MailMessage{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":          models.MailStatusDead,
				"last_error":      &msg,
				"next_attempt_at": nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":   "MailDispatcher",
				"mail_id": id,
				"attempt": attempt,
			}).Error("mail moved to DEAD after max attempts: " + msg)
		}
		return
	}

	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			backoff = time.Minute * 10
			break
		}
	}
	next := now.Add(backoff)
	_ = d.DB.WithContext(ctx).Model(&models.MailMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          models.MailStatusFailed,
			"last_error":      &msg,
			"next_attempt_at": &next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "MailDispatcher",
			"mail_id":         id,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("mail send failed: " + msg)
	}
}
