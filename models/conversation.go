package models

import (
	"context"
	"errors"
	"time"

	"github.com/giginltd/gigin_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is the venue<->musician thread attached to a gig. Billing
// drops announcement messages into it on payment success and review prompts
// after the gig.
type Conversation struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	GigId         string    `gorm:"size:64;index;not null" json:"gig_id"`
	VenueId       string    `gorm:"size:64;index;not null" json:"venue_id"`
	MusicianId    string    `gorm:"size:64;index;not null" json:"musician_id"`
	LastMessage   string    `gorm:"type:text" json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Message struct {
	ID             string      `gorm:"primaryKey;size:64" json:"id"`
	ConversationId string      `gorm:"size:64;index;not null" json:"conversation_id"`
	SenderId       string      `gorm:"size:64;not null" json:"sender_id"`
	Type           MessageType `gorm:"size:32;default:TEXT" json:"type"`
	Text           string      `gorm:"type:text" json:"text"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// SenderSystem marks messages the platform writes into a thread itself.
const SenderSystem = "system"

func GetConversationForGig(ctx context.Context, gigId string, musicianId string) (*Conversation, error) {
	if gigId == "" {
		return nil, errors.New("gig id is required")
	}
	db := config.GetDB()
	var conv Conversation
	err := db.WithContext(ctx).
		First(&conv, "gig_id = ? AND musician_id = ?", gigId, musicianId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// AppendMessage inserts a message and bumps the conversation preview in one
// transaction.
func AppendMessage(ctx context.Context, conversationId string, senderId string, msgType MessageType, text string) (*Message, error) {
	if conversationId == "" {
		return nil, errors.New("conversation id is required")
	}
	now := time.Now().UTC()
	msg := Message{
		ID:             uuid.NewString(),
		ConversationId: conversationId,
		SenderId:       senderId,
		Type:           msgType,
		Text:           text,
		CreatedAt:      now,
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).Where("id = ?", conversationId).Updates(map[string]interface{}{
			"last_message":    text,
			"last_message_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
