package notify

import (
	"context"
	"fmt"

	"github.com/giginltd/gigin_backend/models"
)

// AnnouncePaymentReceived drops a system announcement into the gig thread
// after payment succeeds. Missing conversations are skipped, not errors; a
// gig booked through an invite may not have a thread yet.
func AnnouncePaymentReceived(ctx context.Context, gig *models.Gig, musicianId string) error {
	conv, err := models.GetConversationForGig(ctx, gig.ID, musicianId)
	if err != nil {
		return err
	}
	if conv == nil {
		return nil
	}
	text := fmt.Sprintf("The fee for this gig on %s has been paid and is held securely. It will be released to the musician after the gig.", gig.Date)
	_, err = models.AppendMessage(ctx, conv.ID, models.SenderSystem, models.MessageTypeAnnouncement, text)
	return err
}

// AnnouncePaymentFailed tells the gig thread the booking payment bounced so
// the musician knows the gig is back open.
func AnnouncePaymentFailed(ctx context.Context, gig *models.Gig, musicianId string) error {
	conv, err := models.GetConversationForGig(ctx, gig.ID, musicianId)
	if err != nil {
		return err
	}
	if conv == nil {
		return nil
	}
	text := "The payment for this gig failed. Please try again or contact support."
	_, err = models.AppendMessage(ctx, conv.ID, models.SenderSystem, models.MessageTypeAnnouncement, text)
	return err
}

// PostReviewPrompt asks both sides for a review once the gig has happened.
func PostReviewPrompt(ctx context.Context, gigId string, conversationId string, musicianId string) error {
	if conversationId == "" {
		conv, err := models.GetConversationForGig(ctx, gigId, musicianId)
		if err != nil {
			return err
		}
		if conv == nil {
			return nil
		}
		conversationId = conv.ID
	}
	text := "How did the gig go? Leave a review to help other venues and musicians."
	_, err := models.AppendMessage(ctx, conversationId, models.SenderSystem, models.MessageTypeReview, text)
	return err
}
