package billing

import (
	"context"
	"errors"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/notify"
	"github.com/giginltd/gigin_backend/tasks"
)

// PostReviewPrompt runs the post-gig review task: drop the prompt into the
// gig thread, ask both sides by email, and forget the task name.
func (e *Engine) PostReviewPrompt(ctx context.Context, payload *tasks.ReviewPromptPayload) error {
	gig, err := models.GetGigByID(ctx, payload.GigId)
	if err != nil {
		return err
	}
	if err := notify.PostReviewPrompt(ctx, payload.GigId, payload.ConversationId, payload.MusicianId); err != nil {
		return err
	}

	// The emails ride the outbox; once the thread message is in they are best
	// effort, a half-delivered prompt must not make the task retry the lot.
	musician, err := models.GetMusicianByID(ctx, payload.MusicianId)
	if err != nil {
		config.LogError(e.Logger, "billing", "PostReviewPrompt", "load musician", payload.MusicianId, err)
		musician = nil
	}
	venue, err := models.GetVenueByID(ctx, gig.VenueId)
	if err != nil {
		config.LogError(e.Logger, "billing", "PostReviewPrompt", "load venue", gig.VenueId, err)
		venue = nil
	}
	if err := notify.EnqueueReviewPromptEmails(ctx, musician, venue, gig); err != nil {
		config.LogError(e.Logger, "billing", "PostReviewPrompt", "enqueue review emails", gig.ID, err)
	}

	if err := saveGigTaskName(ctx, payload.GigId, "review_prompt_task_name", ""); err != nil {
		config.LogError(e.Logger, "billing", "PostReviewPrompt", "clear task name", payload.GigId, err)
	}
	return nil
}

// CancelTask removes a scheduled task by name. Admin tooling for when a gig
// is cancelled or rescheduled out-of-band.
func (e *Engine) CancelTask(ctx context.Context, taskName string) error {
	if e.Scheduler == nil {
		return errors.New("task scheduler not configured")
	}
	return e.Scheduler.Cancel(ctx, taskName)
}
