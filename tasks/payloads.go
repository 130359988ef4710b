package tasks

import (
	"encoding/json"
	"time"
)

// Target paths for the deferred jobs this service schedules against itself.
const (
	ClearFeePath     = "/tasks/clear-pending-fee"
	ReviewPromptPath = "/tasks/review-prompt"
)

// Envelope wraps a deferred job. When the run time is further out than the
// queue's scheduling horizon, the envelope itself is enqueued to the requeue
// endpoint, which re-enqueues it one horizon closer each hop until the final
// hop lands on the target path at the true run time.
type Envelope struct {
	TargetPath string          `json:"target_path"`
	RunAt      time.Time       `json:"run_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ClearFeePayload triggers release of a pending fee once the dispute window
// has passed.
type ClearFeePayload struct {
	GigId           string `json:"gig_id"`
	PaymentIntentId string `json:"payment_intent_id"`
	MusicianId      string `json:"musician_id"`
}

// ReviewPromptPayload posts the post-gig review message into the gig thread.
type ReviewPromptPayload struct {
	GigId          string `json:"gig_id"`
	ConversationId string `json:"conversation_id"`
	MusicianId     string `json:"musician_id"`
	VenueId        string `json:"venue_id"`
}
