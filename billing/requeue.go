package billing

import (
	"context"
	"encoding/json"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/tasks"
)

// HandleRequeue takes one horizon hop for a far-future job: the envelope is
// re-enqueued and the fresh task name recorded on the gig so cancellation
// always targets the live task.
func (e *Engine) HandleRequeue(ctx context.Context, env *tasks.Envelope) (string, error) {
	name, err := e.Scheduler.Requeue(ctx, env)
	if err != nil {
		return "", err
	}

	gigId, column := requeueBookkeeping(env)
	if gigId != "" && column != "" {
		if err := saveGigTaskName(ctx, gigId, column, name); err != nil {
			config.LogError(e.Logger, "billing", "HandleRequeue", "save hopped task name", gigId, err)
		}
	}
	return name, nil
}

func requeueBookkeeping(env *tasks.Envelope) (gigId string, column string) {
	switch env.TargetPath {
	case tasks.ClearFeePath:
		var p tasks.ClearFeePayload
		if err := json.Unmarshal(env.Payload, &p); err == nil {
			return p.GigId, "clear_pending_fee_task_name"
		}
	case tasks.ReviewPromptPath:
		var p tasks.ReviewPromptPayload
		if err := json.Unmarshal(env.Payload, &p); err == nil {
			return p.GigId, "review_prompt_task_name"
		}
	}
	return "", ""
}
