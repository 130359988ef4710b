package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/tasks"
)

type captureEnqueuer struct {
	reqs []*tasks.TaskRequest
}

func (c *captureEnqueuer) CreateTask(ctx context.Context, queuePath string, req *tasks.TaskRequest) (string, error) {
	c.reqs = append(c.reqs, req)
	return fmt.Sprintf("task-%d", len(c.reqs)), nil
}

func (c *captureEnqueuer) DeleteTask(ctx context.Context, taskName string) error {
	return nil
}

func TestReviewPromptScheduledAtGigStart(t *testing.T) {
	enq := &captureEnqueuer{}
	sched := tasks.NewScheduler(enq, "projects/p/locations/l/queues/q", "https://api.test", "svc@test.iam")
	start := time.Date(2025, 6, 20, 19, 30, 0, 0, time.UTC)
	sched.Now = func() time.Time { return start.Add(-24 * time.Hour) }

	e := NewEngine(nil, sched, quietLogger())
	gig := &models.Gig{
		ID:            "gig-1",
		VenueId:       "ven-1",
		StartDateTime: start,
		DurationMins:  120,
	}

	e.scheduleReviewPrompt(context.Background(), gig, "mus-1")

	if len(enq.reqs) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enq.reqs))
	}
	req := enq.reqs[0]
	// The prompt fires when the gig starts, not when it ends.
	if !req.ScheduleTime.Equal(start) {
		t.Errorf("scheduled at %s, want gig start %s", req.ScheduleTime, start)
	}
	if want := "https://api.test" + tasks.ReviewPromptPath; req.URL != want {
		t.Errorf("url = %s, want %s", req.URL, want)
	}
}
