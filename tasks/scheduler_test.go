package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recordedTask struct {
	Name string
	URL  string
	Body []byte
	At   time.Time
}

type fakeEnqueuer struct {
	created []recordedTask
	deleted []string
	next    int
}

func (f *fakeEnqueuer) CreateTask(ctx context.Context, queuePath string, req *TaskRequest) (string, error) {
	f.next++
	name := fmt.Sprintf("%s/tasks/%d", queuePath, f.next)
	f.created = append(f.created, recordedTask{Name: name, URL: req.URL, Body: req.Body, At: req.ScheduleTime})
	return name, nil
}

func (f *fakeEnqueuer) DeleteTask(ctx context.Context, taskName string) error {
	f.deleted = append(f.deleted, taskName)
	return nil
}

func newTestScheduler(enq *fakeEnqueuer, now time.Time) *Scheduler {
	s := NewScheduler(enq, "projects/p/locations/l/queues/q", "https://api.example.com", "svc@example.com")
	s.Now = func() time.Time { return now }
	return s
}

func TestScheduleWithinHorizonGoesDirect(t *testing.T) {
	enq := &fakeEnqueuer{}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(enq, now)

	runAt := now.Add(49 * time.Hour)
	payload := ClearFeePayload{GigId: "gig-1", PaymentIntentId: "pi_1"}
	name, err := s.ScheduleAt(context.Background(), ClearFeePath, payload, runAt)
	if err != nil {
		t.Fatal(err)
	}
	if name == "" {
		t.Error("expected a task name")
	}
	if len(enq.created) != 1 {
		t.Fatalf("created %d tasks, want 1", len(enq.created))
	}
	task := enq.created[0]
	if task.URL != "https://api.example.com"+ClearFeePath {
		t.Errorf("URL = %s", task.URL)
	}
	if !task.At.Equal(runAt) {
		t.Errorf("schedule time = %v, want %v", task.At, runAt)
	}
	var got ClearFeePayload
	if err := json.Unmarshal(task.Body, &got); err != nil {
		t.Fatal(err)
	}
	if got != payload {
		t.Errorf("payload = %+v, want %+v", got, payload)
	}
}

// simulateHops plays the queue forward: every time a requeue task fires, the
// envelope takes the next hop with the clock moved to the fire time. Returns
// the total number of tasks created and the final task.
func simulateHops(t *testing.T, s *Scheduler, enq *fakeEnqueuer) recordedTask {
	t.Helper()
	for i := 0; i < 100; i++ {
		last := enq.created[len(enq.created)-1]
		if last.URL != s.BaseURL+RequeuePath {
			return last
		}
		var env Envelope
		if err := json.Unmarshal(last.Body, &env); err != nil {
			t.Fatal(err)
		}
		fireAt := last.At
		s.Now = func() time.Time { return fireAt }
		if _, err := s.Requeue(context.Background(), &env); err != nil {
			t.Fatal(err)
		}
	}
	t.Fatal("hop chain did not terminate")
	return recordedTask{}
}

func TestScheduleBeyondHorizonHopCount(t *testing.T) {
	horizon := DefaultHorizon
	cases := []struct {
		delay    time.Duration
		wantHops int
	}{
		{720 * time.Hour, 1},
		{721 * time.Hour, 2},
		{1440 * time.Hour, 2},
		{2000 * time.Hour, 3},
		{3 * 720 * time.Hour, 3},
		{10*720*time.Hour + time.Minute, 11},
	}
	for _, tc := range cases {
		t.Run(tc.delay.String(), func(t *testing.T) {
			enq := &fakeEnqueuer{}
			now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
			s := newTestScheduler(enq, now)

			runAt := now.Add(tc.delay)
			payload := ClearFeePayload{GigId: "gig-1", PaymentIntentId: "pi_1", MusicianId: "mus-1"}
			if _, err := s.ScheduleAt(context.Background(), ClearFeePath, payload, runAt); err != nil {
				t.Fatal(err)
			}
			final := simulateHops(t, s, enq)

			if len(enq.created) != tc.wantHops {
				t.Errorf("created %d tasks, want %d (ceil(delay/horizon))", len(enq.created), tc.wantHops)
			}
			if !final.At.Equal(runAt) {
				t.Errorf("final task fires at %v, want %v", final.At, runAt)
			}
			var got ClearFeePayload
			if err := json.Unmarshal(final.Body, &got); err != nil {
				t.Fatal(err)
			}
			if got != payload {
				t.Errorf("payload lost through hops: %+v", got)
			}
			// Every intermediate hop stays inside the horizon.
			prev := now
			for _, task := range enq.created {
				if task.At.Sub(prev) > horizon {
					t.Errorf("hop at %v exceeds horizon from %v", task.At, prev)
				}
				prev = task.At
			}
		})
	}
}

func TestCancelTolerateAlreadyGone(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := newTestScheduler(enq, time.Now())

	if err := s.Cancel(context.Background(), "projects/p/locations/l/queues/q/tasks/1"); err != nil {
		t.Fatal(err)
	}
	if len(enq.deleted) != 1 {
		t.Errorf("deleted %d, want 1", len(enq.deleted))
	}

	// A task that already ran comes back NotFound; that is success.
	gone := &notFoundEnqueuer{}
	s.Enqueuer = gone
	if err := s.Cancel(context.Background(), "whatever"); err != nil {
		t.Errorf("NotFound should be swallowed, got %v", err)
	}

	// Empty name is a no-op.
	if err := s.Cancel(context.Background(), ""); err != nil {
		t.Errorf("empty name: %v", err)
	}
}

type notFoundEnqueuer struct{}

func (notFoundEnqueuer) CreateTask(ctx context.Context, queuePath string, req *TaskRequest) (string, error) {
	return "", status.Error(codes.Internal, "unused")
}

func (notFoundEnqueuer) DeleteTask(ctx context.Context, taskName string) error {
	return status.Error(codes.NotFound, "task not found")
}
