package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// DefaultHorizon is the furthest ahead Cloud Tasks will accept a schedule
// time (30 days). Anything later is reached by chaining through the requeue
// endpoint.
const DefaultHorizon = 720 * time.Hour

// RequeuePath is the endpoint that advances an Envelope one horizon hop.
const RequeuePath = "/tasks/requeue"

// TaskRequest is one HTTP task to enqueue.
type TaskRequest struct {
	URL                 string
	Body                []byte
	ScheduleTime        time.Time
	ServiceAccountEmail string
}

// Enqueuer is the queue backend. The Cloud Tasks implementation is below;
// tests substitute their own.
type Enqueuer interface {
	CreateTask(ctx context.Context, queuePath string, req *TaskRequest) (string, error)
	DeleteTask(ctx context.Context, taskName string) error
}

// Scheduler schedules deferred HTTP callbacks against this service. Run
// times beyond Horizon are reached by trampolining through RequeuePath.
type Scheduler struct {
	Enqueuer            Enqueuer
	QueuePath           string
	BaseURL             string
	ServiceAccountEmail string
	Horizon             time.Duration
	Now                 func() time.Time
}

func NewScheduler(enqueuer Enqueuer, queuePath string, baseURL string, serviceAccountEmail string) *Scheduler {
	return &Scheduler{
		Enqueuer:            enqueuer,
		QueuePath:           queuePath,
		BaseURL:             strings.TrimRight(baseURL, "/"),
		ServiceAccountEmail: serviceAccountEmail,
		Horizon:             DefaultHorizon,
		Now:                 time.Now,
	}
}

// ScheduleAt enqueues payload for delivery to targetPath at runAt. Returns
// the queue-assigned task name of the task actually created, which callers
// persist so the job can later be cancelled or rescheduled.
func (s *Scheduler) ScheduleAt(ctx context.Context, targetPath string, payload any, runAt time.Time) (string, error) {
	if s.Enqueuer == nil {
		return "", errors.New("scheduler has no enqueuer")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return s.scheduleRaw(ctx, targetPath, raw, runAt)
}

// Requeue advances an envelope one hop. Called by the requeue endpoint.
func (s *Scheduler) Requeue(ctx context.Context, env *Envelope) (string, error) {
	if env.TargetPath == "" {
		return "", errors.New("envelope has no target path")
	}
	return s.scheduleRaw(ctx, env.TargetPath, env.Payload, env.RunAt)
}

func (s *Scheduler) scheduleRaw(ctx context.Context, targetPath string, payload json.RawMessage, runAt time.Time) (string, error) {
	now := s.now()
	horizon := s.horizon()

	if runAt.Sub(now) > horizon {
		// Too far out for the queue. Park an envelope one horizon ahead; the
		// requeue endpoint will take the next hop.
		env := Envelope{TargetPath: targetPath, RunAt: runAt, Payload: payload}
		body, err := json.Marshal(env)
		if err != nil {
			return "", err
		}
		return s.Enqueuer.CreateTask(ctx, s.QueuePath, &TaskRequest{
			URL:                 s.BaseURL + RequeuePath,
			Body:                body,
			ScheduleTime:        now.Add(horizon),
			ServiceAccountEmail: s.ServiceAccountEmail,
		})
	}

	return s.Enqueuer.CreateTask(ctx, s.QueuePath, &TaskRequest{
		URL:                 s.BaseURL + targetPath,
		Body:                payload,
		ScheduleTime:        runAt,
		ServiceAccountEmail: s.ServiceAccountEmail,
	})
}

// Cancel deletes a previously scheduled task. A task that already ran or
// was already deleted is not an error.
func (s *Scheduler) Cancel(ctx context.Context, taskName string) error {
	if taskName == "" {
		return nil
	}
	err := s.Enqueuer.DeleteTask(ctx, taskName)
	if err != nil && status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) horizon() time.Duration {
	if s.Horizon > 0 {
		return s.Horizon
	}
	return DefaultHorizon
}

// CloudTasksEnqueuer backs the scheduler with Google Cloud Tasks. Tasks
// carry an OIDC token so the receiving endpoints can verify the caller.
type CloudTasksEnqueuer struct {
	Client *cloudtasks.Client
}

func (e *CloudTasksEnqueuer) CreateTask(ctx context.Context, queuePath string, req *TaskRequest) (string, error) {
	task := &cloudtaskspb.Task{
		ScheduleTime: timestamppb.New(req.ScheduleTime),
		MessageType: &cloudtaskspb.Task_HttpRequest{
			HttpRequest: &cloudtaskspb.HttpRequest{
				HttpMethod: cloudtaskspb.HttpMethod_POST,
				Url:        req.URL,
				Body:       req.Body,
				Headers:    map[string]string{"Content-Type": "application/json"},
				AuthorizationHeader: &cloudtaskspb.HttpRequest_OidcToken{
					OidcToken: &cloudtaskspb.OidcToken{
						ServiceAccountEmail: req.ServiceAccountEmail,
					},
				},
			},
		},
	}
	created, err := e.Client.CreateTask(ctx, &cloudtaskspb.CreateTaskRequest{
		Parent: queuePath,
		Task:   task,
	})
	if err != nil {
		return "", err
	}
	return created.GetName(), nil
}

func (e *CloudTasksEnqueuer) DeleteTask(ctx context.Context, taskName string) error {
	return e.Client.DeleteTask(ctx, &cloudtaskspb.DeleteTaskRequest{Name: taskName})
}
