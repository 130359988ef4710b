package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

var (
	tasksClient   *cloudtasks.Client
	tasksClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

// GetTasksClient returns a Cloud Tasks client, initializing with retries if
// needed. It uses Application Default Credentials unless
// TASKS_CREDENTIALS_JSON is provided.
func GetTasksClient(ctx context.Context) (*cloudtasks.Client, error) {
	tasksClientMu.Lock()
	if tasksClient != nil {
		c := tasksClient
		tasksClientMu.Unlock()
		return c, nil
	}
	tasksClientMu.Unlock()

	credJSON := os.Getenv("TASKS_CREDENTIALS_JSON")

	var attempt int
	for {
		attempt++

		var (
			c   *cloudtasks.Client
			err error
		)
		if credJSON != "" {
			c, err = cloudtasks.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		} else {
			// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
			c, err = cloudtasks.NewClient(ctx)
		}
		if err == nil {
			tasksClientMu.Lock()
			if tasksClient == nil {
				tasksClient = c
			} else {
				// Another goroutine won the race; close ours.
				_ = c.Close()
			}
			c2 := tasksClient
			tasksClientMu.Unlock()

			log.Printf("cloud tasks client ready (attempt=%d)", attempt)
			return c2, nil
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to init cloud tasks client (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// GetTasksQueuePath builds the fully-qualified queue path for the named
// queue, e.g. projects/<p>/locations/<l>/queues/<q>.
func GetTasksQueuePath(queue string) (string, error) {
	projectID := getPubSubProjectID()
	if projectID == "" {
		return "", errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	location := os.Getenv("TASKS_LOCATION")
	if location == "" {
		location = "europe-west2"
	}
	if queue == "" {
		return "", errors.New("queue is required")
	}
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s", projectID, location, queue), nil
}

// GetTasksTargetBaseURL is the public base URL of this service, used as the
// HTTP target for tasks that call back into /tasks/* endpoints.
func GetTasksTargetBaseURL() string {
	return os.Getenv("TASKS_TARGET_BASE_URL")
}

// GetTasksServiceAccountEmail is the invoker identity stamped on task OIDC
// tokens and verified by the task middleware.
func GetTasksServiceAccountEmail() string {
	return os.Getenv("TASKS_SERVICE_ACCOUNT_EMAIL")
}
