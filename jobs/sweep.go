package jobs

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/giginltd/gigin_backend/billing"
	"github.com/giginltd/gigin_backend/config"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Manager owns the in-process periodic jobs.
type Manager struct {
	scheduler gocron.Scheduler
	sweeper   *billing.Sweeper
	logger    *logrus.Logger
}

func NewManager(sweeper *billing.Sweeper, logger *logrus.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Manager{scheduler: s, sweeper: sweeper, logger: logger}, nil
}

// Start registers the jobs and starts the scheduler. Returns the manager so
// main can stop it on shutdown.
func Start(sweeper *billing.Sweeper, logger *logrus.Logger) (*Manager, error) {
	m, err := NewManager(sweeper, logger)
	if err != nil {
		return nil, err
	}
	if err := m.RegisterJobs(); err != nil {
		return nil, err
	}
	m.scheduler.Start()
	return m, nil
}

func (m *Manager) RegisterJobs() error {
	return m.registerSweepJob()
}

func (m *Manager) registerSweepJob() error {
	interval := sweepInterval()
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.runSweep),
		gocron.WithName("payment-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (m *Manager) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), billing.SweepLeaseTTL)
	defer cancel()

	examined, err := m.sweeper.Sweep(ctx)
	if err != nil {
		config.LogError(m.logger, "jobs", "runSweep", "payment sweep", nil, err)
		return
	}
	if examined > 0 {
		m.logger.WithFields(logrus.Fields{
			"module":   "jobs",
			"examined": examined,
		}).Info("payment sweep completed")
	}
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		config.LogError(m.logger, "jobs", "Stop", "scheduler shutdown", nil, err)
	}
}

// sweepInterval is how often the sweep ticks.
//
// Set via env:
// - PAYMENT_SWEEP_INTERVAL_MINUTES (default 10)
func sweepInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("PAYMENT_SWEEP_INTERVAL_MINUTES"))
	if v == "" {
		return 10 * time.Minute
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(n) * time.Minute
}
