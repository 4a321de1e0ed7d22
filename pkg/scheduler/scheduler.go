package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/robfig/cron/v3"

	"github.com/Ramsey-B/clover/pkg/models"
)

var (
	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
)

// DefaultTickTimeout bounds one batch sync run
const DefaultTickTimeout = 10 * time.Minute

// Syncer is the batch entry point the scheduler drives on each tick
type Syncer interface {
	SyncAll(ctx context.Context) (models.BatchReport, error)
}

// Scheduler triggers the recurring batch sync on a cron schedule. The
// per-feed redis lock keeps a tick from racing user-triggered syncs, so ticks
// need no coordination of their own.
type Scheduler struct {
	cron     *cron.Cron
	syncer   Syncer
	schedule string
	timeout  time.Duration
	logger   ectologger.Logger

	running bool
	mu      sync.Mutex
}

// NewScheduler creates a scheduler with a standard 5-field cron expression
func NewScheduler(syncer Syncer, schedule string, logger ectologger.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		syncer:   syncer,
		schedule: schedule,
		timeout:  DefaultTickTimeout,
		logger:   logger,
	}
}

// Start registers the sync job and begins ticking
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true
	s.logger.Infof("Sync scheduler started with schedule %q", s.schedule)
	return nil
}

// Stop halts ticking and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Sync scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled sync run failed")
		return
	}

	s.logger.WithFields(map[string]any{
		"total":    report.Total,
		"synced":   report.Synced,
		"inserted": report.Inserted,
		"updated":  report.Updated,
		"deleted":  report.Deleted,
		"errors":   len(report.Errors),
	}).Infof("Scheduled sync run finished")
}
