package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PabloReca/busca-pisos/internal/models"
)

// JobType says what triggered a refresh
type JobType int

const (
	JobTypeStartup JobType = iota
	JobTypeScheduled
	JobTypeManual
	JobTypeBackground
)

// String returns the string representation of a JobType
func (j JobType) String() string {
	switch j {
	case JobTypeStartup:
		return "startup"
	case JobTypeScheduled:
		return "scheduled"
	case JobTypeManual:
		return "manual"
	case JobTypeBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Refresher runs one full refresh
type Refresher interface {
	RefreshAll(ctx context.Context) models.RefreshSummary
}

// Scheduler triggers refreshes on a timer and on demand. Refreshes never
// run concurrently.
type Scheduler struct {
	refresher    Refresher
	logger       *logrus.Logger
	interval     time.Duration
	runOnStartup bool
	stopChan     chan struct{}
	mu           sync.Mutex // Guards stopped and every wg.Add
	stopped      bool
	wg           sync.WaitGroup
	jobMutex     sync.Mutex // Ensures sequential job execution
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewScheduler creates a new scheduler. An interval of zero disables the
// periodic refresh.
func NewScheduler(refresher Refresher, interval time.Duration, runOnStartup bool, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		refresher:    refresher,
		logger:       logger,
		interval:     interval,
		runOnStartup: runOnStartup,
		stopChan:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	if s.runOnStartup {
		s.spawn(JobTypeStartup)
	}

	if s.interval <= 0 {
		s.logger.Info("Periodic refresh disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval.String()).Info("Periodic refresh scheduled")
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.run(s.ctx, JobTypeScheduled)
		}
	}
}

// RunNow runs a refresh and waits for its summary
func (s *Scheduler) RunNow(ctx context.Context) models.RefreshSummary {
	return s.run(ctx, JobTypeManual)
}

// RunAsync starts a refresh in the background. It reports false once the
// scheduler has been stopped.
func (s *Scheduler) RunAsync() bool {
	return s.spawn(JobTypeBackground)
}

func (s *Scheduler) spawn(job JobType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.ctx, job)
	}()
	return true
}

func (s *Scheduler) run(ctx context.Context, job JobType) models.RefreshSummary {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	log := s.logger.WithField("job_type", job.String())
	log.Info("Starting refresh job")

	summary := s.refresher.RefreshAll(ctx)

	entry := log.WithFields(logrus.Fields{
		"run_id":   summary.RunID,
		"success":  summary.Success,
		"duration": summary.DurationSeconds,
	})
	if summary.Success {
		entry.Info("Refresh job completed successfully")
	} else {
		entry.Error("Refresh job finished with failed categories")
	}
	return summary
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
