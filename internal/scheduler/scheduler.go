package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ticketdesk-go/internal/config"
	"ticketdesk-go/internal/mailbox"
	"ticketdesk-go/internal/metrics"
	"ticketdesk-go/internal/model"
)

// Ingestor processes one fetched raw message. Satisfied by *pipeline.Pipeline.
type Ingestor interface {
	ProcessEmail(ctx context.Context, raw model.RawMessage) error
}

// Scheduler runs the periodic mailbox poll and feeds fetched messages into
// the ingestion pipeline.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	lookback  time.Duration
	source    mailbox.Source
	ingestor  Ingestor
	metrics   *metrics.Metrics
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

// New creates a scheduler polling source every configured interval.
func New(cfg *config.SchedulerConfig, lookback time.Duration, source mailbox.Source, ingestor Ingestor, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		config:   cfg,
		lookback: lookback,
		source:   source,
		ingestor: ingestor,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// Support restart after Stop: the old context is cancelled and the old
	// cron still holds the previous entry.
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.cron = cron.New(cron.WithSeconds())
	}

	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.pollCycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler and waits for the in-flight cycle.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// pollCycle fetches recent messages and runs each through the pipeline.
// Messages are processed sequentially; per-message failures end up in the
// ingest ledger and never abort the cycle.
func (s *Scheduler) pollCycle() {
	s.wg.Add(1)
	defer s.wg.Done()

	// Snapshot the lifecycle context under the lock; Start reassigns it on
	// restart and a late-finishing old cycle must not race that write.
	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping poll cycle")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	logrus.Info("Starting mailbox poll cycle")
	startTime := time.Now()
	s.metrics.PollCycles.Inc()

	if err := s.source.Connect(ctx); err != nil {
		logrus.Errorf("Failed to connect to mailbox: %v", err)
		return
	}

	since := time.Now().Add(-s.lookback)
	messages, err := s.source.FetchRecent(ctx, since)
	if err != nil {
		logrus.Errorf("Failed to fetch messages: %v", err)
		return
	}

	logrus.Infof("Fetched %d messages", len(messages))
	s.metrics.MessagesFetched.Add(float64(len(messages)))

	for _, raw := range messages {
		select {
		case <-ctx.Done():
			logrus.Info("Poll cycle cancelled")
			return
		default:
		}

		msgStart := time.Now()
		if err := s.ingestor.ProcessEmail(ctx, raw); err != nil {
			logrus.Errorf("Failed to process message %s: %v", raw.ProviderID, err)
		}
		s.metrics.ProcessingTime.Observe(time.Since(msgStart).Seconds())
	}

	logrus.Infof("Poll cycle completed in %v", time.Since(startTime))
}

// RunOnce runs one poll cycle immediately (for manual triggering). The
// scheduler must be running so the cycle shares its lifecycle context.
func (s *Scheduler) RunOnce() error {
	logrus.Info("Running poll cycle once")
	s.pollCycle()
	return nil
}

// GetNextRun returns the time of the next scheduled run.
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time of the last run.
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Prev
}

// Wait waits for in-flight cycles to finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
