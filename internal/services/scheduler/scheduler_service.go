// -----------------------------------------------------------------------
// Scheduler Service - cron-driven automatic daily NAV download
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

// DailyTrigger starts (or joins) the daily download and its tracking.
type DailyTrigger interface {
	StartDaily(ctx context.Context) (*models.DailyTriggerResult, error)
}

// Service runs the daily download on a cron schedule. A run that fires while
// a previous download is still active joins the existing backend job
// (alreadyExists) and the tracking layer suppresses duplicate trackers, so no
// overlap guard is needed here; the mutex only protects bookkeeping state.
type Service struct {
	trigger DailyTrigger
	cron    *cron.Cron
	logger  arbor.ILogger

	mu        sync.Mutex
	running   bool
	entryID   cron.EntryID
	lastRun   *time.Time
	lastError string
}

// NewService creates a scheduler service. Schedules use the 6-field cron
// format with seconds (e.g. "0 30 21 * * *").
func NewService(trigger DailyTrigger, logger arbor.ILogger) *Service {
	return &Service{
		trigger: trigger,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}
}

// Start begins the scheduler with the given cron expression.
func (s *Service) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if cronExpr == "" {
		cronExpr = "0 30 21 * * *"
	}

	entryID, err := s.cron.AddFunc(cronExpr, s.runDailyDownload)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Msg("Daily download scheduler started")

	return nil
}

// Stop halts the scheduler and waits for a running invocation to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info().Msg("Daily download scheduler stopped")
}

// LastRun returns the time and error (if any) of the most recent invocation.
func (s *Service) LastRun() (*time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastError
}

func (s *Service) runDailyDownload() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Scheduled daily download panicked")
		}
	}()

	now := time.Now()
	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduled daily download starting")

	result, err := s.trigger.StartDaily(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
		s.logger.Error().Err(err).Msg("Scheduled daily download failed to start")
		return
	}
	s.lastError = ""

	if result.AlreadyExists {
		s.logger.Info().Int("job_id", result.JobID).Msg("Daily download already active, joined existing job")
	} else {
		s.logger.Info().Int("job_id", result.JobID).Msg("Scheduled daily download triggered")
	}
}
