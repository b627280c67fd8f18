// -----------------------------------------------------------------------
// Tracking Service - triggers jobs, owns their trackers, publishes
// progress events and persists terminal snapshots
// -----------------------------------------------------------------------

package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
	"github.com/kamalcharan/kewalinvest-sub002/internal/services/events"
)

// BackendAPI is the full backend surface the tracking service depends on.
type BackendAPI interface {
	TriggerAPI
	SequentialAPI
	CancelAPI
}

// HistoryStore persists terminal download records.
type HistoryStore interface {
	SaveRecord(ctx context.Context, record *models.DownloadRecord) error
}

// Service glues the trigger, trackers and cancellation together: it starts
// backend jobs, runs one tracker per job (plain poller for daily jobs,
// sequential aggregator for historical ones), publishes lifecycle events and
// records terminal snapshots.
type Service struct {
	api       BackendAPI
	trigger   *TriggerService
	canceller *CancellationController
	events    *events.Service
	history   HistoryStore
	interval  time.Duration
	logger    arbor.ILogger

	mu     sync.Mutex
	active map[int]Stopper

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the tracking service. maxSpanDays bounds historical
// ranges; interval is the fixed polling interval for all trackers.
func NewService(api BackendAPI, history HistoryStore, eventService *events.Service, interval time.Duration, maxSpanDays int, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		api:       api,
		trigger:   NewTriggerService(api, maxSpanDays, logger),
		canceller: NewCancellationController(api, logger),
		events:    eventService,
		history:   history,
		interval:  interval,
		logger:    logger,
		active:    make(map[int]Stopper),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// StartDaily triggers the daily download and starts tracking it. When the
// backend reports the job already exists and it is already being tracked
// here, no duplicate tracker is started.
func (s *Service) StartDaily(ctx context.Context) (*models.DailyTriggerResult, error) {
	result, err := s.trigger.TriggerDaily(ctx)
	if err != nil {
		return nil, err
	}

	s.trackJob(result.JobID, models.JobKindDaily)
	return result, nil
}

// StartHistorical validates the range, triggers a historical download and
// starts tracking it through the sequential aggregator.
func (s *Service) StartHistorical(ctx context.Context, r DateRange) (*models.HistoricalTriggerResult, error) {
	result, err := s.trigger.TriggerHistorical(ctx, r)
	if err != nil {
		return nil, err
	}

	s.trackJob(result.JobID, models.JobKindHistorical)
	return result, nil
}

// Cancel stops local tracking of jobID and requests remote cancellation.
func (s *Service) Cancel(ctx context.Context, jobID int) error {
	return s.canceller.Cancel(ctx, jobID)
}

// IsTracked reports whether a tracker is currently running for jobID.
func (s *Service) IsTracked(jobID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[jobID]
	return ok
}

// TrackedJobIDs returns the ids of all jobs with a live tracker.
func (s *Service) TrackedJobIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// trackJob starts a tracker goroutine for jobID unless one is already live.
func (s *Service) trackJob(jobID int, kind models.JobKind) {
	s.mu.Lock()
	if _, ok := s.active[jobID]; ok {
		s.mu.Unlock()
		s.logger.Debug().Int("job_id", jobID).Msg("Job already tracked, not starting a duplicate tracker")
		return
	}

	var tracker Stopper
	var run func() (*models.DownloadRecord, error)

	switch kind {
	case models.JobKindHistorical:
		aggregator := NewSequentialAggregator(s.api, s.interval, s.logger)
		tracker = aggregator
		run = func() (*models.DownloadRecord, error) {
			snapshot, err := aggregator.Start(s.ctx, jobID, func(snap *models.SequentialSnapshot) {
				s.publishProgress(jobID, kind, snap.ProgressPercentage, snap)
			})
			if err != nil {
				return nil, err
			}
			return sequentialRecord(jobID, kind, snapshot), nil
		}
	default:
		poller := NewProgressPoller(s.api, s.interval, s.logger)
		tracker = poller
		run = func() (*models.DownloadRecord, error) {
			snapshot, err := poller.Start(s.ctx, jobID, func(snap *models.ProgressSnapshot) {
				s.publishProgress(jobID, kind, snap.ProgressPercentage, snap)
			})
			if err != nil {
				return nil, err
			}
			return progressRecord(jobID, kind, snapshot), nil
		}
	}

	s.active[jobID] = tracker
	s.mu.Unlock()

	s.canceller.Register(jobID, tracker)
	s.events.Publish(s.ctx, events.Event{Type: events.EventJobStarted, Payload: models.JobHandle{JobID: jobID, CreatedAt: time.Now()}})

	s.wg.Add(1)
	go s.runTracker(jobID, run)
}

func (s *Service) runTracker(jobID int, run func() (*models.DownloadRecord, error)) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.active, jobID)
		s.mu.Unlock()
		s.canceller.Unregister(jobID)
	}()

	record, err := run()
	if err != nil {
		if errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) {
			s.logger.Debug().Int("job_id", jobID).Msg("Tracking session abandoned")
			return
		}
		s.logger.Error().Err(err).Int("job_id", jobID).Msg("Tracking session failed")
		s.events.Publish(s.ctx, events.Event{Type: events.EventJobFailed, Payload: map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		}})
		return
	}

	if saveErr := s.history.SaveRecord(s.ctx, record); saveErr != nil {
		s.logger.Warn().Err(saveErr).Int("job_id", jobID).Msg("Failed to persist download record")
	}

	eventType := events.EventJobCompleted
	switch record.Status {
	case models.JobStatusFailed:
		eventType = events.EventJobFailed
	case models.JobStatusCancelled:
		eventType = events.EventJobCancelled
	}
	s.events.Publish(s.ctx, events.Event{Type: eventType, Payload: record})
}

func (s *Service) publishProgress(jobID int, kind models.JobKind, percentage float64, payload interface{}) {
	s.logger.Debug().
		Int("job_id", jobID).
		Str("kind", string(kind)).
		Float64("percentage", percentage).
		Msg("Job progress")
	s.events.Publish(s.ctx, events.Event{Type: events.EventJobProgress, Payload: payload})
}

// Shutdown abandons all live trackers and waits for their goroutines.
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Tracking service stopped")
}

func progressRecord(jobID int, kind models.JobKind, snap *models.ProgressSnapshot) *models.DownloadRecord {
	return &models.DownloadRecord{
		JobID:              jobID,
		Kind:               kind,
		Status:             snap.Status,
		ProgressPercentage: snap.ProgressPercentage,
		ProcessedRecords:   snap.ProcessedRecords,
		UnitErrors:         snap.Errors,
		StartTime:          snap.StartTime,
		CompletedAt:        time.Now(),
	}
}

func sequentialRecord(jobID int, kind models.JobKind, snap *models.SequentialSnapshot) *models.DownloadRecord {
	record := &models.DownloadRecord{
		JobID:              jobID,
		Kind:               kind,
		Status:             snap.OverallStatus,
		ProgressPercentage: snap.EffectivePercentage(),
		CompletedAt:        time.Now(),
	}
	for i := range snap.PerChunk {
		chunk := &snap.PerChunk[i]
		record.ProcessedRecords += chunk.ProcessedRecords
		record.UnitErrors = append(record.UnitErrors, chunk.Errors...)
		if record.StartTime.IsZero() || (!chunk.StartTime.IsZero() && chunk.StartTime.Before(record.StartTime)) {
			record.StartTime = chunk.StartTime
		}
	}
	return record
}
