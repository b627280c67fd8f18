// -----------------------------------------------------------------------
// Sequential Aggregator - merges chunked job progress, with one-shot
// fallback to plain polling when chunk-level tracking is unavailable
// -----------------------------------------------------------------------

package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

// SequentialAPI is the slice of the backend client the aggregator depends on.
type SequentialAPI interface {
	ProgressAPI
	GetSequentialProgress(ctx context.Context, parentJobID int) (*models.SequentialSnapshot, error)
}

// SequentialFunc receives each aggregated snapshot observed during a session.
type SequentialFunc func(snapshot *models.SequentialSnapshot)

// SequentialAggregator polls the chunk-aggregate endpoint of a parent job on
// the same fixed-interval discipline as ProgressPoller. When the chunk
// endpoint is unavailable (e.g. the job is not actually chunked), it escalates
// to a plain ProgressPoller against the same id - exactly once per session.
// A failure of the fallback as well is fatal (FallbackExhaustedError); the
// aggregator never loops back to the chunk endpoint.
type SequentialAggregator struct {
	api      SequentialAPI
	interval time.Duration
	logger   arbor.ILogger

	mu      sync.Mutex
	session *pollSession
}

// NewSequentialAggregator creates an aggregator. A non-positive interval
// falls back to DefaultPollInterval.
func NewSequentialAggregator(api SequentialAPI, interval time.Duration, logger arbor.ILogger) *SequentialAggregator {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &SequentialAggregator{
		api:      api,
		interval: interval,
		logger:   logger,
	}
}

// Start polls parentJobID's chunk aggregate until overall status is terminal
// and returns the terminal snapshot. Session ownership, exactly-once
// settlement and Stop semantics match ProgressPoller.
func (a *SequentialAggregator) Start(ctx context.Context, parentJobID int, onProgress SequentialFunc) (*models.SequentialSnapshot, error) {
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &pollSession{id: uuid.NewString(), cancel: cancel}

	a.mu.Lock()
	if a.session != nil {
		a.session.cancel()
	}
	a.session = sess
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		if a.session == sess {
			a.session = nil
		}
		a.mu.Unlock()
	}()

	a.logger.Debug().
		Str("session_id", sess.id).
		Int("parent_job_id", parentJobID).
		Msg("Sequential progress polling started")

	snapshot, done, err := a.poll(sessCtx, sess, parentJobID, onProgress)
	if err != nil {
		if errors.Is(err, ErrStopped) {
			return nil, err
		}
		return a.escalate(sessCtx, ctx, parentJobID, onProgress, err)
	}
	if done {
		return snapshot, nil
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sessCtx.Done():
			return nil, a.stopCause(ctx)
		case <-ticker.C:
			snapshot, done, err = a.poll(sessCtx, sess, parentJobID, onProgress)
			if err != nil {
				if errors.Is(err, ErrStopped) {
					return nil, err
				}
				return a.escalate(sessCtx, ctx, parentJobID, onProgress, err)
			}
			if done {
				return snapshot, nil
			}
		}
	}
}

// poll issues one chunk-aggregate request and normalizes the percentage.
func (a *SequentialAggregator) poll(ctx context.Context, sess *pollSession, parentJobID int, onProgress SequentialFunc) (*models.SequentialSnapshot, bool, error) {
	snapshot, err := a.api.GetSequentialProgress(ctx, parentJobID)

	if !a.owns(sess) {
		return nil, false, ErrStopped
	}

	if err != nil {
		return nil, false, err
	}

	snapshot.ProgressPercentage = snapshot.EffectivePercentage()

	if onProgress != nil {
		onProgress(snapshot)
	}

	if snapshot.OverallStatus.IsTerminal() {
		a.logger.Info().
			Str("session_id", sess.id).
			Int("parent_job_id", parentJobID).
			Str("status", string(snapshot.OverallStatus)).
			Int("completed_chunks", snapshot.CompletedChunks).
			Int("total_chunks", snapshot.TotalChunks).
			Msg("Chunked job reached terminal status")
		return snapshot, true, nil
	}

	return snapshot, false, nil
}

// escalate hands the session off to a plain ProgressPoller against the same
// id, translating single-job snapshots into the caller's callback vocabulary.
// Runs at most once per session: it never returns control to the chunk loop.
func (a *SequentialAggregator) escalate(sessCtx, callerCtx context.Context, parentJobID int, onProgress SequentialFunc, chunkErr error) (*models.SequentialSnapshot, error) {
	a.logger.Warn().
		Err(chunkErr).
		Int("parent_job_id", parentJobID).
		Msg("Chunk-level tracking unavailable, falling back to single-job polling")

	fallback := NewProgressPoller(a.api, a.interval, a.logger)
	snapshot, err := fallback.Start(sessCtx, parentJobID, func(ps *models.ProgressSnapshot) {
		if onProgress != nil {
			onProgress(translateSnapshot(parentJobID, ps))
		}
	})
	if err != nil {
		// Stop/replacement of the aggregator session during fallback is an
		// abandonment, not a fallback failure.
		if sessCtx.Err() != nil {
			return nil, a.stopCause(callerCtx)
		}
		return nil, &FallbackExhaustedError{
			ParentJobID: parentJobID,
			ChunkErr:    chunkErr,
			PollErr:     err,
		}
	}

	return translateSnapshot(parentJobID, snapshot), nil
}

// Stop abandons the current session, including any in-progress fallback.
// Idempotent.
func (a *SequentialAggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		a.session.cancel()
		a.session = nil
	}
}

func (a *SequentialAggregator) owns(sess *pollSession) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session == sess
}

func (a *SequentialAggregator) stopCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrStopped
}

// translateSnapshot renders a single-job snapshot as a one-chunk sequential
// view so fallback sessions speak the same vocabulary as chunked ones.
func translateSnapshot(parentJobID int, ps *models.ProgressSnapshot) *models.SequentialSnapshot {
	snapshot := &models.SequentialSnapshot{
		ParentJobID:        parentJobID,
		OverallStatus:      ps.Status,
		TotalChunks:        1,
		ProgressPercentage: ps.ProgressPercentage,
		PerChunk:           []models.ProgressSnapshot{*ps},
	}
	if ps.Status == models.JobStatusCompleted {
		snapshot.CompletedChunks = 1
	}
	return snapshot
}
