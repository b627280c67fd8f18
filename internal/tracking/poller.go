// -----------------------------------------------------------------------
// Progress Poller - drives a single download job to a terminal state
// -----------------------------------------------------------------------

package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

// DefaultPollInterval is the fixed polling interval used when none is configured.
const DefaultPollInterval = 2 * time.Second

// ProgressAPI is the slice of the backend client the poller depends on.
type ProgressAPI interface {
	GetProgress(ctx context.Context, jobID int) (*models.ProgressSnapshot, error)
}

// ProgressFunc receives each snapshot observed during a polling session.
type ProgressFunc func(snapshot *models.ProgressSnapshot)

// pollSession identifies one polling run. Responses are only delivered while
// the session is still the instance's current one, so an in-flight request
// outliving a Stop or a replacement Start is discarded rather than resolved.
type pollSession struct {
	id     string
	cancel context.CancelFunc
}

// ProgressPoller polls a single job at a fixed interval until it reaches a
// terminal status. An instance owns at most one live session at a time:
// starting a new session first tears down any prior one, and the session
// settles exactly once.
type ProgressPoller struct {
	api      ProgressAPI
	interval time.Duration
	logger   arbor.ILogger

	mu      sync.Mutex
	session *pollSession
}

// NewProgressPoller creates a poller. A non-positive interval falls back to
// DefaultPollInterval.
func NewProgressPoller(api ProgressAPI, interval time.Duration, logger arbor.ILogger) *ProgressPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ProgressPoller{
		api:      api,
		interval: interval,
		logger:   logger,
	}
}

// Start polls jobID until it reaches a terminal status and returns the
// terminal snapshot. An immediate poll is issued first, then one per interval;
// polls never overlap because the next one is only issued on the following
// tick. Each successful poll invokes onProgress with the latest snapshot.
//
// A transport or backend error ends the session with that error; there is no
// silent retry - the caller decides whether to re-track. Stop (or a
// replacement Start) ends the session with ErrStopped; context cancellation
// ends it with the context error.
func (p *ProgressPoller) Start(ctx context.Context, jobID int, onProgress ProgressFunc) (*models.ProgressSnapshot, error) {
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &pollSession{id: uuid.NewString(), cancel: cancel}

	p.mu.Lock()
	if p.session != nil {
		// Single-timer invariant: tear down the prior session before owning a new one
		p.session.cancel()
	}
	p.session = sess
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		if p.session == sess {
			p.session = nil
		}
		p.mu.Unlock()
	}()

	p.logger.Debug().
		Str("session_id", sess.id).
		Int("job_id", jobID).
		Msg("Progress polling started")

	snapshot, done, err := p.poll(sessCtx, sess, jobID, onProgress)
	if err != nil || done {
		return snapshot, err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sessCtx.Done():
			return nil, p.stopCause(ctx)
		case <-ticker.C:
			snapshot, done, err = p.poll(sessCtx, sess, jobID, onProgress)
			if err != nil || done {
				return snapshot, err
			}
		}
	}
}

// poll issues one progress request. done is true when the snapshot is terminal.
func (p *ProgressPoller) poll(ctx context.Context, sess *pollSession, jobID int, onProgress ProgressFunc) (*models.ProgressSnapshot, bool, error) {
	snapshot, err := p.api.GetProgress(ctx, jobID)

	// A response landing after Stop or a replacement Start belongs to a dead
	// session; discard it without delivering callbacks.
	if !p.owns(sess) {
		return nil, false, ErrStopped
	}

	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("session_id", sess.id).
			Int("job_id", jobID).
			Msg("Progress poll failed")
		return nil, false, err
	}

	if onProgress != nil {
		onProgress(snapshot)
	}

	if snapshot.Status.IsTerminal() {
		p.logger.Info().
			Str("session_id", sess.id).
			Int("job_id", jobID).
			Str("status", string(snapshot.Status)).
			Int("processed_records", snapshot.ProcessedRecords).
			Msg("Job reached terminal status")
		return snapshot, true, nil
	}

	return snapshot, false, nil
}

// Stop abandons the current session without resolving it as a job outcome.
// Idempotent: stopping an already-stopped poller is a no-op.
func (p *ProgressPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		p.session.cancel()
		p.session = nil
	}
}

func (p *ProgressPoller) owns(sess *pollSession) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session == sess
}

// stopCause distinguishes caller-context cancellation from an explicit Stop.
func (p *ProgressPoller) stopCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrStopped
}
