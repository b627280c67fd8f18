// -----------------------------------------------------------------------
// Cancellation Controller - idempotent local-stop plus remote cancel
// -----------------------------------------------------------------------

package tracking

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"
)

// Stopper stops a local polling session. Both ProgressPoller and
// SequentialAggregator satisfy it.
type Stopper interface {
	Stop()
}

// CancelAPI is the slice of the backend client the controller depends on.
type CancelAPI interface {
	Cancel(ctx context.Context, jobID int) error
}

// CancellationController maps job ids to their live trackers and exposes a
// single idempotent Cancel: stop local polling first, then request remote
// cancellation. The remote cancel is never retried here - the caller surfaces
// a failure and lets the user retry.
type CancellationController struct {
	api    CancelAPI
	logger arbor.ILogger

	mu        sync.Mutex
	trackers  map[int]Stopper
	cancelled map[int]struct{}
}

// NewCancellationController creates a controller.
func NewCancellationController(api CancelAPI, logger arbor.ILogger) *CancellationController {
	return &CancellationController{
		api:       api,
		logger:    logger,
		trackers:  make(map[int]Stopper),
		cancelled: make(map[int]struct{}),
	}
}

// Register associates a live tracker with a job id.
func (c *CancellationController) Register(jobID int, tracker Stopper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackers[jobID] = tracker
}

// Unregister removes a job's tracker, typically when its session settles.
func (c *CancellationController) Unregister(jobID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.trackers, jobID)
}

// Cancel stops any tracker polling jobID and requests remote cancellation.
// Cancelling an already-cancelled job is a safe no-op. A remote failure is
// returned as-is and does not mark the job cancelled, so a retry is possible.
func (c *CancellationController) Cancel(ctx context.Context, jobID int) error {
	c.mu.Lock()
	if _, done := c.cancelled[jobID]; done {
		c.mu.Unlock()
		c.logger.Debug().Int("job_id", jobID).Msg("Job already cancelled, ignoring")
		return nil
	}
	tracker := c.trackers[jobID]
	delete(c.trackers, jobID)
	c.mu.Unlock()

	if tracker != nil {
		tracker.Stop()
	}

	if err := c.api.Cancel(ctx, jobID); err != nil {
		c.logger.Warn().
			Err(err).
			Int("job_id", jobID).
			Msg("Remote cancel failed")
		return err
	}

	c.mu.Lock()
	c.cancelled[jobID] = struct{}{}
	c.mu.Unlock()

	c.logger.Info().Int("job_id", jobID).Msg("Job cancelled")
	return nil
}
