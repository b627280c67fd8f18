package tracking

import (
	"errors"
	"fmt"
)

// ErrStopped is returned from Start when the session was abandoned via Stop
// or replaced by a newer Start on the same instance. It is not a failure of
// the job itself; cancellation of the job is a distinct, explicit action.
var ErrStopped = errors.New("tracking session stopped")

// ValidationError reports a bad trigger input. It is raised before any
// network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// FallbackExhaustedError is fatal for a sequential tracking session: the
// chunk-aggregate endpoint failed and the one-shot fallback to plain polling
// failed too. The caller must re-trigger a fresh poll if desired.
type FallbackExhaustedError struct {
	ParentJobID int
	ChunkErr    error
	PollErr     error
}

func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("tracking fallback exhausted for job %d: chunk polling failed (%v), single-job polling failed (%v)",
		e.ParentJobID, e.ChunkErr, e.PollErr)
}

func (e *FallbackExhaustedError) Unwrap() error {
	return e.PollErr
}
