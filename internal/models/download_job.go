// -----------------------------------------------------------------------
// Download Job - status vocabulary and progress snapshots for NAV downloads
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"time"
)

// JobStatus represents the state of a download job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
// Only completed, failed and cancelled are terminal.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobKind distinguishes daily refresh downloads from historical backfills
type JobKind string

const (
	JobKindDaily      JobKind = "daily"
	JobKindHistorical JobKind = "historical"
)

// JobHandle identifies a backend job returned by a trigger call.
// Immutable once created; owned by the tracker for its lifetime.
type JobHandle struct {
	JobID     int       `json:"jobId"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnitError is a per-scheme error reported inside a progress snapshot.
// UnitKey identifies the failed unit (scheme code or AMC name).
type UnitError struct {
	UnitKey string `json:"unitKey"`
	Message string `json:"message"`
}

// ProgressSnapshot is the backend's view of a single download job.
//
// The backend reports camelCase JSON. ProgressPercentage is 0..100.
// EstimatedTimeRemainingMs is zero when the backend has no estimate.
type ProgressSnapshot struct {
	JobID                    int         `json:"jobId"`
	Status                   JobStatus   `json:"status"`
	ProgressPercentage       float64     `json:"progressPercentage"`
	CurrentStep              string      `json:"currentStep,omitempty"`
	TotalUnits               int         `json:"totalUnits"`
	ProcessedUnits           int         `json:"processedUnits"`
	ProcessedRecords         int         `json:"processedRecords"`
	EstimatedTimeRemainingMs int64       `json:"estimatedTimeRemainingMs,omitempty"`
	Errors                   []UnitError `json:"errors,omitempty"`
	StartTime                time.Time   `json:"startTime"`
}

// SequentialSnapshot aggregates a chunked download job. Derived from the
// per-chunk snapshots it summarizes; never persisted independently of them.
type SequentialSnapshot struct {
	ParentJobID        int                `json:"parentJobId"`
	OverallStatus      JobStatus          `json:"overallStatus"`
	TotalChunks        int                `json:"totalChunks"`
	CompletedChunks    int                `json:"completedChunks"`
	ProgressPercentage float64            `json:"progressPercentage"`
	PerChunk           []ProgressSnapshot `json:"perChunk,omitempty"`
}

// EffectivePercentage returns the overall completion percentage.
// The backend-reported value wins when present (non-zero); otherwise the
// percentage is computed from chunk counts.
func (s *SequentialSnapshot) EffectivePercentage() float64 {
	if s.ProgressPercentage > 0 {
		return s.ProgressPercentage
	}
	if s.TotalChunks > 0 {
		return float64(s.CompletedChunks) / float64(s.TotalChunks) * 100
	}
	return 0
}

// DailyTriggerResult is the response to a daily download trigger.
// AlreadyExists means an equivalent job is already active on the backend
// and JobID refers to that existing job.
type DailyTriggerResult struct {
	JobID         int  `json:"jobId"`
	AlreadyExists bool `json:"alreadyExists"`
}

// HistoricalTriggerResult is the response to a historical download trigger.
type HistoricalTriggerResult struct {
	JobID           int   `json:"jobId"`
	EstimatedTimeMs int64 `json:"estimatedTimeMs"`
}

// ToJSON serializes ProgressSnapshot for event payloads and storage
func (p *ProgressSnapshot) ToJSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
