package models

import "time"

// DownloadRecord is the persisted summary of a finished tracking session.
// Written once when a job reaches a terminal status; serves the dashboard's
// recent-downloads panel and the history endpoint.
type DownloadRecord struct {
	JobID              int         `json:"jobId"`
	Kind               JobKind     `json:"kind"`
	Status             JobStatus   `json:"status"`
	ProgressPercentage float64     `json:"progressPercentage"`
	ProcessedRecords   int         `json:"processedRecords"`
	UnitErrors         []UnitError `json:"unitErrors,omitempty"`
	StartTime          time.Time   `json:"startTime"`
	CompletedAt        time.Time   `json:"completedAt"`
}
