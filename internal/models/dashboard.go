// -----------------------------------------------------------------------
// Dashboard - composite read model assembled by the dashboard aggregator
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobSummary is one row of the backend's job list.
type JobSummary struct {
	JobID       int       `json:"jobId"`
	Kind        JobKind   `json:"kind"`
	Status      JobStatus `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
	RecordCount int       `json:"recordCount"`
	Error       string    `json:"error,omitempty"`
}

// DownloadStatistics summarizes download activity for the dashboard.
type DownloadStatistics struct {
	TotalJobs        int       `json:"totalJobs"`
	CompletedJobs    int       `json:"completedJobs"`
	FailedJobs       int       `json:"failedJobs"`
	TotalNavRecords  int       `json:"totalNavRecords"`
	TrackedSchemes   int       `json:"trackedSchemes"`
	LastDownloadTime time.Time `json:"lastDownloadTime,omitempty"`
}

// SchemeNav is a bookmarked scheme's latest NAV as reported by the backend.
type SchemeNav struct {
	SchemeCode string          `json:"schemeCode"`
	SchemeName string          `json:"schemeName"`
	Nav        decimal.Decimal `json:"nav"`
	NavDate    time.Time       `json:"navDate"`
}

// TodayStatus reports whether today's NAV data has landed for the
// tenant's bookmarked schemes.
type TodayStatus struct {
	Date            time.Time   `json:"date"`
	DataAvailable   bool        `json:"dataAvailable"`
	SchemesUpdated  int         `json:"schemesUpdated"`
	SchemesExpected int         `json:"schemesExpected"`
	LatestNavs      []SchemeNav `json:"latestNavs,omitempty"`
}

// DashboardView is the composite the UI reads. A refresh replaces the whole
// structure atomically from the caller's perspective; it is never patched
// field by field.
type DashboardView struct {
	Jobs        []JobSummary       `json:"jobs"`
	ActiveJobs  []ProgressSnapshot `json:"activeJobs"`
	Statistics  DownloadStatistics `json:"statistics"`
	TodayStatus TodayStatus        `json:"todayStatus"`
	RefreshedAt time.Time          `json:"refreshedAt"`
}
