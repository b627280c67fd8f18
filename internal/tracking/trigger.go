// -----------------------------------------------------------------------
// Trigger Service - validates inputs and starts backend download jobs
// -----------------------------------------------------------------------

package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

// TriggerAPI is the slice of the backend client the trigger service depends on.
type TriggerAPI interface {
	TriggerDaily(ctx context.Context) (*models.DailyTriggerResult, error)
	TriggerHistorical(ctx context.Context, start, end time.Time) (*models.HistoricalTriggerResult, error)
}

// DateRange is the inclusive date range of a historical download request.
type DateRange struct {
	Start time.Time `validate:"required"`
	End   time.Time `validate:"required"`
}

// TriggerService validates download requests and triggers backend jobs.
// It does not start polling itself - callers hand the returned job id to a
// tracker explicitly.
type TriggerService struct {
	api         TriggerAPI
	validate    *validator.Validate
	maxSpanDays int
	logger      arbor.ILogger
	now         func() time.Time
}

// NewTriggerService creates a trigger service enforcing maxSpanDays as the
// largest allowed historical range.
func NewTriggerService(api TriggerAPI, maxSpanDays int, logger arbor.ILogger) *TriggerService {
	s := &TriggerService{
		api:         api,
		validate:    validator.New(),
		maxSpanDays: maxSpanDays,
		logger:      logger,
		now:         time.Now,
	}
	s.validate.RegisterStructValidation(s.dateRangeValidation, DateRange{})
	return s
}

// TriggerDaily starts the daily NAV download. When the backend reports an
// equivalent job already active, AlreadyExists is true and JobID refers to
// the existing job - this is not an error, and callers must not start a
// duplicate tracker for it.
func (s *TriggerService) TriggerDaily(ctx context.Context) (*models.DailyTriggerResult, error) {
	result, err := s.api.TriggerDaily(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger daily download: %w", err)
	}

	s.logger.Info().
		Int("job_id", result.JobID).
		Bool("already_exists", result.AlreadyExists).
		Msg("Daily download triggered")

	return result, nil
}

// TriggerHistorical starts a historical NAV download for the given range.
// The range is validated before any network round-trip; an invalid range
// returns a ValidationError.
func (s *TriggerService) TriggerHistorical(ctx context.Context, r DateRange) (*models.HistoricalTriggerResult, error) {
	if err := s.ValidateRange(r); err != nil {
		return nil, err
	}

	result, err := s.api.TriggerHistorical(ctx, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger historical download: %w", err)
	}

	s.logger.Info().
		Int("job_id", result.JobID).
		Str("start", r.Start.Format("2006-01-02")).
		Str("end", r.End.Format("2006-01-02")).
		Int64("estimated_time_ms", result.EstimatedTimeMs).
		Msg("Historical download triggered")

	return result, nil
}

// ValidateRange checks a historical date range without touching the network.
func (s *TriggerService) ValidateRange(r DateRange) error {
	if err := s.validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Field(), Message: s.messageFor(fe)}
		}
		return &ValidationError{Field: "range", Message: err.Error()}
	}
	return nil
}

// dateRangeValidation is the struct-level rule set for DateRange:
// start <= end, end <= today, span <= maxSpanDays.
func (s *TriggerService) dateRangeValidation(sl validator.StructLevel) {
	r := sl.Current().Interface().(DateRange)
	if r.Start.IsZero() || r.End.IsZero() {
		return // required tags report these
	}

	if r.End.Before(r.Start) {
		sl.ReportError(r.End, "End", "End", "gtefield", "Start")
		return
	}

	// End of the current calendar day in the clock's own zone; Truncate would
	// cut on UTC-epoch boundaries and reject "today" in zones ahead of UTC.
	now := s.now()
	year, month, day := now.Date()
	endOfToday := time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
	if r.End.After(endOfToday) {
		sl.ReportError(r.End, "End", "End", "notfuture", "")
		return
	}

	if r.End.Sub(r.Start) > time.Duration(s.maxSpanDays)*24*time.Hour {
		sl.ReportError(r.End, "End", "End", "maxspan", "")
	}
}

func (s *TriggerService) messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gtefield":
		return "end date must not be before start date"
	case "notfuture":
		return "end date must not be in the future"
	case "maxspan":
		return fmt.Sprintf("date range exceeds the maximum span of %d days", s.maxSpanDays)
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
