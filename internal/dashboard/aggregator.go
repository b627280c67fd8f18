// -----------------------------------------------------------------------
// Dashboard Aggregator - composes independently-fetched resources into
// one view, with cooldown-gated refresh
// -----------------------------------------------------------------------

package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
	"github.com/kamalcharan/kewalinvest-sub002/internal/services/events"
)

// DefaultRefreshCooldown is the minimum gap between two actual refreshes.
const DefaultRefreshCooldown = 5 * time.Second

// ReadAPI is the slice of the backend client the aggregator depends on.
type ReadAPI interface {
	ListJobs(ctx context.Context) ([]models.JobSummary, error)
	ListActive(ctx context.Context) ([]models.ProgressSnapshot, error)
	GetStatistics(ctx context.Context) (*models.DownloadStatistics, error)
	GetTodayStatus(ctx context.Context) (*models.TodayStatus, error)
}

// RefreshError aggregates per-constituent fetch failures from one refresh.
// A failing constituent never blocks its siblings from updating.
type RefreshError struct {
	Failures map[string]error
}

func (e *RefreshError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		parts = append(parts, name)
	}
	sort.Strings(parts)
	for i, name := range parts {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Failures[name])
	}
	return "dashboard refresh failed for " + strings.Join(parts, "; ")
}

// Aggregator maintains the composite dashboard view. Refresh requests inside
// the cooldown window are dropped, not queued, which bounds request rate under
// rapid repeated triggers. The view is replaced atomically per refresh; failed
// constituents keep their previous values.
type Aggregator struct {
	api      ReadAPI
	events   *events.Service
	cooldown time.Duration
	logger   arbor.ILogger

	mu          sync.Mutex
	lastRefresh time.Time
	view        models.DashboardView
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAggregator creates an aggregator. A non-positive cooldown falls back to
// DefaultRefreshCooldown.
func NewAggregator(api ReadAPI, eventService *events.Service, cooldown time.Duration, logger arbor.ILogger) *Aggregator {
	if cooldown <= 0 {
		cooldown = DefaultRefreshCooldown
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		api:      api,
		events:   eventService,
		cooldown: cooldown,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Refresh requests an asynchronous refresh of all constituents. Requests
// arriving before the cooldown has elapsed since the last actual refresh are
// dropped.
func (a *Aggregator) Refresh() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if time.Since(a.lastRefresh) < a.cooldown {
		a.mu.Unlock()
		a.logger.Debug().Msg("Dashboard refresh dropped (cooldown active)")
		return
	}
	a.lastRefresh = time.Now()
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		if err := a.RefreshAll(a.ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Dashboard refresh completed with errors")
		}
	}()
}

// RefreshAll fetches all constituent resources concurrently and replaces the
// view. Each constituent is independent and side-effect isolated; failures
// are collected into one RefreshError.
func (a *Aggregator) RefreshAll(ctx context.Context) error {
	var (
		jobs       []models.JobSummary
		active     []models.ProgressSnapshot
		statistics *models.DownloadStatistics
		today      *models.TodayStatus
	)

	var failMu sync.Mutex
	failures := make(map[string]error)
	fail := func(name string, err error) {
		failMu.Lock()
		failures[name] = err
		failMu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		var err error
		if jobs, err = a.api.ListJobs(ctx); err != nil {
			fail("jobs", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if active, err = a.api.ListActive(ctx); err != nil {
			fail("active", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if statistics, err = a.api.GetStatistics(ctx); err != nil {
			fail("statistics", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if today, err = a.api.GetTodayStatus(ctx); err != nil {
			fail("todayStatus", err)
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	next := a.view
	if _, failed := failures["jobs"]; !failed {
		next.Jobs = jobs
	}
	if _, failed := failures["active"]; !failed {
		next.ActiveJobs = active
	}
	if _, failed := failures["statistics"]; !failed && statistics != nil {
		next.Statistics = *statistics
	}
	if _, failed := failures["todayStatus"]; !failed && today != nil {
		next.TodayStatus = *today
	}
	next.RefreshedAt = time.Now()
	a.view = next
	a.mu.Unlock()

	a.events.Publish(ctx, events.Event{Type: events.EventDashboardRefreshed, Payload: next.RefreshedAt})

	if len(failures) > 0 {
		return &RefreshError{Failures: failures}
	}
	return nil
}

// View returns the current composite view. The returned value is a copy;
// callers never observe a partially-updated view.
func (a *Aggregator) View() models.DashboardView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// Close tears the aggregator down: in-flight refreshes are cancelled and no
// view update or event fires afterwards.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
	a.logger.Info().Msg("Dashboard aggregator closed")
}
