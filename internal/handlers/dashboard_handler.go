package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/dashboard"
)

// DashboardHandler serves the composite dashboard view.
type DashboardHandler struct {
	aggregator *dashboard.Aggregator
	logger     arbor.ILogger
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(aggregator *dashboard.Aggregator, logger arbor.ILogger) *DashboardHandler {
	return &DashboardHandler{
		aggregator: aggregator,
		logger:     logger,
	}
}

// GetDashboard handles GET /api/dashboard. It returns the current view
// immediately and kicks a refresh; the cooldown in the aggregator bounds the
// backend request rate under rapid repeated reads.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	h.aggregator.Refresh()
	WriteData(w, http.StatusOK, h.aggregator.View())
}

// RefreshDashboard handles POST /api/dashboard/refresh: a synchronous refresh
// of all constituents, reporting aggregated failures.
func (h *DashboardHandler) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.aggregator.RefreshAll(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Dashboard refresh completed with errors")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteData(w, http.StatusOK, h.aggregator.View())
}
