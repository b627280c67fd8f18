// -----------------------------------------------------------------------
// Download Handler - trigger, cancel, active list and history endpoints
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
	"github.com/kamalcharan/kewalinvest-sub002/internal/tracking"
)

// ActiveLister lists the backend's currently active jobs.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]models.ProgressSnapshot, error)
}

// HistoryLister lists persisted download records.
type HistoryLister interface {
	ListRecords(ctx context.Context, limit int) ([]*models.DownloadRecord, error)
}

// DownloadHandler exposes the tracking core over HTTP.
type DownloadHandler struct {
	tracking     *tracking.Service
	activeLister ActiveLister
	history      HistoryLister
	historyLimit int
	logger       arbor.ILogger
}

// NewDownloadHandler creates a download handler.
func NewDownloadHandler(trackingService *tracking.Service, activeLister ActiveLister, history HistoryLister, historyLimit int, logger arbor.ILogger) *DownloadHandler {
	return &DownloadHandler{
		tracking:     trackingService,
		activeLister: activeLister,
		history:      history,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// TriggerDaily handles POST /api/download/daily
func (h *DownloadHandler) TriggerDaily(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := h.tracking.StartDaily(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to trigger daily download")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteData(w, http.StatusOK, result)
}

type historicalRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// TriggerHistorical handles POST /api/download/historical
func (h *DownloadHandler) TriggerHistorical(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req historicalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
		return
	}

	result, err := h.tracking.StartHistorical(r.Context(), tracking.DateRange{Start: start, End: end})
	if err != nil {
		var verr *tracking.ValidationError
		if errors.As(err, &verr) {
			WriteError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to trigger historical download")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteData(w, http.StatusOK, result)
}

// CancelJob handles DELETE /api/download/jobs/{jobId}
func (h *DownloadHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/download/jobs/")
	jobID, err := strconv.Atoi(idStr)
	if err != nil || jobID <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := h.tracking.Cancel(r.Context(), jobID); err != nil {
		h.logger.Error().Err(err).Int("job_id", jobID).Msg("Cancel failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteData(w, http.StatusOK, map[string]bool{"success": true})
}

// ListActive handles GET /api/download/active
func (h *DownloadHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snapshots, err := h.activeLister.ListActive(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list active jobs")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteData(w, http.StatusOK, snapshots)
}

// History handles GET /api/download/history
func (h *DownloadHandler) History(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := h.historyLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	records, err := h.history.ListRecords(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list download history")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteData(w, http.StatusOK, records)
}
