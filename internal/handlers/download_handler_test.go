package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
	"github.com/kamalcharan/kewalinvest-sub002/internal/services/events"
	"github.com/kamalcharan/kewalinvest-sub002/internal/tracking"
)

// fakeBackend implements tracking.BackendAPI plus the read endpoints the
// handlers use. Progress is terminal immediately so trackers settle fast.
type fakeBackend struct {
	dailyErr    error
	cancelCalls int
}

func (f *fakeBackend) TriggerDaily(ctx context.Context) (*models.DailyTriggerResult, error) {
	if f.dailyErr != nil {
		return nil, f.dailyErr
	}
	return &models.DailyTriggerResult{JobID: 42}, nil
}

func (f *fakeBackend) TriggerHistorical(ctx context.Context, start, end time.Time) (*models.HistoricalTriggerResult, error) {
	return &models.HistoricalTriggerResult{JobID: 99, EstimatedTimeMs: 60000}, nil
}

func (f *fakeBackend) GetProgress(ctx context.Context, jobID int) (*models.ProgressSnapshot, error) {
	return &models.ProgressSnapshot{JobID: jobID, Status: models.JobStatusCompleted, ProgressPercentage: 100}, nil
}

func (f *fakeBackend) GetSequentialProgress(ctx context.Context, parentJobID int) (*models.SequentialSnapshot, error) {
	return &models.SequentialSnapshot{ParentJobID: parentJobID, OverallStatus: models.JobStatusCompleted, TotalChunks: 1, CompletedChunks: 1}, nil
}

func (f *fakeBackend) Cancel(ctx context.Context, jobID int) error {
	f.cancelCalls++
	return nil
}

func (f *fakeBackend) ListActive(ctx context.Context) ([]models.ProgressSnapshot, error) {
	return []models.ProgressSnapshot{{JobID: 1, Status: models.JobStatusRunning}}, nil
}

type fakeHistoryLister struct {
	gotLimit int
}

func (f *fakeHistoryLister) ListRecords(ctx context.Context, limit int) ([]*models.DownloadRecord, error) {
	f.gotLimit = limit
	return []*models.DownloadRecord{{JobID: 1, Status: models.JobStatusCompleted}}, nil
}

type nullHistoryStore struct{}

func (nullHistoryStore) SaveRecord(ctx context.Context, record *models.DownloadRecord) error {
	return nil
}

func newTestDownloadHandler(t *testing.T, backend *fakeBackend, history *fakeHistoryLister) *DownloadHandler {
	t.Helper()
	logger := arbor.NewLogger()
	service := tracking.NewService(backend, nullHistoryStore{}, events.NewService(logger), time.Millisecond, 365, logger)
	t.Cleanup(service.Shutdown)
	return NewDownloadHandler(service, backend, history, 50, logger)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestTriggerDaily_ReturnsJobHandle(t *testing.T) {
	handler := newTestDownloadHandler(t, &fakeBackend{}, &fakeHistoryLister{})

	rec := httptest.NewRecorder()
	handler.TriggerDaily(rec, httptest.NewRequest(http.MethodPost, "/api/download/daily", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var result models.DailyTriggerResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 42, result.JobID)
}

func TestTriggerDaily_RejectsWrongMethod(t *testing.T) {
	handler := newTestDownloadHandler(t, &fakeBackend{}, &fakeHistoryLister{})

	rec := httptest.NewRecorder()
	handler.TriggerDaily(rec, httptest.NewRequest(http.MethodGet, "/api/download/daily", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTriggerHistorical_ValidRange(t *testing.T) {
	handler := newTestDownloadHandler(t, &fakeBackend{}, &fakeHistoryLister{})

	body := strings.NewReader(`{"start_date":"2026-08-01","end_date":"2026-08-30"}`)
	rec := httptest.NewRecorder()
	handler.TriggerHistorical(rec, httptest.NewRequest(http.MethodPost, "/api/download/historical", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestTriggerHistorical_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"start_date":`},
		{"unparseable date", `{"start_date":"01-08-2026","end_date":"2026-08-30"}`},
		{"start after end", `{"start_date":"2026-08-20","end_date":"2026-08-10"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestDownloadHandler(t, &fakeBackend{}, &fakeHistoryLister{})

			rec := httptest.NewRecorder()
			handler.TriggerHistorical(rec, httptest.NewRequest(http.MethodPost, "/api/download/historical", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestCancelJob(t *testing.T) {
	backend := &fakeBackend{}
	handler := newTestDownloadHandler(t, backend, &fakeHistoryLister{})

	rec := httptest.NewRecorder()
	handler.CancelJob(rec, httptest.NewRequest(http.MethodDelete, "/api/download/jobs/42", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, backend.cancelCalls)
}

func TestCancelJob_InvalidID(t *testing.T) {
	handler := newTestDownloadHandler(t, &fakeBackend{}, &fakeHistoryLister{})

	rec := httptest.NewRecorder()
	handler.CancelJob(rec, httptest.NewRequest(http.MethodDelete, "/api/download/jobs/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListActive(t *testing.T) {
	handler := newTestDownloadHandler(t, &fakeBackend{}, &fakeHistoryLister{})

	rec := httptest.NewRecorder()
	handler.ListActive(rec, httptest.NewRequest(http.MethodGet, "/api/download/active", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var snapshots []models.ProgressSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snapshots))
	require.Len(t, snapshots, 1)
	assert.Equal(t, models.JobStatusRunning, snapshots[0].Status)
}

func TestHistory_LimitFromQuery(t *testing.T) {
	history := &fakeHistoryLister{}
	handler := newTestDownloadHandler(t, &fakeBackend{}, history)

	rec := httptest.NewRecorder()
	handler.History(rec, httptest.NewRequest(http.MethodGet, "/api/download/history?limit=10", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, history.gotLimit)
}

func TestHistory_OversizedLimitFallsBackToDefault(t *testing.T) {
	history := &fakeHistoryLister{}
	handler := newTestDownloadHandler(t, &fakeBackend{}, history)

	rec := httptest.NewRecorder()
	handler.History(rec, httptest.NewRequest(http.MethodGet, "/api/download/history?limit=9999", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, history.gotLimit)
}
