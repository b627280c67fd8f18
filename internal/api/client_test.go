package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

func envelopeOK(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	}))
}

func TestClient_TriggerDaily(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/download/daily", r.URL.Path)
		envelopeOK(t, w, map[string]interface{}{"jobId": 42, "alreadyExists": false})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.TriggerDaily(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 42, result.JobID)
	assert.False(t, result.AlreadyExists)
}

func TestClient_TriggerHistorical_SendsSnakeCaseDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download/historical", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2026-08-01", body["start_date"])
		assert.Equal(t, "2026-08-30", body["end_date"])
		envelopeOK(t, w, map[string]interface{}{"jobId": 99, "estimatedTimeMs": 120000})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	start, _ := time.Parse("2006-01-02", "2026-08-01")
	end, _ := time.Parse("2006-01-02", "2026-08-30")
	result, err := client.TriggerHistorical(context.Background(), start, end)

	require.NoError(t, err)
	assert.Equal(t, 99, result.JobID)
	assert.Equal(t, int64(120000), result.EstimatedTimeMs)
}

func TestClient_GetProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download/progress/42", r.URL.Path)
		envelopeOK(t, w, models.ProgressSnapshot{
			JobID:              42,
			Status:             models.JobStatusRunning,
			ProgressPercentage: 30,
			CurrentStep:        "Downloading AMC 3 of 10",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	snapshot, err := client.GetProgress(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, snapshot.Status)
	assert.Equal(t, float64(30), snapshot.ProgressPercentage)
	assert.Equal(t, "Downloading AMC 3 of 10", snapshot.CurrentStep)
}

func TestClient_EnvelopeFailureIsRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "scheduler is busy",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.GetProgress(context.Background(), 42)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "scheduler is busy", remoteErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestClient_HTTPErrorIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no sequential tracking for this job", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.GetSequentialProgress(context.Background(), 7)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.True(t, IsNotFound(err))
}

func TestClient_Cancel(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		envelopeOK(t, w, map[string]bool{"success": true})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	require.NoError(t, client.Cancel(context.Background(), 42))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/download/jobs/42", gotPath)
}

func TestClient_ListActive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download/active", r.URL.Path)
		envelopeOK(t, w, []models.ProgressSnapshot{
			{JobID: 1, Status: models.JobStatusRunning},
			{JobID: 2, Status: models.JobStatusPending},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	snapshots, err := client.ListActive(context.Background())

	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, models.JobStatusRunning, snapshots[0].Status)
}

func TestClient_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekret", r.Header.Get("Authorization"))
		envelopeOK(t, w, map[string]interface{}{"jobId": 1, "alreadyExists": false})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithAPIKey("sekret"))
	_, err := client.TriggerDaily(context.Background())
	require.NoError(t, err)
}
