// -----------------------------------------------------------------------
// Backend Client - REST client for the remote NAV download backend
// -----------------------------------------------------------------------

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// Client talks to the NAV download backend. Every response is wrapped in a
// {success, data?, error?} envelope; success=false yields a RemoteError.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAPIKey sets a bearer token for authenticated backends.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new backend API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// do performs a request, unwraps the envelope, and decodes data into result.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Msg("Backend API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   path,
		}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		return &RemoteError{Endpoint: path, Message: env.Error}
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

// TriggerDaily starts (or joins) the daily NAV download job.
func (c *Client) TriggerDaily(ctx context.Context) (*models.DailyTriggerResult, error) {
	var result models.DailyTriggerResult
	if err := c.do(ctx, http.MethodPost, "/download/daily", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// historicalRequest matches the backend's snake_case trigger body.
type historicalRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// TriggerHistorical starts a historical NAV download for a date range.
func (c *Client) TriggerHistorical(ctx context.Context, start, end time.Time) (*models.HistoricalTriggerResult, error) {
	body := historicalRequest{
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.Format("2006-01-02"),
	}
	var result models.HistoricalTriggerResult
	if err := c.do(ctx, http.MethodPost, "/download/historical", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetProgress retrieves a single job's progress snapshot.
func (c *Client) GetProgress(ctx context.Context, jobID int) (*models.ProgressSnapshot, error) {
	var result models.ProgressSnapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/download/progress/%d", jobID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSequentialProgress retrieves the aggregated chunk progress of a parent job.
// Returns a 404 APIError when the job has no chunk-level tracking.
func (c *Client) GetSequentialProgress(ctx context.Context, parentJobID int) (*models.SequentialSnapshot, error) {
	var result models.SequentialSnapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/downloads/%d/sequential-progress", parentJobID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel requests remote cancellation of a job.
func (c *Client) Cancel(ctx context.Context, jobID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/download/jobs/%d", jobID), nil, nil)
}

// ListActive retrieves snapshots for all currently active jobs.
func (c *Client) ListActive(ctx context.Context) ([]models.ProgressSnapshot, error) {
	var result []models.ProgressSnapshot
	if err := c.do(ctx, http.MethodGet, "/download/active", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListJobs retrieves the backend's job list.
func (c *Client) ListJobs(ctx context.Context) ([]models.JobSummary, error) {
	var result []models.JobSummary
	if err := c.do(ctx, http.MethodGet, "/download/jobs", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetStatistics retrieves download statistics.
func (c *Client) GetStatistics(ctx context.Context) (*models.DownloadStatistics, error) {
	var result models.DownloadStatistics
	if err := c.do(ctx, http.MethodGet, "/download/statistics", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTodayStatus retrieves the today's-data availability status.
func (c *Client) GetTodayStatus(ctx context.Context) (*models.TodayStatus, error) {
	var result models.TodayStatus
	if err := c.do(ctx, http.MethodGet, "/download/today-status", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
