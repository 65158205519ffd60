// Package client provides an HTTP client for the heats server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client talks to the heats server's REST and websocket API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses HEATS_SERVER_URL env var or defaults to localhost:8844.
// A timeout of zero falls back to 2m; it bounds single requests, not WatchRun.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("HEATS_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8844"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends one JSON request and decodes the response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TYPES (matching server views)
// =============================================================================

// Run is a run as reported by the server. Jobs, Failures and Summary
// are only present on single-run views.
type Run struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Total       int          `json:"total"`
	Completed   int          `json:"completed"`
	Failed      int          `json:"failed"`
	Workers     int          `json:"workers"`
	LogDir      string       `json:"log_dir"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
	Jobs        []Job        `json:"jobs,omitempty"`
	Failures    []Failure    `json:"failures,omitempty"`
	Summary     []SummaryRow `json:"summary,omitempty"`
}

// Job is one classifier job within a run.
type Job struct {
	ID             string     `json:"id"`
	SubmissionID   string     `json:"submission_id"`
	Classifier     string     `json:"classifier,omitempty"`
	Status         string     `json:"status"`
	TrainingRows   int        `json:"training_rows"`
	PredictionRows int        `json:"prediction_rows"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Failure describes one failed job.
type Failure struct {
	SubmissionID string    `json:"submission_id"`
	JobID        string    `json:"job_id"`
	Classifier   string    `json:"classifier,omitempty"`
	Message      string    `json:"error"`
	At           time.Time `json:"at"`
}

// SummaryRow is one classifier/test-set score line, best F1 first.
type SummaryRow struct {
	Classifier   string  `json:"classifier"`
	ClassifierID string  `json:"classifier_id"`
	TestSet      string  `json:"test_set"`
	JobID        string  `json:"job_id"`
	F1           float64 `json:"f1"`
	Accuracy     float64 `json:"accuracy"`
	Iterations   int     `json:"iterations"`
}

// Event is one frame from the run event stream.
type Event struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	JobID      string    `json:"job_id,omitempty"`
	Classifier string    `json:"classifier,omitempty"`
	Status     string    `json:"status,omitempty"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
	At         time.Time `json:"at"`
}

// OperationStats holds metrics for a single operation type.
type OperationStats struct {
	Count       int64    `json:"count"`
	TotalTimeMs int64    `json:"total_time_ms"`
	AvgTimeMs   float64  `json:"avg_time_ms"`
	MinTimeMs   int64    `json:"min_time_ms"`
	MaxTimeMs   int64    `json:"max_time_ms"`
	TotalRows   *int64   `json:"total_rows,omitempty"`
	AvgRows     *float64 `json:"avg_rows,omitempty"`
	MinRows     *int64   `json:"min_rows,omitempty"`
	MaxRows     *int64   `json:"max_rows,omitempty"`
}

// Stats holds in-memory runtime statistics (resets on server restart).
type Stats struct {
	UptimeSeconds float64         `json:"uptime_seconds"`
	Train         *OperationStats `json:"train,omitempty"`
	Predict       *OperationStats `json:"predict,omitempty"`
	Score         *OperationStats `json:"score,omitempty"`
	Merge         *OperationStats `json:"merge,omitempty"`
	Persist       *OperationStats `json:"persist,omitempty"`
}

// Health is the server health response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// =============================================================================
// RUN OPERATIONS
// =============================================================================

type submitRunRequest struct {
	Name string `json:"name,omitempty"`
	Plan string `json:"plan"`
}

// SubmitRun submits a plan for execution and returns the accepted run.
// The plan is YAML; dataset paths in it are resolved on the server.
func (c *Client) SubmitRun(ctx context.Context, name, plan string) (*Run, error) {
	var run Run
	err := c.do(ctx, http.MethodPost, "/api/runs", submitRunRequest{Name: name, Plan: plan}, &run)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs known to the server, newest first. With all set,
// persisted runs from earlier server lifetimes are included.
func (c *Client) ListRuns(ctx context.Context, all bool) ([]Run, error) {
	path := "/api/runs"
	if all {
		path += "?all=true"
	}
	var runs []Run
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun retrieves one run with per-job detail.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+id, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetLogCSV downloads one aggregate log of a run. Kind is train or pred.
func (c *Client) GetLogCSV(ctx context.Context, id, kind string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/runs/"+id+"/logs/"+kind, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// GetStats returns the server's runtime statistics.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health checks the server is reachable.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// =============================================================================
// STREAMING OPERATIONS
// =============================================================================

// WatchRun subscribes to a run's event stream and invokes onEvent for
// each frame. Return an error from onEvent to abort. WatchRun returns
// nil once the run reaches a terminal state.
func (c *Client) WatchRun(ctx context.Context, id string, onEvent func(Event) error) error {
	// Convert HTTP endpoint to WebSocket endpoint
	wsURL := c.baseURL + "/api/runs/" + id + "/events"
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("run %s not found", id)
		}
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}

		if err := onEvent(ev); err != nil {
			return err
		}
		if ev.Type == "run_completed" || ev.Type == "run_failed" {
			return nil
		}
	}
}
