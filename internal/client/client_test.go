package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlheats/heats/internal/client"
)

func TestSubmitRun(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/runs", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Name string `json:"name"`
			Plan string `json:"plan"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nightly", req.Name)
		assert.Contains(t, req.Plan, "classifier: centroid")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(client.Run{ID: "ab12cd34", Name: "nightly", Status: "pending", Total: 2})
	}))
	defer ts.Close()

	c := client.New(ts.URL, 0)
	run, err := c.SubmitRun(context.Background(), "nightly", "jobs:\n  - classifier: centroid\n")
	require.NoError(t, err)
	assert.Equal(t, "ab12cd34", run.ID)
	assert.Equal(t, "pending", run.Status)
	assert.Equal(t, 2, run.Total)
}

func TestGetRun(t *testing.T) {
	completed := time.Now().UTC().Truncate(time.Second)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs/ab12cd34", r.URL.Path)
		json.NewEncoder(w).Encode(client.Run{
			ID:          "ab12cd34",
			Status:      "completed",
			Completed:   2,
			Total:       2,
			CompletedAt: &completed,
			Jobs: []client.Job{
				{ID: "j1", Status: "completed", TrainingRows: 5, PredictionRows: 1},
				{ID: "j2", Status: "completed", TrainingRows: 5, PredictionRows: 1},
			},
			Summary: []client.SummaryRow{
				{Classifier: "centroid", TestSet: "holdout", F1: 0.9},
			},
		})
	}))
	defer ts.Close()

	c := client.New(ts.URL, 0)
	run, err := c.GetRun(context.Background(), "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	require.Len(t, run.Jobs, 2)
	assert.Equal(t, 5, run.Jobs[0].TrainingRows)
	require.Len(t, run.Summary, 1)
	assert.InDelta(t, 0.9, run.Summary[0].F1, 1e-9)
	require.NotNil(t, run.CompletedAt)
	assert.True(t, run.CompletedAt.Equal(completed))
}

func TestGetRunServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "run not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c := client.New(ts.URL, 0)
	_, err := c.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "run not found")
}

func TestListRuns(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("all"))
		json.NewEncoder(w).Encode([]client.Run{
			{ID: "newer", Status: "running"},
			{ID: "older", Status: "completed"},
		})
	}))
	defer ts.Close()

	c := client.New(ts.URL, 0)
	runs, err := c.ListRuns(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].ID)
}

func TestGetLogCSV(t *testing.T) {
	const csv = "timestamp,cost\n1,0.5\n"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs/ab12cd34/logs/train", r.URL.Path)
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(csv))
	}))
	defer ts.Close()

	c := client.New(ts.URL, 0)
	raw, err := c.GetLogCSV(context.Background(), "ab12cd34", "train")
	require.NoError(t, err)
	assert.Equal(t, csv, string(raw))
}

func TestGetStats(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/stats", r.URL.Path)
		w.Write([]byte(`{"uptime_seconds": 12.5, "train": {"count": 3, "avg_time_ms": 40}}`))
	}))
	defer ts.Close()

	c := client.New(ts.URL, 0)
	stats, err := c.GetStats(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12.5, stats.UptimeSeconds, 1e-9)
	require.NotNil(t, stats.Train)
	assert.Equal(t, int64(3), stats.Train.Count)
	assert.Nil(t, stats.Predict)
}

func TestHealthEnvFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(client.Health{Status: "ok", Version: "1.2.3"})
	}))
	defer ts.Close()
	t.Setenv("HEATS_SERVER_URL", ts.URL)

	c := client.New("", 0)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "1.2.3", h.Version)
}

func TestWatchRun(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs/ab12cd34/events", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteJSON(client.Event{Type: "job_status", RunID: "ab12cd34", JobID: "j1", Status: "completed", Completed: 1, Total: 1})
		conn.WriteJSON(client.Event{Type: "run_completed", RunID: "ab12cd34", Completed: 1, Total: 1})
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteMessage(websocket.CloseMessage, msg)
	}))
	defer ts.Close()

	c := client.New(ts.URL, 0)
	var events []client.Event
	err := c.WatchRun(context.Background(), "ab12cd34", func(ev client.Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "job_status", events[0].Type)
	assert.Equal(t, "run_completed", events[1].Type)
}

func TestWatchRunNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "run not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c := client.New(ts.URL, 0)
	err := c.WatchRun(context.Background(), "nope", func(client.Event) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestWatchRunContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	hold := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		<-hold
	}))
	defer ts.Close()
	defer close(hold)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	c := client.New(ts.URL, 0)
	err := c.WatchRun(ctx, "ab12cd34", func(client.Event) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
