package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mlheats/heats/internal/harness"
)

// eventPollInterval bounds how stale a streamed run view can be.
const eventPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Event is one frame on the run event stream. Job fields are set on
// job_status events only.
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

// handleEvents streams job status changes for one run over a websocket.
// The stream polls the tracker, emits a job_status event per observed
// transition and closes after the terminal run event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, ok := s.tracker(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	// Drain reads so client-initiated closes end the stream.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	seen := make(map[string]harness.JobStatus)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}

		view := t.view(false)
		jobs := t.h.Jobs()
		// Jobs are newest first; emit transitions in start order.
		for i := len(jobs) - 1; i >= 0; i-- {
			jv := jobs[i]
			if seen[jv.ID] == jv.Status {
				continue
			}
			seen[jv.ID] = jv.Status
			ev := Event{
				Type:       "job_status",
				RunID:      t.id,
				JobID:      jv.ID,
				Classifier: jv.Classifier,
				Status:     string(jv.Status),
				Completed:  view.Completed,
				Failed:     view.Failed,
				Total:      view.Total,
				At:         time.Now().UTC(),
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}

		if view.Status == RunCompleted || view.Status == RunFailed {
			ev := Event{
				Type:      "run_" + string(view.Status),
				RunID:     t.id,
				Status:    string(view.Status),
				Completed: view.Completed,
				Failed:    view.Failed,
				Total:     view.Total,
				At:        time.Now().UTC(),
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			conn.WriteMessage(websocket.CloseMessage, msg)
			return
		}
	}
}
