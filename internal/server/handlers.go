package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mlheats/heats/internal/experiment"
	"github.com/mlheats/heats/internal/harness"
	"github.com/mlheats/heats/internal/history"
	"github.com/mlheats/heats/internal/record"
)

// Router builds the HTTP handler tree.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/runs", s.handleCreateRun).Methods(http.MethodPost)
	api.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/logs/{kind}", s.handleGetLog).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	return r
}

type createRunRequest struct {
	Name string `json:"name"`
	Plan string `json:"plan"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Plan) == "" {
		http.Error(w, "plan is required", http.StatusBadRequest)
		return
	}

	plan, err := experiment.Parse([]byte(req.Plan))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	plan.Name = runName(req.Name, plan.Name)
	if plan.Workers == 0 {
		plan.Workers = s.workers
	}
	if plan.LogDir == "" {
		plan.LogDir = s.logDir
	}
	if err := plan.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := plan.LoadData()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	jobs, err := plan.Resolve(s.builtins)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h, err := harness.New(ctx, harness.Config{
		Name:           plan.Name,
		LogDir:         plan.LogDir,
		MaxWorkers:     plan.Workers,
		DefaultOptions: plan.Defaults,
		ExtraColumns:   record.Record(plan.Extra),
		Logger:         s.logger,
		Metrics:        s.metrics,
		History:        s.history,
	})
	if err != nil {
		s.logger.Error("create harness", "error", err)
		http.Error(w, "create run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	t := newTracker(plan.Name, h, s.logger)
	submitErr := t.submit(context.Background(), data, jobs)
	s.addTracker(t)
	go t.run(context.Background())
	if submitErr != nil {
		http.Error(w, submitErr.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("run created", "run_id", t.id, "name", plan.Name, "jobs", len(jobs))
	respondJSON(w, http.StatusCreated, t.view(false))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	views := s.trackerViews()

	if r.URL.Query().Get("all") == "true" && s.history != nil {
		runs, err := s.history.ListRuns(r.Context(), 0)
		if err != nil {
			s.logger.Error("list history runs", "error", err)
		} else {
			inMemory := s.historyIDs()
			for _, run := range runs {
				if inMemory[run.ShortID()] {
					continue
				}
				views = append(views, historyRunView(run, nil))
			}
			slices.SortFunc(views, func(a, b RunView) int {
				return b.StartedAt.Compare(a.StartedAt)
			})
		}
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if t, ok := s.tracker(id); ok {
		respondJSON(w, http.StatusOK, t.view(true))
		return
	}

	if s.history != nil {
		run, err := s.history.GetRun(r.Context(), id)
		switch {
		case errors.Is(err, history.ErrNotFound):
		case err != nil:
			s.logger.Error("get history run", "run_id", id, "error", err)
			http.Error(w, "history lookup failed", http.StatusInternalServerError)
			return
		default:
			heats, err := s.history.ListHeats(r.Context(), id)
			if err != nil {
				s.logger.Error("list heats", "run_id", id, "error", err)
			}
			respondJSON(w, http.StatusOK, historyRunView(*run, heats))
			return
		}
	}
	http.Error(w, "run not found", http.StatusNotFound)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, ok := s.tracker(vars["id"])
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	var table *record.Table
	switch vars["kind"] {
	case "train":
		table = t.h.TrainingLog()
	case "pred":
		table = t.h.PredictionLog()
	default:
		http.Error(w, "unknown log kind, want train or pred", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	if err := table.WriteCSV(w); err != nil {
		s.logger.Error("write log csv", "run_id", vars["id"], "kind", vars["kind"], "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// historyIDs maps the history run ids of in-memory harnesses, so merged
// listings do not show the same run twice.
func (s *Server) historyIDs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool, len(s.trackers))
	for _, t := range s.trackers {
		if id := t.h.RunID(); id != "" {
			ids[id] = true
		}
	}
	return ids
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
