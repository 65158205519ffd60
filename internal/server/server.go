// Package server exposes harness runs over a REST and websocket API.
package server

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/mlheats/heats/internal/classifier"
	"github.com/mlheats/heats/internal/history"
	"github.com/mlheats/heats/internal/metrics"
)

// Config wires the server's collaborators. Zero values get defaults.
type Config struct {
	Version string
	// LogDir is the base directory for run log directories.
	LogDir string
	// Workers is the default worker bound for plans that do not set one.
	Workers int
	// Builtins resolves plan classifier names; nil means classifier.Builtin().
	Builtins map[string]classifier.Constructor
	// History, when set, is handed to every harness the server creates.
	History *history.Store
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Server runs submitted experiment plans on in-process harnesses and
// serves their state.
type Server struct {
	version  string
	logDir   string
	workers  int
	builtins map[string]classifier.Constructor
	history  *history.Store
	metrics  *metrics.Collector
	logger   *slog.Logger

	mu       sync.RWMutex
	trackers map[string]*tracker
}

// New creates a server. The caller owns the listener lifecycle; see
// Router for the handler.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}
	builtins := cfg.Builtins
	if builtins == nil {
		builtins = classifier.Builtin()
	}
	logDir := cfg.LogDir
	if logDir == "" {
		logDir = "./heats-logs"
	}
	return &Server{
		version:  cfg.Version,
		logDir:   logDir,
		workers:  cfg.Workers,
		builtins: builtins,
		history:  cfg.History,
		metrics:  collector,
		logger:   logger,
		trackers: make(map[string]*tracker),
	}
}

func (s *Server) addTracker(t *tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[t.id] = t
}

func (s *Server) tracker(id string) (*tracker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trackers[id]
	return t, ok
}

// trackerViews returns summaries of all in-memory runs, newest first.
func (s *Server) trackerViews() []RunView {
	s.mu.RLock()
	views := make([]RunView, 0, len(s.trackers))
	for _, t := range s.trackers {
		views = append(views, t.view(false))
	}
	s.mu.RUnlock()

	slices.SortFunc(views, func(a, b RunView) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return views
}
