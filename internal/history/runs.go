package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrNotFound indicates the requested run does not exist.
	ErrNotFound = errors.New("run not found")

	// ErrAlreadyExists indicates a record with the same ID already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

const defaultListLimit = 50

// Run is one harness lifetime.
type Run struct {
	ID            surrealmodels.RecordID `json:"id"`
	Name          string                 `json:"name"`
	Status        string                 `json:"status"`
	LogDir        string                 `json:"log_dir"`
	Workers       int                    `json:"workers"`
	JobsCompleted int                    `json:"jobs_completed"`
	JobsFailed    int                    `json:"jobs_failed"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

// ShortID returns the run's record key as a string.
func (r Run) ShortID() string {
	if s, ok := r.ID.ID.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", r.ID.ID)
}

// Heat is the final state of one job within a run.
type Heat struct {
	ID             surrealmodels.RecordID `json:"id"`
	Run            string                 `json:"run"`
	SubmissionID   string                 `json:"submission_id"`
	JobID          string                 `json:"job_id"`
	Classifier     *string                `json:"classifier,omitempty"`
	Status         string                 `json:"status"`
	Error          *string                `json:"error,omitempty"`
	TrainingRows   int                    `json:"training_rows"`
	PredictionRows int                    `json:"prediction_rows"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
}

// RunInput creates a run row.
type RunInput struct {
	Name    string
	LogDir  string
	Workers int
}

// HeatInput records one job's final state.
type HeatInput struct {
	RunID          string
	SubmissionID   string
	JobID          string
	Classifier     string
	Status         string
	Error          string
	TrainingRows   int
	PredictionRows int
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// CreateRun inserts a running run row and returns its short ID.
func (s *Store) CreateRun(ctx context.Context, in RunInput) (string, error) {
	id := uuid.New().String()[:8]
	_, err := surrealdb.Query[any](ctx, s.db, `
		CREATE type::record("run", $id) SET
			name = $name,
			status = "running",
			log_dir = $log_dir,
			workers = $workers,
			jobs_completed = 0,
			jobs_failed = 0,
			started_at = time::now()
	`, map[string]any{
		"id":      id,
		"name":    in.Name,
		"log_dir": in.LogDir,
		"workers": in.Workers,
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", wrapQueryError(err))
	}
	return id, nil
}

// CompleteRun finalizes a run row with its job counts. A run with jobs
// and zero successes is marked failed.
func (s *Store) CompleteRun(ctx context.Context, id string, completed, failed int) error {
	status := "completed"
	if failed > 0 && completed == 0 {
		status = "failed"
	}
	_, err := surrealdb.Query[any](ctx, s.db, `
		UPDATE type::record("run", $id) SET
			status = $status,
			jobs_completed = $completed,
			jobs_failed = $failed,
			completed_at = time::now()
	`, map[string]any{
		"id":        id,
		"status":    status,
		"completed": completed,
		"failed":    failed,
	})
	if err != nil {
		return fmt.Errorf("complete run: %w", wrapQueryError(err))
	}
	return nil
}

// GetRun retrieves one run by short ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	results, err := surrealdb.Query[[]Run](ctx, s.db, `
		SELECT * FROM type::record("run", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get run: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// ListRuns returns runs newest first. limit <= 0 applies the default.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	results, err := surrealdb.Query[[]Run](ctx, s.db, `
		SELECT * FROM run ORDER BY started_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []Run{}, nil
	}
	return (*results)[0].Result, nil
}

// CreateHeat inserts one job's final state.
func (s *Store) CreateHeat(ctx context.Context, in HeatInput) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		CREATE heat SET
			run = $run,
			submission_id = $submission_id,
			job_id = $job_id,
			classifier = $classifier,
			status = $status,
			error = $error,
			training_rows = $training_rows,
			prediction_rows = $prediction_rows,
			started_at = $started_at,
			completed_at = $completed_at
	`, map[string]any{
		"run":             in.RunID,
		"submission_id":   in.SubmissionID,
		"job_id":          in.JobID,
		"classifier":      nilIfEmpty(in.Classifier),
		"status":          in.Status,
		"error":           nilIfEmpty(in.Error),
		"training_rows":   in.TrainingRows,
		"prediction_rows": in.PredictionRows,
		"started_at":      in.StartedAt,
		"completed_at":    in.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("create heat: %w", wrapQueryError(err))
	}
	return nil
}

// ListHeats returns a run's heats in start order.
func (s *Store) ListHeats(ctx context.Context, runID string) ([]Heat, error) {
	results, err := surrealdb.Query[[]Heat](ctx, s.db, `
		SELECT * FROM heat WHERE run = $run ORDER BY started_at ASC
	`, map[string]any{"run": runID})
	if err != nil {
		return nil, fmt.Errorf("list heats: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []Heat{}, nil
	}
	return (*results)[0].Result, nil
}

// DeleteRun removes a run and all its heats.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		DELETE heat WHERE run = $id;
		DELETE type::record("run", $id);
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete run: %w", wrapQueryError(err))
	}
	return nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// wrapQueryError translates known SurrealDB query errors into sentinels
// callers can branch on. Unknown errors pass through unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}
	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		if strings.Contains(queryErr.Message, "already exists") {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, queryErr.Message)
		}
	}
	return err
}
