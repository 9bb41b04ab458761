package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/shared"
)

const runsTable = "etl_runs"

var runColumns = []string{"id", "started_at", "finished_at", "outcome", "extracted", "loaded", "error"}

// RunRepository stores the history of pipeline runs in etl_runs.
type RunRepository struct {
	db *shared.Database
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *shared.Database) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a run row in the running state
func (r *RunRepository) Start(ctx context.Context, run models.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is empty", shared.ErrInvalidInput)
	}
	if run.Outcome == "" {
		run.Outcome = models.OutcomeRunning
	}

	insert := r.db.Builder().
		Insert(runsTable).
		Columns(runColumns...).
		Values(run.ID, run.StartedAt.UTC(), utcOrNil(run.FinishedAt), string(run.Outcome), run.Extracted, run.Loaded, run.Error)

	if _, err := insert.RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Finish records the final state of a run started with [RunRepository.Start]
func (r *RunRepository) Finish(ctx context.Context, run models.Run) error {
	update := r.db.Builder().
		Update(runsTable).
		SetMap(map[string]any{
			"finished_at": utcOrNil(run.FinishedAt),
			"outcome":     string(run.Outcome),
			"extracted":   run.Extracted,
			"loaded":      run.Loaded,
			"error":       run.Error,
		}).
		Where(sq.Eq{"id": run.ID})

	result, err := update.RunWith(r.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, run.ID)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.Builder().
		Select(runColumns...).
		From(runsTable).
		Where(sq.Eq{"id": id}).
		RunWith(r.db.DB).
		QueryRowContext(ctx)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first. A non-positive limit returns every run.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.Run, error) {
	query := r.db.Builder().
		Select(runColumns...).
		From(runsTable).
		OrderBy("started_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(r.db.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row of runColumns from either [sql.Row] or [sql.Rows]
func scanRun(row sq.RowScanner) (*models.Run, error) {
	var (
		run        models.Run
		outcome    string
		finishedAt sql.NullTime
	)

	err := row.Scan(&run.ID, &run.StartedAt, &finishedAt, &outcome, &run.Extracted, &run.Loaded, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Outcome = models.RunOutcome(outcome)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
