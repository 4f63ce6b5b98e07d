package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/photomap-backend-go/internal/models"
)

// ErrNotFound is returned when a run id does not exist
var ErrNotFound = errors.New("run not found")

const timeLayout = time.RFC3339Nano

const runColumns = `
	id, algorithm, config_json, query, status, stage, progress_percent,
	total_points, cluster_count, noise_points, map_path, result_summary,
	error_message, created_by, created_at, updated_at, completed_at
`

// RunRepository handles database operations for pipeline runs
type RunRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new run. CreatedAt and UpdatedAt are set here.
func (r *RunRepository) Create(task *models.RunTask) error {
	if task.ID == "" {
		return fmt.Errorf("failed to create run: empty id")
	}
	now := r.now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = models.RunStatusPending
	}

	query := `
		INSERT INTO pipeline_runs (
			id, algorithm, config_json, query, status, stage, progress_percent,
			total_points, cluster_count, noise_points, map_path, result_summary,
			error_message, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		task.ID,
		task.Algorithm,
		task.ConfigJSON,
		task.Query,
		task.Status,
		task.Stage,
		task.ProgressPercent,
		task.TotalPoints,
		task.ClusterCount,
		task.NoisePoints,
		task.MapPath,
		task.ResultSummary,
		task.ErrorMessage,
		task.CreatedBy,
		now.Format(timeLayout),
		now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(id string) (*models.RunTask, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = ?`

	task, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return task, nil
}

// List retrieves runs, newest first, optionally filtered by status
func (r *RunRepository) List(status string, limit int, offset int) ([]*models.RunTask, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE 1=1`

	args := []interface{}{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	tasks := []*models.RunTask{}
	for rows.Next() {
		task, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateProgress records the current stage and percentage of a run
func (r *RunRepository) UpdateProgress(id string, stage string, progressPercent int) error {
	query := `
		UPDATE pipeline_runs
		SET stage = ?, progress_percent = ?, updated_at = ?
		WHERE id = ?
	`
	return r.exec("failed to update run progress", query, stage, progressPercent, r.now().Format(timeLayout), id)
}

// MarkAsRunning marks a run as running
func (r *RunRepository) MarkAsRunning(id string) error {
	query := `
		UPDATE pipeline_runs
		SET status = ?, updated_at = ?
		WHERE id = ?
	`
	return r.exec("failed to mark run as running", query, models.RunStatusRunning, r.now().Format(timeLayout), id)
}

// MarkAsCompleted stores the results of a finished run
func (r *RunRepository) MarkAsCompleted(task *models.RunTask) error {
	now := r.now().Format(timeLayout)
	query := `
		UPDATE pipeline_runs
		SET status = ?, stage = ?, progress_percent = 100, total_points = ?,
			cluster_count = ?, noise_points = ?, map_path = ?, result_summary = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?
	`
	return r.exec("failed to mark run as completed", query,
		models.RunStatusCompleted,
		task.Stage,
		task.TotalPoints,
		task.ClusterCount,
		task.NoisePoints,
		task.MapPath,
		task.ResultSummary,
		now,
		now,
		task.ID,
	)
}

// MarkAsFailed marks a run as failed with an error message
func (r *RunRepository) MarkAsFailed(id string, errorMessage string) error {
	return r.finish("failed to mark run as failed", id, models.RunStatusFailed, errorMessage)
}

// MarkAsCancelled marks a run as cancelled
func (r *RunRepository) MarkAsCancelled(id string) error {
	return r.finish("failed to mark run as cancelled", id, models.RunStatusCancelled, "")
}

// FailInterrupted fails every run left pending or running by a previous process
func (r *RunRepository) FailInterrupted() (int64, error) {
	now := r.now().Format(timeLayout)
	result, err := r.db.Exec(`
		UPDATE pipeline_runs
		SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE status IN (?, ?)
	`, models.RunStatusFailed, "interrupted by server restart", now, now,
		models.RunStatusPending, models.RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to fail interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

func (r *RunRepository) finish(msg, id, status, errorMessage string) error {
	now := r.now().Format(timeLayout)
	query := `
		UPDATE pipeline_runs
		SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`
	return r.exec(msg, query, status, errorMessage, now, now, id)
}

func (r *RunRepository) exec(msg string, query string, args ...interface{}) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.RunTask, error) {
	task := &models.RunTask{}
	var createdAt, updatedAt string
	var completedAt sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Algorithm,
		&task.ConfigJSON,
		&task.Query,
		&task.Status,
		&task.Stage,
		&task.ProgressPercent,
		&task.TotalPoints,
		&task.ClusterCount,
		&task.NoisePoints,
		&task.MapPath,
		&task.ResultSummary,
		&task.ErrorMessage,
		&task.CreatedBy,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if task.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if task.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at %q: %w", completedAt.String, err)
		}
		task.CompletedAt = &t
	}
	return task, nil
}
