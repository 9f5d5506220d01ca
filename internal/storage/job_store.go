package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

// JobStore is the durable record of deferred executions. Jobs are never
// deleted; completed rows are kept as history.
type JobStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewJobStore creates a new SQLite-backed job store.
func NewJobStore(logger *zap.Logger, db *sql.DB) (*JobStore, error) {
	store := &JobStore{
		logger: logger.Named("job-store"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist. The seq column
// captures insertion order so FindDue can break run_at ties deterministically.
func (s *JobStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_jobs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			command TEXT NOT NULL,
			run_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_status ON scheduled_jobs(status);
		CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_run_at ON scheduled_jobs(run_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}
	return nil
}

// Save persists a new job and returns its ID. Missing fields are defaulted
// the same way for every caller: a fresh UUID and pending status.
func (s *JobStore) Save(ctx context.Context, job *model.ScheduledJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, command, run_at, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		job.ID,
		job.Command,
		job.RunAt.UTC(),
		job.Status,
		job.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save scheduled job: %w", err)
	}

	s.logger.Info("Scheduled job saved",
		zap.String("job_id", job.ID),
		zap.Time("run_at", job.RunAt))

	return job.ID, nil
}

// FindDue returns every pending job whose run_at is at or before now, ordered
// by run_at ascending with ties broken by insertion order.
func (s *JobStore) FindDue(ctx context.Context, now time.Time) ([]*model.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, run_at, status, created_at, completed_at
		FROM scheduled_jobs
		WHERE status = ? AND run_at <= ?
		ORDER BY run_at ASC, seq ASC`,
		model.JobStatusPending,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return jobs, nil
}

// Get retrieves a job by ID.
func (s *JobStore) Get(ctx context.Context, id string) (*model.ScheduledJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, command, run_at, status, created_at, completed_at
		FROM scheduled_jobs
		WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Transition is the single point of mutation for job status. The update is a
// compare-and-set on the expected predecessor status, persisted before any
// execution side effect begins, so no two drains can move the same job out of
// pending.
func (s *JobStore) Transition(ctx context.Context, id string, from, to model.JobStatus) error {
	if !validTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	var completedAt interface{}
	if to == model.JobStatusCompleted {
		completedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET status = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ? AND status = ?`,
		to, completedAt, id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to transition job %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %s is not %s", ErrInvalidTransition, id, from)
	}

	return nil
}

// validTransition enforces the forward-only lifecycle.
func validTransition(from, to model.JobStatus) bool {
	switch {
	case from == model.JobStatusPending && to == model.JobStatusRunning:
		return true
	case from == model.JobStatusRunning && to == model.JobStatusCompleted:
		return true
	}
	return false
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*model.ScheduledJob, error) {
	var job model.ScheduledJob
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Command,
		&job.RunAt,
		&job.Status,
		&job.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan scheduled job: %w", err)
	}

	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}
