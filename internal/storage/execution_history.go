package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

// ExecutionStatus is the outcome of one command execution. Unlike job status
// this records failures: a failed handler still completes the owning job, but
// the failure stays visible here.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusSkipped   ExecutionStatus = "skipped"
)

// ExecutionRecord is a historical record of one translate-and-dispatch run.
type ExecutionRecord struct {
	ID          string           `json:"id"`
	Command     string           `json:"command"`
	Action      model.ActionType `json:"action,omitempty"`
	Status      ExecutionStatus  `json:"status"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
}

// ExecutionHistory stores execution records in SQLite.
type ExecutionHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewExecutionHistory creates a new SQLite-backed execution history.
func NewExecutionHistory(logger *zap.Logger, db *sql.DB) (*ExecutionHistory, error) {
	history := &ExecutionHistory{
		logger: logger.Named("execution-history"),
		db:     db,
	}

	if err := history.initialize(); err != nil {
		return nil, err
	}

	return history, nil
}

func (h *ExecutionHistory) initialize() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS execution_history (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			action TEXT,
			status TEXT NOT NULL,
			error TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			duration INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_execution_history_status ON execution_history(status);
		CREATE INDEX IF NOT EXISTS idx_execution_history_started_at ON execution_history(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize execution history: %w", err)
	}
	return nil
}

// Store inserts a new execution record.
func (h *ExecutionHistory) Store(ctx context.Context, record *ExecutionRecord) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO execution_history (id, command, action, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.Command,
		string(record.Action),
		record.Status,
		record.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store execution record: %w", err)
	}
	return nil
}

// Update writes the final outcome of an execution record.
func (h *ExecutionHistory) Update(ctx context.Context, record *ExecutionRecord) error {
	var completedAt sql.NullTime
	if record.CompletedAt != nil {
		completedAt = sql.NullTime{Time: record.CompletedAt.UTC(), Valid: true}
	}

	_, err := h.db.ExecContext(ctx, `
		UPDATE execution_history SET
			action = ?,
			status = ?,
			error = ?,
			completed_at = ?,
			duration = ?
		WHERE id = ?`,
		string(record.Action),
		record.Status,
		sql.NullString{String: record.Error, Valid: record.Error != ""},
		completedAt,
		sql.NullInt64{Int64: int64(record.Duration), Valid: record.Duration != 0},
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution record: %w", err)
	}
	return nil
}

// List retrieves execution records, newest first.
func (h *ExecutionHistory) List(ctx context.Context, offset, limit int) ([]*ExecutionRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, command, action, status, error, started_at, completed_at, duration
		FROM execution_history
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution history: %w", err)
	}
	defer rows.Close()

	var records []*ExecutionRecord
	for rows.Next() {
		record := &ExecutionRecord{}
		var action, errorStr sql.NullString
		var completedAt sql.NullTime
		var durationNanos sql.NullInt64

		err := rows.Scan(
			&record.ID,
			&record.Command,
			&action,
			&record.Status,
			&errorStr,
			&record.StartedAt,
			&completedAt,
			&durationNanos,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}

		if action.Valid {
			record.Action = model.ActionType(action.String)
		}
		if errorStr.Valid {
			record.Error = errorStr.String
		}
		if completedAt.Valid {
			record.CompletedAt = &completedAt.Time
		}
		if durationNanos.Valid {
			record.Duration = time.Duration(durationNanos.Int64)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// DeleteBefore deletes records older than the specified time.
func (h *ExecutionHistory) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := h.db.ExecContext(ctx,
		"DELETE FROM execution_history WHERE started_at < ?", before.UTC())
	if err != nil {
		return fmt.Errorf("failed to delete execution history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	h.logger.Info("Deleted old execution records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return nil
}
