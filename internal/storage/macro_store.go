package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

// MacroStore persists the user-defined macro subset. Predefined macros are
// bundled in code and never written here.
type MacroStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewMacroStore creates a new SQLite-backed macro store.
func NewMacroStore(logger *zap.Logger, db *sql.DB) (*MacroStore, error) {
	store := &MacroStore{
		logger: logger.Named("macro-store"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *MacroStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS macros (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			command TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize macro store: %w", err)
	}
	return nil
}

// Save writes a user macro. Re-creating an existing name overwrites it.
func (s *MacroStore) Save(ctx context.Context, macro *model.Macro) error {
	if macro.CreatedAt.IsZero() {
		macro.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO macros (name, description, command, created_at)
		VALUES (?, ?, ?, ?)`,
		macro.Name,
		macro.Description,
		macro.Command,
		macro.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save macro: %w", err)
	}

	s.logger.Info("Macro saved", zap.String("name", macro.Name))
	return nil
}

// List returns all persisted user macros ordered by name.
func (s *MacroStore) List(ctx context.Context) ([]*model.Macro, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, command, created_at
		FROM macros
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list macros: %w", err)
	}
	defer rows.Close()

	var macros []*model.Macro
	for rows.Next() {
		macro := &model.Macro{Origin: model.MacroOriginUser}
		if err := rows.Scan(&macro.Name, &macro.Description, &macro.Command, &macro.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan macro: %w", err)
		}
		macros = append(macros, macro)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return macros, nil
}
