package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

var (
	// ErrValidation is returned when a create request is missing a required
	// field. Nothing is mutated when it is returned.
	ErrValidation = errors.New("macro validation failed")

	// ErrMacroNotFound is returned when no macro resolves to the given name
	ErrMacroNotFound = errors.New("macro not found")
)

// Store is the persistence port for user-defined macros.
type Store interface {
	Save(ctx context.Context, macro *model.Macro) error
	List(ctx context.Context) ([]*model.Macro, error)
}

// Registry holds the effective macro set: an immutable predefined table
// overlaid with user-defined macros. The merge is computed at lookup time,
// last write wins, so a user macro shadows a predefined one for the running
// session. Shadowing macros are kept out of the store, which means the
// predefined definition wins again after a restart.
type Registry struct {
	logger     *zap.Logger
	store      Store
	predefined map[string]*model.Macro

	mu   sync.RWMutex
	user map[string]*model.Macro
}

// New creates a registry with the bundled predefined macros. Call Load before
// serving lookups.
func New(logger *zap.Logger, store Store) *Registry {
	predefined := make(map[string]*model.Macro, len(predefinedMacros))
	for _, m := range predefinedMacros {
		predefined[m.Name] = m
	}

	return &Registry{
		logger:     logger.Named("registry"),
		store:      store,
		predefined: predefined,
		user:       make(map[string]*model.Macro),
	}
}

// Load merges persisted user macros into the registry. Called once at startup.
func (r *Registry) Load(ctx context.Context) error {
	macros, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted macros: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range macros {
		r.user[m.Name] = m
	}

	r.logger.Info("Loaded persisted macros", zap.Int("count", len(macros)))
	return nil
}

// List returns the merged macro set ordered by name.
func (r *Registry) List() []*model.Macro {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[string]*model.Macro, len(r.predefined)+len(r.user))
	for name, m := range r.predefined {
		merged[name] = m
	}
	for name, m := range r.user {
		merged[name] = m
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	macros := make([]*model.Macro, 0, len(names))
	for _, name := range names {
		macros = append(macros, merged[name])
	}
	return macros
}

// Resolve returns the macro registered under name. User macros win over
// predefined ones while the process runs.
func (r *Registry) Resolve(name string) (*model.Macro, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.user[name]; ok {
		return m, nil
	}
	if m, ok := r.predefined[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMacroNotFound, name)
}

// Create registers a new user macro and persists it immediately, so the
// in-memory set and the store never diverge after a successful return. A name
// that collides with a predefined macro shadows it for this session only: the
// collision is excluded from persistence so built-ins cannot be silently
// replaced across restarts.
func (r *Registry) Create(ctx context.Context, name, description, command string) (*model.Macro, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if command == "" {
		return nil, fmt.Errorf("%w: command is required", ErrValidation)
	}

	macro := &model.Macro{
		Name:        name,
		Description: description,
		Command:     command,
		Origin:      model.MacroOriginUser,
		CreatedAt:   time.Now(),
	}

	_, shadows := r.predefined[name]
	if shadows {
		r.logger.Warn("User macro shadows a predefined macro for this session",
			zap.String("name", name))
	} else {
		if err := r.store.Save(ctx, macro); err != nil {
			return nil, fmt.Errorf("failed to persist macro: %w", err)
		}
	}

	r.mu.Lock()
	r.user[name] = macro
	r.mu.Unlock()

	r.logger.Info("Macro created",
		zap.String("name", name),
		zap.Bool("persisted", !shadows))

	return macro, nil
}
