package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
	"github.com/t77yq/macroflow/internal/storage"
	"github.com/t77yq/macroflow/internal/translate"
)

// TaskHandler performs the side effect for exactly one action. Handlers are
// isolated: one must not depend on another's state.
type TaskHandler interface {
	Execute(ctx context.Context, task *model.Task) (*model.TaskResult, error)
}

// Executor translates commands and dispatches the resulting tasks to their
// handlers. It is total towards its callers: translation failures,
// unrecognized actions and handler errors are logged and recorded, never
// propagated, so neither a request nor a scheduler tick is ever halted by a
// single bad command.
type Executor struct {
	logger     *zap.Logger
	translator translate.Translator
	handlers   map[model.ActionType]TaskHandler
	history    *storage.ExecutionHistory
}

// New creates an executor. History may be nil, in which case executions are
// not recorded.
func New(logger *zap.Logger, translator translate.Translator, history *storage.ExecutionHistory) *Executor {
	return &Executor{
		logger:     logger.Named("executor"),
		translator: translator,
		handlers:   make(map[model.ActionType]TaskHandler),
		history:    history,
	}
}

// RegisterHandler binds an action to its handler. Later registrations for the
// same action replace earlier ones.
func (e *Executor) RegisterHandler(action model.ActionType, handler TaskHandler) {
	e.handlers[action] = handler
}

// Run translates the command and dispatches the resulting task.
func (e *Executor) Run(ctx context.Context, command string) {
	e.logger.Info("Executing command", zap.String("command", command))

	record := e.startRecord(ctx, command)

	task := e.translator.Translate(ctx, command)
	e.dispatch(ctx, task, record)
}

// Dispatch executes an already-typed task, bypassing translation. Used for
// macros that bind a direct action.
func (e *Executor) Dispatch(ctx context.Context, task *model.Task) {
	record := e.startRecord(ctx, string(task.Action))
	e.dispatch(ctx, task, record)
}

func (e *Executor) dispatch(ctx context.Context, task *model.Task, record *storage.ExecutionRecord) {
	if record != nil {
		record.Action = task.Action
	}

	if task.Action == model.ActionError {
		e.logger.Warn("Command could not be translated, skipping",
			zap.String("details", task.Details))
		e.finishRecord(ctx, record, storage.ExecutionStatusSkipped, task.Details)
		return
	}

	handler, ok := e.handlers[task.Action]
	if !ok {
		e.logger.Warn("No handler registered for action",
			zap.String("action", string(task.Action)))
		e.finishRecord(ctx, record, storage.ExecutionStatusSkipped, "unrecognized action")
		return
	}

	result, err := handler.Execute(ctx, task)
	if err != nil {
		e.logger.Error("Handler failed",
			zap.String("action", string(task.Action)),
			zap.Error(err))
		e.finishRecord(ctx, record, storage.ExecutionStatusFailed, err.Error())
		return
	}

	e.logger.Info("Action completed",
		zap.String("action", string(task.Action)),
		zap.String("output", result.Output))
	e.finishRecord(ctx, record, storage.ExecutionStatusCompleted, "")
}

func (e *Executor) startRecord(ctx context.Context, command string) *storage.ExecutionRecord {
	if e.history == nil {
		return nil
	}

	record := &storage.ExecutionRecord{
		ID:        uuid.New().String(),
		Command:   command,
		Status:    storage.ExecutionStatusRunning,
		StartedAt: time.Now(),
	}

	if err := e.history.Store(ctx, record); err != nil {
		e.logger.Error("Failed to store execution record", zap.Error(err))
		return nil
	}
	return record
}

func (e *Executor) finishRecord(ctx context.Context, record *storage.ExecutionRecord, status storage.ExecutionStatus, errMsg string) {
	if record == nil {
		return
	}

	now := time.Now()
	record.Status = status
	record.Error = errMsg
	record.CompletedAt = &now
	record.Duration = now.Sub(record.StartedAt)

	if err := e.history.Update(ctx, record); err != nil {
		e.logger.Error("Failed to update execution record", zap.Error(err))
	}
}
