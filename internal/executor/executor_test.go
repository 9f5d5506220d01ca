package executor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/macroflow/internal/model"
	"github.com/t77yq/macroflow/internal/storage"
)

// stubTranslator returns a fixed task for any command.
type stubTranslator struct {
	task *model.Task
}

func (s *stubTranslator) Translate(ctx context.Context, command string) *model.Task {
	return s.task
}

// recordingHandler captures the tasks it receives.
type recordingHandler struct {
	calls []*model.Task
	err   error
}

func (h *recordingHandler) Execute(ctx context.Context, task *model.Task) (*model.TaskResult, error) {
	h.calls = append(h.calls, task)
	if h.err != nil {
		return nil, h.err
	}
	return &model.TaskResult{Action: task.Action, Output: "ok"}, nil
}

func newHistory(t *testing.T) *storage.ExecutionHistory {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	history, err := storage.NewExecutionHistory(zaptest.NewLogger(t), db)
	require.NoError(t, err)
	return history
}

func lastRecord(t *testing.T, history *storage.ExecutionHistory) *storage.ExecutionRecord {
	t.Helper()

	records, err := history.List(context.Background(), 0, 1)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	return records[0]
}

func TestExecutorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Dispatches To Registered Handler", func(t *testing.T) {
		history := newHistory(t)
		task := &model.Task{
			Action:     model.ActionSendEmail,
			Parameters: map[string]string{"to": "team@example.com"},
		}

		email := &recordingHandler{}
		other := &recordingHandler{}

		exec := New(zaptest.NewLogger(t), &stubTranslator{task: task}, history)
		exec.RegisterHandler(model.ActionSendEmail, email)
		exec.RegisterHandler(model.ActionCreateFile, other)

		exec.Run(ctx, "Send email to team")

		require.Len(t, email.calls, 1)
		assert.Equal(t, "team@example.com", email.calls[0].Param("to"))
		assert.Empty(t, other.calls)

		record := lastRecord(t, history)
		assert.Equal(t, storage.ExecutionStatusCompleted, record.Status)
		assert.Equal(t, model.ActionSendEmail, record.Action)
	})

	t.Run("Error Task Produces No Side Effect", func(t *testing.T) {
		history := newHistory(t)
		task := &model.Task{Action: model.ActionError, Details: "Failed to parse command"}

		email := &recordingHandler{}
		exec := New(zaptest.NewLogger(t), &stubTranslator{task: task}, history)
		exec.RegisterHandler(model.ActionSendEmail, email)

		exec.Run(ctx, "gibberish")

		assert.Empty(t, email.calls)
		assert.Equal(t, storage.ExecutionStatusSkipped, lastRecord(t, history).Status)
	})

	t.Run("Unrecognized Action Is Logged Not Fatal", func(t *testing.T) {
		history := newHistory(t)
		task := &model.Task{Action: model.ActionType("launch_rocket")}

		exec := New(zaptest.NewLogger(t), &stubTranslator{task: task}, history)
		exec.Run(ctx, "launch the rocket")

		assert.Equal(t, storage.ExecutionStatusSkipped, lastRecord(t, history).Status)
	})

	t.Run("Handler Failure Is Contained", func(t *testing.T) {
		history := newHistory(t)
		task := &model.Task{Action: model.ActionCreateFile}

		failing := &recordingHandler{err: errors.New("disk full")}
		exec := New(zaptest.NewLogger(t), &stubTranslator{task: task}, history)
		exec.RegisterHandler(model.ActionCreateFile, failing)

		exec.Run(ctx, "Create daily report")

		require.Len(t, failing.calls, 1)
		record := lastRecord(t, history)
		assert.Equal(t, storage.ExecutionStatusFailed, record.Status)
		assert.Contains(t, record.Error, "disk full")
	})

	t.Run("Nil History Is Allowed", func(t *testing.T) {
		task := &model.Task{Action: model.ActionSendEmail}
		email := &recordingHandler{}

		exec := New(zaptest.NewLogger(t), &stubTranslator{task: task}, nil)
		exec.RegisterHandler(model.ActionSendEmail, email)

		exec.Run(ctx, "Send email to team")
		require.Len(t, email.calls, 1)
	})
}

func TestExecutorDispatch(t *testing.T) {
	// Direct tasks skip translation entirely.
	email := &recordingHandler{}
	exec := New(zaptest.NewLogger(t), &stubTranslator{task: &model.Task{Action: model.ActionError}}, nil)
	exec.RegisterHandler(model.ActionSendEmail, email)

	exec.Dispatch(context.Background(), &model.Task{
		Action:     model.ActionSendEmail,
		Parameters: map[string]string{"to": "team@example.com"},
	})

	require.Len(t, email.calls, 1)
	assert.Equal(t, "team@example.com", email.calls[0].Param("to"))
}
