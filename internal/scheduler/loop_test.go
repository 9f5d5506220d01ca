package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/macroflow/internal/executor"
	"github.com/t77yq/macroflow/internal/model"
	"github.com/t77yq/macroflow/internal/storage"
)

// commandTranslator maps exact command strings to tasks, mimicking the
// interpreter without the network.
type commandTranslator struct {
	tasks map[string]*model.Task
}

func (c *commandTranslator) Translate(ctx context.Context, command string) *model.Task {
	if task, ok := c.tasks[command]; ok {
		return task
	}
	return &model.Task{Action: model.ActionError, Details: "Failed to parse command"}
}

type recordingHandler struct {
	calls []*model.Task
	err   error
}

func (h *recordingHandler) Execute(ctx context.Context, task *model.Task) (*model.TaskResult, error) {
	h.calls = append(h.calls, task)
	if h.err != nil {
		return nil, h.err
	}
	return &model.TaskResult{Action: task.Action}, nil
}

func newJobStore(t *testing.T) *storage.JobStore {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewJobStore(zaptest.NewLogger(t), db)
	require.NoError(t, err)
	return store
}

func TestLoopTick(t *testing.T) {
	ctx := context.Background()

	t.Run("Drains Due Job Exactly Once", func(t *testing.T) {
		jobs := newJobStore(t)

		file := &recordingHandler{}
		exec := executor.New(zaptest.NewLogger(t), &commandTranslator{tasks: map[string]*model.Task{
			"Create daily report": {Action: model.ActionCreateFile, Parameters: map[string]string{"filename": "report.txt"}},
		}}, nil)
		exec.RegisterHandler(model.ActionCreateFile, file)

		id, err := jobs.Save(ctx, &model.ScheduledJob{
			Command: "Create daily report",
			RunAt:   time.Now().Add(-time.Second),
		})
		require.NoError(t, err)

		loop := NewLoop(zaptest.NewLogger(t), jobs, exec, time.Minute)
		loop.Tick(ctx)

		job, err := jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		require.NotNil(t, job.CompletedAt)
		assert.Len(t, file.calls, 1)

		// A later tick never re-runs a completed job.
		loop.Tick(ctx)
		assert.Len(t, file.calls, 1)
	})

	t.Run("Future Job Is Untouched", func(t *testing.T) {
		jobs := newJobStore(t)
		exec := executor.New(zaptest.NewLogger(t), &commandTranslator{}, nil)

		id, err := jobs.Save(ctx, &model.ScheduledJob{
			Command: "Create daily report",
			RunAt:   time.Now().Add(time.Hour),
		})
		require.NoError(t, err)

		NewLoop(zaptest.NewLogger(t), jobs, exec, time.Minute).Tick(ctx)

		job, err := jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)
	})

	t.Run("Failure Isolation Within A Tick", func(t *testing.T) {
		jobs := newJobStore(t)

		failing := &recordingHandler{err: errors.New("smtp unavailable")}
		file := &recordingHandler{}

		exec := executor.New(zaptest.NewLogger(t), &commandTranslator{tasks: map[string]*model.Task{
			"Send email to team":  {Action: model.ActionSendEmail, Parameters: map[string]string{"to": "team@example.com"}},
			"Create daily report": {Action: model.ActionCreateFile, Parameters: map[string]string{"filename": "report.txt"}},
		}}, nil)
		exec.RegisterHandler(model.ActionSendEmail, failing)
		exec.RegisterHandler(model.ActionCreateFile, file)

		runAt := time.Now().Add(-time.Minute)
		first, err := jobs.Save(ctx, &model.ScheduledJob{Command: "Send email to team", RunAt: runAt})
		require.NoError(t, err)
		second, err := jobs.Save(ctx, &model.ScheduledJob{Command: "Create daily report", RunAt: runAt})
		require.NoError(t, err)

		NewLoop(zaptest.NewLogger(t), jobs, exec, time.Minute).Tick(ctx)

		// The failing job still completes (forward-only lifecycle) and the
		// second job in the same tick ran regardless.
		for _, id := range []string{first, second} {
			job, err := jobs.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusCompleted, job.Status)
		}
		assert.Len(t, failing.calls, 1)
		assert.Len(t, file.calls, 1)
	})

	t.Run("Untranslatable Job Still Completes", func(t *testing.T) {
		jobs := newJobStore(t)
		exec := executor.New(zaptest.NewLogger(t), &commandTranslator{}, nil)

		id, err := jobs.Save(ctx, &model.ScheduledJob{
			Command: "complete gibberish",
			RunAt:   time.Now().Add(-time.Second),
		})
		require.NoError(t, err)

		NewLoop(zaptest.NewLogger(t), jobs, exec, time.Minute).Tick(ctx)

		job, err := jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
	})
}

func TestLoopStartStop(t *testing.T) {
	jobs := newJobStore(t)

	file := &recordingHandler{}
	exec := executor.New(zaptest.NewLogger(t), &commandTranslator{tasks: map[string]*model.Task{
		"Create daily report": {Action: model.ActionCreateFile},
	}}, nil)
	exec.RegisterHandler(model.ActionCreateFile, file)

	id, err := jobs.Save(context.Background(), &model.ScheduledJob{
		Command: "Create daily report",
		RunAt:   time.Now().Add(-time.Second),
	})
	require.NoError(t, err)

	loop := NewLoop(zaptest.NewLogger(t), jobs, exec, 50*time.Millisecond)
	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.Eventually(t, func() bool {
		job, err := jobs.Get(context.Background(), id)
		return err == nil && job.Status == model.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	assert.Len(t, file.calls, 1)
}
