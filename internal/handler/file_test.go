package handler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/macroflow/internal/model"
)

func TestFileHandlerExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes File Under Base Directory", func(t *testing.T) {
		baseDir := t.TempDir()
		h := NewFileHandler(zaptest.NewLogger(t), baseDir)

		result, err := h.Execute(ctx, &model.Task{
			Action: model.ActionCreateFile,
			Parameters: map[string]string{
				"filename": "reports/daily-report.txt",
				"content":  "all systems nominal",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, model.ActionCreateFile, result.Action)

		data, err := os.ReadFile(filepath.Join(baseDir, "reports", "daily-report.txt"))
		require.NoError(t, err)
		assert.Equal(t, "all systems nominal", string(data))
	})

	t.Run("Empty Content Is Allowed", func(t *testing.T) {
		baseDir := t.TempDir()
		h := NewFileHandler(zaptest.NewLogger(t), baseDir)

		_, err := h.Execute(ctx, &model.Task{
			Action:     model.ActionCreateFile,
			Parameters: map[string]string{"filename": "empty.txt"},
		})
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(baseDir, "empty.txt"))
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Missing Filename", func(t *testing.T) {
		h := NewFileHandler(zaptest.NewLogger(t), t.TempDir())

		_, err := h.Execute(ctx, &model.Task{Action: model.ActionCreateFile})
		assert.Error(t, err)
	})

	t.Run("Rejects Path Traversal", func(t *testing.T) {
		baseDir := t.TempDir()
		h := NewFileHandler(zaptest.NewLogger(t), baseDir)

		_, err := h.Execute(ctx, &model.Task{
			Action:     model.ActionCreateFile,
			Parameters: map[string]string{"filename": "../escape.txt"},
		})
		require.Error(t, err)

		_, statErr := os.Stat(filepath.Join(filepath.Dir(baseDir), "escape.txt"))
		assert.True(t, os.IsNotExist(statErr))
	})
}
