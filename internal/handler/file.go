package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

// FileHandler writes files for create_file tasks. All writes are confined to
// a base directory. Parameters: filename, content.
type FileHandler struct {
	logger  *zap.Logger
	baseDir string
}

// NewFileHandler creates a new file handler rooted at baseDir.
func NewFileHandler(logger *zap.Logger, baseDir string) *FileHandler {
	return &FileHandler{
		logger:  logger.Named("file-handler"),
		baseDir: baseDir,
	}
}

// Execute writes the requested file under the base directory.
func (h *FileHandler) Execute(ctx context.Context, task *model.Task) (*model.TaskResult, error) {
	filename := task.Param("filename")
	if filename == "" {
		return nil, fmt.Errorf("create_file requires a 'filename' parameter")
	}

	path := filepath.Clean(filepath.Join(h.baseDir, filename))
	if !strings.HasPrefix(path, filepath.Clean(h.baseDir)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("filename must resolve within the base directory")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(task.Param("content")), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	h.logger.Info("File created", zap.String("path", path))

	return &model.TaskResult{
		Action:      model.ActionCreateFile,
		Output:      fmt.Sprintf("Wrote %s", path),
		CompletedAt: time.Now(),
	}, nil
}
