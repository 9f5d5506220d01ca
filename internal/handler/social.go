package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

// SocialConfig maps a platform name (twitter, linkedin, ...) to the endpoint
// that accepts posts for it.
type SocialConfig struct {
	Platforms map[string]string
}

// SocialPostHandler publishes content for post_to_social tasks.
// Parameters: platform, content.
type SocialPostHandler struct {
	logger *zap.Logger
	config SocialConfig
	client *http.Client
}

// NewSocialPostHandler creates a new social posting handler.
func NewSocialPostHandler(logger *zap.Logger, config SocialConfig) *SocialPostHandler {
	return &SocialPostHandler{
		logger: logger.Named("social-handler"),
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Execute posts the content to the configured platform endpoint.
func (h *SocialPostHandler) Execute(ctx context.Context, task *model.Task) (*model.TaskResult, error) {
	platform := task.Param("platform")
	content := task.Param("content")
	if platform == "" || content == "" {
		return nil, fmt.Errorf("post_to_social requires 'platform' and 'content' parameters")
	}

	endpoint, ok := h.config.Platforms[platform]
	if !ok {
		return nil, fmt.Errorf("no endpoint configured for platform %q", platform)
	}

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	h.logger.Info("Posting to social platform",
		zap.String("platform", platform),
		zap.String("endpoint", endpoint))

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("platform %s responded with status %d", platform, resp.StatusCode)
	}

	return &model.TaskResult{
		Action:      model.ActionPostToSocial,
		Output:      fmt.Sprintf("Posted to %s", platform),
		CompletedAt: time.Now(),
	}, nil
}
