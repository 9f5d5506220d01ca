package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

// Translator converts a natural-language command into a typed task.
//
// Translate is total: it never fails. Any transport or parsing problem is
// folded into a sentinel task with Action == model.ActionError so the rest of
// the pipeline stays free of exceptional control flow.
type Translator interface {
	Translate(ctx context.Context, command string) *model.Task
}

// failedParseDetails is the detail message attached to the sentinel task.
const failedParseDetails = "Failed to parse command"

// prompt is the fixed instruction-format contract sent with every command.
// The interpreter is required to respond with only a JSON object matching one
// of the declared actions.
const prompt = `You are a task parser for an automation app. Convert the following natural language command into a structured JSON object with an "action" field and a "parameters" object.
The possible actions are: "send_email", "create_file", "post_to_social".

Rules:
1. For "send_email", extract "to", "subject", and "body".
2. For "post_to_social", extract "platform" (e.g., twitter, linkedin) and "content".
3. For "create_file", extract "filename" and "content".
4. All parameter values must be strings.
5. Only output a valid JSON object. Do not add any other text.

Command: %q`

// Config holds settings for the interpreter client.
type Config struct {
	BaseURL string        // e.g. https://generativelanguage.googleapis.com/v1beta
	Model   string        // e.g. gemini-pro-latest
	APIKey  string
	Timeout time.Duration // bound on the whole interpreter call
}

// GeminiTranslator talks to the Google Generative Language HTTP API.
type GeminiTranslator struct {
	logger *zap.Logger
	config Config
	client *http.Client
}

// NewGeminiTranslator creates a new interpreter-backed translator.
func NewGeminiTranslator(logger *zap.Logger, config Config) *GeminiTranslator {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &GeminiTranslator{
		logger: logger.Named("translator"),
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// generateRequest is the wire format of a generateContent call.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// generateResponse carries only the fields we read back.
type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Translate implements Translator.
func (t *GeminiTranslator) Translate(ctx context.Context, command string) *model.Task {
	text, err := t.complete(ctx, fmt.Sprintf(prompt, command))
	if err != nil {
		t.logger.Error("Interpreter call failed",
			zap.String("command", command),
			zap.Error(err))
		return errorTask()
	}

	var task model.Task
	if err := json.Unmarshal([]byte(stripFences(text)), &task); err != nil {
		t.logger.Error("Interpreter returned unparseable response",
			zap.String("command", command),
			zap.String("response", text),
			zap.Error(err))
		return errorTask()
	}

	if !task.Action.Known() && task.Action != model.ActionError {
		t.logger.Warn("Interpreter produced an action outside the contract",
			zap.String("command", command),
			zap.String("action", string(task.Action)))
	}

	t.logger.Info("Translated command",
		zap.String("command", command),
		zap.String("action", string(task.Action)))

	return &task
}

// complete performs one generateContent round trip and returns the raw text
// of the first candidate.
func (t *GeminiTranslator) complete(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(t.config.BaseURL, "/"), t.config.Model, t.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("interpreter responded with status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("interpreter returned no candidates")
	}

	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// stripFences removes incidental markdown code-fence wrapping the interpreter
// sometimes adds around the JSON payload.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func errorTask() *model.Task {
	return &model.Task{
		Action:  model.ActionError,
		Details: failedParseDetails,
	}
}
