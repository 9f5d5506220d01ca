package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
)

// interpreterStub serves canned generateContent responses.
func interpreterStub(t *testing.T, text string, status int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		if status >= 400 {
			w.WriteHeader(status)
			return
		}

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": text}},
				}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTranslator(t *testing.T, baseURL string) *GeminiTranslator {
	t.Helper()

	return NewGeminiTranslator(zap.NewNop(), Config{
		BaseURL: baseURL,
		Model:   "gemini-pro-latest",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func TestTranslate(t *testing.T) {
	payload := `{"action":"send_email","parameters":{"to":"team@example.com","subject":"Daily Update","body":"Hello team"}}`

	t.Run("Plain Response", func(t *testing.T) {
		srv := interpreterStub(t, payload, http.StatusOK)
		defer srv.Close()

		task := newTranslator(t, srv.URL).Translate(context.Background(), "Send email to team")
		require.NotNil(t, task)
		assert.Equal(t, model.ActionSendEmail, task.Action)
		assert.Equal(t, "team@example.com", task.Param("to"))
	})

	t.Run("Fenced Response", func(t *testing.T) {
		fenced := "```json\n" + payload + "\n```"
		srv := interpreterStub(t, fenced, http.StatusOK)
		defer srv.Close()

		plain := interpreterStub(t, payload, http.StatusOK)
		defer plain.Close()

		got := newTranslator(t, srv.URL).Translate(context.Background(), "Send email to team")
		want := newTranslator(t, plain.URL).Translate(context.Background(), "Send email to team")
		assert.Equal(t, want, got)
	})

	t.Run("Unparseable Response", func(t *testing.T) {
		srv := interpreterStub(t, "I could not figure out this command, sorry!", http.StatusOK)
		defer srv.Close()

		task := newTranslator(t, srv.URL).Translate(context.Background(), "do something")
		require.NotNil(t, task)
		assert.Equal(t, model.ActionError, task.Action)
		assert.Equal(t, "Failed to parse command", task.Details)
	})

	t.Run("Interpreter Failure", func(t *testing.T) {
		srv := interpreterStub(t, "", http.StatusInternalServerError)
		defer srv.Close()

		task := newTranslator(t, srv.URL).Translate(context.Background(), "Send email to team")
		require.NotNil(t, task)
		assert.Equal(t, model.ActionError, task.Action)
	})

	t.Run("Unreachable Interpreter", func(t *testing.T) {
		task := newTranslator(t, "http://127.0.0.1:1").Translate(context.Background(), "Send email to team")
		require.NotNil(t, task)
		assert.Equal(t, model.ActionError, task.Action)
	})
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1}  `))
}
