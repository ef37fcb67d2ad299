// Package api provides the REST gateway in front of the assistant loop.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dhrumilbhut/codevoice/internal/agent"
	"github.com/dhrumilbhut/codevoice/internal/speech"
	"github.com/dhrumilbhut/codevoice/internal/store"
)

// maxRequestBodySize caps incoming request bodies (4MB leaves room for
// base64 audio payloads on the transcription endpoint).
const maxRequestBodySize = 4 << 20

// Runner is the slice of the agent service the gateway needs.
type Runner interface {
	Run(ctx context.Context, req agent.RunRequest) (agent.RunResult, error)
}

// Handler serves the REST endpoints.
type Handler struct {
	runner      Runner
	repo        store.Repository
	transcriber speech.Transcriber
}

// NewHandler creates a Handler. repo and transcriber may be nil; the
// corresponding features are then disabled.
func NewHandler(runner Runner, repo store.Repository, transcriber speech.Transcriber) *Handler {
	return &Handler{
		runner:      runner,
		repo:        repo,
		transcriber: transcriber,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// validAPIKeyFormat mirrors the provider's key shape without calling out:
// the prefix and length check catches pasted placeholders before a model
// request is made.
func validAPIKeyFormat(key string) bool {
	return strings.HasPrefix(key, "sk-") && len(key) >= 40
}

// HandleRoot serves GET / with a service description.
func (h *Handler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"message": "Voice Coding Assistant API Server",
		"endpoints": map[string]string{
			"ask":        "/api/ask",
			"transcribe": "/api/transcribe",
			"runs":       "/api/runs",
			"stream":     "/ws/assist",
			"mcp":        "/mcp/rpc",
			"health":     "/healthz",
		},
	})
}
