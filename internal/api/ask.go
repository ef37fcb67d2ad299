package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhrumilbhut/codevoice/internal/agent"
	"github.com/dhrumilbhut/codevoice/internal/domain"
)

// AskRequest is the POST /api/ask body. The API key is forwarded to the
// model provider for this run only.
type AskRequest struct {
	UserInput string         `json:"user_input"`
	APIKey    string         `json:"api_key"`
	Model     string         `json:"model"`
	Context   map[string]any `json:"context"`
}

// AskResponse mirrors the assistant reply shape clients already consume.
type AskResponse struct {
	Response string         `json:"response"`
	Data     map[string]any `json:"data"`
}

// HandleAsk handles POST /api/ask: one full assistant run per request.
// Credential problems are reported in the response body with status 200,
// matching the contract existing clients depend on.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		JSON(w, http.StatusOK, AskResponse{Response: "Error: API key is required in the request.", Data: map[string]any{}})
		return
	}
	if !validAPIKeyFormat(apiKey) {
		JSON(w, http.StatusOK, AskResponse{Response: "Error: Invalid API key format. Please provide a valid OpenAI API key.", Data: map[string]any{}})
		return
	}
	if strings.TrimSpace(req.UserInput) == "" {
		Error(w, http.StatusBadRequest, "user_input is required")
		return
	}

	runID := uuid.NewString()
	result, err := h.runner.Run(r.Context(), agent.RunRequest{
		SessionID: runID,
		Utterance: req.UserInput,
		APIKey:    apiKey,
		Model:     req.Model,
	})
	if err != nil {
		if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
			// Client went away; nothing useful to write.
			return
		}
		slog.Error("Assistant run failed", "run_id", runID, "error", err)
		Error(w, http.StatusInternalServerError, "assistant run failed")
		return
	}

	h.saveRunRecord(r, runID, result)

	JSON(w, http.StatusOK, AskResponse{
		Response: result.Answer,
		Data: map[string]any{
			"category":      result.Category,
			"target_dir":    result.TargetDirectory,
			"steps":         result.Steps,
			"files_written": result.FilesWritten,
			"degraded":      result.Degraded,
		},
	})
}

// saveRunRecord persists the run outcome. Ledger failures are logged and
// never fail the request.
func (h *Handler) saveRunRecord(r *http.Request, runID string, result agent.RunResult) {
	if h.repo == nil {
		return
	}
	rec := &domain.RunRecord{
		ID:           runID,
		Category:     result.Category,
		Answer:       result.Answer,
		Steps:        result.Steps,
		FilesWritten: len(result.FilesWritten),
		Degraded:     result.Degraded,
		CreatedAt:    time.Now(),
	}
	if err := h.repo.SaveRun(r.Context(), rec); err != nil {
		slog.Warn("Failed to save run record", "run_id", runID, "error", err)
	}
}

// HandleListRuns handles GET /api/runs: the recent run ledger.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "run ledger disabled")
		return
	}
	records, err := h.repo.ListRecent(r.Context(), 20)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if records == nil {
		records = []*domain.RunRecord{}
	}
	JSON(w, http.StatusOK, map[string]any{"runs": records})
}
