// Package model talks to an OpenAI-compatible chat completions endpoint and
// turns its replies into plan steps.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

// Planner produces the next plan step for a conversation. The production
// implementation calls a hosted model; tests substitute a stub.
type Planner interface {
	NextStep(ctx context.Context, req Request) (domain.PlanStep, error)
}

// Request carries one planning call. APIKey arrives per request because
// callers supply their own credentials; it is never stored.
type Request struct {
	APIKey string
	Model  string
	Turns  []domain.Turn
}

// Client is an OpenAI-compatible chat completions client. Replies are
// constrained to the plan step schema via structured outputs.
type Client struct {
	baseURL      string
	defaultModel string
	http         *http.Client
}

// NewClient builds a Client for the given base URL, e.g.
// "https://api.openai.com/v1".
func NewClient(baseURL, defaultModel string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: defaultModel,
		http:         &http.Client{Timeout: timeout},
	}
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// planStepSchema mirrors domain.PlanStep for the structured output contract.
var planStepSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"step": map[string]any{
			"type": "string",
			"enum": []string{string(domain.StepPlan), string(domain.StepTool), string(domain.StepFinal)},
		},
		"content":   map[string]any{"type": "string"},
		"tool":      map[string]any{"type": "string"},
		"arguments": map[string]any{"type": "object"},
	},
	"required": []string{"step"},
}

// NextStep sends the conversation and parses the reply as a single plan
// step. Transport and provider failures come back as model faults; a reply
// that is not a valid plan step comes back as a decode fault so the loop can
// ask the model to correct itself.
func (c *Client) NextStep(ctx context.Context, req Request) (domain.PlanStep, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]map[string]string, 0, len(req.Turns))
	for _, turn := range req.Turns {
		messages = append(messages, map[string]string{
			"role":    string(turn.Role),
			"content": turn.Content,
		})
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "plan_step",
				"schema": planStepSchema,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.PlanStep{}, domain.Faultf(domain.FaultModel, "marshal chat payload: %v", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.PlanStep{}, domain.Faultf(domain.FaultModel, "create chat request: %v", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := c.http.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.PlanStep{}, ctx.Err()
		}
		return domain.PlanStep{}, domain.Faultf(domain.FaultModel, "chat completions call: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return domain.PlanStep{}, domain.Faultf(domain.FaultModel, "read chat response: %v", err)
	}
	if resp.StatusCode >= 400 {
		return domain.PlanStep{}, statusFault(resp.StatusCode, respBody)
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return domain.PlanStep{}, domain.Faultf(domain.FaultModel, "parse chat response: %v", err)
	}
	if out.Error != nil {
		return domain.PlanStep{}, domain.Faultf(domain.FaultModel, "provider error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return domain.PlanStep{}, domain.Faultf(domain.FaultModel, "chat response had no choices")
	}

	step, parseErr := ParsePlanStep(out.Choices[0].Message.Content)
	if parseErr != nil {
		return domain.PlanStep{}, parseErr
	}
	return step, nil
}

func statusFault(status int, body []byte) *domain.Fault {
	detail := compact(string(body), 300)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Faultf(domain.FaultModel, "provider rejected the API key (status %d): %s", status, detail)
	case http.StatusTooManyRequests:
		return domain.Faultf(domain.FaultModel, "provider rate limit hit (status %d): %s", status, detail)
	default:
		return domain.Faultf(domain.FaultModel, "provider status %d: %s", status, detail)
	}
}

func compact(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
