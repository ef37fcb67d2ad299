// Package agent drives the plan, execute, observe loop that turns one user
// request into project files and a final answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dhrumilbhut/codevoice/internal/classify"
	"github.com/dhrumilbhut/codevoice/internal/domain"
	"github.com/dhrumilbhut/codevoice/internal/model"
	"github.com/dhrumilbhut/codevoice/internal/tools"
)

// maxConsecutiveMalformed bounds self-correction: after this many malformed
// replies in a row the run degrades instead of looping on a confused model.
const maxConsecutiveMalformed = 2

// Service runs assistant requests against a planner and the tool registry.
type Service struct {
	planner  model.Planner
	registry *tools.Registry
	maxSteps int
	sink     EventSink
	log      ConversationLogger
}

// NewService builds a Service. sink and logger may be nil.
func NewService(planner model.Planner, registry *tools.Registry, maxSteps int, sink EventSink, logger ConversationLogger) *Service {
	if maxSteps <= 0 {
		maxSteps = 20
	}
	if sink == nil {
		sink = noopSink{}
	}
	if logger == nil {
		logger = noopConversationLogger{}
	}
	return &Service{
		planner:  planner,
		registry: registry,
		maxSteps: maxSteps,
		sink:     sink,
		log:      logger,
	}
}

// RunRequest is one assistant invocation. APIKey is used for the duration of
// the run and never persisted.
type RunRequest struct {
	SessionID string
	Utterance string
	APIKey    string
	Model     string
}

// RunResult is the outcome of a run. Degraded marks runs that ended without
// a clean final answer from the model: budget exhaustion, repeated malformed
// replies or a provider failure. A degraded run is a valid outcome, not an
// error.
type RunResult struct {
	Answer          string
	Category        string
	TargetDirectory string
	Steps           int
	FilesWritten    []string
	Degraded        bool
}

// Run executes the loop until the model produces a final answer, the step
// budget runs out or ctx is canceled. The only error returns are credential
// validation and context cancellation; everything else degrades into a
// result the caller can show.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return RunResult{}, domain.Faultf(domain.FaultModel, "missing API key")
	}
	if strings.TrimSpace(req.Utterance) == "" {
		return RunResult{}, domain.Faultf(domain.FaultInvalidArguments, "empty request")
	}

	spec := classify.Classify(req.Utterance)
	res := RunResult{Category: spec.Category, TargetDirectory: spec.TargetDirectory}

	turns := []domain.Turn{
		{Role: domain.RoleSystem, Content: systemPrompt(s.registry.Definitions(), spec)},
		{Role: domain.RoleUser, Content: req.Utterance},
	}

	slog.Info("Assistant run started",
		"session_id", req.SessionID,
		"category", spec.Category,
		"target_dir", spec.TargetDirectory,
		"utterance_length", len(req.Utterance),
	)
	s.logUserMessage(req)

	consecutiveMalformed := 0
	for res.Steps < s.maxSteps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Steps++

		step, err := s.planner.NextStep(ctx, model.Request{
			APIKey: req.APIKey,
			Model:  req.Model,
			Turns:  turns,
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			fault, ok := domain.AsFault(err)
			if ok && fault.Kind == domain.FaultDecode {
				consecutiveMalformed++
				if consecutiveMalformed >= maxConsecutiveMalformed {
					return s.degrade(req, res, "I could not produce a well-formed plan for this request. The files written so far are listed below."), nil
				}
				s.sink.OnEvent(req.SessionID, Event{Type: EventCorrection, Step: res.Steps, Fault: fault.Message})
				turns = append(turns, domain.Turn{Role: domain.RoleDeveloper, Content: correctionPrompt(fault.Message)})
				continue
			}
			slog.Error("Planner call failed", "session_id", req.SessionID, "step", res.Steps, "error", err)
			return s.degrade(req, res, fmt.Sprintf("The model request failed: %v", err)), nil
		}
		consecutiveMalformed = 0

		turns = append(turns, domain.Turn{Role: domain.RoleAssistant, Content: marshalStep(step)})

		switch step.Kind {
		case domain.StepPlan:
			slog.Debug("Plan step", "session_id", req.SessionID, "step", res.Steps)
			s.sink.OnEvent(req.SessionID, planEvent(res.Steps, step.Content))

		case domain.StepTool:
			s.sink.OnEvent(req.SessionID, toolCallEvent(res.Steps, step.Tool))
			result := s.registry.Execute(ctx, step.Tool, step.Arguments, spec)
			if result.WroteFile() {
				res.FilesWritten = appendUnique(res.FilesWritten, result.Path)
			}
			if result.Fault != nil {
				slog.Warn("Tool call failed",
					"session_id", req.SessionID,
					"tool", step.Tool,
					"fault", result.Fault.Kind,
					"duration", result.Duration,
				)
			} else {
				slog.Info("Tool call succeeded",
					"session_id", req.SessionID,
					"tool", step.Tool,
					"duration", result.Duration,
				)
			}
			s.sink.OnEvent(req.SessionID, observationEvent(res.Steps, result))
			turns = append(turns, domain.Turn{Role: domain.RoleDeveloper, Content: marshalObservation(result)})

		case domain.StepFinal:
			res.Answer = step.Content
			s.sink.OnEvent(req.SessionID, finalEvent(res.Steps, step.Content))
			s.logAssistantMessage(req, res)
			slog.Info("Assistant run finished",
				"session_id", req.SessionID,
				"steps", res.Steps,
				"files_written", len(res.FilesWritten),
			)
			return res, nil
		}
	}

	return s.degrade(req, res, fmt.Sprintf("I ran out of steps (%d) before finishing. The work done so far is preserved.", s.maxSteps)), nil
}

// degrade closes a run without a clean model answer. Partial work stays on
// disk and is reported to the caller.
func (s *Service) degrade(req RunRequest, res RunResult, reason string) RunResult {
	res.Degraded = true
	var b strings.Builder
	b.WriteString(reason)
	if len(res.FilesWritten) > 0 {
		b.WriteString("\nFiles written: ")
		b.WriteString(strings.Join(res.FilesWritten, ", "))
	}
	res.Answer = b.String()
	s.sink.OnEvent(req.SessionID, Event{Type: EventFinal, Step: res.Steps, Content: res.Answer, Fault: reason})
	s.logAssistantMessage(req, res)
	slog.Warn("Assistant run degraded", "session_id", req.SessionID, "steps", res.Steps, "reason", reason)
	return res
}

func (s *Service) logUserMessage(req RunRequest) {
	s.log.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: req.SessionID,
		Direction: "inbound",
		EventType: "user_request",
		Content:   req.Utterance,
	})
}

func (s *Service) logAssistantMessage(req RunRequest, res RunResult) {
	s.log.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: req.SessionID,
		Direction: "outbound",
		EventType: "assistant_answer",
		Content:   res.Answer,
		Meta: map[string]any{
			"steps":         res.Steps,
			"degraded":      res.Degraded,
			"files_written": res.FilesWritten,
			"category":      res.Category,
		},
	})
}

func marshalStep(step domain.PlanStep) string {
	b, err := json.Marshal(step)
	if err != nil {
		return string(step.Kind)
	}
	return string(b)
}

// marshalObservation renders a tool result as the developer observation turn
// the model reads next.
func marshalObservation(res domain.ToolResult) string {
	obs := map[string]any{
		"step":   "observe",
		"tool":   res.Tool,
		"output": res.Output,
	}
	if res.Fault != nil {
		obs["fault"] = res.Fault
	}
	b, err := json.Marshal(obs)
	if err != nil {
		return `{"step":"observe","output":"observation could not be serialized"}`
	}
	return string(b)
}

func appendUnique(paths []string, path string) []string {
	for _, p := range paths {
		if p == path {
			return paths
		}
	}
	return append(paths, path)
}
