package model

import (
	"encoding/json"
	"strings"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

type rawPlanStep struct {
	Step      string         `json:"step"`
	Content   string         `json:"content"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ParsePlanStep decodes one model reply into a plan step. Parsing is strict:
// unknown fields, unknown step kinds and structurally incomplete steps all
// fail with a decode fault, which the loop feeds back to the model as a
// correction request.
func ParsePlanStep(raw string) (domain.PlanStep, *domain.Fault) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.PlanStep{}, domain.Faultf(domain.FaultDecode, "model reply was empty")
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var rs rawPlanStep
	if err := dec.Decode(&rs); err != nil {
		return domain.PlanStep{}, domain.Faultf(domain.FaultDecode, "model reply is not a plan step object: %v", err)
	}
	if dec.More() {
		return domain.PlanStep{}, domain.Faultf(domain.FaultDecode, "model reply contains trailing data after the plan step")
	}

	kind := domain.StepKind(rs.Step)
	switch kind {
	case domain.StepPlan:
		if strings.TrimSpace(rs.Content) == "" {
			return domain.PlanStep{}, domain.Faultf(domain.FaultDecode, "plan step has no content")
		}
	case domain.StepTool:
		if strings.TrimSpace(rs.Tool) == "" {
			return domain.PlanStep{}, domain.Faultf(domain.FaultDecode, "tool_call step names no tool")
		}
	case domain.StepFinal:
		if strings.TrimSpace(rs.Content) == "" {
			return domain.PlanStep{}, domain.Faultf(domain.FaultDecode, "final_answer step has no content")
		}
	default:
		return domain.PlanStep{}, domain.Faultf(domain.FaultDecode, "unknown step kind %q", rs.Step)
	}

	return domain.PlanStep{
		Kind:      kind,
		Content:   rs.Content,
		Tool:      rs.Tool,
		Arguments: rs.Arguments,
	}, nil
}
