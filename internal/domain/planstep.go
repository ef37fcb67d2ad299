// Package domain contains core domain types for the codevoice assistant.
package domain

// StepKind identifies the decision type of one PlanStep.
type StepKind string

const (
	// StepPlan is a reasoning note from the model; the loop records it and continues.
	StepPlan StepKind = "plan"
	// StepTool requests execution of one registered tool.
	StepTool StepKind = "tool_call"
	// StepFinal carries the answer shown to the user and ends the loop.
	StepFinal StepKind = "final_answer"
)

// PlanStep is one structured decision emitted by the language model.
// Exactly one PlanStep is produced per loop iteration.
type PlanStep struct {
	Kind      StepKind       `json:"step"`
	Content   string         `json:"content,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// IsTerminal reports whether the step ends the loop.
func (p PlanStep) IsTerminal() bool {
	return p.Kind == StepFinal
}
