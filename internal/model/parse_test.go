package model

import (
	"testing"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

func TestParsePlanStepValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want domain.PlanStep
	}{
		{
			name: "plan",
			raw:  `{"step":"plan","content":"First create the HTML skeleton"}`,
			want: domain.PlanStep{Kind: domain.StepPlan, Content: "First create the HTML skeleton"},
		},
		{
			name: "tool call",
			raw:  `{"step":"tool_call","tool":"create_file","arguments":{"path":"index.html","content":"<html></html>"}}`,
			want: domain.PlanStep{Kind: domain.StepTool, Tool: "create_file"},
		},
		{
			name: "final answer",
			raw:  `{"step":"final_answer","content":"Your todo app is ready in todo_app/."}`,
			want: domain.PlanStep{Kind: domain.StepFinal, Content: "Your todo app is ready in todo_app/."},
		},
		{
			name: "surrounding whitespace",
			raw:  "\n  {\"step\":\"plan\",\"content\":\"think\"}  \n",
			want: domain.PlanStep{Kind: domain.StepPlan, Content: "think"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, fault := ParsePlanStep(tc.raw)
			if fault != nil {
				t.Fatalf("ParsePlanStep: %v", fault)
			}
			if got.Kind != tc.want.Kind {
				t.Errorf("kind = %q, want %q", got.Kind, tc.want.Kind)
			}
			if tc.want.Content != "" && got.Content != tc.want.Content {
				t.Errorf("content = %q, want %q", got.Content, tc.want.Content)
			}
			if tc.want.Tool != "" && got.Tool != tc.want.Tool {
				t.Errorf("tool = %q, want %q", got.Tool, tc.want.Tool)
			}
		})
	}
}

func TestParsePlanStepArguments(t *testing.T) {
	t.Parallel()

	got, fault := ParsePlanStep(`{"step":"tool_call","tool":"run_command","arguments":{"command":"ls","working_directory":"todo_app"}}`)
	if fault != nil {
		t.Fatalf("ParsePlanStep: %v", fault)
	}
	if got.Arguments["command"] != "ls" {
		t.Fatalf("arguments = %#v", got.Arguments)
	}
}

func TestParsePlanStepRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "I'll start by creating the files."},
		{"prose around json", `Sure! {"step":"plan","content":"x"} hope that helps`},
		{"unknown kind", `{"step":"OBSERVE","content":"x"}`},
		{"unknown field", `{"step":"plan","content":"x","confidence":0.9}`},
		{"tool call without tool", `{"step":"tool_call","arguments":{"path":"a"}}`},
		{"plan without content", `{"step":"plan"}`},
		{"final without content", `{"step":"final_answer"}`},
		{"trailing object", `{"step":"plan","content":"x"}{"step":"plan","content":"y"}`},
		{"array instead of object", `[{"step":"plan","content":"x"}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, fault := ParsePlanStep(tc.raw)
			if fault == nil {
				t.Fatalf("ParsePlanStep(%q) succeeded, want decode fault", tc.raw)
			}
			if fault.Kind != domain.FaultDecode {
				t.Fatalf("fault kind = %q, want %q", fault.Kind, domain.FaultDecode)
			}
		})
	}
}
