package agent

import (
	"fmt"
	"strings"

	"github.com/dhrumilbhut/codevoice/internal/domain"
	"github.com/dhrumilbhut/codevoice/internal/tools"
)

const systemPromptHeader = `You are an expert AI coding assistant that builds small projects step by step.
You work in a plan, tool_call, final_answer cycle.
First plan what needs to be done. Planning can take multiple steps.
Call tools when you need to touch files or run commands, and wait for the
observation before continuing. When the work is done, give a final_answer.

Rules:
- Reply with exactly one JSON object per turn, nothing else.
- Only perform one step at a time.
- Think step by step about coding problems.
- Consider error handling and code quality.
- Break complex tasks into manageable steps.

Reply format:
{ "step": "plan" | "tool_call" | "final_answer", "content": "string", "tool": "string", "arguments": { } }

- "plan" requires "content": your reasoning for this step.
- "tool_call" requires "tool" and "arguments" matching the tool's schema.
- "final_answer" requires "content": the summary shown to the user.

Example:
{ "step": "plan", "content": "The user wants a calculator. I will create an index.html with the markup and inline script." }
{ "step": "tool_call", "tool": "create_file", "arguments": { "path": "index.html", "content": "<!doctype html>..." } }
{ "step": "final_answer", "content": "Your calculator app is ready in calculator_app/index.html." }`

// systemPrompt renders the full system turn: the fixed instructions, the
// current tool catalog and the classifier's project hint.
func systemPrompt(defs []tools.Definition, spec domain.ProjectSpec) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	b.WriteString("\n\nAvailable tools:\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	fmt.Fprintf(&b, "\nThe request was classified as a %q project.", spec.Category)
	fmt.Fprintf(&b, " Bare filenames are created under the %q folder automatically;", spec.TargetDirectory)
	b.WriteString(" pass a relative path to place a file elsewhere inside the project root.")
	return b.String()
}

// correctionPrompt asks the model to re-emit its last reply as a valid step.
func correctionPrompt(parseMessage string) string {
	return fmt.Sprintf(
		"Your previous reply was not a valid step: %s. Reply again with exactly one JSON object in the documented format and nothing else.",
		parseMessage,
	)
}
