package agent

import "github.com/dhrumilbhut/codevoice/internal/domain"

// Event is one observable moment in a run, published to streaming clients.
type Event struct {
	Type    string `json:"type"`
	Step    int    `json:"step"`
	Content string `json:"content,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Output  string `json:"output,omitempty"`
	Fault   string `json:"fault,omitempty"`
}

const (
	EventPlan        = "plan"
	EventToolCall    = "tool_call"
	EventObservation = "observation"
	EventCorrection  = "correction"
	EventFinal       = "final_answer"
)

// EventSink receives run events. Implementations must not block the loop.
type EventSink interface {
	OnEvent(sessionID string, ev Event)
}

type noopSink struct{}

func (noopSink) OnEvent(string, Event) {}

func planEvent(step int, content string) Event {
	return Event{Type: EventPlan, Step: step, Content: content}
}

func toolCallEvent(step int, tool string) Event {
	return Event{Type: EventToolCall, Step: step, Tool: tool}
}

func observationEvent(step int, res domain.ToolResult) Event {
	ev := Event{Type: EventObservation, Step: step, Tool: res.Tool, Output: res.Output}
	if res.Fault != nil {
		ev.Fault = res.Fault.Error()
	}
	return ev
}

func finalEvent(step int, content string) Event {
	return Event{Type: EventFinal, Step: step, Content: content}
}
