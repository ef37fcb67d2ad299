package domain

// Turn roles mirror the chat-completions wire protocol. Observations are
// recorded under RoleDeveloper so the model can tell them apart from user input.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleDeveloper = "developer"
)

// Turn is one entry in the conversation context for a single request.
// The context is an owned, append-only sequence; it is never shared between
// concurrent runs and is only persisted if the caller resupplies it.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
