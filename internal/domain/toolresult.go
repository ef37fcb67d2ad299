package domain

import "time"

// ToolResult is the immutable outcome of executing one tool call.
// Either Output is set (success) or Fault is set (typed failure); it is
// appended to the working context as an observation either way.
type ToolResult struct {
	Tool     string        `json:"tool"`
	Output   string        `json:"output,omitempty"`
	Path     string        `json:"path,omitempty"`
	Fault    *Fault        `json:"fault,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// OK reports whether the tool call succeeded.
func (r ToolResult) OK() bool {
	return r.Fault == nil
}

// WroteFile reports whether the result represents a successful file write.
func (r ToolResult) WroteFile() bool {
	return r.OK() && (r.Tool == "create_file" || r.Tool == "write_file") && r.Path != ""
}
