package domain

import (
	"errors"
	"fmt"
)

// FaultKind classifies a tool or model failure.
type FaultKind string

const (
	FaultInvalidArguments FaultKind = "invalid_arguments"
	FaultNotFound         FaultKind = "not_found"
	FaultAlreadyExists    FaultKind = "already_exists"
	FaultPathEscape       FaultKind = "path_escape"
	FaultDecode           FaultKind = "decode_error"
	FaultTimeout          FaultKind = "timeout"
	FaultExecution        FaultKind = "execution_error"
	FaultUnknownTool      FaultKind = "unknown_tool"
	FaultModel            FaultKind = "model_error"
)

// Fault is a typed failure surfaced to the loop as data, never as a panic.
// The loop feeds faults back to the model as observations so it can adapt.
type Fault struct {
	Kind    FaultKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Faultf builds a Fault with a formatted message.
func Faultf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsFault unwraps err into a Fault if it carries one.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
