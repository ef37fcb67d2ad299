package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

// createFile writes content to path, creating parent directories as needed.
// Overwriting an existing file is allowed: the model frequently regenerates
// a file it just created, and the original assistant behaved the same way.
func (r *Registry) createFile(path, content string, spec domain.ProjectSpec) domain.ToolResult {
	full, fault := r.guard.Resolve(targetPath(path, spec))
	if fault != nil {
		return domain.ToolResult{Fault: fault}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return domain.ToolResult{Fault: domain.Faultf(domain.FaultExecution, "create parent directories: %v", err)}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return domain.ToolResult{Fault: domain.Faultf(domain.FaultExecution, "write file: %v", err)}
	}

	rel := r.guard.Rel(full)
	return domain.ToolResult{
		Path:   rel,
		Output: fmt.Sprintf("File %q created successfully (%d bytes).", rel, len(content)),
	}
}

// readFile returns the text content of an existing file. A bare filename
// that is missing at the root is retried under the request's target
// directory, matching where create_file would have put it.
func (r *Registry) readFile(path string, spec domain.ProjectSpec) domain.ToolResult {
	full, fault := r.guard.Resolve(path)
	if fault != nil {
		return domain.ToolResult{Fault: fault}
	}

	if _, err := os.Stat(full); os.IsNotExist(err) {
		retry := targetPath(path, spec)
		if retry != path {
			if alt, altFault := r.guard.Resolve(retry); altFault == nil {
				if _, err := os.Stat(alt); err == nil {
					full = alt
				}
			}
		}
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ToolResult{Fault: domain.Faultf(domain.FaultNotFound, "file %q does not exist", path)}
		}
		return domain.ToolResult{Fault: domain.Faultf(domain.FaultExecution, "read file: %v", err)}
	}
	if !utf8.Valid(data) {
		return domain.ToolResult{Fault: domain.Faultf(domain.FaultDecode, "file %q is not valid UTF-8 text", path)}
	}

	return domain.ToolResult{Path: r.guard.Rel(full), Output: string(data)}
}

// writeFile overwrites a file that must already exist; it is the update
// counterpart of create_file and refuses to create new files.
func (r *Registry) writeFile(path, content string, spec domain.ProjectSpec) domain.ToolResult {
	full, fault := r.guard.Resolve(targetPath(path, spec))
	if fault != nil {
		return domain.ToolResult{Fault: fault}
	}

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return domain.ToolResult{Fault: domain.Faultf(domain.FaultNotFound, "file %q does not exist; use create_file to add new files", path)}
		}
		return domain.ToolResult{Fault: domain.Faultf(domain.FaultExecution, "stat file: %v", err)}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return domain.ToolResult{Fault: domain.Faultf(domain.FaultExecution, "write file: %v", err)}
	}

	rel := r.guard.Rel(full)
	return domain.ToolResult{
		Path:   rel,
		Output: fmt.Sprintf("File %q updated successfully (%d bytes).", rel, len(content)),
	}
}
