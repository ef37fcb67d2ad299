// Package tools implements the fixed catalog of filesystem and process
// operations available to the assistant loop.
package tools

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

// Guard confines every tool path to the configured projects root. All path
// arguments go through Resolve before any filesystem access happens.
type Guard struct {
	root string
}

// NewGuard builds a Guard anchored at root, creating the directory if needed.
func NewGuard(root string) (Guard, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Guard{}, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return Guard{}, err
	}
	return Guard{root: abs}, nil
}

// Root returns the absolute projects root.
func (g Guard) Root() string {
	return g.root
}

// Resolve maps a tool-supplied path to an absolute path under the root.
// Absolute inputs, traversal segments and symlinked ancestors that point
// outside the root all fail with a path_escape fault and touch nothing.
func (g Guard) Resolve(raw string) (string, *domain.Fault) {
	if raw == "" {
		return "", domain.Faultf(domain.FaultInvalidArguments, "empty path")
	}
	clean := filepath.Clean(raw)
	if filepath.IsAbs(clean) {
		return "", domain.Faultf(domain.FaultPathEscape, "absolute path %q is not allowed", raw)
	}

	full := filepath.Join(g.root, clean)
	if !g.contains(full) {
		return "", domain.Faultf(domain.FaultPathEscape, "path %q escapes the project root", raw)
	}
	if fault := g.checkSymlinks(full); fault != nil {
		return "", fault
	}
	return full, nil
}

// Rel maps an absolute path back to its root-relative form for display.
func (g Guard) Rel(full string) string {
	rel, err := filepath.Rel(g.root, full)
	if err != nil {
		return full
	}
	return rel
}

func (g Guard) contains(full string) bool {
	return full == g.root || strings.HasPrefix(full, g.root+string(os.PathSeparator))
}

// checkSymlinks resolves full, or its nearest existing ancestor when the
// path does not exist yet, and verifies the resolution still lands under the
// root. This closes the symlink-out-of-root hole a plain prefix check leaves
// open, for linked directories and for a link as the final path component.
func (g Guard) checkSymlinks(full string) *domain.Fault {
	rootResolved, err := filepath.EvalSymlinks(g.root)
	if err != nil {
		rootResolved = g.root
	}

	// A symlink final component is read and written through, so it must
	// resolve inside the root. A dangling link is rejected outright: writing
	// through it would create its target wherever that points.
	if fi, lerr := os.Lstat(full); lerr == nil && fi.Mode()&os.ModeSymlink != 0 {
		resolved, evalErr := filepath.EvalSymlinks(full)
		if evalErr != nil {
			return domain.Faultf(domain.FaultPathEscape, "path is a symlink whose target does not exist inside the project root")
		}
		if !within(resolved, rootResolved) {
			return domain.Faultf(domain.FaultPathEscape, "path resolves outside the project root via symlink")
		}
		return nil
	}

	dir := full
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			if !within(resolved, rootResolved) {
				return domain.Faultf(domain.FaultPathEscape, "path resolves outside the project root via symlink")
			}
			return nil
		}
		if !os.IsNotExist(err) {
			return domain.Faultf(domain.FaultExecution, "resolve path: %v", err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func within(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}
