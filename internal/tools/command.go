package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

// Runner executes one shell command in a working directory. The local runner
// spawns processes on the host; a sandboxed runner can satisfy the same
// contract inside a container.
type Runner interface {
	Run(ctx context.Context, command, workdir string) (RunOutput, error)
}

// RunOutput carries the captured streams and exit status of one command.
type RunOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// deniedFragments lists command fragments that are never executed, whatever
// the model asks for. Matching is substring-based on the lowercased command,
// so "sudo rm -rf /" trips twice.
var deniedFragments = []string{
	"rm -rf /",
	"rm -fr /",
	"sudo ",
	"shutdown",
	"reboot",
	"mkfs",
	"dd if=",
	":(){",
	"> /dev/sd",
	"chmod -r 777 /",
	"curl | sh",
	"wget | sh",
}

// checkCommandSafety rejects commands containing a denied fragment before
// anything is spawned.
func checkCommandSafety(command string) *domain.Fault {
	lowered := strings.ToLower(command)
	for _, frag := range deniedFragments {
		if strings.Contains(lowered, frag) {
			return domain.Faultf(domain.FaultInvalidArguments, "command contains blocked fragment %q", strings.TrimSpace(frag))
		}
	}
	return nil
}

// LocalRunner executes commands on the host through the shell.
type LocalRunner struct {
	shell string
}

// NewLocalRunner builds a runner that invokes sh -c.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{shell: "sh"}
}

// Run executes command in workdir and captures both streams. A nonzero exit
// is not an error at this layer; callers read ExitCode. Context expiry
// surfaces as context.DeadlineExceeded or context.Canceled.
func (l *LocalRunner) Run(ctx context.Context, command, workdir string) (RunOutput, error) {
	cmd := exec.CommandContext(ctx, l.shell, "-c", command)
	cmd.Dir = workdir
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := RunOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
	return out, nil
}

// runCommand executes a shell command through the configured runner, bounded
// by the registry's command timeout. The working directory always resolves
// through the path guard; the output of failed commands is reported back to
// the model rather than swallowed.
func (r *Registry) runCommand(ctx context.Context, command, workdir string) domain.ToolResult {
	if fault := checkCommandSafety(command); fault != nil {
		return domain.ToolResult{Fault: fault}
	}

	dir := r.guard.Root()
	if workdir != "" {
		resolved, fault := r.guard.Resolve(workdir)
		if fault != nil {
			return domain.ToolResult{Fault: fault}
		}
		dir = resolved
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cmdTimeout)
	defer cancel()

	out, err := r.runner.Run(runCtx, command, dir)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ToolResult{Fault: domain.Faultf(domain.FaultTimeout, "command exceeded %s timeout", r.cmdTimeout)}
		}
		if errors.Is(err, context.Canceled) {
			return domain.ToolResult{Fault: domain.Faultf(domain.FaultTimeout, "command canceled")}
		}
		return domain.ToolResult{Fault: domain.Faultf(domain.FaultExecution, "run command: %v", err)}
	}

	rendered := renderRunOutput(command, out)
	if out.ExitCode != 0 {
		return domain.ToolResult{
			Output: rendered,
			Fault:  domain.Faultf(domain.FaultExecution, "command exited with code %d: %s", out.ExitCode, firstLine(out.Stderr)),
		}
	}
	return domain.ToolResult{Output: rendered}
}

func renderRunOutput(command string, out RunOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "$ %s\nexit code: %d", command, out.ExitCode)
	if s := strings.TrimRight(out.Stdout, "\n"); s != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", s)
	}
	if s := strings.TrimRight(out.Stderr, "\n"); s != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", s)
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no stderr output"
	}
	return s
}
