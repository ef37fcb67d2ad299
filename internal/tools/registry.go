package tools

import (
	"context"
	"strings"
	"time"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

// Tool names form a closed set: adding a tool means adding a case to
// Execute and an entry to definitions, not registering an arbitrary callable.
const (
	ToolCreateFile  = "create_file"
	ToolReadFile    = "read_file"
	ToolWriteFile   = "write_file"
	ToolAnalyzeCode = "analyze_code"
	ToolRunCommand  = "run_command"
)

// Definition describes one tool for the model prompt and the MCP tools/list
// response. Schema is a JSON-Schema-shaped object declaring the arguments.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"inputSchema"`
}

// Registry executes the fixed tool catalog against the guarded project root.
type Registry struct {
	guard      Guard
	runner     Runner
	cmdTimeout time.Duration
}

// NewRegistry builds a Registry. runner may be nil, in which case commands
// run locally via the default runner.
func NewRegistry(guard Guard, runner Runner, cmdTimeout time.Duration) *Registry {
	if runner == nil {
		runner = NewLocalRunner()
	}
	if cmdTimeout <= 0 {
		cmdTimeout = 30 * time.Second
	}
	return &Registry{guard: guard, runner: runner, cmdTimeout: cmdTimeout}
}

// Guard exposes the registry's path guard for collaborators that need to
// resolve display paths.
func (r *Registry) Guard() Guard {
	return r.guard
}

// Definitions returns the declared catalog in a stable order.
func (r *Registry) Definitions() []Definition {
	pathProp := map[string]any{"type": "string", "description": "File path relative to the project root"}
	contentProp := map[string]any{"type": "string", "description": "Full file content"}

	return []Definition{
		{
			Name:        ToolCreateFile,
			Description: "Create a file with the given content, creating parent folders as needed. Overwrites an existing file.",
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": pathProp, "content": contentProp},
				"required":   []string{"path", "content"},
			},
		},
		{
			Name:        ToolReadFile,
			Description: "Read the contents of an existing text file.",
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": pathProp},
				"required":   []string{"path"},
			},
		},
		{
			Name:        ToolWriteFile,
			Description: "Overwrite the content of a file that already exists.",
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": pathProp, "content": contentProp},
				"required":   []string{"path", "content"},
			},
		},
		{
			Name:        ToolAnalyzeCode,
			Description: "Report line counts, definition counts and detected language for a code file.",
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": pathProp},
				"required":   []string{"path"},
			},
		},
		{
			Name:        ToolRunCommand,
			Description: "Run a safe shell command inside the project root with a bounded timeout.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command":           map[string]any{"type": "string", "description": "Shell command to execute"},
					"working_directory": map[string]any{"type": "string", "description": "Directory relative to the project root (optional)"},
				},
				"required": []string{"command"},
			},
		},
	}
}

// Execute validates args against the named tool's schema and runs it.
// Every failure comes back as a typed fault inside the ToolResult; schema
// violations fail fast and never touch the filesystem or spawn a process.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, spec domain.ProjectSpec) domain.ToolResult {
	start := time.Now()
	res := r.dispatch(ctx, name, args, spec)
	res.Tool = name
	res.Duration = time.Since(start)
	return res
}

func (r *Registry) dispatch(ctx context.Context, name string, args map[string]any, spec domain.ProjectSpec) domain.ToolResult {
	switch name {
	case ToolCreateFile:
		path, content, fault := filePathAndContent(args)
		if fault != nil {
			return domain.ToolResult{Fault: fault}
		}
		return r.createFile(path, content, spec)
	case ToolReadFile:
		path, fault := stringArg(args, "path")
		if fault != nil {
			return domain.ToolResult{Fault: fault}
		}
		return r.readFile(path, spec)
	case ToolWriteFile:
		path, content, fault := filePathAndContent(args)
		if fault != nil {
			return domain.ToolResult{Fault: fault}
		}
		return r.writeFile(path, content, spec)
	case ToolAnalyzeCode:
		path, fault := stringArg(args, "path")
		if fault != nil {
			return domain.ToolResult{Fault: fault}
		}
		return r.analyzeCode(path, spec)
	case ToolRunCommand:
		command, fault := stringArg(args, "command")
		if fault != nil {
			return domain.ToolResult{Fault: fault}
		}
		workdir, fault := optionalStringArg(args, "working_directory")
		if fault != nil {
			return domain.ToolResult{Fault: fault}
		}
		return r.runCommand(ctx, command, workdir)
	default:
		return domain.ToolResult{
			Fault: domain.Faultf(domain.FaultUnknownTool, "tool %q not found, available tools: %s", name, strings.Join(r.toolNames(), ", ")),
		}
	}
}

func (r *Registry) toolNames() []string {
	defs := r.Definitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}

// targetPath prefixes bare filenames with the classifier's target directory
// so "index.html" for a calculator request lands in calculator_app/.
func targetPath(path string, spec domain.ProjectSpec) string {
	if spec.TargetDirectory == "" || strings.ContainsAny(path, `/\`) {
		return path
	}
	return spec.TargetDirectory + "/" + path
}

func stringArg(args map[string]any, key string) (string, *domain.Fault) {
	raw, ok := args[key]
	if !ok {
		return "", domain.Faultf(domain.FaultInvalidArguments, "missing required argument %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.Faultf(domain.FaultInvalidArguments, "argument %q must be a string, got %T", key, raw)
	}
	if strings.TrimSpace(s) == "" {
		return "", domain.Faultf(domain.FaultInvalidArguments, "argument %q must not be empty", key)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key string) (string, *domain.Fault) {
	raw, ok := args[key]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.Faultf(domain.FaultInvalidArguments, "argument %q must be a string, got %T", key, raw)
	}
	return s, nil
}

func filePathAndContent(args map[string]any) (string, string, *domain.Fault) {
	path, fault := stringArg(args, "path")
	if fault != nil {
		return "", "", fault
	}
	raw, ok := args["content"]
	if !ok {
		return "", "", domain.Faultf(domain.FaultInvalidArguments, "missing required argument %q", "content")
	}
	content, ok := raw.(string)
	if !ok {
		return "", "", domain.Faultf(domain.FaultInvalidArguments, "argument %q must be a string, got %T", "content", raw)
	}
	return path, content, nil
}
