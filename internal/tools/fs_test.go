package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	g, err := NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return NewRegistry(g, nil, 0)
}

func todoSpec() domain.ProjectSpec {
	return domain.ProjectSpec{Category: "todo", TargetDirectory: "todo_app"}
}

func TestCreateThenReadRoundTrip(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	contents := []string{
		"<!doctype html>\n<title>todo</title>\n",
		"",
		"line one\nline two\nline three",
	}

	for i, content := range contents {
		path := "file" + string(rune('a'+i)) + ".html"
		created := r.Execute(ctx, ToolCreateFile, map[string]any{"path": path, "content": content}, todoSpec())
		if !created.OK() {
			t.Fatalf("create_file(%q): %v", path, created.Fault)
		}
		if created.Path != filepath.Join("todo_app", path) {
			t.Fatalf("create_file path = %q", created.Path)
		}

		read := r.Execute(ctx, ToolReadFile, map[string]any{"path": path}, todoSpec())
		if !read.OK() {
			t.Fatalf("read_file(%q): %v", path, read.Fault)
		}
		if read.Output != content {
			t.Fatalf("read_file(%q) = %q, want %q", path, read.Output, content)
		}
	}
}

func TestCreateFilePrefixesBareNamesWithTargetDir(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	res := r.Execute(context.Background(), ToolCreateFile,
		map[string]any{"path": "index.html", "content": "<html></html>"}, todoSpec())
	if !res.OK() {
		t.Fatalf("create_file: %v", res.Fault)
	}
	if _, err := os.Stat(filepath.Join(r.Guard().Root(), "todo_app", "index.html")); err != nil {
		t.Fatalf("file not under target directory: %v", err)
	}

	// An explicit relative path is left alone.
	res = r.Execute(context.Background(), ToolCreateFile,
		map[string]any{"path": "assets/app.js", "content": "console.log(1)"}, todoSpec())
	if !res.OK() {
		t.Fatalf("create_file: %v", res.Fault)
	}
	if res.Path != filepath.Join("assets", "app.js") {
		t.Fatalf("explicit path rewritten: %q", res.Path)
	}
}

func TestCreateFileOverwrites(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second"} {
		res := r.Execute(ctx, ToolCreateFile, map[string]any{"path": "app.py", "content": content}, todoSpec())
		if !res.OK() {
			t.Fatalf("create_file: %v", res.Fault)
		}
	}
	read := r.Execute(ctx, ToolReadFile, map[string]any{"path": "app.py"}, todoSpec())
	if read.Output != "second" {
		t.Fatalf("overwrite lost: %q", read.Output)
	}
}

func TestWriteFileRequiresExistingFile(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	res := r.Execute(ctx, ToolWriteFile, map[string]any{"path": "missing.txt", "content": "x"}, todoSpec())
	if res.OK() {
		t.Fatal("write_file on missing file succeeded")
	}
	if res.Fault.Kind != domain.FaultNotFound {
		t.Fatalf("fault kind = %q, want %q", res.Fault.Kind, domain.FaultNotFound)
	}
	if !strings.Contains(res.Fault.Message, "create_file") {
		t.Fatalf("fault should hint at create_file: %q", res.Fault.Message)
	}

	if created := r.Execute(ctx, ToolCreateFile, map[string]any{"path": "notes.txt", "content": "v1"}, todoSpec()); !created.OK() {
		t.Fatalf("create_file: %v", created.Fault)
	}
	updated := r.Execute(ctx, ToolWriteFile, map[string]any{"path": "notes.txt", "content": "v2"}, todoSpec())
	if !updated.OK() {
		t.Fatalf("write_file: %v", updated.Fault)
	}
	read := r.Execute(ctx, ToolReadFile, map[string]any{"path": "notes.txt"}, todoSpec())
	if read.Output != "v2" {
		t.Fatalf("write_file did not update: %q", read.Output)
	}
}

func TestReadFileRejectsBinary(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	raw := []byte{0xff, 0xfe, 0x00, 0x41}
	if err := os.WriteFile(filepath.Join(r.Guard().Root(), "blob.bin"), raw, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	res := r.Execute(context.Background(), ToolReadFile, map[string]any{"path": "blob.bin"}, domain.ProjectSpec{})
	if res.OK() {
		t.Fatal("read_file on binary content succeeded")
	}
	if res.Fault.Kind != domain.FaultDecode {
		t.Fatalf("fault kind = %q, want %q", res.Fault.Kind, domain.FaultDecode)
	}
}

func TestFileToolsRejectPlantedSymlink(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	// A run_command step could plant a link inside the root pointing at a
	// host file; reads and writes through it must still fault.
	secret := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(secret, []byte("outside-data"), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}
	if err := os.Symlink(secret, filepath.Join(r.Guard().Root(), "sneaky")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	read := r.Execute(ctx, ToolReadFile, map[string]any{"path": "sneaky"}, domain.ProjectSpec{})
	if read.OK() {
		t.Fatalf("read_file through symlink returned %q", read.Output)
	}
	if read.Fault.Kind != domain.FaultPathEscape {
		t.Fatalf("read fault kind = %q, want %q", read.Fault.Kind, domain.FaultPathEscape)
	}

	write := r.Execute(ctx, ToolCreateFile, map[string]any{"path": "sneaky", "content": "overwritten"}, domain.ProjectSpec{})
	if write.OK() {
		t.Fatal("create_file through symlink succeeded")
	}
	if write.Fault.Kind != domain.FaultPathEscape {
		t.Fatalf("write fault kind = %q, want %q", write.Fault.Kind, domain.FaultPathEscape)
	}

	data, err := os.ReadFile(secret)
	if err != nil {
		t.Fatalf("re-read outside file: %v", err)
	}
	if string(data) != "outside-data" {
		t.Fatalf("outside file modified: %q", data)
	}
}

func TestInvalidArgumentsNeverTouchDisk(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	cases := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"missing path", ToolCreateFile, map[string]any{"content": "x"}},
		{"missing content", ToolCreateFile, map[string]any{"path": "a.txt"}},
		{"non-string path", ToolReadFile, map[string]any{"path": 42}},
		{"empty path", ToolReadFile, map[string]any{"path": "  "}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := r.Execute(ctx, tc.tool, tc.args, todoSpec())
			if res.OK() {
				t.Fatal("expected fault")
			}
			if res.Fault.Kind != domain.FaultInvalidArguments {
				t.Fatalf("fault kind = %q, want %q", res.Fault.Kind, domain.FaultInvalidArguments)
			}
		})
	}

	entries, err := os.ReadDir(r.Guard().Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("invalid arguments left %d entries on disk", len(entries))
	}
}

func TestExecuteUnknownToolListsCatalog(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	res := r.Execute(context.Background(), "delete_everything", nil, domain.ProjectSpec{})
	if res.OK() {
		t.Fatal("unknown tool succeeded")
	}
	if res.Fault.Kind != domain.FaultUnknownTool {
		t.Fatalf("fault kind = %q, want %q", res.Fault.Kind, domain.FaultUnknownTool)
	}
	for _, name := range []string{ToolCreateFile, ToolRunCommand} {
		if !strings.Contains(res.Fault.Message, name) {
			t.Fatalf("fault message should list %q: %q", name, res.Fault.Message)
		}
	}
}
