package classify

import (
	"strings"
	"testing"
)

func TestClassifyKnownCategories(t *testing.T) {
	t.Parallel()

	cases := []struct {
		utterance string
		category  string
		dir       string
	}{
		{"Create a todo app", "todo", "todo_app"},
		{"build me a CALCULATOR please", "calculator", "calculator_app"},
		{"I want a weather dashboard", "weather", "weather_app"},
		{"make a snake game", "game", "game_app"},
		{"set up a blog", "blog", "blog_app"},
		{"a portfolio for my projects", "portfolio", "portfolio_app"},
		{"landing page for the launch", "landing", "landing_app"},
		{"write a python script for scraping", "python", "python_app"},
		{"process data.py and fix it", "python", "python_app"},
		{"build me a website", "web", "web_app"},
	}

	for _, tc := range cases {
		spec := Classify(tc.utterance)
		if spec.Category != tc.category {
			t.Errorf("Classify(%q) category = %q, want %q", tc.utterance, spec.Category, tc.category)
		}
		if spec.TargetDirectory != tc.dir {
			t.Errorf("Classify(%q) dir = %q, want %q", tc.utterance, spec.TargetDirectory, tc.dir)
		}
	}
}

func TestClassifyTableOrderBreaksTies(t *testing.T) {
	t.Parallel()

	// "todo" precedes "game" in the table, so an utterance mentioning both
	// must resolve to todo.
	spec := Classify("a todo list game")
	if spec.Category != "todo" {
		t.Fatalf("expected earlier table entry to win, got %q", spec.Category)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()

	first := Classify("Create a calculator app in my_workspace")
	for i := 0; i < 10; i++ {
		again := Classify("Create a calculator app in my_workspace")
		if again.Category != first.Category || again.TargetDirectory != first.TargetDirectory {
			t.Fatalf("classification changed between runs: %+v vs %+v", first, again)
		}
	}
}

func TestClassifyCustomLocation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		utterance string
		dir       string
	}{
		{"create a todo app in my_workspace", "my_workspace/todo_app"},
		{"put the calculator in projects/tools", "projects/tools/calculator_app"},
		{"make a blog, save in location: sites/personal", "sites/personal/blog_app"},
		{"create in directory: sandbox a game", "sandbox/game_app"},
		{"todo list, folder: clients/acme", "clients/acme/todo_app"},
		{"weather widget location: widgets", "widgets/weather_app"},
	}

	for _, tc := range cases {
		spec := Classify(tc.utterance)
		if spec.TargetDirectory != tc.dir {
			t.Errorf("Classify(%q) dir = %q, want %q", tc.utterance, spec.TargetDirectory, tc.dir)
		}
	}
}

func TestClassifyStripsTraversalFromLocation(t *testing.T) {
	t.Parallel()

	spec := Classify("create a todo app in ../../etc/secrets")
	if strings.Contains(spec.TargetDirectory, "..") {
		t.Fatalf("traversal segments survived sanitization: %q", spec.TargetDirectory)
	}
	if spec.TargetDirectory != "etc/secrets/todo_app" {
		t.Fatalf("unexpected sanitized dir: %q", spec.TargetDirectory)
	}

	spec = Classify("make a game, folder: /absolute/path")
	if strings.HasPrefix(spec.TargetDirectory, "/") {
		t.Fatalf("leading separator survived sanitization: %q", spec.TargetDirectory)
	}
}

func TestClassifyIgnoresLanguageAfterIn(t *testing.T) {
	t.Parallel()

	// "in python" names a language, not a directory.
	spec := Classify("create a calculator in python")
	if spec.TargetDirectory != "calculator_app" {
		t.Fatalf("language keyword treated as location: %q", spec.TargetDirectory)
	}
}
