// Package classify maps free-text requests to a project category and a
// target directory for generated files. It is a pure text-to-struct
// transform: it never errors and has no side effects.
package classify

import (
	"regexp"
	"strings"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

// DefaultDirSuffix is appended to the category to form the output folder name.
const DefaultDirSuffix = "_app"

type entry struct {
	category string
	keywords []string
}

// table is ordered: the first category with a keyword hit wins, so more
// specific project types must come before generic ones.
var table = []entry{
	{"todo", []string{"todo", "to-do", "task list", "task manager", "checklist"}},
	{"calculator", []string{"calculator", "calc app"}},
	{"weather", []string{"weather", "forecast"}},
	{"game", []string{"game", "tic tac toe", "tic-tac-toe", "snake", "puzzle", "quiz"}},
	{"blog", []string{"blog"}},
	{"portfolio", []string{"portfolio", "resume site", "cv site"}},
	{"landing", []string{"landing page", "homepage"}},
	{"api", []string{"rest api", "api server", "endpoint", "backend service"}},
}

// locationPatterns recognize an explicit target directory in the utterance.
// Labeled forms come first so "save in location: x" is not swallowed by the
// looser "create ... in x" pattern.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)save\s+in\s+location\s*:\s*([^\s,]+)`),
	regexp.MustCompile(`(?i)create\s+in\s+directory\s*:\s*([^\s,]+)`),
	regexp.MustCompile(`(?i)\blocation\s*:\s*([^\s,]+)`),
	regexp.MustCompile(`(?i)\bfolder\s*:\s*([^\s,]+)`),
	regexp.MustCompile(`(?i)\b(?:create|make|build|generate)\b.+?\bin\s+([^\s,]+)\s*[.!?]?\s*$`),
	regexp.MustCompile(`(?i)\bput\b.+?\bin\s+([^\s,]+)\s*[.!?]?\s*$`),
}

// locationStopwords are words that follow "in" without naming a directory
// ("create a calculator in python" names a language, not a folder).
var locationStopwords = map[string]bool{
	"python": true, "javascript": true, "js": true, "typescript": true,
	"html": true, "css": true, "go": true, "golang": true, "java": true,
	"rust": true, "ruby": true, "php": true, "c": true, "c++": true,
}

// Classify derives a ProjectSpec from one utterance. The returned target
// directory is relative to the configured projects root; absence of any
// keyword match is not an error, it is the default path.
func Classify(utterance string) domain.ProjectSpec {
	lowered := strings.ToLower(utterance)

	category, keywords := matchCategory(lowered)
	dir := category + DefaultDirSuffix

	if loc := extractLocation(utterance); loc != "" {
		dir = loc + "/" + dir
	}

	return domain.ProjectSpec{
		Category:        category,
		TargetDirectory: dir,
		Keywords:        keywords,
	}
}

func matchCategory(lowered string) (string, []string) {
	for _, e := range table {
		var hits []string
		for _, kw := range e.keywords {
			if strings.Contains(lowered, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > 0 {
			return e.category, hits
		}
	}

	// No registered category: language-specific keywords pick the python
	// default, everything else is treated as a generic web project.
	if strings.Contains(lowered, "python") || strings.Contains(lowered, ".py") {
		return "python", nil
	}
	return "web", nil
}

func extractLocation(utterance string) string {
	for _, re := range locationPatterns {
		m := re.FindStringSubmatch(utterance)
		if m == nil {
			continue
		}
		loc := sanitizeLocation(m[1])
		if loc == "" || locationStopwords[strings.ToLower(loc)] {
			continue
		}
		return loc
	}
	return ""
}

// sanitizeLocation strips quoting, leading separators and every traversal
// segment so the captured path can never climb out of the projects root.
func sanitizeLocation(raw string) string {
	raw = strings.Trim(raw, `"'.,!?`)
	raw = strings.TrimLeft(raw, `/\`)

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}
