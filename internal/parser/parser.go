// Package parser normalises OCR output and extracts tags and a heuristic title.
package parser

import (
	"regexp"
	"strings"
	"unicode"
)

const maxTitleWords = 5

var (
	tagRe       = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// Result holds the output of parsing recognized text.
type Result struct {
	Body  string
	Tags  []string
	Title string
}

// Parse normalises text and extracts #tags and a heuristic title.
// It never fails; empty input yields an empty Result.
func Parse(text string) *Result {
	body := Normalize(text)
	return &Result{
		Body:  body,
		Tags:  extractTags(body),
		Title: deriveTitle(body),
	}
}

// Normalize unifies line endings, trims trailing whitespace on each line and
// collapses runs of blank lines that OCR engines tend to emit.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	text = strings.Join(lines, "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.Trim(text, "\n")
}

// extractTags returns deduplicated inline #tags in order of appearance.
func extractTags(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		t := strings.ToLower(m[1])
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// deriveTitle takes the first line with at least one letter or digit, strips
// heading markers and stray punctuation, and keeps at most five words.
func deriveTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "#*->• ")
		if !strings.ContainsFunc(line, isWordRune) {
			continue
		}
		var words []string
		for _, w := range strings.Fields(line) {
			w = strings.TrimFunc(w, func(r rune) bool { return !isWordRune(r) })
			if w == "" {
				continue
			}
			words = append(words, w)
			if len(words) == maxTitleWords {
				break
			}
		}
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return ""
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
