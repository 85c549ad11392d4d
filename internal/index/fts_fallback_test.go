//go:build !sqlite_fts5

package index

import (
	"strings"
	"testing"

	"github.com/starford/thinkink/internal/models"
)

func TestFallback_TitleMatchesRankFirst(t *testing.T) {
	db := testDB(t)
	_ = db.IndexNote(models.Note{ID: "body", Title: "Notes", ExtractedText: "about optics", CreatedAt: 5})
	_ = db.IndexNote(models.Note{ID: "title", Title: "Optics", ExtractedText: "lenses", CreatedAt: 1})

	results, err := db.Search("optics", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "title" {
		t.Errorf("results = %+v, want title match first", results)
	}
}

func TestFallback_WildcardsAreLiteral(t *testing.T) {
	db := testDB(t)
	_ = db.IndexNote(models.Note{ID: "pct", Title: "Stats", ExtractedText: "grew 50% this year", CreatedAt: 1})
	_ = db.IndexNote(models.Note{ID: "plain", Title: "Other", ExtractedText: "grew 500 this year", CreatedAt: 2})

	results, _ := db.Search("50%", 10)
	if len(results) != 1 || results[0].ID != "pct" {
		t.Errorf("results = %+v, want only pct", results)
	}
}

func TestSnippetCentersOnMatch(t *testing.T) {
	body := strings.Repeat("a ", 100) + "needle" + strings.Repeat(" b", 100)
	got := snippet(body, "NEEDLE")
	if !strings.Contains(got, "needle") || !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("snippet = %q", got)
	}
	if short := snippet("tiny body", "zzz"); short != "tiny body" {
		t.Errorf("no-match snippet = %q", short)
	}
}
