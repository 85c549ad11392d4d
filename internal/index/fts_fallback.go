//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"
)

const snippetRadius = 80

// FTS5 is not compiled in; search falls back to LIKE over the notes table.
func initFTS(_ *sql.DB) error { return nil }

func dropFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search. Title matches rank first, then
// newest notes.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := db.conn.Query(`
		SELECT id, title, body
		FROM notes
		WHERE title LIKE ?1 ESCAPE '\' OR body LIKE ?1 ESCAPE '\' OR tags LIKE ?1 ESCAPE '\'
		ORDER BY (title LIKE ?1 ESCAPE '\') DESC, created_at DESC
		LIMIT ?2
	`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var body string
		if err := rows.Scan(&r.ID, &r.Title, &body); err != nil {
			return nil, err
		}
		r.Snippet = snippet(body, query)
		out = append(out, r)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet returns the text around the first case-insensitive match of
// query, or the start of body when it only matched elsewhere.
func snippet(body, query string) string {
	at := strings.Index(strings.ToLower(body), strings.ToLower(query))
	if at < 0 {
		at = 0
	}
	start := max(at-snippetRadius, 0)
	end := min(at+len(query)+snippetRadius, len(body))
	// Move inward to rune boundaries.
	for start > 0 && !utf8.RuneStart(body[start]) {
		start++
	}
	for end < len(body) && !utf8.RuneStart(body[end]) {
		end--
	}
	out := strings.TrimSpace(body[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(body) {
		out += "..."
	}
	return out
}
