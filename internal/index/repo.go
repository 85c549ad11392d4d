package index

import (
	"encoding/json"
	"fmt"

	"github.com/starford/thinkink/internal/checksum"
	"github.com/starford/thinkink/internal/models"
	"github.com/starford/thinkink/internal/notestore"
	"github.com/starford/thinkink/internal/parser"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID        string
	Title     string
	Checksum  string
	Tags      []string
	CreatedAt int64
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertNote inserts or replaces a note and its FTS entry within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.Tags == nil {
		n.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(n.Tags)

	_, err = tx.Exec(`
		INSERT INTO notes (id, title, checksum, tags, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			created_at = excluded.created_at
	`, n.ID, n.Title, n.Checksum, string(tagsJSON), body, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.ID, n.Title, body, n.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteNote removes a note and its FTS entry.
func (db *DB) DeleteNote(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// AllChecksums returns the stored checksum of every indexed note keyed by id.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// IndexNote parses the note's text and upserts it.
func (db *DB) IndexNote(n models.Note) error {
	res := parser.Parse(n.ExtractedText)
	return db.UpsertNote(NoteRow{
		ID:        n.ID,
		Title:     n.Title,
		Checksum:  checksum.Note(n),
		Tags:      res.Tags,
		CreatedAt: n.CreatedAt,
	}, res.Body)
}

// Hook returns a notestore hook that mirrors store mutations into the index.
func (db *DB) Hook(logf func(msg string, err error)) notestore.Hook {
	return func(c notestore.Change) {
		var err error
		if c.Kind == notestore.KindDeleted {
			err = db.DeleteNote(c.Note.ID)
		} else {
			err = db.IndexNote(c.Note)
		}
		if err != nil && logf != nil {
			logf("index: apply store change failed", err)
		}
	}
}
