package index

import (
	"log/slog"

	"github.com/starford/thinkink/internal/checksum"
	"github.com/starford/thinkink/internal/models"
)

// NoteSource lists the notes the index should mirror.
type NoteSource interface {
	GetAll() []models.Note
}

// Sync brings the index up to date with the store:
//   - new/changed notes are parsed and upserted
//   - notes removed from the store are deleted from the index
func Sync(db *DB, src NoteSource, logger *slog.Logger) error {
	notes := src.GetAll()

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		live[n.ID] = struct{}{}

		if checksums[n.ID] == checksum.Note(n) {
			continue
		}
		if err := db.IndexNote(n); err != nil {
			logger.Warn("sync: index failed", slog.String("id", n.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", n.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := live[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}
