package mcpserver

// NoteSchemaURI is the resource URI of NoteSchema.
const NoteSchemaURI = "thinkink://note-schema"

// NoteSchema describes thinkink notes for LLM consumers.
const NoteSchema = `# ThinkInk Note Schema

A note is one page of handwriting converted to text.

| Field         | Type   | Notes                                             |
|---------------|--------|---------------------------------------------------|
| id            | string | Unique, assigned at ingest, never changes         |
| title         | string | "New Note" until the background title job ends   |
| imageUrl      | string | /attachments/<name>, the original page image      |
| extractedText | string | OCR output; may be edited, may be empty           |
| createdAt     | number | Epoch milliseconds                                |
| checksum      | string | Changes on every edit of title or text            |
| tags          | array  | Lowercase #hashtags found in the text             |

## Rules

1. Notes are listed newest first.
2. The title is set once by the title job. A note titled "Untitled Note"
   had its title generation fail.
3. Pass the checksum from read_note to update_note_text. A mismatch means
   someone else edited the note; read it again before retrying.
4. Only PNG and JPEG images can be ingested.
5. Deleting a note also deletes its page image.
`
