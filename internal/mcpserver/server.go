// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes thinkink notes to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/thinkink/internal/apperr"
	"github.com/starford/thinkink/internal/noteservice"
)

// Server wraps the MCP server with thinkink tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"ThinkInk",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, newest first, as id and title pairs."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note including its extracted text, tags and checksum."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles, text and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("update_note_text",
		mcp.WithDescription("Replace the extracted text of a note. Pass the checksum from "+
			"read_note to fail instead of overwriting a concurrent edit."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New text")),
		mcp.WithString("checksum", mcp.Description("Expected current checksum")),
	), s.updateNoteText)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note and its page image."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("ingest_image",
		mcp.WithDescription("Turn a photo of handwriting into a note. Accepts a base64 data URI "+
			"or an http(s) URL of a PNG or JPEG image. The title is generated in the background."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/png;base64,... or https://...")),
		mcp.WithString("filename", mcp.Description("Optional original filename")),
	), s.ingestImage)

	s.mcp.AddTool(mcp.NewTool("ask_note",
		mcp.WithDescription("Ask the study assistant a question about a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question about the note")),
	), s.askNote)

	s.mcp.AddResource(
		mcp.NewResource(NoteSchemaURI, "Note Schema",
			mcp.WithResourceDescription("Shape of a thinkink note and how its fields behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteSchemaResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type noteSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.ListNotes(ctx)
	if err != nil {
		return s.toolError("list_notes", err), nil
	}
	out := make([]noteSummary, len(notes))
	for i, n := range notes {
		out[i] = noteSummary{ID: n.ID, Title: n.Title, CreatedAt: n.CreatedAt}
	}
	return jsonResult(out), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	return jsonResult(note), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return s.toolError("search_notes", err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) updateNoteText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expected := ""
	if v, cErr := req.RequireString("checksum"); cErr == nil {
		expected = v
	}
	note, err := s.svc.UpdateText(ctx, id, text, expected)
	if err != nil {
		return s.toolError("update_note_text", err), nil
	}
	return jsonResult(note), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNote(ctx, id); err != nil {
		return s.toolError("delete_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) askNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reply, err := s.svc.Ask(ctx, id, question)
	if err != nil {
		return s.toolError("ask_note", err), nil
	}
	return mcp.NewToolResultText(reply.Text), nil
}

func (s *Server) readNoteSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteSchemaURI,
			MIMEType: "text/markdown",
			Text:     NoteSchema,
		},
	}, nil
}

// toolError turns a domain error into a tool-level error result. Unexpected
// errors are logged and reported generically.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("note not found")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: the note changed, read it again")
	case errors.Is(err, apperr.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, apperr.ErrOCRFailure):
		return mcp.NewToolResultError("Failed to extract text from image.")
	case errors.Is(err, apperr.ErrUnauthorized):
		return mcp.NewToolResultError("notes are not available: authorization required")
	default:
		s.logger.Error("mcp tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
		return mcp.NewToolResultError(tool + " failed")
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
