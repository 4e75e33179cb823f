package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/marginalia/internal/index"
	"github.com/starford/marginalia/internal/noteservice"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	_, store := testutil.TestVault(t, map[string]string{
		"Birds.md":           "---\ntitle: All Birds\ntags: [Biology - Birds]\n---\nSee [[Yellow Warbler]]. #field\n",
		"Yellow Warbler.typ": "#link(\"Birds.md\")[birds] #tag(\"songbird\")\n",
		"Salts.md":           "Nothing about birds. #chemistry\n",
	})
	db := testutil.TestDB(t)
	opts := index.Options{Parser: parser.DefaultOptions(), Workers: 2}
	if _, err := index.Sync(context.Background(), db, store, opts, testutil.DiscardLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	svc, err := noteservice.NewService(store, db, opts, nil, 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "get_note":
		result, err = srv.getNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "canonical_id":
		result, err = srv.canonicalID(ctx, req)
	case "get_note_format":
		result, err = srv.getNoteFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetNote(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_note", map[string]any{"id": "Yellow Warbler"})
	if r.IsError {
		t.Fatalf("get_note error: %s", resultText(r))
	}
	var detail noteservice.NoteDetail
	if err := json.Unmarshal([]byte(resultText(r)), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.ID != "yellow-warbler" {
		t.Errorf("id = %q, want yellow-warbler", detail.ID)
	}
	if detail.Note == nil || detail.Note.DisplayName != "Yellow Warbler" {
		t.Fatalf("note = %+v", detail.Note)
	}
	if len(detail.Note.Tags) != 1 || detail.Note.Tags[0] != "#songbird" {
		t.Errorf("tags = %v, want [#songbird]", detail.Note.Tags)
	}
	if len(detail.Backlinks) != 1 || detail.Backlinks[0] != "Birds.md" {
		t.Errorf("backlinks = %v, want [Birds.md]", detail.Backlinks)
	}
}

func TestGetNoteMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_note", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	r = callTool(t, srv, "get_note", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing id argument")
	}
}

func TestListNotesByTag(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "list_notes", map[string]any{"tag": "Biology"})
	var out struct {
		Notes []noteservice.NoteListItem `json:"notes"`
		Total int                        `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 1 || len(out.Notes) != 1 || out.Notes[0].Path != "Birds.md" {
		t.Errorf("list = %+v, want only Birds.md", out)
	}
}

func TestSearchNotes(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_notes", map[string]any{"query": "chemistry"})
	if r.IsError {
		t.Fatalf("search error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "Salts.md") {
		t.Errorf("search result = %s, want Salts.md", resultText(r))
	}
}

func TestGetBacklinks(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_backlinks", map[string]any{"id": "birds"})
	if text := resultText(r); text != "Yellow Warbler.typ" {
		t.Errorf("backlinks = %q, want Yellow Warbler.typ", text)
	}
	r = callTool(t, srv, "get_backlinks", map[string]any{"id": "salts"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q, want none", text)
	}
}

func TestCanonicalID(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "canonical_id", map[string]any{"name": "Lie Theory#Definition"})
	if text := resultText(r); text != "lie-theory" {
		t.Errorf("canonical_id = %q, want lie-theory", text)
	}
}

func TestNoteFormat(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_note_format", nil)
	if resultText(r) != NoteFormatContract {
		t.Error("get_note_format should return the format contract")
	}

	res, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := res[0].(mcp.TextResourceContents)
	if !ok || tc.URI != "marginalia://note-format" {
		t.Errorf("resource = %+v", res)
	}
}
