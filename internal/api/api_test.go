package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/index"
	"github.com/starford/marginalia/internal/noteservice"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/storage"
)

var fixtureVault = map[string]string{
	"Birds.md":            "---\ntitle: All Birds\ntags:\n  - Biology - Birds\n---\nSee [[Yellow Warbler]] and [[Sparrow]]. #field\n",
	"Yellow Warbler.typ":  "/*\n---\ntitle: Warbler\n---\n*/\n#link(\"Birds.md\") #tag(\"songbird\")\n",
	"chemistry/Salts.md":  "Nothing about birds. #chemistry\n",
	"chemistry/Broken.md": "---\ntitle: [unclosed\n---\n",
}

// testEnv sets up a temp vault, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (http.Handler, string) {
	t.Helper()

	vaultDir := t.TempDir()
	for rel, content := range fixtureVault {
		p := filepath.Join(vaultDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	db, err := index.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	opts := index.Options{Parser: parser.DefaultOptions(), Workers: 2}
	if _, err := index.Sync(context.Background(), db, store, opts, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	svc, err := noteservice.NewService(store, db, opts, export.NewBuilder(vaultDir, false, []string{"cp"}, logger), 0)
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(svc, authEnabled, token, sseHandler), vaultDir
}

func do(t *testing.T, router http.Handler, method, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetNote(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes/birds")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatal(err)
	}
	if note.ID != "birds" || note.VaultPath != "Birds.md" {
		t.Errorf("id = %q, vault path = %q", note.ID, note.VaultPath)
	}
	if note.Note.DisplayName != "All Birds" {
		t.Errorf("display name = %q", note.Note.DisplayName)
	}
	if want := []string{"yellow-warbler", "sparrow"}; !slices.Equal(note.Note.Links, want) {
		t.Errorf("links = %q, want %q", note.Note.Links, want)
	}
	if want := []string{"#field", "#Biology/Birds"}; !slices.Equal(note.Note.Tags, want) {
		t.Errorf("tags = %q, want %q", note.Note.Tags, want)
	}
	if want := []string{"Yellow Warbler.typ"}; !slices.Equal(note.Backlinks, want) {
		t.Errorf("backlinks = %q, want %q", note.Backlinks, want)
	}
}

func TestGetNote_ByNonCanonicalID(t *testing.T) {
	router, _ := testEnv(t, "")
	// "Yellow%20Warbler" canonicalizes to "yellow-warbler".
	w := do(t, router, http.MethodGet, "/notes/Yellow%20Warbler")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Format != parser.FormatMarkup || !slices.Equal(note.Note.Links, []string{"Birds"}) {
		t.Errorf("note = %+v", note)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	router, _ := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes/nope"); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestGetNote_MalformedAfterEdit(t *testing.T) {
	router, vault := testEnv(t, "")
	if err := os.WriteFile(filepath.Join(vault, "Birds.md"), []byte("---\ntitle: [unclosed\n---\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w := do(t, router, http.MethodGet, "/notes/birds"); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed note = %d, want 422", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes?tag=Biology&sort=words&order=desc")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp NoteListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Notes) != 1 || resp.Notes[0].ID != "birds" {
		t.Errorf("list = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/notes?limit=2")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	// Broken.md fails extraction and is not indexed.
	if resp.Total != 3 || len(resp.Notes) != 2 {
		t.Errorf("total = %d, page = %d; want 3, 2", resp.Total, len(resp.Notes))
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/notes/yellow-warbler/backlinks")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !slices.Equal(resp.Backlinks, []string{"Birds.md"}) {
		t.Errorf("backlinks = %q", resp.Backlinks)
	}
}

func TestExportEndpoint(t *testing.T) {
	router, vault := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes/yellow-warbler/export")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ExportResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if want := filepath.Join(vault, ".pdf", "yellow-warbler.pdf"); resp.Path != want {
		t.Errorf("path = %q, want %q", resp.Path, want)
	}

	if w := do(t, router, http.MethodPost, "/notes/birds/export"); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("markdown export = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes/ghost/export"); w.Code != http.StatusNotFound {
		t.Errorf("missing export = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=chemistry")
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].ID != "salts" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router, _ := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search"); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/graph")
	if w.Code != http.StatusOK {
		t.Fatalf("graph status = %d", w.Code)
	}
	var resp GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3", len(resp.Nodes))
	}
	want := []index.GraphLink{
		{Source: "birds", Target: "sparrow"},
		{Source: "birds", Target: "yellow-warbler"},
		{Source: "yellow-warbler", Target: "birds"},
	}
	if !slices.Equal(resp.Links, want) {
		t.Errorf("links = %+v, want %+v", resp.Links, want)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes", "Authorization", "Bearer secret123"); w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes"); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvWithSSE(t, true, "secret", blockingSSE)
	if w := do(t, router, http.MethodGet, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router, _ := testEnvWithSSE(t, false, "", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes?access_token=secret123"); w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
	w := do(t, router, http.MethodGet, "/notes?access_token=nope")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong query token = %d, want 401", w.Code)
	}
	var body errResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != codeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, codeUnauthorized)
	}
}

func TestErrorCodes(t *testing.T) {
	router, _ := testEnv(t, "")
	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/notes/missing", http.StatusNotFound, codeNotFound},
		{"/search", http.StatusBadRequest, codeBadRequest},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodGet, tt.target)
		if w.Code != tt.status {
			t.Errorf("%s status = %d, want %d", tt.target, w.Code, tt.status)
			continue
		}
		var body errResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Code != tt.code {
			t.Errorf("%s code = %q, want %q", tt.target, body.Code, tt.code)
		}
	}
}
