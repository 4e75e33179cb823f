//go:build sqlite_fts5

package index

import "testing"

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertNote(row("fts.md", "FTS Note", "#search"), "Warblers sing powerful songs in spring.", nil); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.md" || results[0].ID != "fts-note" {
		t.Errorf("result = %+v", results[0])
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("gone.md", "gone"), "vanishing content", nil)
	_ = db.DeleteNote("gone.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.md" {
			t.Error("deleted note still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	old := row("evo.md", "Old")
	_ = db.UpsertNote(old, "original text", nil)
	updated := row("evo.md", "New")
	_ = db.UpsertNote(updated, "replacement text", nil)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].DisplayName != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTS5_MatchesTagsAndDiacritics(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("w.md", "Warbler", "#songbird"), "Chants de la paruline à collier", nil)

	if results, _ := db.Search("songbird", 10); len(results) != 1 {
		t.Errorf("tag token search = %+v, want w.md", results)
	}
	if results, _ := db.Search("a", 10); len(results) != 1 {
		t.Errorf("diacritic folding search = %+v, want w.md", results)
	}
}
