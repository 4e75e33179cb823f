package parser

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/starford/marginalia/internal/apperr"
)

func writeNote(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFromPath_Markdown(t *testing.T) {
	body := "See [[Warbler]] #field\n"
	p := writeNote(t, "birds.md", "---\ntitle: Birds\ntags:\n  - Biology - Birds - Warblers\n---\n"+body)

	n, err := FromPath(p, DefaultOptions())
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if n.Name != "birds" {
		t.Errorf("name = %q, want birds", n.Name)
	}
	if n.DisplayName != "Birds" {
		t.Errorf("display name = %q, want Birds", n.DisplayName)
	}
	if want := []string{"#field", "#Biology/Birds", "#Biology/Warblers"}; !slices.Equal(n.Tags, want) {
		t.Errorf("tags = %q, want %q", n.Tags, want)
	}
	if want := []string{"warbler"}; !slices.Equal(n.Links, want) {
		t.Errorf("links = %q, want %q", n.Links, want)
	}
	if n.Words != 3 {
		t.Errorf("words = %d, want 3", n.Words)
	}
	if n.Characters != len(body) {
		t.Errorf("characters = %d, want %d", n.Characters, len(body))
	}
	want, _ := filepath.EvalSymlinks(p)
	if n.Path != want {
		t.Errorf("path = %q, want %q", n.Path, want)
	}
}

func TestFromPath_Markup(t *testing.T) {
	body := "\n#link(\"Birds.typ\")[up] #tag(\"field\")\n"
	p := writeNote(t, "Warbler.typ",
		"/*\n---\ntitle: Yellow Warbler\ntags:\n  - songbird\n---\n*/"+body)

	n, err := FromPath(p, DefaultOptions())
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if n.Name != "Warbler" || n.DisplayName != "Yellow Warbler" {
		t.Errorf("name = %q, display = %q", n.Name, n.DisplayName)
	}
	if want := []string{"#field", "#songbird"}; !slices.Equal(n.Tags, want) {
		t.Errorf("tags = %q, want %q", n.Tags, want)
	}
	if want := []string{"Birds"}; !slices.Equal(n.Links, want) {
		t.Errorf("links = %q, want %q", n.Links, want)
	}
	if n.Words != 2 {
		t.Errorf("words = %d, want 2", n.Words)
	}
	if n.Characters != len(body) {
		t.Errorf("characters = %d, want %d", n.Characters, len(body))
	}
}

func TestFromPath_NoFrontmatter(t *testing.T) {
	p := writeNote(t, "plain.md", "Just words here.\n")
	n, err := FromPath(p, DefaultOptions())
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if n.DisplayName != "plain" {
		t.Errorf("display name = %q, want file stem", n.DisplayName)
	}
	if n.Tags == nil || n.Links == nil {
		t.Error("tags and links should be empty, not nil")
	}
	if n.Words != 3 || n.Characters != len("Just words here.\n") {
		t.Errorf("words = %d, characters = %d", n.Words, n.Characters)
	}
}

func TestFromPath_UnknownExtensionFallsBackToMarkdown(t *testing.T) {
	p := writeNote(t, "scratch.txt", "#idea [[Later]]\n")
	n, err := FromPath(p, DefaultOptions())
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if !slices.Equal(n.Tags, []string{"#idea"}) || !slices.Equal(n.Links, []string{"later"}) {
		t.Errorf("tags = %q, links = %q", n.Tags, n.Links)
	}
}

func TestFromPath_ThematicBreaksAreNotMetadata(t *testing.T) {
	p := writeNote(t, "rules.md", "---\nA line of prose.\n---\nbody #kept\n")
	n, err := FromPath(p, DefaultOptions())
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if n.DisplayName != "rules" {
		t.Errorf("display name = %q, want file stem", n.DisplayName)
	}
	if !slices.Equal(n.Tags, []string{"#kept"}) {
		t.Errorf("tags = %q, want [#kept]", n.Tags)
	}
	if n.Characters != len("body #kept\n") {
		t.Errorf("characters = %d, want %d", n.Characters, len("body #kept\n"))
	}
}

func TestFromPath_Errors(t *testing.T) {
	if _, err := FromPath(filepath.Join(t.TempDir(), "missing.md"), DefaultOptions()); !errors.Is(err, apperr.ErrFileUnreadable) {
		t.Errorf("missing file err = %v, want ErrFileUnreadable", err)
	}

	p := writeNote(t, "bad.md", "---\ntitle: [oops\n---\nbody\n")
	if _, err := FromPath(p, DefaultOptions()); !errors.Is(err, apperr.ErrMalformedMetadata) {
		t.Errorf("bad yaml err = %v, want ErrMalformedMetadata", err)
	}
}

func TestFromBytes_Errors(t *testing.T) {
	if _, err := FromBytes("bin.md", []byte{0xff, 0xfe, 'a'}, DefaultOptions()); !errors.Is(err, apperr.ErrFileUnreadable) {
		t.Errorf("invalid utf-8 err = %v, want ErrFileUnreadable", err)
	}
	for _, p := range []string{"", "/", ".."} {
		if _, err := FromBytes(p, []byte("text"), DefaultOptions()); !errors.Is(err, apperr.ErrNoteNameUnreadable) {
			t.Errorf("FromBytes(%q) err = %v, want ErrNoteNameUnreadable", p, err)
		}
	}
}

func TestFromBytes_UnresolvablePathKept(t *testing.T) {
	n, err := FromBytes("does/not/exist/Note.md", []byte("x"), DefaultOptions())
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if n.Path != "does/not/exist/Note.md" || n.Name != "Note" {
		t.Errorf("path = %q, name = %q", n.Path, n.Name)
	}
}
