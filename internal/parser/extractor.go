// Package parser turns note files into models.Note records. It splits off
// the YAML front matter, builds a syntax tree of the body in the note's
// format and scans it for tags and links.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/marginalia/internal/apperr"
)

// Format is a note source syntax.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatMarkup   Format = "markup"
)

// Extensions handled without falling back.
const (
	MarkdownExtension = "md"
	MarkupExtension   = "typ"
)

// Options configures extraction. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// LinkFunction is the markup function whose first string argument is a
	// link target, e.g. link("Birds.typ").
	LinkFunction string
	// TagFunction is the markup function whose first string argument is a tag.
	TagFunction string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{LinkFunction: "link", TagFunction: "tag"}
}

// Extraction is what an Extractor finds in a note body.
type Extraction struct {
	Tags       []string
	Links      []string
	Words      int
	Characters int
}

// Extractor scans a note body (front matter already removed).
type Extractor interface {
	Extract(body string) (Extraction, error)
}

// FormatForExtension looks up the format of an extension (with or without
// the leading dot). Unknown extensions fail with apperr.ErrUnhandledFiletype.
func FormatForExtension(ext string) (Format, error) {
	switch strings.TrimPrefix(ext, ".") {
	case MarkdownExtension:
		return FormatMarkdown, nil
	case MarkupExtension:
		return FormatMarkup, nil
	default:
		return "", fmt.Errorf("%w: %q", apperr.ErrUnhandledFiletype, ext)
	}
}

// FormatFor returns the format used to parse path. Unknown or missing
// extensions fall back to Markdown.
func FormatFor(path string) Format {
	f, err := FormatForExtension(filepath.Ext(path))
	if err != nil {
		return FormatMarkdown
	}
	return f
}

// ExtractorFor returns the extractor and front matter fence of a format.
func ExtractorFor(f Format, opts Options) (Extractor, Fence) {
	if f == FormatMarkup {
		return NewMarkupExtractor(opts.LinkFunction, opts.TagFunction), MarkupFence
	}
	return NewMarkdownExtractor(), MarkdownFence
}

// FenceFor returns the front matter fence of a format.
func FenceFor(f Format) Fence {
	if f == FormatMarkup {
		return MarkupFence
	}
	return MarkdownFence
}

// CountWords counts whitespace separated tokens; runs of whitespace count
// once.
func CountWords(body string) int {
	return len(strings.Fields(body))
}
