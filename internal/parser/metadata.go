package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/marginalia/internal/apperr"
)

// subtagSeparator joins a category root and its subcategories in a single
// front matter tag entry, e.g. "Biology - Birds - Warblers".
const subtagSeparator = " - "

// Metadata is what the front matter contributes to a note.
type Metadata struct {
	// Title is nil unless the front matter has a string "title".
	Title *string
	// Tags are expanded and prefixed with '#'.
	Tags []string
}

// ParseMetadata parses raw YAML front matter. A nil, empty or plain scalar
// block yields empty Metadata, so a note opening with a pair of thematic
// breaks still parses. Invalid YAML and sequences fail with
// apperr.ErrMalformedMetadata.
func ParseMetadata(raw *string) (Metadata, error) {
	var md Metadata
	if raw == nil {
		return md, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(*raw), &doc); err != nil {
		return md, fmt.Errorf("%w: %w", apperr.ErrMalformedMetadata, err)
	}
	if len(doc.Content) == 0 {
		return md, nil
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.ScalarNode:
		return md, nil
	case yaml.MappingNode:
	default:
		return md, fmt.Errorf("%w: front matter is not a mapping", apperr.ErrMalformedMetadata)
	}

	var fm map[string]any
	if err := root.Decode(&fm); err != nil {
		return md, fmt.Errorf("%w: %w", apperr.ErrMalformedMetadata, err)
	}

	if title, ok := fm["title"].(string); ok {
		md.Title = &title
	}

	entries, _ := fm["tags"].([]any)
	for _, entry := range entries {
		s, ok := entry.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		md.Tags = append(md.Tags, ExpandTag(s)...)
	}
	return md, nil
}

// ExpandTag turns one front matter tag entry into '#'-prefixed tags. An entry
// without separator stays a single tag; otherwise every subcategory is paired
// with the root:
//
//	"Biology - Birds - Warblers" -> "#Biology/Birds", "#Biology/Warblers"
func ExpandTag(entry string) []string {
	parts := strings.Split(entry, subtagSeparator)
	if len(parts) == 1 {
		return []string{"#" + entry}
	}
	out := make([]string, 0, len(parts)-1)
	for _, sub := range parts[1:] {
		out = append(out, "#"+parts[0]+"/"+sub)
	}
	return out
}
