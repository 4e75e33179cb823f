package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/wikilink"

	"github.com/starford/marginalia/internal/noteid"
)

// MarkdownExtractor finds hashtags, [[wikilinks]] and bare internal links in
// Markdown.
type MarkdownExtractor struct {
	md goldmark.Markdown
}

// NewMarkdownExtractor creates a Markdown extractor with wikilink support.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{
		md: goldmark.New(goldmark.WithExtensions(&wikilink.Extender{})),
	}
}

// Extract implements Extractor. It never fails.
func (e *MarkdownExtractor) Extract(body string) (Extraction, error) {
	src := []byte(body)
	doc := e.md.Parser().Parse(text.NewReader(src))

	var tags, links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.CodeSpan:
			return ast.WalkSkipChildren, nil
		case *wikilink.Node:
			if len(n.Target) > 0 {
				links = append(links, noteid.Canonicalize(string(n.Target)))
			}
			// The label repeats the target; "[[#Heading]]" is not a tag.
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if isInternalDestination(n.Destination) {
				links = append(links, noteid.Canonicalize(string(n.Destination)))
			}
		}
		if n.HasChildren() {
			tags = appendTextRunHashtags(tags, n, src)
		}
		return ast.WalkContinue, nil
	})

	return Extraction{
		Tags:       tags,
		Links:      links,
		Words:      CountWords(body),
		Characters: len(body),
	}, nil
}

// appendTextRunHashtags scans the text children of parent for hashtags.
// goldmark cuts plain text wherever inline markup could start ('_', '*', '!',
// '&' and so on), so adjacent text pieces are joined first. A run ends at a
// line break or at any other inline node.
func appendTextRunHashtags(tags []string, parent ast.Node, src []byte) []string {
	var run strings.Builder
	flush := func() {
		tags = appendHashtags(tags, run.String())
		run.Reset()
	}
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			run.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				flush()
			}
		case *ast.String:
			run.Write(c.Value)
		default:
			flush()
		}
	}
	flush()
	return tags
}

// appendHashtags appends every whitespace separated token of s that starts
// with '#'.
func appendHashtags(tags []string, s string) []string {
	for _, tok := range strings.Fields(s) {
		if len(tok) > 1 && tok[0] == '#' {
			tags = append(tags, tok)
		}
	}
	return tags
}

// isInternalDestination reports whether a link destination looks like a bare
// note name: no path separator and no extension or domain dot.
func isInternalDestination(dest []byte) bool {
	return len(dest) > 0 && !bytes.ContainsAny(dest, "/.")
}
