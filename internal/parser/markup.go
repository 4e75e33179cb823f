package parser

import (
	"path"
	"strings"

	"github.com/starford/marginalia/internal/typst"
)

// MarkupExtractor finds links and tags in Typst markup. Both are written as
// calls of configurable functions, e.g. #link("Birds.typ") and #tag("biology").
type MarkupExtractor struct {
	linkFunc string
	tagFunc  string
}

// NewMarkupExtractor creates a markup extractor looking for calls of linkFunc
// and tagFunc.
func NewMarkupExtractor(linkFunc, tagFunc string) *MarkupExtractor {
	return &MarkupExtractor{linkFunc: linkFunc, tagFunc: tagFunc}
}

// Extract implements Extractor. It never fails.
func (e *MarkupExtractor) Extract(body string) (Extraction, error) {
	var tags, links []string

	// Calls can sit in any expression position, so every node is visited.
	typst.Walk(typst.Parse(body), func(n *typst.Node) bool {
		if n.Kind != typst.FuncCall {
			return true
		}
		if target, ok := e.firstStrArg(n, e.linkFunc); ok {
			if stem, ok := fileStem(target); ok {
				links = append(links, stem)
			}
		} else if tag, ok := e.firstStrArg(n, e.tagFunc); ok && tag != "" {
			if !strings.HasPrefix(tag, "#") {
				tag = "#" + tag
			}
			tags = append(tags, tag)
		}
		return true
	})

	return Extraction{
		Tags:       tags,
		Links:      links,
		Words:      CountWords(body),
		Characters: len(body),
	}, nil
}

// firstStrArg returns the first string argument of call if its callee is the
// identifier ident.
func (e *MarkupExtractor) firstStrArg(call *typst.Node, ident string) (string, bool) {
	callee := call.FirstChild(typst.Ident)
	if callee == nil || ident == "" || callee.Text() != ident {
		return "", false
	}
	args := call.FirstChild(typst.Args)
	if args == nil {
		return "", false
	}
	s := args.FirstChild(typst.Str)
	if s == nil {
		return "", false
	}
	return s.StrValue()
}

// fileStem returns the last element of a slash separated path without its
// extension. ok is false when there is no final element.
func fileStem(p string) (stem string, ok bool) {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "", false
	}
	base := path.Base(p)
	if base == "." || base == ".." {
		return "", false
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base, true
}
