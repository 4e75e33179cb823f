// Package typst builds a lossless concrete syntax tree for Typst markup.
//
// The tree is deliberately generic: it knows enough of the grammar to tell
// markup from code, find function calls with their arguments, and keep raw
// text, comments and strings from being misread as code. Concatenating the
// text of all leaves in order reproduces the input exactly.
package typst

import (
	"strconv"
	"strings"
)

// Kind identifies the syntactic role of a Node.
type Kind int

const (
	Markup Kind = iota
	Text
	Space
	Escape
	Raw
	LineComment
	BlockComment
	Hash
	Equation
	Code
	CodeBlock
	ContentBlock
	Parenthesized
	Ident
	Keyword
	Str
	Number
	FuncCall
	FieldAccess
	Args
	Named
	Punct
)

var kindNames = [...]string{
	Markup:        "Markup",
	Text:          "Text",
	Space:         "Space",
	Escape:        "Escape",
	Raw:           "Raw",
	LineComment:   "LineComment",
	BlockComment:  "BlockComment",
	Hash:          "Hash",
	Equation:      "Equation",
	Code:          "Code",
	CodeBlock:     "CodeBlock",
	ContentBlock:  "ContentBlock",
	Parenthesized: "Parenthesized",
	Ident:         "Ident",
	Keyword:       "Keyword",
	Str:           "Str",
	Number:        "Number",
	FuncCall:      "FuncCall",
	FieldAccess:   "FieldAccess",
	Args:          "Args",
	Named:         "Named",
	Punct:         "Punct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Node is a node of the syntax tree. Leaves carry text; inner nodes carry
// children.
type Node struct {
	Kind     Kind
	Children []*Node
	text     string
}

func leaf(kind Kind, text string) *Node {
	return &Node{Kind: kind, text: text}
}

func inner(kind Kind, children ...*Node) *Node {
	return &Node{Kind: kind, Children: children}
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Text returns the source text covered by n.
func (n *Node) Text() string {
	if n.IsLeaf() {
		return n.text
	}
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	if n.IsLeaf() {
		b.WriteString(n.text)
		return
	}
	for _, c := range n.Children {
		c.writeText(b)
	}
}

// FirstChild returns the first direct child of the given kind, or nil.
func (n *Node) FirstChild(kind Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// StrValue returns the unescaped value of a string literal. ok is false when
// n is not a Str node.
func (n *Node) StrValue() (value string, ok bool) {
	if n.Kind != Str {
		return "", false
	}
	s := strings.TrimPrefix(n.text, `"`)
	s = strings.TrimSuffix(s, `"`)
	return unescape(s), true
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			// \u{1F600}
			if end := strings.IndexByte(s[i:], '}'); i+1 < len(s) && s[i+1] == '{' && end > 0 {
				if cp, err := strconv.ParseUint(s[i+2:i+end], 16, 32); err == nil {
					b.WriteRune(rune(cp))
					i += end
					continue
				}
			}
			b.WriteString(`\u`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Walk calls fn for every node below root in document order, depth first.
// Returning false from fn skips the node's children.
func Walk(root *Node, fn func(*Node) bool) {
	for _, c := range root.Children {
		if fn(c) {
			Walk(c, fn)
		}
	}
}
