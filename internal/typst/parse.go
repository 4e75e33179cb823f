package typst

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keywords of the code mode. They never act as callees.
var keywords = map[string]struct{}{
	"none": {}, "auto": {}, "true": {}, "false": {},
	"not": {}, "and": {}, "or": {}, "in": {}, "as": {},
	"let": {}, "set": {}, "show": {}, "context": {},
	"if": {}, "else": {}, "for": {}, "while": {},
	"break": {}, "continue": {}, "return": {},
	"import": {}, "include": {},
}

// Keywords that start a statement when embedded in markup with '#'. Such a
// statement runs to the end of the line.
var statementKeywords = map[string]struct{}{
	"let": {}, "set": {}, "show": {}, "context": {},
	"if": {}, "for": {}, "while": {},
	"import": {}, "include": {}, "return": {},
}

// Parse builds the syntax tree of a markup document. It never fails:
// anything it cannot make sense of ends up as text or punctuation.
func Parse(text string) *Node {
	p := &parser{src: text}
	return inner(Markup, p.markup(0)...)
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) rest() string { return p.src[p.pos:] }

func (p *parser) take(kind Kind, n int) *Node {
	start := p.pos
	p.pos += n
	if p.pos > len(p.src) {
		p.pos = len(p.src)
	}
	return leaf(kind, p.src[start:p.pos])
}

// --- markup mode ---

// markup parses markup until term (0: end of input, ']' or '$'). The
// terminator is left for the caller.
func (p *parser) markup(term byte) []*Node {
	var nodes []*Node
	depth := 0
	for !p.eof() {
		c := p.peek()
		switch {
		case term == ']' && c == ']' && depth == 0:
			return nodes
		case term == '$' && c == '$':
			return nodes
		case term == ']' && c == '[':
			depth++
			nodes = append(nodes, p.take(Text, 1))
		case term == ']' && c == ']':
			depth--
			nodes = append(nodes, p.take(Text, 1))
		case isSpace(c):
			nodes = append(nodes, p.space(true))
		case c == '\\':
			_, size := utf8.DecodeRuneInString(p.src[p.pos+1:])
			nodes = append(nodes, p.take(Escape, 1+size))
		case c == '/' && (p.peekAt(1) == '/' || p.peekAt(1) == '*'):
			nodes = append(nodes, p.comment())
		case c == '`':
			nodes = append(nodes, p.raw())
		case c == '$' && term != '$':
			nodes = append(nodes, p.equation())
		case c == '#' && isEmbedStart(p.peekAt(1), p.src[p.pos+1:]):
			nodes = append(nodes, p.take(Hash, 1))
			nodes = append(nodes, p.embedded()...)
		default:
			nodes = append(nodes, p.text())
		}
	}
	return nodes
}

// text consumes a run of plain markup text. It always consumes at least one
// rune.
func (p *parser) text() *Node {
	start := p.pos
	if n := urlLen(p.rest()); n > 0 {
		p.pos += n
		return leaf(Text, p.src[start:p.pos])
	}
	_, size := utf8.DecodeRuneInString(p.rest())
	p.pos += size
	for !p.eof() {
		c := p.peek()
		if isSpace(c) || c == '\\' || c == '`' || c == '$' || c == '#' || c == '[' || c == ']' {
			break
		}
		if c == '/' && (p.peekAt(1) == '/' || p.peekAt(1) == '*') {
			break
		}
		if c == 'h' && urlLen(p.rest()) > 0 {
			break
		}
		_, size := utf8.DecodeRuneInString(p.rest())
		p.pos += size
	}
	return leaf(Text, p.src[start:p.pos])
}

// urlLen returns the length of a bare http(s) URL at the start of s.
func urlLen(s string) int {
	if !strings.HasPrefix(s, "https://") && !strings.HasPrefix(s, "http://") {
		return 0
	}
	n := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("[]<>\"`", r)
	})
	if n < 0 {
		return len(s)
	}
	return n
}

func (p *parser) space(newlines bool) *Node {
	start := p.pos
	for !p.eof() && isSpace(p.peek()) {
		if !newlines && p.peek() == '\n' {
			break
		}
		p.pos++
	}
	return leaf(Space, p.src[start:p.pos])
}

// comment consumes a line comment or a (nestable) block comment.
func (p *parser) comment() *Node {
	if p.peekAt(1) == '/' {
		n := strings.IndexByte(p.rest(), '\n')
		if n < 0 {
			n = len(p.rest())
		}
		return p.take(LineComment, n)
	}
	start := p.pos
	p.pos += 2
	depth := 1
	for !p.eof() && depth > 0 {
		switch {
		case strings.HasPrefix(p.rest(), "/*"):
			depth++
			p.pos += 2
		case strings.HasPrefix(p.rest(), "*/"):
			depth--
			p.pos += 2
		default:
			p.pos++
		}
	}
	return leaf(BlockComment, p.src[start:p.pos])
}

// raw consumes inline raw text (`x`) or a raw block (```x```). Unterminated
// raw text runs to the end of input.
func (p *parser) raw() *Node {
	ticks := 0
	for p.peekAt(ticks) == '`' {
		ticks++
	}
	switch {
	case ticks == 2:
		return p.take(Raw, 2)
	case ticks < 3:
		ticks = 1
	}
	fence := strings.Repeat("`", ticks)
	end := strings.Index(p.src[p.pos+ticks:], fence)
	if end < 0 {
		return p.take(Raw, len(p.rest()))
	}
	return p.take(Raw, ticks+end+ticks)
}

func (p *parser) equation() *Node {
	open := p.take(Punct, 1)
	children := append([]*Node{open}, p.markup('$')...)
	if p.peek() == '$' {
		children = append(children, p.take(Punct, 1))
	}
	return inner(Equation, children...)
}

// embedded parses the code following a '#' in markup: either a statement
// that runs to the end of the line, or a single expression with its
// postfix calls and field accesses.
func (p *parser) embedded() []*Node {
	if word := p.peekIdent(); word != "" {
		if _, ok := statementKeywords[word]; ok {
			return []*Node{p.statement()}
		}
	}
	return []*Node{p.expr()}
}

// statement parses code up to the end of the line or a ';'.
func (p *parser) statement() *Node {
	var nodes []*Node
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '\n':
			return inner(Code, nodes...)
		case c == ';':
			nodes = append(nodes, p.take(Punct, 1))
			return inner(Code, nodes...)
		case isSpace(c):
			nodes = append(nodes, p.space(false))
		case c == '/' && (p.peekAt(1) == '/' || p.peekAt(1) == '*'):
			nodes = append(nodes, p.comment())
		case isExprStart(c, p.rest()):
			nodes = append(nodes, p.expr())
		default:
			nodes = append(nodes, p.punct())
		}
	}
	return inner(Code, nodes...)
}

// --- code mode ---

// code parses code until term (')' or '}'). With args set, `name: value`
// pairs become Named nodes.
func (p *parser) code(term byte, args bool) []*Node {
	var nodes []*Node
	for !p.eof() {
		c := p.peek()
		switch {
		case c == term:
			return nodes
		case isSpace(c):
			nodes = append(nodes, p.space(true))
		case c == '/' && (p.peekAt(1) == '/' || p.peekAt(1) == '*'):
			nodes = append(nodes, p.comment())
		case args && isIdentStart(p.rest()):
			if named := p.named(); named != nil {
				nodes = append(nodes, named)
				continue
			}
			nodes = append(nodes, p.expr())
		case isExprStart(c, p.rest()):
			nodes = append(nodes, p.expr())
		default:
			nodes = append(nodes, p.punct())
		}
	}
	return nodes
}

func (p *parser) punct() *Node {
	_, size := utf8.DecodeRuneInString(p.rest())
	return p.take(Punct, size)
}

// named parses `name: value`. It returns nil and leaves the position
// untouched when the input is not a named argument.
func (p *parser) named() *Node {
	save := p.pos
	name := p.ident()
	var children []*Node
	children = append(children, name)
	if isSpace(p.peek()) {
		children = append(children, p.space(true))
	}
	if p.peek() != ':' {
		p.pos = save
		return nil
	}
	children = append(children, p.take(Punct, 1))
	if isSpace(p.peek()) {
		children = append(children, p.space(true))
	}
	if isExprStart(p.peek(), p.rest()) {
		children = append(children, p.expr())
	}
	return inner(Named, children...)
}

// expr parses a primary expression followed by any number of calls and
// field accesses written without whitespace.
func (p *parser) expr() *Node {
	n := p.primary()
	if n.Kind == Keyword {
		return n
	}
	for !p.eof() {
		switch c := p.peek(); {
		case c == '(' || c == '[':
			n = inner(FuncCall, n, p.args())
		case c == '.' && isIdentStart(p.src[p.pos+1:]):
			dot := p.take(Punct, 1)
			n = inner(FieldAccess, n, dot, p.ident())
		default:
			return n
		}
	}
	return n
}

func (p *parser) primary() *Node {
	c := p.peek()
	switch {
	case isIdentStart(p.rest()):
		id := p.ident()
		if _, ok := keywords[id.text]; ok {
			id.Kind = Keyword
		}
		return id
	case c == '"':
		return p.str()
	case c >= '0' && c <= '9':
		return p.number()
	case c == '(':
		open := p.take(Punct, 1)
		children := append([]*Node{open}, p.code(')', false)...)
		if p.peek() == ')' {
			children = append(children, p.take(Punct, 1))
		}
		return inner(Parenthesized, children...)
	case c == '[':
		return p.contentBlock()
	case c == '{':
		open := p.take(Punct, 1)
		children := []*Node{open, inner(Code, p.code('}', false)...)}
		if p.peek() == '}' {
			children = append(children, p.take(Punct, 1))
		}
		return inner(CodeBlock, children...)
	case c == '$':
		return p.equation()
	default:
		return p.punct()
	}
}

func (p *parser) contentBlock() *Node {
	open := p.take(Punct, 1)
	children := append([]*Node{open}, inner(Markup, p.markup(']')...))
	if p.peek() == ']' {
		children = append(children, p.take(Punct, 1))
	}
	return inner(ContentBlock, children...)
}

// args parses a parenthesized argument list and any trailing content
// blocks: `(a, b)[body][more]`.
func (p *parser) args() *Node {
	var children []*Node
	if p.peek() == '(' {
		children = append(children, p.take(Punct, 1))
		children = append(children, p.code(')', true)...)
		if p.peek() == ')' {
			children = append(children, p.take(Punct, 1))
		}
	}
	for p.peek() == '[' {
		children = append(children, p.contentBlock())
	}
	return inner(Args, children...)
}

func (p *parser) ident() *Node {
	start := p.pos
	for i, r := range p.rest() {
		if i == 0 || unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			p.pos = start + i + utf8.RuneLen(r)
			continue
		}
		break
	}
	// A trailing dash belongs to the surrounding expression, e.g. `x-`.
	for p.pos > start+1 && p.src[p.pos-1] == '-' {
		p.pos--
	}
	return leaf(Ident, p.src[start:p.pos])
}

func (p *parser) peekIdent() string {
	if !isIdentStart(p.rest()) {
		return ""
	}
	save := p.pos
	id := p.ident()
	p.pos = save
	return id.text
}

func (p *parser) str() *Node {
	start := p.pos
	p.pos++
	for !p.eof() {
		switch p.peek() {
		case '\\':
			p.pos += 2
		case '"':
			p.pos++
			return leaf(Str, p.src[start:p.pos])
		default:
			p.pos++
		}
	}
	p.pos = len(p.src)
	return leaf(Str, p.src[start:p.pos])
}

func (p *parser) number() *Node {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '%' {
			p.pos++
			continue
		}
		if c == '.' && p.peekAt(1) >= '0' && p.peekAt(1) <= '9' {
			p.pos++
			continue
		}
		break
	}
	return leaf(Number, p.src[start:p.pos])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r)
}

func isExprStart(c byte, s string) bool {
	return isIdentStart(s) || c == '"' || c == '(' || c == '[' || c == '{' || c == '$' || (c >= '0' && c <= '9')
}

// isEmbedStart reports whether the text after a '#' in markup starts an
// embedded expression. Anything else leaves the '#' as plain text.
func isEmbedStart(c byte, s string) bool {
	return isIdentStart(s) || c == '(' || c == '[' || c == '{' || c == '"'
}
