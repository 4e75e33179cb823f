package parser

import "regexp"

// Fence describes how a format wraps its YAML front matter.
//
// Both fences anchor at the very start of the file and end at the first
// closing "---" line after the opening one, so a later "---" in the body is
// ordinary body text.
type Fence struct {
	name string
	re   *regexp.Regexp
}

var (
	// MarkdownFence matches a leading "---" line, the metadata, and a closing
	// "---" line. The body starts after the closing line break.
	MarkdownFence = Fence{
		name: "markdown",
		re:   regexp.MustCompile(`\A---\r?\n(?:((?s:.*?))\r?\n)??---(?:\r?\n|\z)`),
	}

	// MarkupFence matches the same fence wrapped in a block comment:
	// "/*", "---", metadata, "---", "*/". The body starts right after "*/".
	MarkupFence = Fence{
		name: "markup",
		re:   regexp.MustCompile(`\A/\*\r?\n---\r?\n(?:((?s:.*?))\r?\n)??---\r?\n\*/`),
	}
)

func (f Fence) String() string { return f.name }

// SplitFrontmatter separates the raw front matter from the body. meta is nil
// when the fence is absent, in which case body is text unchanged.
func SplitFrontmatter(text string, f Fence) (meta *string, body string) {
	loc := f.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, text
	}
	raw := ""
	if loc[2] >= 0 {
		raw = text[loc[2]:loc[3]]
	}
	return &raw, text[loc[1]:]
}
