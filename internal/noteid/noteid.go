// Package noteid derives canonical note identifiers from names and link targets.
package noteid

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize turns a file name or link target into a note id:
//   - the string is normalized to its composed Unicode form (NFC)
//   - everything from the first '#' or '.' on is dropped, which removes
//     heading anchors and file extensions alike
//   - the result is lowercased and spaces become dashes
//
//	Canonicalize("Lie Theory#Definition") == "lie-theory"
//	Canonicalize("Lie Theory.md")         == "lie-theory"
func Canonicalize(raw string) string {
	s := norm.NFC.String(raw)
	if i := strings.IndexAny(s, "#."); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}
