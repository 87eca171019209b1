// Package export assembles shareable renditions of the formatted
// preview: the LaTeX-flavored full document and an HTML preview.
package export

import (
	"fmt"
	"strings"

	"github.com/c360studio/paperdraft/paper"
)

// LaTeX assembles the full document text from formatted sections, one
// \section block per section. Sections with no content are skipped.
// Fallback content ships as-is: a failed completion still produces a
// document, never a hole.
func LaTeX(sections []paper.FormattedSection) string {
	var b strings.Builder
	for _, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			continue
		}
		fmt.Fprintf(&b, "\\section{%s}\n\n%s\n\n", s.Title, s.Content)
	}
	return b.String()
}
