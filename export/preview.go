package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/c360studio/paperdraft/paper"
)

// previewRenderer converts the preview's markdown-ish prose to HTML.
var previewRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// PreviewHTML renders formatted sections as an HTML fragment for the
// live preview pane. Pending sections render with a placeholder so the
// document skeleton is always visible.
func PreviewHTML(title string, sections []paper.FormattedSection) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", title)

	for i, s := range sections {
		heading := s.Title
		if heading == "" {
			heading = fmt.Sprintf("Section %d", i+1)
		}
		fmt.Fprintf(&md, "## %s\n\n", heading)

		if strings.TrimSpace(s.Content) == "" {
			md.WriteString("*No content yet...*\n\n")
			continue
		}
		md.WriteString(s.Content)
		md.WriteString("\n\n")
	}

	var out bytes.Buffer
	if err := previewRenderer.Convert([]byte(md.String()), &out); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return out.String(), nil
}
