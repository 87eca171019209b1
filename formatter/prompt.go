package formatter

import (
	"strings"

	"github.com/c360studio/paperdraft/paper"
)

// sectionPromptHeader is the instruction block prepended to every
// section-formatting request.
const sectionPromptHeader = `You are a scientist writing a research paper. Convert the following bullet points into a concise scientific paragraph.

CRITICAL RULES:
- Use ONLY the information provided below - do not add extra details or expand beyond what's given
- Keep the paragraph concise and to the point
- Convert bullet points to flowing sentences, but stay brief
- Use formal academic tone
- For math expressions, use LaTeX: $E = mc^2$ or $$\int_0^\infty$$
- Return ONLY the paragraph, no extra text`

// SectionPrompt builds the completion prompt for one section. The
// citation list and any fetched citation context are appended when
// present.
func SectionPrompt(sec paper.Section, citationContext string) string {
	var b strings.Builder
	b.WriteString(sectionPromptHeader)

	if len(sec.Citations) > 0 {
		b.WriteString("\n- Integrate the following citations naturally if possible: ")
		b.WriteString(strings.Join(sec.Citations, ", "))
	}

	if citationContext != "" {
		b.WriteString("\n\nBackground from cited sources:\n")
		b.WriteString(citationContext)
	}

	b.WriteString("\n\nData:\n")
	b.WriteString(sec.Content)
	b.WriteString("\n\nScientific paragraph:")

	return b.String()
}
