// Package paper defines the working data model for a draft in progress:
// editable sections, their formatted counterparts, and persisted drafts.
package paper

import (
	"strings"

	"github.com/google/uuid"
)

// Section is one editable unit of the working set: a title, raw bullet
// content, and an ordered citation list. The ID is assigned at creation
// and never changes.
type Section struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Citations []string `json:"citations"`
}

// NewSection creates a section with a fresh unique ID.
func NewSection(title string) Section {
	return Section{
		ID:        uuid.New().String(),
		Title:     title,
		Citations: []string{},
	}
}

// Empty reports whether the section has no content worth formatting.
func (s Section) Empty() bool {
	return strings.TrimSpace(s.Content) == ""
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	out := s
	out.Citations = append([]string(nil), s.Citations...)
	return out
}

// CloneSections deep-copies a section list. Formatting cycles and draft
// snapshots operate on copies so later edits cannot leak into them.
func CloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
	}
	return out
}

// FormattedSection is the derived preview counterpart of a Section,
// keyed by the same ID. Content holds the model-produced prose, the raw
// content as fallback, or "" for a pending/empty section. It reflects
// the section content current when its formatting request was issued.
type FormattedSection struct {
	SectionID string `json:"section_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Fallback  bool   `json:"fallback,omitempty"`
}
