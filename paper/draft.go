package paper

import (
	"sync"
	"time"
)

// Draft is a persisted snapshot of the working set. Content is stored
// by value: editing the working set after a load never mutates a Draft
// that was previously returned.
type Draft struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Content   []Section `json:"content"`
	OwnerID   string    `json:"user_id"`
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	out := d
	out.Content = CloneSections(d.Content)
	return out
}

// WorkingSet is the editable section list. Mutation happens here and
// readers receive copies, so concurrent edit and format cycles never
// observe each other's intermediate state.
type WorkingSet struct {
	mu       sync.RWMutex
	sections []Section
}

// NewWorkingSet creates a working set seeded with the given sections.
func NewWorkingSet(sections ...Section) *WorkingSet {
	return &WorkingSet{sections: CloneSections(sections)}
}

// Sections returns a deep copy of the current section list.
func (w *WorkingSet) Sections() []Section {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return CloneSections(w.sections)
}

// Len returns the number of sections.
func (w *WorkingSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.sections)
}

// Add appends a new empty section and returns it.
func (w *WorkingSet) Add(title string) Section {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := NewSection(title)
	w.sections = append(w.sections, s)
	return s
}

// Remove deletes the section with the given ID. It reports whether a
// section was removed.
func (w *WorkingSet) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, s := range w.sections {
		if s.ID == id {
			w.sections = append(w.sections[:i], w.sections[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateTitle sets the title of the section with the given ID.
func (w *WorkingSet) UpdateTitle(id, title string) bool {
	return w.update(id, func(s *Section) { s.Title = title })
}

// UpdateContent sets the raw bullet content of the section with the given ID.
func (w *WorkingSet) UpdateContent(id, content string) bool {
	return w.update(id, func(s *Section) { s.Content = content })
}

// UpdateCitations replaces the citation list of the section with the given ID.
func (w *WorkingSet) UpdateCitations(id string, citations []string) bool {
	return w.update(id, func(s *Section) {
		s.Citations = append([]string(nil), citations...)
	})
}

// Replace installs a new section list wholesale, discarding the
// previous one. Used when a persisted draft is loaded.
func (w *WorkingSet) Replace(sections []Section) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sections = CloneSections(sections)
}

func (w *WorkingSet) update(id string, fn func(*Section)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.sections {
		if w.sections[i].ID == id {
			fn(&w.sections[i])
			return true
		}
	}
	return false
}
