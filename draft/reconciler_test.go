package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/paperdraft/identity"
	"github.com/c360studio/paperdraft/paper"
)

// fakeStore is an in-memory Store with scriptable failures.
type fakeStore struct {
	mu      sync.Mutex
	drafts  []paper.Draft
	err     error // returned by every operation when set
	updates int   // row count returned by Update
}

func (f *fakeStore) Insert(_ context.Context, title string, content []paper.Section, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.drafts = append(f.drafts, paper.Draft{
		ID:        "draft-" + title,
		CreatedAt: time.Now(),
		Title:     title,
		Content:   paper.CloneSections(content),
		OwnerID:   ownerID,
	})
	return nil
}

func (f *fakeStore) Update(_ context.Context, draftID, ownerID, title string, content []paper.Section) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.updates, nil
}

func (f *fakeStore) GetOwned(_ context.Context, draftID, ownerID string) (paper.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return paper.Draft{}, f.err
	}
	for _, d := range f.drafts {
		if d.ID == draftID && d.OwnerID == ownerID {
			return d.Clone(), nil
		}
	}
	return paper.Draft{}, ErrNotFound
}

func (f *fakeStore) ListByOwner(_ context.Context, ownerID string) ([]paper.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []paper.Draft
	for _, d := range f.drafts {
		if d.OwnerID == ownerID {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

// recordingReporter captures forwarded errors.
type recordingReporter struct {
	mu      sync.Mutex
	reports []string
}

func (r *recordingReporter) ReportError(op string, err error, remediation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, remediation)
}

func TestReconcilerSaveLoadRoundTrip(t *testing.T) {
	store := &fakeStore{}
	ids := identity.NewStatic("user-1", "u1@example.org")
	ws := paper.NewWorkingSet()
	rec := NewReconciler(store, ids, ws)

	sec := paper.NewSection("Introduction")
	sec.Content = "- motivation"
	ws.Replace([]paper.Section{sec})

	require.NoError(t, rec.Save(context.Background(), "My Paper"))

	// Mutate the working set after saving; the persisted snapshot must
	// not change.
	ws.UpdateContent(sec.ID, "- rewritten")

	loaded, err := rec.Load(context.Background(), "draft-My Paper")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "- motivation", loaded[0].Content)

	// Load replaced the working set wholesale.
	current := ws.Sections()
	require.Len(t, current, 1)
	assert.Equal(t, "- motivation", current[0].Content)
}

func TestReconcilerSaveRequiresTitle(t *testing.T) {
	store := &fakeStore{}
	rec := NewReconciler(store, identity.NewStatic("user-1", ""), paper.NewWorkingSet())

	err := rec.Save(context.Background(), "   ")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
	assert.Empty(t, store.drafts)
}

func TestReconcilerRequiresAuthentication(t *testing.T) {
	store := &fakeStore{updates: 1}
	ids := identity.NewStatic("user-1", "")
	ids.SignOut()
	rec := NewReconciler(store, ids, paper.NewWorkingSet())
	ctx := context.Background()

	assert.ErrorIs(t, rec.Save(ctx, "Title"), ErrNotAuthenticated)
	assert.ErrorIs(t, rec.Update(ctx, "d1", "Title"), ErrNotAuthenticated)
	_, err := rec.Load(ctx, "d1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = rec.List(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestReconcilerUpdateNoRows(t *testing.T) {
	store := &fakeStore{updates: 0}
	rec := NewReconciler(store, identity.NewStatic("user-1", ""), paper.NewWorkingSet())

	err := rec.Update(context.Background(), "not-mine", "Title")
	assert.ErrorIs(t, err, ErrNoRowsUpdated)
}

func TestReconcilerUpdateSuccess(t *testing.T) {
	store := &fakeStore{updates: 1}
	rec := NewReconciler(store, identity.NewStatic("user-1", ""), paper.NewWorkingSet())

	require.NoError(t, rec.Update(context.Background(), "d1", "Renamed"))
}

func TestReconcilerReportsRemediation(t *testing.T) {
	store := &fakeStore{err: &SchemaError{Code: CodeMissingColumn, Message: "column missing"}}
	reporter := &recordingReporter{}
	rec := NewReconciler(store, identity.NewStatic("user-1", ""), paper.NewWorkingSet(),
		WithReporter(reporter))

	err := rec.Save(context.Background(), "Title")
	require.Error(t, err)

	var se *SchemaError
	assert.ErrorAs(t, err, &se)
	require.Len(t, reporter.reports, 1)
	assert.Equal(t, RemediationMissingColumn, reporter.reports[0])
}

func TestReconcilerGenericRemediation(t *testing.T) {
	store := &fakeStore{err: errors.New("network down")}
	reporter := &recordingReporter{}
	rec := NewReconciler(store, identity.NewStatic("user-1", ""), paper.NewWorkingSet(),
		WithReporter(reporter))

	_, err := rec.List(context.Background())
	require.Error(t, err)
	require.Len(t, reporter.reports, 1)
	assert.Equal(t, RemediationGeneric, reporter.reports[0])
}
