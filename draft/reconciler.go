package draft

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/paperdraft/identity"
	"github.com/c360studio/paperdraft/paper"
)

// Reporter receives persistence failures together with their
// user-facing remediation. The presentation layer observes a single
// such channel instead of scattered alerts.
type Reporter interface {
	ReportError(op string, err error, remediation string)
}

// nopReporter drops reports.
type nopReporter struct{}

func (nopReporter) ReportError(string, error, string) {}

// Reconciler merges persisted drafts into the editable working set and
// persists snapshots of it, scoped to the authenticated identity.
type Reconciler struct {
	store    Store
	ids      identity.Provider
	ws       *paper.WorkingSet
	reporter Reporter
	logger   *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReporter sets the error reporter.
func WithReporter(r Reporter) ReconcilerOption {
	return func(rec *Reconciler) {
		rec.reporter = r
	}
}

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(rec *Reconciler) {
		rec.logger = logger
	}
}

// NewReconciler creates a reconciler operating on the given working set.
func NewReconciler(store Store, ids identity.Provider, ws *paper.WorkingSet, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:    store,
		ids:      ids,
		ws:       ws,
		reporter: nopReporter{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load fetches a persisted draft and installs its content as the
// entire new working set, discarding the previous one wholesale. The
// returned sections are the installed copy.
func (r *Reconciler) Load(ctx context.Context, draftID string) ([]paper.Section, error) {
	ident, err := r.ids.Current(ctx)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	d, err := r.store.GetOwned(ctx, draftID, ident.ID)
	if err != nil {
		return nil, r.report("load", fmt.Errorf("load draft %s: %w", draftID, err))
	}

	// Replace deep-copies, so the loaded Draft stays untouched by
	// subsequent edits.
	r.ws.Replace(d.Content)
	r.logger.Info("Draft loaded", "draft_id", draftID, "sections", len(d.Content))
	return r.ws.Sections(), nil
}

// Save persists a snapshot of the current working set under the given
// title, tagged with the caller's identity.
func (r *Reconciler) Save(ctx context.Context, title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title"}
	}
	ident, err := r.ids.Current(ctx)
	if err != nil {
		return ErrNotAuthenticated
	}

	if err := r.store.Insert(ctx, title, r.ws.Sections(), ident.ID); err != nil {
		return r.report("save", fmt.Errorf("save draft: %w", err))
	}

	r.logger.Info("Draft saved", "title", title)
	return nil
}

// Update rewrites an existing draft's title and content. The acting
// identity must own the draft: a predicate matching zero records is the
// distinct ErrNoRowsUpdated outcome, separate from both success and
// store failure.
func (r *Reconciler) Update(ctx context.Context, draftID, title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title"}
	}
	ident, err := r.ids.Current(ctx)
	if err != nil {
		return ErrNotAuthenticated
	}

	rows, err := r.store.Update(ctx, draftID, ident.ID, title, r.ws.Sections())
	if err != nil {
		return r.report("update", fmt.Errorf("update draft %s: %w", draftID, err))
	}
	if rows == 0 {
		r.logger.Warn("Draft update matched no records", "draft_id", draftID)
		return ErrNoRowsUpdated
	}

	r.logger.Info("Draft updated", "draft_id", draftID, "rows", rows)
	return nil
}

// List returns the caller's persisted drafts, newest first.
func (r *Reconciler) List(ctx context.Context) ([]paper.Draft, error) {
	ident, err := r.ids.Current(ctx)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	drafts, err := r.store.ListByOwner(ctx, ident.ID)
	if err != nil {
		return nil, r.report("list", fmt.Errorf("list drafts: %w", err))
	}
	return drafts, nil
}

// report forwards the error and its remediation to the reporter and
// passes the error through unchanged.
func (r *Reconciler) report(op string, err error) error {
	r.reporter.ReportError(op, err, Remediation(err))
	return err
}
