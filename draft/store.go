// Package draft persists and reconciles draft snapshots against a
// remote record store scoped by owner identity.
package draft

import (
	"context"

	"github.com/c360studio/paperdraft/paper"
)

// Store is the record-store contract for the drafts table. All
// operations are owner-scoped; implementations must surface schema
// problems as *SchemaError so they can be remediated.
type Store interface {
	// Insert persists a new draft snapshot for the owner.
	Insert(ctx context.Context, title string, content []paper.Section, ownerID string) error

	// Update rewrites title and content of the draft matching both id
	// and owner, returning the number of records matched. Zero matches
	// is reported as a count, not an error: the caller distinguishes
	// the no-op outcome itself.
	Update(ctx context.Context, draftID, ownerID, title string, content []paper.Section) (int, error)

	// GetOwned fetches one draft matching both id and owner.
	GetOwned(ctx context.Context, draftID, ownerID string) (paper.Draft, error)

	// ListByOwner returns the owner's drafts, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]paper.Draft, error)
}
