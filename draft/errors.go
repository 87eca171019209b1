package draft

import (
	"errors"
	"fmt"
)

// Postgres error codes surfaced by the record store that map to
// actionable remediation.
const (
	// CodeMissingColumn is the undefined-column error class.
	CodeMissingColumn = "42703"

	// CodeMissingTable is the undefined-table error class.
	CodeMissingTable = "42P01"
)

// Remediation messages for classifiable schema errors. They carry the
// exact corrective statement so the user can fix the store directly.
const (
	RemediationMissingColumn = "The user_id column is missing. Please run: ALTER TABLE drafts ADD COLUMN user_id TEXT;"
	RemediationMissingTable  = `Table "drafts" does not exist. Please run the SQL setup script.`
	RemediationGeneric       = "Draft operation failed. Please try again."
)

// ErrNoRowsUpdated is the distinguishable no-op update outcome: the
// update predicate (id + owner) matched zero records. It is neither
// success nor a store failure.
var ErrNoRowsUpdated = errors.New("no rows updated")

// ErrNotAuthenticated is returned when a persistence operation runs
// without an authenticated identity.
var ErrNotAuthenticated = errors.New("not authenticated")

// SchemaError is a classifiable schema problem at the record store:
// a missing column or a missing table.
type SchemaError struct {
	Code    string // Postgres error class, e.g. "42703"
	Message string // Store-provided message
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error %s: %s", e.Code, e.Message)
}

// ValidationError reports an empty required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Remediation maps a persistence error to the user-facing message the
// presentation layer shows. Schema errors get their corrective
// statement; everything else gets the generic message.
func Remediation(err error) string {
	var se *SchemaError
	if errors.As(err, &se) {
		switch se.Code {
		case CodeMissingColumn:
			return RemediationMissingColumn
		case CodeMissingTable:
			return RemediationMissingTable
		}
	}
	return RemediationGeneric
}
