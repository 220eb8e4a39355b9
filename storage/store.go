package storage

import (
	"context"
	"errors"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

var (
	// ErrDuplicateRecord is returned when a create collides with an existing
	// record of the same identifier but different content. Re-creating an
	// identical record is a no-op success instead, so write retries stay
	// idempotent.
	ErrDuplicateRecord = errors.New("record already exists with different content")
)

// NodeStore is the record store behind one node's data API. Records live in
// schema partitions and are keyed by their client-chosen identifier.
type NodeStore interface {
	// Insert stores a partial record. Inserting a byte-identical record
	// again succeeds silently; a conflicting record fails with
	// ErrDuplicateRecord.
	Insert(ctx context.Context, schema interfaces.SchemaID, record interfaces.PartialRecord) error

	// List returns all records of a schema matching the filter, exact-match
	// on plaintext fields.
	List(ctx context.Context, schema interfaces.SchemaID, filter interfaces.Filter) ([]interfaces.PartialRecord, error)

	// Update patches the named fields of a record. The boolean reports
	// whether the record existed.
	Update(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID, patch map[string]interfaces.Field) (bool, error)

	// Delete removes a record. Deleting an absent record returns false, nil.
	Delete(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID) (bool, error)
}

// matches reports whether a record satisfies an exact-match filter. Filters
// only ever see plaintext fields; a share never matches.
func matches(record interfaces.PartialRecord, filter interfaces.Filter) bool {
	for name, want := range filter {
		if name == interfaces.RecordIDFilterKey {
			if record.ID.String() != want {
				return false
			}
			continue
		}
		field, ok := record.Fields[name]
		if !ok || field.Kind() != interfaces.FieldPlain || field.Plain() != want {
			return false
		}
	}
	return true
}
