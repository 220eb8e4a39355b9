package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// MemoryStore is an in-memory NodeStore used by tests and the development
// node.
type MemoryStore struct {
	log *slog.Logger

	mu      sync.RWMutex
	schemas map[interfaces.SchemaID]map[interfaces.RecordID]interfaces.PartialRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(log *slog.Logger) *MemoryStore {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryStore{
		log:     log,
		schemas: make(map[interfaces.SchemaID]map[interfaces.RecordID]interfaces.PartialRecord),
	}
}

// Insert stores a partial record, idempotently for identical re-inserts.
func (s *MemoryStore) Insert(ctx context.Context, schema interfaces.SchemaID, record interfaces.PartialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.schemas[schema]
	if !ok {
		partition = make(map[interfaces.RecordID]interfaces.PartialRecord)
		s.schemas[schema] = partition
	}

	if existing, ok := partition[record.ID]; ok {
		if existing.Equal(record) {
			return nil
		}
		return ErrDuplicateRecord
	}

	partition[record.ID] = record.Clone()
	s.log.Debug("Stored record",
		slog.String("schema", schema.String()),
		slog.String("record_id", record.ID.String()))
	return nil
}

// List returns matching records of one schema.
func (s *MemoryStore) List(ctx context.Context, schema interfaces.SchemaID, filter interfaces.Filter) ([]interfaces.PartialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []interfaces.PartialRecord
	for _, record := range s.schemas[schema] {
		if matches(record, filter) {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}

// Update patches the named fields of one record.
func (s *MemoryStore) Update(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID, patch map[string]interfaces.Field) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.schemas[schema]
	if !ok {
		return false, nil
	}
	record, ok := partition[id]
	if !ok {
		return false, nil
	}

	updated := record.Clone()
	for name, field := range patch {
		updated.Fields[name] = field
	}
	partition[id] = updated
	return true, nil
}

// Delete removes one record, reporting whether it existed.
func (s *MemoryStore) Delete(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.schemas[schema]
	if !ok {
		return false, nil
	}
	if _, ok := partition[id]; !ok {
		return false, nil
	}
	delete(partition, id)
	return true, nil
}
