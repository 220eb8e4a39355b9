package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// FileStore is a NodeStore backed by the local file system. Each schema gets
// a subdirectory and each record is one JSON file named by its identifier,
// so a node's data survives restarts without any external database.
type FileStore struct {
	baseDir string
	log     *slog.Logger

	// Serializes the mutating methods so a delete cannot interleave with
	// another method's read-modify-write cycle.
	mu sync.Mutex
}

// NewFileStore creates a file-backed store rooted at baseDir.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{baseDir: baseDir, log: log}, nil
}

func (s *FileStore) schemaDir(schema interfaces.SchemaID) string {
	return filepath.Join(s.baseDir, schema.String())
}

func (s *FileStore) recordPath(schema interfaces.SchemaID, id interfaces.RecordID) string {
	return filepath.Join(s.schemaDir(schema), id.String()+".json")
}

// Insert stores a partial record, idempotently for identical re-inserts.
func (s *FileStore) Insert(ctx context.Context, schema interfaces.SchemaID, record interfaces.PartialRecord) error {
	// Schema ids become directory names; a hostile id must never escape the
	// base directory.
	if err := schema.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.schemaDir(schema), 0o755); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}

	path := s.recordPath(schema, record.ID)
	if existing, err := s.readRecord(path); err == nil {
		if existing.Equal(record) {
			return nil
		}
		return ErrDuplicateRecord
	}

	if err := s.writeRecord(path, record); err != nil {
		return err
	}

	s.log.Debug("Stored record",
		slog.String("schema", schema.String()),
		slog.String("record_id", record.ID.String()),
		slog.String("path", path))
	return nil
}

// List returns matching records of one schema.
func (s *FileStore) List(ctx context.Context, schema interfaces.SchemaID, filter interfaces.Filter) ([]interfaces.PartialRecord, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.schemaDir(schema))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	var out []interfaces.PartialRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := s.readRecord(filepath.Join(s.schemaDir(schema), entry.Name()))
		if err != nil {
			return nil, err
		}
		if matches(record, filter) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Update patches the named fields of one record.
func (s *FileStore) Update(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID, patch map[string]interfaces.Field) (bool, error) {
	if err := schema.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(schema, id)
	record, err := s.readRecord(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for name, field := range patch {
		record.Fields[name] = field
	}
	if err := s.writeRecord(path, record); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes one record, reporting whether it existed.
func (s *FileStore) Delete(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID) (bool, error) {
	if err := schema.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.recordPath(schema, id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return true, nil
}

func (s *FileStore) readRecord(path string) (interfaces.PartialRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return interfaces.PartialRecord{}, err
	}
	var record interfaces.PartialRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return interfaces.PartialRecord{}, fmt.Errorf("corrupt record file %s: %w", path, err)
	}
	return record, nil
}

func (s *FileStore) writeRecord(path string, record interfaces.PartialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize record: %w", err)
	}
	return nil
}
