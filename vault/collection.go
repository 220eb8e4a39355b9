package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// Schema binds a collection to its node-side storage partition and fixes
// which fields are secret-shared. The classification is part of the data
// layout: it must not change once records exist.
type Schema struct {
	ID           interfaces.SchemaID
	SecretFields []string
}

// Collection is the typed CRUD surface over one schema. T must marshal to a
// flat JSON object with string values; secret fields are shared across nodes,
// everything else is stored redundantly in plaintext.
type Collection[T any] struct {
	log     *slog.Logger
	cluster *Cluster
	schema  interfaces.SchemaID
	secret  map[string]bool
}

// NewCollection creates the typed client for one collection.
func NewCollection[T any](cluster *Cluster, schema Schema) (*Collection[T], error) {
	if schema.ID == "" {
		return nil, fmt.Errorf("collection schema id must not be empty")
	}
	secret := make(map[string]bool, len(schema.SecretFields))
	for _, name := range schema.SecretFields {
		secret[name] = true
	}
	return &Collection[T]{
		log:     cluster.log,
		cluster: cluster,
		schema:  schema.ID,
		secret:  secret,
	}, nil
}

// Item pairs a reconstructed entity with its record identifier.
type Item[T any] struct {
	ID     interfaces.RecordID
	Entity T
}

// FindResult is the detailed outcome of a filtered read.
type FindResult[T any] struct {
	// Items are the fully reconstructed entities.
	Items []Item[T]

	// Incomplete lists records that exist but are missing shares,
	// distinguishing them from records that do not exist at all.
	Incomplete []interfaces.UnreconstructableRecord

	// NodeFailures maps node slots whose fetch failed to their error.
	NodeFailures map[int]error

	// RecordFailures holds per-record integrity errors.
	RecordFailures []error
}

// Create generates a record identifier, shares the entity's secret fields and
// writes one partial record per node. It succeeds only with all-N
// acknowledgement; on a *QuorumWriteError the entity is not durably stored.
func (c *Collection[T]) Create(ctx context.Context, entity T) (interfaces.RecordID, error) {
	fields, err := encodeEntity(entity)
	if err != nil {
		return "", err
	}

	record := interfaces.LogicalRecord{ID: interfaces.NewRecordID(), Fields: fields}
	if _, err := c.cluster.writer.Write(ctx, c.schema, record, c.secret); err != nil {
		return "", err
	}

	c.log.Debug("Created record",
		slog.String("schema", c.schema.String()),
		slog.String("record_id", record.ID.String()))
	return record.ID, nil
}

// Find reads all records matching the filter and returns the detailed
// outcome, including incomplete records and node failures.
func (c *Collection[T]) Find(ctx context.Context, filter interfaces.Filter) (*FindResult[T], error) {
	read, err := c.cluster.reader.Read(ctx, c.schema, filter)
	if err != nil {
		return nil, err
	}

	result := &FindResult[T]{
		Incomplete:     read.Incomplete,
		NodeFailures:   read.NodeFailures,
		RecordFailures: read.RecordFailures,
	}
	for _, record := range read.Records {
		entity, err := decodeEntity[T](record.Fields)
		if err != nil {
			result.RecordFailures = append(result.RecordFailures,
				fmt.Errorf("record %s: %w", record.ID, err))
			continue
		}
		result.Items = append(result.Items, Item[T]{ID: record.ID, Entity: entity})
	}
	return result, nil
}

// FindAll returns just the reconstructed entities matching the filter.
func (c *Collection[T]) FindAll(ctx context.Context, filter interfaces.Filter) ([]T, error) {
	result, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	entities := make([]T, 0, len(result.Items))
	for _, item := range result.Items {
		entities = append(entities, item.Entity)
	}
	return entities, nil
}

// FindByID returns one entity, or nil when no node holds the identifier. A
// record that exists but is missing shares yields an *UnreconstructableError
// instead of a fabricated partial entity.
func (c *Collection[T]) FindByID(ctx context.Context, id interfaces.RecordID) (*T, error) {
	result, err := c.Find(ctx, interfaces.Filter{interfaces.RecordIDFilterKey: id.String()})
	if err != nil {
		return nil, err
	}

	for _, failure := range result.RecordFailures {
		return nil, failure
	}
	for _, incomplete := range result.Incomplete {
		if incomplete.ID == id {
			return nil, &interfaces.UnreconstructableError{Record: incomplete}
		}
	}
	for _, item := range result.Items {
		if item.ID == id {
			entity := item.Entity
			return &entity, nil
		}
	}
	return nil, nil
}

// Update re-shares the named fields and patches every node. It reports
// whether the record was known everywhere.
func (c *Collection[T]) Update(ctx context.Context, id interfaces.RecordID, patch map[string]string) (bool, error) {
	if len(patch) == 0 {
		return false, fmt.Errorf("update must name at least one field")
	}
	return c.cluster.writer.Update(ctx, c.schema, id, patch, c.secret)
}

// Delete removes the record from every node. Deleting an already deleted
// record succeeds with false.
func (c *Collection[T]) Delete(ctx context.Context, id interfaces.RecordID) (bool, error) {
	return c.cluster.writer.Delete(ctx, c.schema, id)
}

// encodeEntity flattens an entity into field values via its JSON form.
func encodeEntity[T any](entity T) (map[string]string, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("entity must encode to a flat object with string fields: %w", err)
	}
	if _, ok := fields[interfaces.RecordIDFilterKey]; ok {
		return nil, fmt.Errorf("entity field name %q is reserved", interfaces.RecordIDFilterKey)
	}
	return fields, nil
}

// decodeEntity rebuilds an entity from reconstructed field values.
func decodeEntity[T any](fields map[string]string) (T, error) {
	var entity T
	data, err := json.Marshal(fields)
	if err != nil {
		return entity, fmt.Errorf("failed to encode record fields: %w", err)
	}
	if err := json.Unmarshal(data, &entity); err != nil {
		return entity, fmt.Errorf("failed to decode entity: %w", err)
	}
	return entity, nil
}
