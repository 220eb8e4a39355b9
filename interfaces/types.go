package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/google/uuid"
)

// RecordID is the client-generated identifier of a logical record. The same
// identifier is written to every node so that the per-node partial records can
// be correlated back into one logical record.
type RecordID string

// NewRecordID generates a fresh record identifier. Identifiers are always
// chosen client-side, before the first write.
func NewRecordID() RecordID {
	return RecordID(uuid.Must(uuid.NewRandom()).String())
}

// ParseRecordID validates an identifier received from the outside.
func ParseRecordID(s string) (RecordID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid record id %q: %w", s, err)
	}
	return RecordID(id.String()), nil
}

// String returns the identifier as a string.
func (id RecordID) String() string { return string(id) }

// SchemaID selects the node-side storage partition for one collection.
type SchemaID string

// String returns the schema identifier as a string.
func (s SchemaID) String() string { return string(s) }

// Validate rejects schema identifiers outside [A-Za-z0-9_-]. Schema ids name
// storage partitions, on the file store literally as directory names, so
// path separators and dot sequences must never reach a backend.
func (s SchemaID) Validate() error {
	if s == "" {
		return errors.New("schema id must not be empty")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("schema id %q contains invalid character %q", string(s), r)
		}
	}
	return nil
}

// Node describes one of the N independent storage backends. Nodes are loaded
// once from configuration and are immutable for the process lifetime.
type Node struct {
	// ID is a short human-readable name used in logs.
	ID string `json:"id"`

	// Endpoint is the base URL of the node's data API.
	Endpoint string `json:"endpoint"`

	// Identity is the node's public identity. Access tokens are
	// audience-bound to it.
	Identity string `json:"identity"`
}

// Validate checks the node descriptor for obvious configuration mistakes.
func (n Node) Validate() error {
	if n.ID == "" {
		return errors.New("node id must not be empty")
	}
	if n.Identity == "" {
		return fmt.Errorf("node %s: identity must not be empty", n.ID)
	}
	u, err := url.Parse(n.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("node %s: invalid endpoint %q", n.ID, n.Endpoint)
	}
	return nil
}

// FieldKind distinguishes the two ways a field is stored on a node.
type FieldKind int

const (
	// FieldPlain is stored verbatim and redundantly on every node.
	FieldPlain FieldKind = iota

	// FieldShared holds one secret share, meaningless without the other N-1.
	FieldShared
)

// shareKey is the wire marker for a secret share, e.g. {"%share": "..."}.
const shareKey = "%share"

// Field is one field of a partial record as stored on a single node: either a
// plaintext value or that node's share of a secret-shared value. The tagged
// form keeps share material from ever being handled as plaintext.
type Field struct {
	kind  FieldKind
	value string
}

// PlainField wraps a plaintext value.
func PlainField(v string) Field { return Field{kind: FieldPlain, value: v} }

// SharedField wraps one secret share.
func SharedField(share string) Field { return Field{kind: FieldShared, value: share} }

// Kind reports whether the field is plaintext or a share.
func (f Field) Kind() FieldKind { return f.kind }

// Plain returns the plaintext value. It must only be called on FieldPlain.
func (f Field) Plain() string { return f.value }

// Share returns the share. It must only be called on FieldShared.
func (f Field) Share() string { return f.value }

// Equal compares kind and value.
func (f Field) Equal(other Field) bool { return f == other }

// MarshalJSON renders plaintext fields verbatim and shares as
// {"%share": <string>}.
func (f Field) MarshalJSON() ([]byte, error) {
	if f.kind == FieldShared {
		return json.Marshal(map[string]string{shareKey: f.value})
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON accepts either wire form.
func (f *Field) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = PlainField(s)
		return nil
	}
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("field is neither a string nor a share object: %w", err)
	}
	share, ok := obj[shareKey]
	if !ok || len(obj) != 1 {
		return fmt.Errorf("share object must hold exactly one %q key", shareKey)
	}
	*f = SharedField(share)
	return nil
}

// RecordIDFilterKey is the reserved name of the record identifier on the
// wire: the "_id" member of a partial record object, and the filter key that
// selects a record by identifier.
const RecordIDFilterKey = "_id"

// recordIDKey is the wire name of the record identifier inside a partial
// record object.
const recordIDKey = RecordIDFilterKey

// PartialRecord is what one node physically stores for one logical record:
// the record identifier plus, per field, either the plaintext value or the
// share destined for that node.
type PartialRecord struct {
	ID     RecordID
	Fields map[string]Field
}

// FieldNames returns the field names in sorted order.
func (r PartialRecord) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies the record.
func (r PartialRecord) Clone() PartialRecord {
	fields := make(map[string]Field, len(r.Fields))
	for name, f := range r.Fields {
		fields[name] = f
	}
	return PartialRecord{ID: r.ID, Fields: fields}
}

// Equal compares identifier and all fields.
func (r PartialRecord) Equal(other PartialRecord) bool {
	if r.ID != other.ID || len(r.Fields) != len(other.Fields) {
		return false
	}
	for name, f := range r.Fields {
		if of, ok := other.Fields[name]; !ok || !f.Equal(of) {
			return false
		}
	}
	return true
}

// MarshalJSON flattens the record into a single JSON object with the
// identifier under "_id" next to the fields.
func (r PartialRecord) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(r.Fields)+1)
	idRaw, err := json.Marshal(r.ID.String())
	if err != nil {
		return nil, err
	}
	obj[recordIDKey] = idRaw
	for name, f := range r.Fields {
		if name == recordIDKey {
			return nil, fmt.Errorf("field name %q is reserved", recordIDKey)
		}
		raw, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		obj[name] = raw
	}
	return json.Marshal(obj)
}

// UnmarshalJSON parses the flattened wire form.
func (r *PartialRecord) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	idRaw, ok := obj[recordIDKey]
	if !ok {
		return fmt.Errorf("partial record is missing %q", recordIDKey)
	}
	var idStr string
	if err := json.Unmarshal(idRaw, &idStr); err != nil {
		return fmt.Errorf("invalid %q: %w", recordIDKey, err)
	}
	id, err := ParseRecordID(idStr)
	if err != nil {
		return err
	}
	fields := make(map[string]Field, len(obj)-1)
	for name, raw := range obj {
		if name == recordIDKey {
			continue
		}
		var f Field
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = f
	}
	r.ID = id
	r.Fields = fields
	return nil
}

// LogicalRecord is the reconstructed, fully decrypted record as seen by
// callers. All shared fields have been recombined; there is no partially
// decrypted state.
type LogicalRecord struct {
	ID     RecordID
	Fields map[string]string
}

// UnreconstructableRecord reports a record that exists on fewer than N nodes
// and therefore cannot currently be decrypted. It is a recognized state, not
// an error: callers use it to distinguish "missing shares" from "not found".
type UnreconstructableRecord struct {
	ID RecordID

	// NodesPresent lists the node slots (0-based) that returned a partial
	// record for this identifier.
	NodesPresent []int
}

// Filter selects records by exact match on plaintext fields. Shares are not
// searchable, so filtering on a secret-shared field never matches.
type Filter map[string]string
