package interfaces

import "context"

// ShareCodec turns a plaintext field value into exactly N shares, one per
// node slot, and N shares back into the value. Share i must always be routed
// to node slot i. Decrypt fails with a ShareIntegrityError on the wrong share
// count or on shares drawn from different encrypt calls; it never returns
// garbage silently.
type ShareCodec interface {
	// Shares returns N, the fixed number of shares per field.
	Shares() int

	// EncryptField splits value into exactly Shares() shares.
	EncryptField(value string) ([]string, error)

	// DecryptField recombines exactly Shares() shares into the value.
	DecryptField(shares []string) (string, error)
}

// TokenProvider issues a short-lived signed access token scoped to a single
// node identity as audience. Tokens are never shared across nodes. An
// implementation may cache per node, but must refresh strictly before expiry.
type TokenProvider interface {
	TokenFor(node Node) (string, error)
}

// NodeBackend performs single round-trip operations against one storage node.
// There are no retries at this layer; retry policy belongs to the fan-out
// callers, which know the quorum requirements. All failures surface as a
// typed *NodeError.
type NodeBackend interface {
	// Node returns the descriptor of the node this backend talks to.
	Node() Node

	// Create stores partial records, keyed by their client-chosen
	// identifiers. Re-creating an identical record is a no-op success, which
	// makes per-node write retries idempotent.
	Create(ctx context.Context, schema SchemaID, records []PartialRecord) ([]RecordID, error)

	// Read returns all partial records matching the filter.
	Read(ctx context.Context, schema SchemaID, filter Filter) ([]PartialRecord, error)

	// Update patches the named fields of one record. It reports whether the
	// record existed.
	Update(ctx context.Context, schema SchemaID, id RecordID, patch map[string]Field) (bool, error)

	// Delete removes one record. Deleting an absent record is not an error;
	// the boolean reports whether anything was removed.
	Delete(ctx context.Context, schema SchemaID, id RecordID) (bool, error)
}
