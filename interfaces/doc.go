// Package interfaces defines the core types and interfaces of the
// secret-sharing data store, separating contracts from implementations.
//
// # Data Model
//
// A logical record is split field by field into N shares, one per storage
// node. What a single node stores is a PartialRecord: the client-chosen
// RecordID plus, per field, either a plaintext value or that node's share
// (Field, a tagged variant). LogicalRecord is the reconstructed, fully
// decrypted view returned to callers; UnreconstructableRecord reports a
// record present on fewer than N nodes.
//
// # Component Interfaces
//
// ShareCodec: splits a field value into exactly N shares and recombines them,
// refusing anything but a complete, matching share set.
//
// TokenProvider: issues short-lived access tokens audience-bound to a single
// node identity.
//
// NodeBackend: the four single-node operations (create, read, update,
// delete), each one network round trip, failures typed as NodeError.
//
// # Error Taxonomy
//
// NodeError is locally recoverable; ShareIntegrityError and
// RecordIntegrityError are fatal per record but never abort a batch;
// QuorumWriteError reports a write short of all-N acknowledgement;
// ErrUnreconstructable distinguishes missing shares from absence.
package interfaces
