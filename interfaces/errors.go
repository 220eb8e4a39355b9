package interfaces

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrRecordNotFound is returned when no node holds a record for the
	// requested identifier.
	ErrRecordNotFound = errors.New("record not found")

	// ErrSchemaUnknown is returned when a node does not know the requested
	// schema partition.
	ErrSchemaUnknown = errors.New("unknown schema")

	// ErrUnreconstructable marks a record that exists on fewer than N nodes.
	// Errors carrying it wrap an UnreconstructableRecord.
	ErrUnreconstructable = errors.New("record is missing shares and cannot be reconstructed")
)

// NodeError reports the failure of a single node round trip: network error,
// non-2xx response or malformed payload. It is recoverable locally; the
// caller may retry just this node.
type NodeError struct {
	Node      Node
	Operation string
	// StatusCode is the HTTP status, or 0 if the request never completed.
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("node %s: %s returned %d: %v", e.Node.ID, e.Operation, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("node %s: %s failed: %v", e.Node.ID, e.Operation, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *NodeError) Unwrap() error { return e.Cause }

// ShareIntegrityError reports a decrypt attempt with the wrong share count or
// shares that do not originate from the same encrypt call. It is always fatal
// for the affected record; a value is never partially decrypted.
type ShareIntegrityError struct {
	Reason string
	// Got and Want describe the share count when the count is the problem.
	Got, Want int
}

// Error implements the error interface.
func (e *ShareIntegrityError) Error() string {
	if e.Want != 0 {
		return fmt.Sprintf("share integrity: %s (got %d shares, want %d)", e.Reason, e.Got, e.Want)
	}
	return "share integrity: " + e.Reason
}

// RecordIntegrityError reports contradictory partial records for one
// identifier: duplicate rows at one node, plaintext fields that disagree
// across nodes, or a field stored as a share on one node and plaintext on
// another. Fatal for the record, but must not abort the rest of the batch.
type RecordIntegrityError struct {
	ID     RecordID
	Reason string
}

// Error implements the error interface.
func (e *RecordIntegrityError) Error() string {
	return fmt.Sprintf("record %s: integrity violation: %s", e.ID, e.Reason)
}

// UnreconstructableError wraps an UnreconstructableRecord for call sites that
// need an error value, such as a by-id lookup. errors.Is matches it against
// ErrUnreconstructable.
type UnreconstructableError struct {
	Record UnreconstructableRecord
}

// Error implements the error interface.
func (e *UnreconstructableError) Error() string {
	return fmt.Sprintf("record %s: %v (shares present on node slots %v)",
		e.Record.ID, ErrUnreconstructable, e.Record.NodesPresent)
}

// Unwrap matches ErrUnreconstructable.
func (e *UnreconstructableError) Unwrap() error { return ErrUnreconstructable }

// QuorumWriteError reports a write that fewer than N nodes acknowledged. The
// record is not durably stored even though some nodes succeeded; the caller
// decides between retrying the failed subset and deleting the succeeded one.
type QuorumWriteError struct {
	ID RecordID

	// Succeeded and Failed hold 0-based node slots.
	Succeeded []int
	Failed    []int

	// Errors maps each failed slot to its NodeError.
	Errors map[int]error
}

// Error implements the error interface.
func (e *QuorumWriteError) Error() string {
	slots := append([]int(nil), e.Failed...)
	sort.Ints(slots)
	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		parts = append(parts, fmt.Sprintf("slot %d: %v", slot, e.Errors[slot]))
	}
	return fmt.Sprintf("record %s: write acknowledged by %d/%d nodes: %s",
		e.ID, len(e.Succeeded), len(e.Succeeded)+len(e.Failed), strings.Join(parts, "; "))
}
