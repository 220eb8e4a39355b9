package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
	"github.com/gabrielantonyxaviour/jedi-vault/metrics"
)

// Writer fans logical records out into per-node partial records. A write is
// durable only when every node acknowledged it, because reconstruction needs
// every node's share.
type Writer struct {
	log     *slog.Logger
	codec   interfaces.ShareCodec
	nodes   []interfaces.NodeBackend
	timeout time.Duration
}

// NewWriter creates a writer over the node set. The node count must equal the
// codec's share count: share i always lands on node slot i.
func NewWriter(codec interfaces.ShareCodec, nodes []interfaces.NodeBackend, timeout time.Duration, log *slog.Logger) (*Writer, error) {
	if len(nodes) != codec.Shares() {
		return nil, fmt.Errorf("node count %d does not match share count %d", len(nodes), codec.Shares())
	}
	if timeout <= 0 {
		timeout = DefaultNodeTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{log: log, codec: codec, nodes: nodes, timeout: timeout}, nil
}

// WriteReport describes the per-node outcome of one write. When some nodes
// failed, the report retains the exact partial records of the original split,
// so Retry re-sends the same shares instead of re-encrypting -- shares from
// two encrypt calls never mix.
type WriteReport struct {
	ID interfaces.RecordID

	// Succeeded and Failed hold 0-based node slots.
	Succeeded []int
	Failed    []int

	// Errors maps each failed slot to its error.
	Errors map[int]error

	partials []interfaces.PartialRecord
}

// Complete reports whether every node acknowledged.
func (r *WriteReport) Complete() bool { return len(r.Failed) == 0 }

// Write splits the record's secret fields into shares, writes one partial
// record to each node in parallel, and requires all-N acknowledgement. On
// partial failure it returns the report together with a *QuorumWriteError;
// the caller may Retry the failed subset.
func (w *Writer) Write(ctx context.Context, schema interfaces.SchemaID, record interfaces.LogicalRecord, secret map[string]bool) (*WriteReport, error) {
	partials, err := w.split(record, secret)
	if err != nil {
		metrics.FanoutOperations.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	report := &WriteReport{ID: record.ID, Errors: make(map[int]error), partials: partials}
	w.writeSlots(ctx, schema, report, allSlots(len(w.nodes)))
	return report, w.outcome("create", report)
}

// Retry re-sends the previously failed slots of an incomplete write, using
// the partial records retained from the original split. Identifiers are
// client-chosen and node creates are idempotent, so retrying is safe even if
// a node acknowledged late.
func (w *Writer) Retry(ctx context.Context, schema interfaces.SchemaID, report *WriteReport) (*WriteReport, error) {
	if report.Complete() {
		return report, nil
	}
	if len(report.partials) != len(w.nodes) {
		return nil, fmt.Errorf("record %s: write report does not carry the original partial records", report.ID)
	}

	retry := &WriteReport{
		ID:        report.ID,
		Succeeded: append([]int(nil), report.Succeeded...),
		Errors:    make(map[int]error),
		partials:  report.partials,
	}
	w.writeSlots(ctx, schema, retry, report.Failed)
	return retry, w.outcome("create_retry", retry)
}

// Update re-shares just the named fields and patches all nodes in parallel.
// Like Write, it requires all-N acknowledgement. The boolean reports whether
// every node knew the record.
func (w *Writer) Update(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID, fields map[string]string, secret map[string]bool) (bool, error) {
	patches, err := w.splitPatch(fields, secret)
	if err != nil {
		metrics.FanoutOperations.WithLabelValues("update", "error").Inc()
		return false, err
	}

	updated, errs := fanout(ctx, w.nodes, w.timeout,
		func(ctx context.Context, slot int, node interfaces.NodeBackend) (bool, error) {
			return node.Update(ctx, schema, id, patches[slot])
		})

	report := &WriteReport{ID: id, Errors: make(map[int]error)}
	w.collect(report, allSlots(len(w.nodes)), errs)
	if err := w.outcome("update", report); err != nil {
		return false, err
	}

	all := true
	for slot, ok := range updated {
		if !ok {
			w.log.Warn("Record missing during update",
				slog.String("record_id", id.String()),
				slog.Int("node_slot", slot))
			all = false
		}
	}
	return all, nil
}

// Delete removes the record from every node in parallel. Deleting an already
// deleted record succeeds with false. The boolean reports whether any node
// still held the record.
func (w *Writer) Delete(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID) (bool, error) {
	deleted, errs := fanout(ctx, w.nodes, w.timeout,
		func(ctx context.Context, slot int, node interfaces.NodeBackend) (bool, error) {
			return node.Delete(ctx, schema, id)
		})

	report := &WriteReport{ID: id, Errors: make(map[int]error)}
	w.collect(report, allSlots(len(w.nodes)), errs)
	if err := w.outcome("delete", report); err != nil {
		return false, err
	}

	for _, ok := range deleted {
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// split turns one logical record into N partial records: secret fields via
// the codec (slot i gets share i), everything else stored verbatim on every
// node.
func (w *Writer) split(record interfaces.LogicalRecord, secret map[string]bool) ([]interfaces.PartialRecord, error) {
	n := len(w.nodes)
	partials := make([]interfaces.PartialRecord, n)
	for i := range partials {
		partials[i] = interfaces.PartialRecord{ID: record.ID, Fields: make(map[string]interfaces.Field, len(record.Fields))}
	}

	for name, value := range record.Fields {
		if secret[name] {
			shares, err := w.codec.EncryptField(value)
			if err != nil {
				return nil, fmt.Errorf("failed to share field %q: %w", name, err)
			}
			for i := range partials {
				partials[i].Fields[name] = interfaces.SharedField(shares[i])
			}
		} else {
			for i := range partials {
				partials[i].Fields[name] = interfaces.PlainField(value)
			}
		}
	}
	return partials, nil
}

func (w *Writer) splitPatch(fields map[string]string, secret map[string]bool) ([]map[string]interfaces.Field, error) {
	n := len(w.nodes)
	patches := make([]map[string]interfaces.Field, n)
	for i := range patches {
		patches[i] = make(map[string]interfaces.Field, len(fields))
	}

	for name, value := range fields {
		if secret[name] {
			shares, err := w.codec.EncryptField(value)
			if err != nil {
				return nil, fmt.Errorf("failed to share field %q: %w", name, err)
			}
			for i := range patches {
				patches[i][name] = interfaces.SharedField(shares[i])
			}
		} else {
			for i := range patches {
				patches[i][name] = interfaces.PlainField(value)
			}
		}
	}
	return patches, nil
}

// writeSlots sends the record's partials to the given slots in parallel and
// folds the outcomes into the report.
func (w *Writer) writeSlots(ctx context.Context, schema interfaces.SchemaID, report *WriteReport, slots []int) {
	targets := make([]interfaces.NodeBackend, len(slots))
	for i, slot := range slots {
		targets[i] = w.nodes[slot]
	}

	_, errs := fanout(ctx, targets, w.timeout,
		func(ctx context.Context, i int, node interfaces.NodeBackend) (struct{}, error) {
			_, err := node.Create(ctx, schema, []interfaces.PartialRecord{report.partials[slots[i]]})
			return struct{}{}, err
		})

	w.collect(report, slots, errs)
}

// collect sorts slot outcomes into the report.
func (w *Writer) collect(report *WriteReport, slots []int, errs []error) {
	for i, slot := range slots {
		if errs[i] != nil {
			report.Failed = append(report.Failed, slot)
			report.Errors[slot] = errs[i]
			w.log.Warn("Node write failed",
				slog.String("record_id", report.ID.String()),
				slog.Int("node_slot", slot),
				"err", errs[i])
		} else {
			report.Succeeded = append(report.Succeeded, slot)
		}
	}
}

// outcome converts an incomplete report into a *QuorumWriteError.
func (w *Writer) outcome(operation string, report *WriteReport) error {
	if report.Complete() {
		metrics.FanoutOperations.WithLabelValues(operation, "ok").Inc()
		return nil
	}
	metrics.FanoutOperations.WithLabelValues(operation, "quorum_failure").Inc()
	return &interfaces.QuorumWriteError{
		ID:        report.ID,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Errors:    report.Errors,
	}
}

func allSlots(n int) []int {
	slots := make([]int, n)
	for i := range slots {
		slots[i] = i
	}
	return slots
}
