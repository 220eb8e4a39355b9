package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
	"github.com/gabrielantonyxaviour/jedi-vault/metrics"
)

// Reader fans a filtered read out to every node in parallel and hands the
// union of partial records to the assembler. Node fetches run under
// independent deadlines: a dead node costs only the records that needed its
// shares, never the whole call.
type Reader struct {
	log       *slog.Logger
	nodes     []interfaces.NodeBackend
	assembler *Assembler
	timeout   time.Duration
}

// NewReader creates a reader over the node set. The node count must equal
// the codec's share count.
func NewReader(codec interfaces.ShareCodec, nodes []interfaces.NodeBackend, timeout time.Duration, log *slog.Logger) (*Reader, error) {
	if len(nodes) != codec.Shares() {
		return nil, fmt.Errorf("node count %d does not match share count %d", len(nodes), codec.Shares())
	}
	if timeout <= 0 {
		timeout = DefaultNodeTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reader{
		log:       log,
		nodes:     nodes,
		assembler: NewAssembler(codec, log),
		timeout:   timeout,
	}, nil
}

// ReadResult is the outcome of one fan-out read. Callers always receive
// either fully reconstructed records, explicit incomplete markers, or typed
// failures -- never a partially decrypted value.
type ReadResult struct {
	// Records are the fully reconstructed records, sorted by identifier.
	Records []interfaces.LogicalRecord

	// Incomplete lists records that exist but are missing shares. When a
	// node fetch failed, everything that needed that node lands here.
	Incomplete []interfaces.UnreconstructableRecord

	// NodeFailures maps node slots whose fetch failed to their *NodeError.
	NodeFailures map[int]error

	// RecordFailures holds per-record integrity errors.
	RecordFailures []error
}

// Read fetches matching partial records from all nodes in parallel and
// reconstructs what is complete. It fails as a whole only when the caller's
// context is cancelled; individual node failures degrade the result instead.
func (r *Reader) Read(ctx context.Context, schema interfaces.SchemaID, filter interfaces.Filter) (*ReadResult, error) {
	perSlot, errs := fanout(ctx, r.nodes, r.timeout,
		func(ctx context.Context, slot int, node interfaces.NodeBackend) ([]interfaces.PartialRecord, error) {
			return node.Read(ctx, schema, filter)
		})

	if err := ctx.Err(); err != nil {
		metrics.FanoutOperations.WithLabelValues("read", "error").Inc()
		return nil, err
	}

	result := &ReadResult{NodeFailures: make(map[int]error)}
	for slot, err := range errs {
		if err != nil {
			r.log.Warn("Node read failed",
				slog.String("schema", schema.String()),
				slog.Int("node_slot", slot),
				"err", err)
			result.NodeFailures[slot] = err
			perSlot[slot] = nil
		}
	}

	outcome := r.assembler.Assemble(perSlot)
	result.Records = outcome.Records
	result.Incomplete = outcome.Incomplete
	result.RecordFailures = outcome.RecordFailures

	if len(result.Incomplete) > 0 {
		metrics.UnreconstructableRecords.Add(float64(len(result.Incomplete)))
	}
	if len(result.NodeFailures) > 0 {
		metrics.FanoutOperations.WithLabelValues("read", "degraded").Inc()
	} else {
		metrics.FanoutOperations.WithLabelValues("read", "ok").Inc()
	}

	return result, nil
}
