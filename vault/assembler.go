package vault

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// Assembler correlates the partial records fetched from each node by record
// identifier and reconstructs logical records. Only groups with exactly one
// partial record from every node slot are decrypted; anything less is
// reported as unreconstructable, anything contradictory as an integrity
// failure. Arrival order carries no meaning: share order is tied to node
// slot, never to response order.
type Assembler struct {
	log   *slog.Logger
	codec interfaces.ShareCodec
}

// NewAssembler creates an assembler for the codec's share count.
func NewAssembler(codec interfaces.ShareCodec, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{log: log, codec: codec}
}

// AssembleOutcome is the per-batch result of reconstruction. Record-level
// failures never abort the batch: every group is classified independently.
type AssembleOutcome struct {
	// Records are the fully reconstructed, decrypted records, sorted by
	// identifier.
	Records []interfaces.LogicalRecord

	// Incomplete lists identifiers found on fewer than N nodes.
	Incomplete []interfaces.UnreconstructableRecord

	// RecordFailures holds the *RecordIntegrityError and
	// *ShareIntegrityError of groups that were present on all nodes but
	// contradictory.
	RecordFailures []error
}

// Assemble reconstructs logical records from the per-slot fetch results.
// perSlot must have one entry per node slot, holding the partial records that
// slot's node returned (nil for a node whose fetch failed).
func (a *Assembler) Assemble(perSlot [][]interfaces.PartialRecord) *AssembleOutcome {
	n := a.codec.Shares()
	outcome := &AssembleOutcome{}

	// Group by record identifier, remembering which slot contributed what.
	groups := make(map[interfaces.RecordID][][]interfaces.PartialRecord)
	for slot := 0; slot < n && slot < len(perSlot); slot++ {
		for _, record := range perSlot[slot] {
			group, ok := groups[record.ID]
			if !ok {
				group = make([][]interfaces.PartialRecord, n)
				groups[record.ID] = group
			}
			group[slot] = append(group[slot], record)
		}
	}

	for id, group := range groups {
		record, incomplete, err := a.classify(id, group)
		switch {
		case err != nil:
			a.log.Warn("Record failed reconstruction", slog.String("record_id", id.String()), "err", err)
			outcome.RecordFailures = append(outcome.RecordFailures, err)
		case incomplete != nil:
			outcome.Incomplete = append(outcome.Incomplete, *incomplete)
		default:
			outcome.Records = append(outcome.Records, record)
		}
	}

	sort.Slice(outcome.Records, func(i, j int) bool {
		return outcome.Records[i].ID < outcome.Records[j].ID
	})
	sort.Slice(outcome.Incomplete, func(i, j int) bool {
		return outcome.Incomplete[i].ID < outcome.Incomplete[j].ID
	})

	return outcome
}

// classify decides the fate of one reconstruction group.
func (a *Assembler) classify(id interfaces.RecordID, group [][]interfaces.PartialRecord) (interfaces.LogicalRecord, *interfaces.UnreconstructableRecord, error) {
	var present []int
	for slot, records := range group {
		if len(records) > 1 {
			// Two rows for one identifier at one node: there is no way to
			// tell which copy is authoritative.
			return interfaces.LogicalRecord{}, nil, &interfaces.RecordIntegrityError{
				ID:     id,
				Reason: fmt.Sprintf("%d duplicate rows at node slot %d", len(records), slot),
			}
		}
		if len(records) == 1 {
			present = append(present, slot)
		}
	}

	if len(present) < len(group) {
		return interfaces.LogicalRecord{}, &interfaces.UnreconstructableRecord{ID: id, NodesPresent: present}, nil
	}

	record, err := a.reconstruct(id, group)
	if err != nil {
		return interfaces.LogicalRecord{}, nil, err
	}
	return record, nil, nil
}

// reconstruct decrypts a complete group: one partial record per node slot.
func (a *Assembler) reconstruct(id interfaces.RecordID, group [][]interfaces.PartialRecord) (interfaces.LogicalRecord, error) {
	n := len(group)
	first := group[0][0]
	names := first.FieldNames()

	for slot := 1; slot < n; slot++ {
		if len(group[slot][0].Fields) != len(first.Fields) {
			return interfaces.LogicalRecord{}, &interfaces.RecordIntegrityError{
				ID:     id,
				Reason: fmt.Sprintf("node slots 0 and %d disagree on the field set", slot),
			}
		}
	}

	fields := make(map[string]string, len(names))
	for _, name := range names {
		kind := first.Fields[name].Kind()
		for slot := 1; slot < n; slot++ {
			field, ok := group[slot][0].Fields[name]
			if !ok {
				return interfaces.LogicalRecord{}, &interfaces.RecordIntegrityError{
					ID:     id,
					Reason: fmt.Sprintf("field %q missing at node slot %d", name, slot),
				}
			}
			if field.Kind() != kind {
				return interfaces.LogicalRecord{}, &interfaces.RecordIntegrityError{
					ID:     id,
					Reason: fmt.Sprintf("field %q is a share on some nodes and plaintext on others", name),
				}
			}
		}

		if kind == interfaces.FieldShared {
			shares := make([]string, n)
			for slot := 0; slot < n; slot++ {
				shares[slot] = group[slot][0].Fields[name].Share()
			}
			value, err := a.codec.DecryptField(shares)
			if err != nil {
				return interfaces.LogicalRecord{}, fmt.Errorf("record %s: field %q: %w", id, name, err)
			}
			fields[name] = value
			continue
		}

		// Plaintext fields are stored redundantly; all copies must agree.
		value := first.Fields[name].Plain()
		for slot := 1; slot < n; slot++ {
			if got := group[slot][0].Fields[name].Plain(); got != value {
				return interfaces.LogicalRecord{}, &interfaces.RecordIntegrityError{
					ID:     id,
					Reason: fmt.Sprintf("plaintext field %q disagrees across nodes", name),
				}
			}
		}
		fields[name] = value
	}

	return interfaces.LogicalRecord{ID: id, Fields: fields}, nil
}
