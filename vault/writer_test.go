package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

const testSchema = interfaces.SchemaID("9cdbd5af-ee29-4f3d-81b7-3e0e917da2e4")

func TestWriterStoresOneShapedRecordPerNode(t *testing.T) {
	fixture := newTestFixture(t, 3)
	ctx := context.Background()

	record := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"name": "Alice Johnson", "status": "active"},
	}

	report, err := fixture.cluster.Writer().Write(ctx, testSchema, record, map[string]bool{"name": true})
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, []int{0, 1, 2}, report.Succeeded)

	stored := make([]interfaces.PartialRecord, 3)
	for slot, node := range fixture.nodes {
		rows, err := node.store.List(ctx, testSchema, nil)
		require.NoError(t, err)
		require.Len(t, rows, 1, "every node must hold exactly one partial record")
		stored[slot] = rows[0]
	}

	for slot, row := range stored {
		assert.Equal(t, record.ID, row.ID)
		require.Equal(t, interfaces.FieldShared, row.Fields["name"].Kind())
		assert.NotEqual(t, "Alice Johnson", row.Fields["name"].Share(), "node %d must never see the plaintext", slot)
		require.Equal(t, interfaces.FieldPlain, row.Fields["status"].Kind())
		assert.Equal(t, "active", row.Fields["status"].Plain())
	}
	assert.NotEqual(t, stored[0].Fields["name"], stored[1].Fields["name"], "shares must differ per node")
	assert.NotEqual(t, stored[1].Fields["name"], stored[2].Fields["name"], "shares must differ per node")
}

func TestWriterReportsQuorumFailure(t *testing.T) {
	fixture := newTestFixture(t, 3)
	ctx := context.Background()
	fixture.nodes[2].setFailing(true)

	record := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"ssn": "123-45-6789"},
	}

	report, err := fixture.cluster.Writer().Write(ctx, testSchema, record, map[string]bool{"ssn": true})

	var quorumErr *interfaces.QuorumWriteError
	require.ErrorAs(t, err, &quorumErr)
	assert.Equal(t, record.ID, quorumErr.ID)
	assert.Equal(t, []int{2}, quorumErr.Failed)
	assert.False(t, report.Complete())
	assert.Equal(t, []int{0, 1}, report.Succeeded)

	// The incomplete write must never pass for a stored record.
	result, err := fixture.cluster.Reader().Read(ctx, testSchema, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	require.Len(t, result.Incomplete, 1)
	assert.Equal(t, record.ID, result.Incomplete[0].ID)
	assert.Equal(t, []int{0, 1}, result.Incomplete[0].NodesPresent)
}

func TestWriterRetryResendsOriginalShares(t *testing.T) {
	fixture := newTestFixture(t, 3)
	ctx := context.Background()
	fixture.nodes[1].setFailing(true)

	record := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"ssn": "123-45-6789", "status": "active"},
	}
	secret := map[string]bool{"ssn": true}

	report, err := fixture.cluster.Writer().Write(ctx, testSchema, record, secret)
	require.Error(t, err)
	require.Equal(t, []int{1}, report.Failed)

	fixture.nodes[1].setFailing(false)

	retried, err := fixture.cluster.Writer().Retry(ctx, testSchema, report)
	require.NoError(t, err)
	assert.True(t, retried.Complete())

	// The retried share must compose with the shares the first attempt left
	// on the other nodes. Only re-sending the original split guarantees that.
	result, err := fixture.cluster.Reader().Read(ctx, testSchema, nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "123-45-6789", result.Records[0].Fields["ssn"])
	assert.Equal(t, "active", result.Records[0].Fields["status"])
}

func TestWriterRetryOnCompleteReportIsNoOp(t *testing.T) {
	fixture := newTestFixture(t, 3)
	ctx := context.Background()

	record := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"name": "Alice Johnson"},
	}
	report, err := fixture.cluster.Writer().Write(ctx, testSchema, record, nil)
	require.NoError(t, err)

	retried, err := fixture.cluster.Writer().Retry(ctx, testSchema, report)
	require.NoError(t, err)
	assert.Same(t, report, retried)
}

func TestWriterUpdateResharesNamedFields(t *testing.T) {
	fixture := newTestFixture(t, 3)
	ctx := context.Background()

	record := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"email": "alice@example.com", "status": "new"},
	}
	secret := map[string]bool{"email": true}

	_, err := fixture.cluster.Writer().Write(ctx, testSchema, record, secret)
	require.NoError(t, err)

	updated, err := fixture.cluster.Writer().Update(ctx, testSchema, record.ID,
		map[string]string{"email": "alice@acme.example", "status": "qualified"}, secret)
	require.NoError(t, err)
	assert.True(t, updated)

	result, err := fixture.cluster.Reader().Read(ctx, testSchema, nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "alice@acme.example", result.Records[0].Fields["email"])
	assert.Equal(t, "qualified", result.Records[0].Fields["status"])
}

func TestWriterUpdateUnknownRecord(t *testing.T) {
	fixture := newTestFixture(t, 3)

	updated, err := fixture.cluster.Writer().Update(context.Background(), testSchema,
		interfaces.NewRecordID(), map[string]string{"status": "lost"}, nil)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestWriterDeleteIsIdempotent(t *testing.T) {
	fixture := newTestFixture(t, 3)
	ctx := context.Background()

	record := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"name": "Alice Johnson"},
	}
	_, err := fixture.cluster.Writer().Write(ctx, testSchema, record, map[string]bool{"name": true})
	require.NoError(t, err)

	deleted, err := fixture.cluster.Writer().Delete(ctx, testSchema, record.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = fixture.cluster.Writer().Delete(ctx, testSchema, record.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "deleting an absent record must succeed quietly")

	result, err := fixture.cluster.Reader().Read(ctx, testSchema, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Incomplete)
}
