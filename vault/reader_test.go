package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

func TestReaderDegradesOnDeadNode(t *testing.T) {
	fixture := newTestFixture(t, 3)
	ctx := context.Background()

	record := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"ssn": "123-45-6789"},
	}
	_, err := fixture.cluster.Writer().Write(ctx, testSchema, record, map[string]bool{"ssn": true})
	require.NoError(t, err)

	fixture.nodes[1].setFailing(true)

	result, err := fixture.cluster.Reader().Read(ctx, testSchema, nil)
	require.NoError(t, err, "a dead node degrades the result, it does not fail the read")

	assert.Empty(t, result.Records)
	require.Len(t, result.Incomplete, 1)
	assert.Equal(t, record.ID, result.Incomplete[0].ID)
	assert.Equal(t, []int{0, 2}, result.Incomplete[0].NodesPresent)
	require.Contains(t, result.NodeFailures, 1)

	var nodeErr *interfaces.NodeError
	require.ErrorAs(t, result.NodeFailures[1], &nodeErr)
	assert.Equal(t, "node-1", nodeErr.Node.ID)
}

func TestReaderBoundsSlowNode(t *testing.T) {
	fixture := newTestFixture(t, 3, WithNodeTimeout(100*time.Millisecond))
	ctx := context.Background()

	record := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"name": "Alice Johnson", "status": "active"},
	}
	_, err := fixture.cluster.Writer().Write(ctx, testSchema, record, map[string]bool{"name": true})
	require.NoError(t, err)

	fixture.nodes[2].setHanging(true)

	start := time.Now()
	result, err := fixture.cluster.Reader().Read(ctx, testSchema, nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second, "a hanging node must not stall the read past its deadline")
	require.Contains(t, result.NodeFailures, 2)
	assert.ErrorIs(t, result.NodeFailures[2], context.DeadlineExceeded)
	require.Len(t, result.Incomplete, 1)
	assert.Equal(t, []int{0, 1}, result.Incomplete[0].NodesPresent)
}

func TestReaderFailsOnCancelledContext(t *testing.T) {
	fixture := newTestFixture(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := fixture.cluster.Reader().Read(ctx, testSchema, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestReaderFiltersOnPlaintextFields(t *testing.T) {
	fixture := newTestFixture(t, 3)
	ctx := context.Background()
	writer := fixture.cluster.Writer()
	secret := map[string]bool{"email": true}

	active := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"email": "alice@example.com", "status": "active"},
	}
	churned := interfaces.LogicalRecord{
		ID:     interfaces.NewRecordID(),
		Fields: map[string]string{"email": "bob@example.com", "status": "churned"},
	}
	for _, record := range []interfaces.LogicalRecord{active, churned} {
		_, err := writer.Write(ctx, testSchema, record, secret)
		require.NoError(t, err)
	}

	result, err := fixture.cluster.Reader().Read(ctx, testSchema, interfaces.Filter{"status": "active"})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, active.ID, result.Records[0].ID)
	assert.Equal(t, "alice@example.com", result.Records[0].Fields["email"])

	byID, err := fixture.cluster.Reader().Read(ctx, testSchema,
		interfaces.Filter{interfaces.RecordIDFilterKey: churned.ID.String()})
	require.NoError(t, err)
	require.Len(t, byID.Records, 1)
	assert.Equal(t, churned.ID, byID.Records[0].ID)
}
