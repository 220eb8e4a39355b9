package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gabrielantonyxaviour/jedi-vault/cryptoutils"
	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
	"github.com/gabrielantonyxaviour/jedi-vault/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCodec(t *testing.T, n int) interfaces.ShareCodec {
	t.Helper()
	keys, err := cryptoutils.NewClusterKeyProvider([]byte("organization-secret-0123456789"), []byte("vault-tests"))
	require.NoError(t, err)
	codec, err := cryptoutils.NewShamirCodec(keys, n)
	require.NoError(t, err)
	return codec
}

// fakeNode is an in-process NodeBackend over a memory store, with switches
// to fail or hang individual nodes.
type fakeNode struct {
	node  interfaces.Node
	store *storage.MemoryStore

	mu sync.Mutex
	// failing makes every call return a NodeError immediately.
	failing bool
	// hanging makes every call block until its context expires.
	hanging bool
}

func newFakeNode(slot int) *fakeNode {
	return &fakeNode{
		node: interfaces.Node{
			ID:       fmt.Sprintf("node-%d", slot),
			Endpoint: fmt.Sprintf("http://node-%d.test:0", slot),
			Identity: fmt.Sprintf("did:jedi:node-%d", slot),
		},
		store: storage.NewMemoryStore(testLogger()),
	}
}

func (f *fakeNode) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakeNode) setHanging(hanging bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hanging = hanging
}

// gate simulates the node's availability before any call touches the store.
func (f *fakeNode) gate(ctx context.Context, operation string) error {
	f.mu.Lock()
	failing, hanging := f.failing, f.hanging
	f.mu.Unlock()

	if failing {
		return &interfaces.NodeError{Node: f.node, Operation: operation, Cause: errors.New("connection refused")}
	}
	if hanging {
		<-ctx.Done()
		return &interfaces.NodeError{Node: f.node, Operation: operation, Cause: ctx.Err()}
	}
	return nil
}

func (f *fakeNode) Node() interfaces.Node { return f.node }

func (f *fakeNode) Create(ctx context.Context, schema interfaces.SchemaID, records []interfaces.PartialRecord) ([]interfaces.RecordID, error) {
	if err := f.gate(ctx, "create"); err != nil {
		return nil, err
	}
	ids := make([]interfaces.RecordID, 0, len(records))
	for _, record := range records {
		if err := f.store.Insert(ctx, schema, record); err != nil {
			return nil, &interfaces.NodeError{Node: f.node, Operation: "create", Cause: err}
		}
		ids = append(ids, record.ID)
	}
	return ids, nil
}

func (f *fakeNode) Read(ctx context.Context, schema interfaces.SchemaID, filter interfaces.Filter) ([]interfaces.PartialRecord, error) {
	if err := f.gate(ctx, "read"); err != nil {
		return nil, err
	}
	return f.store.List(ctx, schema, filter)
}

func (f *fakeNode) Update(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID, patch map[string]interfaces.Field) (bool, error) {
	if err := f.gate(ctx, "update"); err != nil {
		return false, err
	}
	return f.store.Update(ctx, schema, id, patch)
}

func (f *fakeNode) Delete(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID) (bool, error) {
	if err := f.gate(ctx, "delete"); err != nil {
		return false, err
	}
	return f.store.Delete(ctx, schema, id)
}

// testFixture wires a codec, three fake nodes and a cluster.
type testFixture struct {
	codec   interfaces.ShareCodec
	nodes   []*fakeNode
	cluster *Cluster
}

func newTestFixture(t *testing.T, n int, opts ...ClusterOption) *testFixture {
	t.Helper()

	codec := testCodec(t, n)
	fakes := make([]*fakeNode, n)
	backends := make([]interfaces.NodeBackend, n)
	for i := range fakes {
		fakes[i] = newFakeNode(i)
		backends[i] = fakes[i]
	}

	opts = append([]ClusterOption{WithLogger(testLogger())}, opts...)
	cluster, err := NewCluster(codec, backends, opts...)
	require.NoError(t, err)

	return &testFixture{codec: codec, nodes: fakes, cluster: cluster}
}
