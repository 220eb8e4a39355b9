package vault

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielantonyxaviour/jedi-vault/api/datahandler"
	"github.com/gabrielantonyxaviour/jedi-vault/auth"
	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
	"github.com/gabrielantonyxaviour/jedi-vault/storage"
)

// lead mirrors the kind of flat entity collections are built for.
type lead struct {
	Name     string `json:"name"`
	Referral string `json:"referral_source"`
	Status   string `json:"status"`
}

var leadSchema = Schema{
	ID:           interfaces.SchemaID("6d55b4d7-8a14-4c2f-9a64-64b0d77e10c1"),
	SecretFields: []string{"name", "referral_source"},
}

// httpCluster runs N real node servers over httptest, with per-node signing
// identity checks, and a client cluster talking to them over HTTP.
type httpCluster struct {
	cluster *Cluster
	servers []*httptest.Server
	stores  []*storage.MemoryStore
}

func newHTTPCluster(t *testing.T, n int) *httpCluster {
	t.Helper()

	orgKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(orgKey)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	tokens, err := auth.NewProvider(keyPEM, "did:jedi:org-acme")
	require.NoError(t, err)

	hc := &httpCluster{}
	nodes := make([]interfaces.Node, n)
	for i := 0; i < n; i++ {
		identity := fmt.Sprintf("did:jedi:node-%d", i)
		verifier, err := auth.NewVerifierForKey(&orgKey.PublicKey, identity)
		require.NoError(t, err)

		store := storage.NewMemoryStore(testLogger())
		router := chi.NewRouter()
		datahandler.NewHandler(store, verifier, testLogger()).RegisterRoutes(router)
		server := httptest.NewServer(router)
		t.Cleanup(server.Close)

		hc.stores = append(hc.stores, store)
		hc.servers = append(hc.servers, server)
		nodes[i] = interfaces.Node{
			ID:       fmt.Sprintf("node-%d", i),
			Endpoint: server.URL,
			Identity: identity,
		}
	}

	cluster, err := Connect(testCodec(t, n), nodes, tokens, http.DefaultClient, WithLogger(testLogger()))
	require.NoError(t, err)
	hc.cluster = cluster
	return hc
}

func TestCollectionRoundTripOverHTTP(t *testing.T) {
	hc := newHTTPCluster(t, 3)
	ctx := context.Background()

	leads, err := NewCollection[lead](hc.cluster, leadSchema)
	require.NoError(t, err)

	alice := lead{Name: "Alice Johnson", Referral: "tech conference", Status: "new"}
	id, err := leads.Create(ctx, alice)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Every node holds the record, but only as one share of each secret
	// field plus the plaintext status.
	for slot, store := range hc.stores {
		rows, err := store.List(ctx, leadSchema.ID, nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, interfaces.FieldShared, rows[0].Fields["name"].Kind())
		assert.NotContains(t, rows[0].Fields["name"].Share(), "Alice", "node %d must not see the name", slot)
		assert.Equal(t, "new", rows[0].Fields["status"].Plain())
	}

	got, err := leads.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice, *got)

	all, err := leads.FindAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, alice, all[0])
}

func TestCollectionReadWithNodeDown(t *testing.T) {
	hc := newHTTPCluster(t, 3)
	ctx := context.Background()

	leads, err := NewCollection[lead](hc.cluster, leadSchema)
	require.NoError(t, err)

	id, err := leads.Create(ctx, lead{Name: "Alice Johnson", Referral: "tech conference", Status: "new"})
	require.NoError(t, err)

	hc.servers[2].Close()

	result, err := leads.Find(ctx, nil)
	require.NoError(t, err, "a node outage degrades the result, it does not fail the find")
	assert.Empty(t, result.Items, "two of three shares must never reconstruct")
	require.Len(t, result.Incomplete, 1)
	assert.Equal(t, id, result.Incomplete[0].ID)
	assert.Equal(t, []int{0, 1}, result.Incomplete[0].NodesPresent)
	require.Contains(t, result.NodeFailures, 2)

	got, err := leads.FindByID(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrUnreconstructable)
	assert.Nil(t, got)
}

func TestCollectionUpdate(t *testing.T) {
	hc := newHTTPCluster(t, 3)
	ctx := context.Background()

	leads, err := NewCollection[lead](hc.cluster, leadSchema)
	require.NoError(t, err)

	id, err := leads.Create(ctx, lead{Name: "Alice Johnson", Referral: "tech conference", Status: "new"})
	require.NoError(t, err)

	updated, err := leads.Update(ctx, id, map[string]string{"status": "qualified", "referral_source": "partner intro"})
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := leads.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice Johnson", got.Name)
	assert.Equal(t, "partner intro", got.Referral)
	assert.Equal(t, "qualified", got.Status)
}

func TestCollectionDeleteIsIdempotent(t *testing.T) {
	hc := newHTTPCluster(t, 3)
	ctx := context.Background()

	leads, err := NewCollection[lead](hc.cluster, leadSchema)
	require.NoError(t, err)

	id, err := leads.Create(ctx, lead{Name: "Alice Johnson", Referral: "tech conference", Status: "new"})
	require.NoError(t, err)

	deleted, err := leads.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = leads.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := leads.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCollectionConcurrentCreates(t *testing.T) {
	hc := newHTTPCluster(t, 3)
	ctx := context.Background()

	leads, err := NewCollection[lead](hc.cluster, leadSchema)
	require.NoError(t, err)

	const writers = 8
	ids := make([]interfaces.RecordID, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := leads.Create(ctx, lead{
				Name:     fmt.Sprintf("Lead %d", i),
				Referral: fmt.Sprintf("campaign-%d", i),
				Status:   "new",
			})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		got, err := leads.FindByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, fmt.Sprintf("Lead %d", i), got.Name)
		assert.Equal(t, fmt.Sprintf("campaign-%d", i), got.Referral)
	}
}
