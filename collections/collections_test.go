package collections

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielantonyxaviour/jedi-vault/api/datahandler"
	"github.com/gabrielantonyxaviour/jedi-vault/auth"
	"github.com/gabrielantonyxaviour/jedi-vault/cryptoutils"
	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
	"github.com/gabrielantonyxaviour/jedi-vault/registry"
	"github.com/gabrielantonyxaviour/jedi-vault/storage"
	"github.com/gabrielantonyxaviour/jedi-vault/vault"
)

func testRegistry(t *testing.T, nodes []interfaces.Node) *registry.NodeRegistry {
	t.Helper()
	reg, err := registry.NewNodeRegistry(&registry.Config{
		Org: registry.OrgConfig{
			Identity:          "did:jedi:org-acme",
			SigningKeyFile:    "unused.pem",
			ClusterSecretFile: "unused.secret",
			ClusterSalt:       "collections-test",
		},
		Nodes: nodes,
		Collections: map[string]interfaces.SchemaID{
			NameLeads:             "6d55b4d7-8a14-4c2f-9a64-64b0d77e10c1",
			NameSocialCredentials: "0b9f2f77-2f25-44c0-8a1f-d54be06c1d49",
		},
	})
	require.NoError(t, err)
	return reg
}

func startCluster(t *testing.T) (*vault.Cluster, *registry.NodeRegistry) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	orgKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(orgKey)
	require.NoError(t, err)
	tokens, err := auth.NewProvider(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), "did:jedi:org-acme")
	require.NoError(t, err)

	nodes := make([]interfaces.Node, 3)
	for i := range nodes {
		identity := fmt.Sprintf("did:jedi:node-%d", i)
		verifier, err := auth.NewVerifierForKey(&orgKey.PublicKey, identity)
		require.NoError(t, err)

		router := chi.NewRouter()
		datahandler.NewHandler(storage.NewMemoryStore(log), verifier, log).RegisterRoutes(router)
		server := httptest.NewServer(router)
		t.Cleanup(server.Close)

		nodes[i] = interfaces.Node{ID: fmt.Sprintf("node-%d", i), Endpoint: server.URL, Identity: identity}
	}

	keys, err := cryptoutils.NewClusterKeyProvider([]byte("organization-secret-0123456789"), []byte("collections-test"))
	require.NoError(t, err)
	codec, err := cryptoutils.NewShamirCodec(keys, len(nodes))
	require.NoError(t, err)

	cluster, err := vault.Connect(codec, nodes, tokens, http.DefaultClient, vault.WithLogger(log))
	require.NoError(t, err)
	return cluster, testRegistry(t, nodes)
}

func TestOpenLeadsRoundTrip(t *testing.T) {
	cluster, reg := startCluster(t)
	ctx := context.Background()

	leads, err := OpenLeads(cluster, reg)
	require.NoError(t, err)

	id, err := leads.Create(ctx, Lead{
		Name:           "Alice Johnson",
		Email:          "alice@example.com",
		Company:        "Acme",
		ReferralSource: "tech conference",
		Status:         "new",
	})
	require.NoError(t, err)

	got, err := leads.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice Johnson", got.Name)
	assert.Equal(t, "tech conference", got.ReferralSource)

	qualified, err := leads.FindAll(ctx, interfaces.Filter{"status": "new"})
	require.NoError(t, err)
	assert.Len(t, qualified, 1)
}

func TestOpenSocialCredentialsKeepsTokenShared(t *testing.T) {
	cluster, reg := startCluster(t)
	ctx := context.Background()

	creds, err := OpenSocialCredentials(cluster, reg)
	require.NoError(t, err)

	id, err := creds.Create(ctx, SocialCredential{
		Platform:    "twitter",
		Handle:      "@acme",
		AccessToken: "tok-secret-123",
	})
	require.NoError(t, err)

	got, err := creds.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok-secret-123", got.AccessToken)

	// The token is shared, so it must not be usable as a filter value.
	matches, err := creds.FindAll(ctx, interfaces.Filter{"access_token": "tok-secret-123"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestOpenUnknownCollection(t *testing.T) {
	cluster, reg := startCluster(t)

	_, err := OpenAgentLogs(cluster, reg)
	assert.ErrorIs(t, err, interfaces.ErrSchemaUnknown)
}

func TestSecretFields(t *testing.T) {
	fields, err := SecretFields(NameGrantMilestones)
	require.NoError(t, err)
	assert.Equal(t, []string{"payout_wallet"}, fields)

	_, err = SecretFields("invoices")
	assert.Error(t, err)
}
