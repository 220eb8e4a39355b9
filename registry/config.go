package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// OrgConfig identifies the organization that owns the cluster's data: the
// identity used as JWT issuer, the ES256 signing key and the secret the
// cluster key is derived from.
type OrgConfig struct {
	// Identity is the organization identifier, used as token issuer.
	Identity string `json:"identity"`

	// SigningKeyFile points to the PEM-encoded ES256 private key.
	SigningKeyFile string `json:"signing_key_file"`

	// ClusterSecretFile points to the secret the field encryption key is
	// derived from. At least 16 bytes.
	ClusterSecretFile string `json:"cluster_secret_file"`

	// ClusterSalt separates key derivations of different clusters that share
	// an organization secret.
	ClusterSalt string `json:"cluster_salt"`
}

// Config describes one cluster: the organization, the node set in slot order
// and the named collections. Slot order is load-bearing: share i of every
// record lives on nodes[i], so reordering nodes makes stored data
// unreconstructable.
type Config struct {
	Org   OrgConfig         `json:"org"`
	Nodes []interfaces.Node `json:"nodes"`

	// Collections maps collection names to their schema identifiers.
	Collections map[string]interfaces.SchemaID `json:"collections"`
}

// LoadConfig reads and validates a cluster configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read cluster config: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("could not parse cluster config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cluster config %s: %w", path, err)
	}
	return &config, nil
}

// Validate checks the configuration for structural problems. It does not
// touch the referenced key files.
func (c *Config) Validate() error {
	if c.Org.Identity == "" {
		return fmt.Errorf("org identity must not be empty")
	}
	if c.Org.SigningKeyFile == "" {
		return fmt.Errorf("org signing key file must not be empty")
	}
	if c.Org.ClusterSecretFile == "" {
		return fmt.Errorf("org cluster secret file must not be empty")
	}
	if c.Org.ClusterSalt == "" {
		return fmt.Errorf("org cluster salt must not be empty")
	}

	if len(c.Nodes) < 2 || len(c.Nodes) > 255 {
		return fmt.Errorf("cluster needs between 2 and 255 nodes, got %d", len(c.Nodes))
	}

	ids := make(map[string]bool, len(c.Nodes))
	identities := make(map[string]bool, len(c.Nodes))
	endpoints := make(map[string]bool, len(c.Nodes))
	for _, node := range c.Nodes {
		if err := node.Validate(); err != nil {
			return err
		}
		if ids[node.ID] {
			return fmt.Errorf("duplicate node id %q", node.ID)
		}
		if identities[node.Identity] {
			return fmt.Errorf("duplicate node identity %q", node.Identity)
		}
		if endpoints[node.Endpoint] {
			return fmt.Errorf("duplicate node endpoint %q", node.Endpoint)
		}
		ids[node.ID] = true
		identities[node.Identity] = true
		endpoints[node.Endpoint] = true
	}

	for name, schema := range c.Collections {
		if name == "" {
			return fmt.Errorf("collection name must not be empty")
		}
		if err := schema.Validate(); err != nil {
			return fmt.Errorf("collection %q: %w", name, err)
		}
	}

	return nil
}

// SigningKey reads the org's PEM-encoded signing key.
func (c *Config) SigningKey() ([]byte, error) {
	data, err := os.ReadFile(c.Org.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("could not read signing key: %w", err)
	}
	return data, nil
}

// ClusterSecret reads the org's cluster secret.
func (c *Config) ClusterSecret() ([]byte, error) {
	data, err := os.ReadFile(c.Org.ClusterSecretFile)
	if err != nil {
		return nil, fmt.Errorf("could not read cluster secret: %w", err)
	}
	return data, nil
}
