package registry

import (
	"fmt"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// NodeRegistry answers node and schema lookups for one cluster. It is an
// immutable view over a validated Config.
type NodeRegistry struct {
	nodes       []interfaces.Node
	byID        map[string]int
	collections map[string]interfaces.SchemaID
}

// NewNodeRegistry builds a registry from a validated configuration.
func NewNodeRegistry(config *Config) (*NodeRegistry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(config.Nodes))
	for slot, node := range config.Nodes {
		byID[node.ID] = slot
	}
	collections := make(map[string]interfaces.SchemaID, len(config.Collections))
	for name, schema := range config.Collections {
		collections[name] = schema
	}

	return &NodeRegistry{
		nodes:       append([]interfaces.Node(nil), config.Nodes...),
		byID:        byID,
		collections: collections,
	}, nil
}

// Nodes returns the node set in slot order.
func (r *NodeRegistry) Nodes() []interfaces.Node {
	return append([]interfaces.Node(nil), r.nodes...)
}

// Shares returns the cluster's node count, which equals the share count.
func (r *NodeRegistry) Shares() int { return len(r.nodes) }

// Node looks a node up by its identifier.
func (r *NodeRegistry) Node(id string) (interfaces.Node, int, error) {
	slot, ok := r.byID[id]
	if !ok {
		return interfaces.Node{}, 0, fmt.Errorf("node %q is not part of the cluster", id)
	}
	return r.nodes[slot], slot, nil
}

// SchemaFor resolves a collection name to its schema identifier.
func (r *NodeRegistry) SchemaFor(collection string) (interfaces.SchemaID, error) {
	schema, ok := r.collections[collection]
	if !ok {
		return "", fmt.Errorf("collection %q: %w", collection, interfaces.ErrSchemaUnknown)
	}
	return schema, nil
}

// Collections returns the configured collection names to schema mapping.
func (r *NodeRegistry) Collections() map[string]interfaces.SchemaID {
	out := make(map[string]interfaces.SchemaID, len(r.collections))
	for name, schema := range r.collections {
		out[name] = schema
	}
	return out
}
