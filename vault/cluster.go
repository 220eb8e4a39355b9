package vault

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gabrielantonyxaviour/jedi-vault/api/datahandler"
	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// Cluster bundles the share codec and the N node backends behind one writer
// and reader pair. Collections are created per entity type on top of it.
type Cluster struct {
	log    *slog.Logger
	codec  interfaces.ShareCodec
	nodes  []interfaces.NodeBackend
	writer *Writer
	reader *Reader
}

// ClusterOption customizes cluster construction.
type ClusterOption func(*clusterOptions)

type clusterOptions struct {
	log         *slog.Logger
	nodeTimeout time.Duration
}

// WithLogger injects the cluster logger.
func WithLogger(log *slog.Logger) ClusterOption {
	return func(o *clusterOptions) { o.log = log }
}

// WithNodeTimeout overrides the per-node deadline used in fan-out calls.
func WithNodeTimeout(timeout time.Duration) ClusterOption {
	return func(o *clusterOptions) { o.nodeTimeout = timeout }
}

// NewCluster creates a cluster over pre-built node backends. The backend
// count must equal the codec's share count, and slot order is significant:
// share i is stored on nodes[i].
func NewCluster(codec interfaces.ShareCodec, nodes []interfaces.NodeBackend, opts ...ClusterOption) (*Cluster, error) {
	options := &clusterOptions{log: slog.Default(), nodeTimeout: DefaultNodeTimeout}
	for _, opt := range opts {
		opt(options)
	}

	if len(nodes) < 2 {
		return nil, fmt.Errorf("a cluster needs at least 2 nodes, got %d", len(nodes))
	}
	if len(nodes) != codec.Shares() {
		return nil, fmt.Errorf("node count %d does not match share count %d", len(nodes), codec.Shares())
	}

	writer, err := NewWriter(codec, nodes, options.nodeTimeout, options.log)
	if err != nil {
		return nil, err
	}
	reader, err := NewReader(codec, nodes, options.nodeTimeout, options.log)
	if err != nil {
		return nil, err
	}

	return &Cluster{
		log:    options.log,
		codec:  codec,
		nodes:  nodes,
		writer: writer,
		reader: reader,
	}, nil
}

// Connect builds HTTP node backends for the given node descriptors and wraps
// them in a cluster. The descriptor order defines the slot order and must
// stay stable for the lifetime of the stored data.
func Connect(codec interfaces.ShareCodec, nodes []interfaces.Node, tokens interfaces.TokenProvider, httpClient *http.Client, opts ...ClusterOption) (*Cluster, error) {
	backends := make([]interfaces.NodeBackend, 0, len(nodes))
	for _, node := range nodes {
		backend, err := datahandler.NewClient(node, tokens, httpClient)
		if err != nil {
			return nil, err
		}
		backends = append(backends, backend)
	}
	return NewCluster(codec, backends, opts...)
}

// Writer returns the record writer.
func (c *Cluster) Writer() *Writer { return c.writer }

// Reader returns the record reader.
func (c *Cluster) Reader() *Reader { return c.reader }

// Nodes returns the node descriptors in slot order.
func (c *Cluster) Nodes() []interfaces.Node {
	out := make([]interfaces.Node, len(c.nodes))
	for i, backend := range c.nodes {
		out[i] = backend.Node()
	}
	return out
}
