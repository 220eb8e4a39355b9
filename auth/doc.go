// Package auth issues and verifies the per-node access tokens used by the
// data API. The organization key signs one short-lived ES256 token per node,
// with the node's identity as audience, so a token leaked from one node is
// useless against any other. Providers cache tokens per node and refresh
// strictly before expiry.
package auth
