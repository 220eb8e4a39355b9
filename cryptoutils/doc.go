// Package cryptoutils implements the cryptographic core of the store: lazy
// single-flight derivation of the deployment-wide cluster key (argon2id over
// the organization secret) and the share codec that turns field values into
// exactly N Shamir shares sealed under that key.
//
// The codec uses an N-of-N split: reconstruction requires every share, which
// matches the storage layout of one share per node. AES-GCM authentication
// under the cluster key guarantees that an incomplete or mixed share set is
// rejected rather than silently decrypted to a wrong value.
package cryptoutils
