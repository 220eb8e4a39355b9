package cryptoutils

import (
	"crypto/sha256"
	"errors"
	"sync"

	"golang.org/x/crypto/argon2"
)

// clusterKeySize is the AES-256 key length used by the share codec.
const clusterKeySize = 32

// ClusterKey is the encryption context shared by all share operations of a
// deployment. It is derived once and treated as read-only afterwards.
type ClusterKey struct {
	key [clusterKeySize]byte
}

// Bytes returns the raw key material.
func (k *ClusterKey) Bytes() []byte { return k.key[:] }

// ClusterKeyProvider derives the cluster key lazily on first use. Derivation
// runs at most once; concurrent first callers block on the same derivation.
type ClusterKeyProvider struct {
	secret []byte
	salt   []byte

	once sync.Once
	key  *ClusterKey
}

// NewClusterKeyProvider prepares derivation from the organization secret and
// a deployment-scoped salt. The key itself is not derived until Key is
// called.
func NewClusterKeyProvider(orgSecret, salt []byte) (*ClusterKeyProvider, error) {
	if len(orgSecret) < 16 {
		return nil, errors.New("org secret must be at least 16 bytes")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt must not be empty")
	}
	return &ClusterKeyProvider{
		secret: append([]byte(nil), orgSecret...),
		salt:   append([]byte(nil), salt...),
	}, nil
}

// Key returns the cluster key, deriving it on first call.
func (p *ClusterKeyProvider) Key() *ClusterKey {
	p.once.Do(func() {
		saltHash := sha256.Sum256(p.salt)
		derived := argon2.IDKey(p.secret, saltHash[:], 1, 64*1024, 4, clusterKeySize)

		key := &ClusterKey{}
		copy(key.key[:], derived)
		wipeBytes(derived)
		p.key = key
	})
	return p.key
}

// wipeBytes zeroes key material that is no longer needed.
func wipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
