package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/hashicorp/vault/shamir"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// gcmNonceSize is the standard 12-byte AES-GCM nonce.
const gcmNonceSize = 12

// ShamirCodec implements interfaces.ShareCodec. A field value is sealed
// under the cluster key with AES-GCM and the sealed blob is split with
// Shamir's scheme into exactly N shares with threshold N, so every share is
// required for reconstruction. The GCM tag makes mismatched share sets fail
// authentication instead of decrypting to garbage.
type ShamirCodec struct {
	keys *ClusterKeyProvider
	n    int
}

// NewShamirCodec creates a codec producing n shares per field. The cluster
// key is not derived until the first encrypt or decrypt.
func NewShamirCodec(keys *ClusterKeyProvider, n int) (*ShamirCodec, error) {
	if keys == nil {
		return nil, fmt.Errorf("cluster key provider is required")
	}
	// shamir.Split requires 2 <= threshold <= parts <= 255
	if n < 2 || n > 255 {
		return nil, fmt.Errorf("share count must be between 2 and 255, got %d", n)
	}
	return &ShamirCodec{keys: keys, n: n}, nil
}

// Shares returns N, the fixed number of shares per field.
func (c *ShamirCodec) Shares() int { return c.n }

// EncryptField seals value under the cluster key and splits the result into
// exactly N shares. Share i must be routed to node slot i.
func (c *ShamirCodec) EncryptField(value string) ([]string, error) {
	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(value), nil)

	parts, err := shamir.Split(sealed, c.n, c.n)
	if err != nil {
		return nil, fmt.Errorf("failed to split field into shares: %w", err)
	}

	shares := make([]string, len(parts))
	for i, part := range parts {
		shares[i] = base64.StdEncoding.EncodeToString(part)
	}
	return shares, nil
}

// DecryptField recombines exactly N shares from the same encrypt call into
// the field value. Any deviation fails with *interfaces.ShareIntegrityError.
func (c *ShamirCodec) DecryptField(shares []string) (string, error) {
	if len(shares) != c.n {
		return "", &interfaces.ShareIntegrityError{
			Reason: "wrong share count",
			Got:    len(shares),
			Want:   c.n,
		}
	}

	parts := make([][]byte, len(shares))
	for i, share := range shares {
		part, err := base64.StdEncoding.DecodeString(share)
		if err != nil {
			return "", &interfaces.ShareIntegrityError{
				Reason: fmt.Sprintf("share %d is not valid base64: %v", i, err),
			}
		}
		parts[i] = part
	}

	sealed, err := shamir.Combine(parts)
	if err != nil {
		return "", &interfaces.ShareIntegrityError{
			Reason: fmt.Sprintf("share recombination failed: %v", err),
		}
	}

	if len(sealed) < gcmNonceSize+1 {
		return "", &interfaces.ShareIntegrityError{Reason: "recombined blob too short"}
	}

	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	// Shamir recombination of mismatched shares yields a well-formed but
	// wrong blob; the GCM open catches that here.
	value, err := aead.Open(nil, sealed[:gcmNonceSize], sealed[gcmNonceSize:], nil)
	if err != nil {
		return "", &interfaces.ShareIntegrityError{Reason: "shares do not originate from the same encrypt call"}
	}

	return string(value), nil
}

func (c *ShamirCodec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.keys.Key().Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
