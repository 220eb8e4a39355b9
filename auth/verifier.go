package auth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks tokens presented to one node: signature by the organization
// key and audience equal to this node's identity. Tokens minted for another
// node never pass.
type Verifier struct {
	orgKey   *ecdsa.PublicKey
	audience string
}

// NewVerifier creates a verifier for the node identified by audience.
func NewVerifier(orgPublicKeyPEM []byte, audience string) (*Verifier, error) {
	if audience == "" {
		return nil, errors.New("audience must not be empty")
	}

	block, _ := pem.Decode(orgPublicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode org public key PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse org public key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("org public key is not an ECDSA key")
	}

	return &Verifier{orgKey: key, audience: audience}, nil
}

// NewVerifierForKey creates a verifier directly from a parsed key. Used when
// the key was just generated in-process, e.g. by the development node.
func NewVerifierForKey(orgKey *ecdsa.PublicKey, audience string) (*Verifier, error) {
	if audience == "" {
		return nil, errors.New("audience must not be empty")
	}
	return &Verifier{orgKey: orgKey, audience: audience}, nil
}

// Verify validates a raw bearer token and returns the issuer identity.
func (v *Verifier) Verify(raw string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	token, err := parser.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return v.orgKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("token rejected: %w", err)
	}

	issuer, err := token.Claims.GetIssuer()
	if err != nil || issuer == "" {
		return "", errors.New("token rejected: missing issuer")
	}
	return issuer, nil
}
