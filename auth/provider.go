package auth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

const (
	// DefaultTokenLifetime bounds how long an issued token stays valid.
	DefaultTokenLifetime = time.Hour

	// refreshMargin is how long before expiry a cached token is discarded.
	// A token is never served past its refresh point, let alone expired.
	refreshMargin = 5 * time.Minute
)

// Provider implements interfaces.TokenProvider. It signs one ES256 token per
// node with the organization key, audience-bound to the node identity, and
// caches it per node until shortly before expiry.
type Provider struct {
	signingKey *ecdsa.PrivateKey
	issuer     string
	lifetime   time.Duration

	// now is replaceable in tests.
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// NewProvider creates a token provider from the organization signing key in
// PEM form (EC PRIVATE KEY or PKCS#8) and the organization identity used as
// token issuer.
func NewProvider(signingKeyPEM []byte, issuer string) (*Provider, error) {
	if issuer == "" {
		return nil, errors.New("issuer identity must not be empty")
	}

	key, err := ParseSigningKey(signingKeyPEM)
	if err != nil {
		return nil, err
	}

	return &Provider{
		signingKey: key,
		issuer:     issuer,
		lifetime:   DefaultTokenLifetime,
		now:        time.Now,
		cache:      make(map[string]cachedToken),
	}, nil
}

// WithLifetime overrides the token lifetime. Mainly for tests.
func (p *Provider) WithLifetime(lifetime time.Duration) *Provider {
	p.lifetime = lifetime
	return p
}

// TokenFor returns a signed token for the given node, reusing a cached one
// while it is still comfortably within its lifetime.
func (p *Provider) TokenFor(node interfaces.Node) (string, error) {
	if node.Identity == "" {
		return "", fmt.Errorf("node %s has no identity to bind the token to", node.ID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if cached, ok := p.cache[node.Identity]; ok && now.Before(cached.expiresAt.Add(-p.margin())) {
		return cached.token, nil
	}

	expiresAt := now.Add(p.lifetime)
	claims := jwt.RegisteredClaims{
		Issuer:    p.issuer,
		Subject:   p.issuer,
		Audience:  jwt.ClaimStrings{node.Identity},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.Must(uuid.NewRandom()).String(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(p.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token for node %s: %w", node.ID, err)
	}

	p.cache[node.Identity] = cachedToken{token: token, expiresAt: expiresAt}
	return token, nil
}

// margin keeps the refresh point strictly before expiry even for short test
// lifetimes.
func (p *Provider) margin() time.Duration {
	if p.lifetime <= 2*refreshMargin {
		return p.lifetime / 2
	}
	return refreshMargin
}

// ParseSigningKey decodes an ECDSA private key from PEM.
func ParseSigningKey(keyPEM []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("failed to decode signing key PEM")
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not an ECDSA key")
	}
	return key, nil
}
