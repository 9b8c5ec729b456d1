package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultJWKSTTL is how long a fetched key set is reused
const DefaultJWKSTTL = time.Hour

type cachedSet struct {
	keys    jwk.Set
	expires time.Time
}

// JWKSManager fetches and caches key sets per JWKS URL
type JWKSManager struct {
	mu     sync.RWMutex
	cache  map[string]cachedSet
	ttl    time.Duration
	client *http.Client
	now    func() time.Time
}

// NewJWKSManager creates a new JWKS manager
func NewJWKSManager() *JWKSManager {
	return &JWKSManager{
		cache:  make(map[string]cachedSet),
		ttl:    DefaultJWKSTTL,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// GetJWKS returns the key set published at jwksURL, fetching it when the
// cached copy is missing or expired.
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	entry, ok := m.cache[jwksURL]
	m.mu.RUnlock()
	if ok && m.now().Before(entry.expires) {
		return entry.keys, nil
	}

	keys, err := jwk.Fetch(ctx, jwksURL, jwk.WithHTTPClient(m.client))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	m.mu.Lock()
	m.cache[jwksURL] = cachedSet{keys: keys, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()

	return keys, nil
}
