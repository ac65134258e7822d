package relaytoken

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/mkerhoas/outlook-relay/internal/apperrors"
)

// JWKSResolver fetches and caches the identity provider's published signing
// keys. The underlying jwk.Cache de-duplicates concurrent refreshes, so a
// burst of cache misses never corrupts the key set.
type JWKSResolver struct {
	url   string
	cache *jwk.Cache
}

// NewJWKSResolver registers jwksURL with an auto-refreshing key cache. The
// context bounds the lifetime of the cache's background refreshes.
func NewJWKSResolver(ctx context.Context, jwksURL string) (*JWKSResolver, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL); err != nil {
		return nil, fmt.Errorf("[JWKSResolver] failed to register JWKS URL: %w", err)
	}

	return &JWKSResolver{
		url:   jwksURL,
		cache: cache,
	}, nil
}

// ResolveSigningKey returns the public key with the given kid. A miss is
// retried once with a forced refresh so a freshly rotated provider key is
// picked up without waiting for the next scheduled refresh.
func (r *JWKSResolver) ResolveSigningKey(ctx context.Context, kid string) (any, error) {
	if kid == "" {
		return nil, fmt.Errorf("%w: token header missing kid", apperrors.ErrUnknownSigningKey)
	}

	keySet, err := r.cache.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		keySet, err = r.cache.Refresh(ctx, r.url)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh JWKS: %w", err)
		}
		key, found = keySet.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("%w: kid %q", apperrors.ErrUnknownSigningKey, kid)
		}
	}

	var rawKey any
	if err := key.Raw(&rawKey); err != nil {
		return nil, fmt.Errorf("failed to materialise signing key: %w", err)
	}

	return rawKey, nil
}
