package authority

import (
	"context"
	"fmt"

	"github.com/mkerhoas/outlook-relay/internal/apperrors"
	"github.com/mkerhoas/outlook-relay/relaytoken"
)

// ExchangeAndVerify exchanges an authorization code and verifies the ID
// token that comes back: signature against the provider's published keys,
// audience against this client id, and nonce against the value bound to the
// login attempt. Used by the cookie-bound flow, which cannot rely on a
// private dialog channel.
func (c *Client) ExchangeAndVerify(ctx context.Context, code, nonce string) (*TokenSet, relaytoken.Identity, error) {
	tokenSet, err := c.ExchangeCode(ctx, code)
	if err != nil {
		return nil, relaytoken.Identity{}, err
	}

	if tokenSet.IDToken == "" {
		return nil, relaytoken.Identity{}, fmt.Errorf("%w: no ID token in response", apperrors.ErrTokenExchangeFailed)
	}

	verifier, err := c.idTokenVerifier(ctx)
	if err != nil {
		return nil, relaytoken.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrTokenExchangeFailed, err)
	}

	idToken, err := verifier.Verify(ctx, tokenSet.IDToken)
	if err != nil {
		return nil, relaytoken.Identity{}, fmt.Errorf("%w: ID token verification failed: %w", apperrors.ErrTokenExchangeFailed, err)
	}

	var claims struct {
		Nonce             string `json:"nonce"`
		Oid               string `json:"oid"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
		Name              string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, relaytoken.Identity{}, fmt.Errorf("%w: failed to extract claims: %w", apperrors.ErrTokenExchangeFailed, err)
	}

	// Nonce binding blocks replayed ID tokens from another attempt.
	if nonce != "" && claims.Nonce != nonce {
		return nil, relaytoken.Identity{}, fmt.Errorf("%w: nonce mismatch", apperrors.ErrTokenExchangeFailed)
	}

	identity := relaytoken.Identity{
		Subject: claims.Oid,
		Email:   claims.PreferredUsername,
		Name:    claims.Name,
	}
	if identity.Subject == "" {
		identity.Subject = idToken.Subject
	}
	if identity.Email == "" {
		identity.Email = claims.Email
	}

	return tokenSet, identity, nil
}
