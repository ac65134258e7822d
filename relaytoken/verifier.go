package relaytoken

import (
	"context"
	"errors"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/mkerhoas/outlook-relay/internal/apperrors"
)

// KeyResolver resolves the verification key for a token by key id. The kid
// is empty for tokens whose header carries none (e.g. HS256 session tokens).
type KeyResolver interface {
	ResolveSigningKey(ctx context.Context, kid string) (any, error)
}

// StaticKey is a KeyResolver that always returns the same key, regardless of
// kid. Used for the relay's own HMAC session tokens and in tests.
type StaticKey []byte

func (k StaticKey) ResolveSigningKey(_ context.Context, _ string) (any, error) {
	return []byte(k), nil
}

// Verifier performs the full verification path required for any token
// arriving as a bearer credential: signature against resolved keys, then
// audience and issuer against the expected values.
type Verifier struct {
	Keys     KeyResolver
	Audience string
	Issuer   string
}

// NewVerifier creates a verifier bound to one key source and one expected
// audience/issuer pair.
func NewVerifier(keys KeyResolver, audience, issuer string) *Verifier {
	return &Verifier{Keys: keys, Audience: audience, Issuer: issuer}
}

// Verify validates rawToken and returns its claims. Failures map to the
// sentinel errors in apperrors; callers must treat any error as an
// unauthenticated request.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (jwtlib.MapClaims, error) {
	token, err := jwtlib.NewParser(jwtlib.WithValidMethods([]string{"RS256", "HS256"})).
		Parse(rawToken, func(token *jwtlib.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			key, err := v.Keys.ResolveSigningKey(ctx, kid)
			if err != nil {
				return nil, err
			}
			return key, nil
		})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		if errors.Is(err, apperrors.ErrUnknownSigningKey) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInboundToken, apperrors.ErrUnknownSigningKey)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInboundToken, err)
	}

	if !token.Valid {
		return nil, apperrors.ErrInvalidInboundToken
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", apperrors.ErrInvalidInboundToken)
	}

	if err := v.validateClaims(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

func (v *Verifier) validateClaims(claims jwtlib.MapClaims) error {
	if v.Issuer != "" {
		issuer, err := claims.GetIssuer()
		if err != nil || issuer != v.Issuer {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidInboundToken, apperrors.ErrIssuerMismatch)
		}
	}

	if v.Audience != "" {
		audiences, err := claims.GetAudience()
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidInboundToken, apperrors.ErrAudienceMismatch)
		}

		found := false
		for _, aud := range audiences {
			if aud == v.Audience {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidInboundToken, apperrors.ErrAudienceMismatch)
		}
	}

	return nil
}
