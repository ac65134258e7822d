package relaytoken

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// DefaultSessionTokenExpiry is how long a relay-minted session token lives.
const DefaultSessionTokenExpiry = 1 * time.Hour

// Minter creates the relay's own short-lived session tokens, decoupled from
// the provider's token lifetime. The signing secret is the sole root of
// trust for these tokens.
type Minter struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
}

// NewMinter creates a session token minter. A zero expiry falls back to
// DefaultSessionTokenExpiry.
func NewMinter(secret []byte, issuer, audience string, expiry time.Duration) *Minter {
	if expiry <= 0 {
		expiry = DefaultSessionTokenExpiry
	}
	return &Minter{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
	}
}

// Sign mints an HS256 session token carrying the user's identity claims.
func (m *Minter) Sign(id Identity) (string, error) {
	now := NowTimeFunc()

	claims := jwtlib.MapClaims{
		"iss":   m.issuer,
		"aud":   m.audience,
		"sub":   id.Subject,
		"oid":   id.Subject,
		"email": id.Email,
		"name":  id.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(m.expiry).Unix(),
		"jti":   uuid.New().String(),
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// VerificationKey exposes the minter's secret as a KeyResolver so its own
// tokens can be verified with the shared Verifier.
func (m *Minter) VerificationKey() KeyResolver {
	return StaticKey(m.secret)
}
