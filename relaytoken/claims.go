package relaytoken

import (
	"errors"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Identity carries the claims the relay extracts from a provider ID token.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// DecodeUnverified parses a signed token's payload without checking the
// signature. Only for tokens this service itself just received from a trusted
// exchange call over TLS, never for anything client-supplied.
func DecodeUnverified(rawToken string) (jwtlib.MapClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("empty token")
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	return claims, nil
}

// IdentityFromClaims maps Azure AD v2 ID token claims to an Identity.
// The v2 endpoint puts the directory object id in "oid" and the login
// email in "preferred_username"; fall back to the standard claims when
// those are absent.
func IdentityFromClaims(claims jwtlib.MapClaims) Identity {
	id := Identity{}

	if oid, _ := claims["oid"].(string); oid != "" {
		id.Subject = oid
	} else if sub, _ := claims["sub"].(string); sub != "" {
		id.Subject = sub
	}

	if email, _ := claims["preferred_username"].(string); email != "" {
		id.Email = email
	} else if email, _ := claims["email"].(string); email != "" {
		id.Email = email
	}

	id.Name, _ = claims["name"].(string)

	return id
}
