package relaytoken_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/mkerhoas/outlook-relay/internal/apperrors"
	"github.com/mkerhoas/outlook-relay/relaytoken"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "outlook-relay-test"
	testAudience = "client-id-123"
)

var testSecret = []byte("test-signing-secret")

func TestMinter_SignVerifyRoundTrip(t *testing.T) {
	minter := relaytoken.NewMinter(testSecret, testIssuer, testAudience, time.Hour)
	verifier := relaytoken.NewVerifier(relaytoken.StaticKey(testSecret), testAudience, testIssuer)

	identity := relaytoken.Identity{
		Subject: "oid-42",
		Email:   "jane@example.com",
		Name:    "Jane Doe",
	}

	token, err := minter.Sign(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "oid-42", claims["oid"])
	require.Equal(t, "jane@example.com", claims["email"])
	require.Equal(t, "Jane Doe", claims["name"])
	require.NotEmpty(t, claims["jti"])
}

func TestVerifier_Failures(t *testing.T) {
	minter := relaytoken.NewMinter(testSecret, testIssuer, testAudience, time.Hour)
	identity := relaytoken.Identity{Subject: "oid-42", Email: "jane@example.com", Name: "Jane Doe"}

	token, err := minter.Sign(identity)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		verifier := relaytoken.NewVerifier(relaytoken.StaticKey([]byte("another-secret")), testAudience, testIssuer)
		_, err := verifier.Verify(context.Background(), token)
		require.ErrorIs(t, err, apperrors.ErrInvalidInboundToken)
	})

	t.Run("audience mismatch", func(t *testing.T) {
		verifier := relaytoken.NewVerifier(relaytoken.StaticKey(testSecret), "different-client", testIssuer)
		_, err := verifier.Verify(context.Background(), token)
		require.ErrorIs(t, err, apperrors.ErrAudienceMismatch)
		require.ErrorIs(t, err, apperrors.ErrInvalidInboundToken)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		verifier := relaytoken.NewVerifier(relaytoken.StaticKey(testSecret), testAudience, "https://other-issuer")
		_, err := verifier.Verify(context.Background(), token)
		require.ErrorIs(t, err, apperrors.ErrIssuerMismatch)
		require.ErrorIs(t, err, apperrors.ErrInvalidInboundToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		verifier := relaytoken.NewVerifier(relaytoken.StaticKey(testSecret), testAudience, testIssuer)
		_, err := verifier.Verify(context.Background(), "not-a-token")
		require.ErrorIs(t, err, apperrors.ErrInvalidInboundToken)
	})
}

func TestVerifier_ExpiredToken(t *testing.T) {
	relaytoken.NowTimeFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	defer func() { relaytoken.NowTimeFunc = time.Now }()

	minter := relaytoken.NewMinter(testSecret, testIssuer, testAudience, time.Hour)
	token, err := minter.Sign(relaytoken.Identity{Subject: "oid-42"})
	require.NoError(t, err)

	verifier := relaytoken.NewVerifier(relaytoken.StaticKey(testSecret), testAudience, testIssuer)
	_, err = verifier.Verify(context.Background(), token)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestDecodeUnverified(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"oid":                "oid-7",
			"preferred_username": "john@example.com",
			"name":               "John Doe",
		}).SignedString([]byte("whatever"))
		require.NoError(t, err)

		claims, err := relaytoken.DecodeUnverified(raw)
		require.NoError(t, err)
		require.Equal(t, "oid-7", claims["oid"])
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := relaytoken.DecodeUnverified("")
		require.Error(t, err)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := relaytoken.DecodeUnverified("a.b")
		require.Error(t, err)
	})
}

func TestIdentityFromClaims(t *testing.T) {
	t.Run("azure v2 claims", func(t *testing.T) {
		id := relaytoken.IdentityFromClaims(jwtlib.MapClaims{
			"oid":                "oid-1",
			"preferred_username": "a@b.com",
			"name":               "A B",
		})
		require.Equal(t, relaytoken.Identity{Subject: "oid-1", Email: "a@b.com", Name: "A B"}, id)
	})

	t.Run("standard claim fallbacks", func(t *testing.T) {
		id := relaytoken.IdentityFromClaims(jwtlib.MapClaims{
			"sub":   "sub-1",
			"email": "c@d.com",
		})
		require.Equal(t, "sub-1", id.Subject)
		require.Equal(t, "c@d.com", id.Email)
	})
}
