package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/mkerhoas/outlook-relay/authority"
	"github.com/mkerhoas/outlook-relay/internal/config"
	"github.com/mkerhoas/outlook-relay/relaytoken"
	"github.com/stretchr/testify/require"
)

// signTestIDToken builds an ID token the way the provider's token endpoint
// would return one. The popup flow only decodes it, so any signing key works.
func signTestIDToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("provider-side-secret"))
	require.NoError(t, err)
	return signed
}

func TestPopupRelayFlow_Start(t *testing.T) {
	ts := newTestServer(t, config.FlowModePopup)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/auth/start", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get("Location")
	require.Contains(t, location, "state=outlook_addin")
	require.NotContains(t, location, "nonce=")
}

func TestPopupRelayFlow_Callback(t *testing.T) {
	t.Run("missing code signals error without exchanging", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModePopup)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/auth/callback?state=outlook_addin", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "AUTH_ERROR")
		require.Zero(t, ts.authority.exchangeCalls)
	})

	t.Run("exchange failure signals error", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModePopup)
		ts.authority.exchangeCodeFunc = func(_ context.Context, _ string) (*authority.TokenSet, error) {
			return nil, errors.New("provider unavailable")
		}

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=outlook_addin", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "AUTH_ERROR")
		require.Equal(t, 1, ts.authority.exchangeCalls)
	})

	t.Run("successful exchange relays a session token", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModePopup)

		idToken := signTestIDToken(t, jwtlib.MapClaims{
			"oid":                "oid-abc",
			"preferred_username": "user@example.com",
			"name":               "Ada Lovelace",
			"exp":                time.Now().Add(time.Hour).Unix(),
		})
		ts.authority.exchangeCodeFunc = func(_ context.Context, code string) (*authority.TokenSet, error) {
			require.Equal(t, "abc123", code)
			return &authority.TokenSet{AccessToken: "access", IDToken: idToken}, nil
		}

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc123&state=outlook_addin", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		require.Contains(t, body, "messageParent")
		require.NotContains(t, body, "AUTH_ERROR")

		// The relayed payload is a session token minted by this service,
		// verifiable with the configured secret.
		sessionToken := extractQuotedJWT(t, body)
		verifier := relaytoken.NewVerifier(relaytoken.StaticKey(testSessionSecret), "client-id-123", "Outlook Auth Relay")
		claims, err := verifier.Verify(context.Background(), sessionToken)
		require.NoError(t, err)
		require.Equal(t, "oid-abc", claims["oid"])
		require.Equal(t, "user@example.com", claims["email"])
		require.Equal(t, "Ada Lovelace", claims["name"])
	})
}

// extractQuotedJWT pulls the first JWT-shaped quoted string out of a
// rendered relay page body.
func extractQuotedJWT(t *testing.T, body string) string {
	t.Helper()
	start := -1
	for i := 0; i+3 < len(body); i++ {
		if body[i] == '"' && body[i+1] == 'e' && body[i+2] == 'y' && body[i+3] == 'J' {
			start = i + 1
			break
		}
	}
	require.GreaterOrEqual(t, start, 0, "no JWT found in relay page body")
	end := start
	for end < len(body) && body[end] != '"' {
		end++
	}
	return body[start:end]
}
