package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/mkerhoas/outlook-relay/authority"
	"github.com/mkerhoas/outlook-relay/internal/config"
	"github.com/mkerhoas/outlook-relay/relaytoken"
	"github.com/stretchr/testify/require"
)

// startCookieLogin runs /auth/start and hands back the issued state/nonce
// cookies plus the state and nonce that went to the provider.
func startCookieLogin(t *testing.T, ts *testServer) (cookies []*http.Cookie, state, nonce string) {
	t.Helper()

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/auth/start", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state = location.Query().Get("state")
	nonce = location.Query().Get("nonce")
	require.NotEmpty(t, state)
	require.NotEmpty(t, nonce)

	return rec.Result().Cookies(), state, nonce
}

func callbackRequest(target string, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestCookieBoundFlow_Start(t *testing.T) {
	ts := newTestServer(t, config.FlowModeCookie)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/auth/start", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	cookies := rec.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	stateCookie := byName["relay_state"]
	require.NotNil(t, stateCookie)
	require.True(t, stateCookie.HttpOnly)
	require.Equal(t, "/auth", stateCookie.Path)
	require.Equal(t, 600, stateCookie.MaxAge)

	nonceCookie := byName["relay_nonce"]
	require.NotNil(t, nonceCookie)
	require.True(t, nonceCookie.HttpOnly)

	// The redirect carries the same state the cookie binds to the browser
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, stateCookie.Value, location.Query().Get("state"))
	require.Equal(t, nonceCookie.Value, location.Query().Get("nonce"))
}

func TestCookieBoundFlow_Callback(t *testing.T) {
	t.Run("happy path relays a structured token message", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModeCookie)
		ts.authority.exchangeAndVerifyFunc = func(_ context.Context, code, nonce string) (*authority.TokenSet, relaytoken.Identity, error) {
			require.Equal(t, "abc123", code)
			return &authority.TokenSet{AccessToken: "access"}, relaytoken.Identity{
				Subject: "oid-abc",
				Email:   "user@example.com",
				Name:    "Ada Lovelace",
			}, nil
		}

		cookies, state, _ := startCookieLogin(t, ts)

		rec := ts.do(callbackRequest("/auth/callback?code=abc123&state="+state, cookies))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 1, ts.authority.exchangeCalls)

		body := rec.Body.String()
		require.Contains(t, body, `"type":"token"`)
		require.Contains(t, body, "postMessage")

		// Cookies are cleared after consumption
		for _, c := range rec.Result().Cookies() {
			require.Empty(t, c.Value)
			require.Negative(t, c.MaxAge)
		}
	})

	t.Run("nonce from start reaches the exchange", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModeCookie)

		var gotNonce string
		ts.authority.exchangeAndVerifyFunc = func(_ context.Context, _, nonce string) (*authority.TokenSet, relaytoken.Identity, error) {
			gotNonce = nonce
			return &authority.TokenSet{AccessToken: "access"}, relaytoken.Identity{Subject: "s"}, nil
		}

		cookies, state, nonce := startCookieLogin(t, ts)
		ts.do(callbackRequest("/auth/callback?code=abc123&state="+state, cookies))
		require.Equal(t, nonce, gotNonce)
	})

	t.Run("provider error is relayed without exchanging", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModeCookie)

		cookies, state, _ := startCookieLogin(t, ts)
		rec := ts.do(callbackRequest("/auth/callback?error=access_denied&state="+state, cookies))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "authorization_failed")
		require.Zero(t, ts.authority.exchangeCalls)
	})

	t.Run("state not matching cookie is rejected before exchange", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModeCookie)

		cookies, _, _ := startCookieLogin(t, ts)
		rec := ts.do(callbackRequest("/auth/callback?code=abc123&state=forged-state", cookies))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "state_mismatch")
		require.Zero(t, ts.authority.exchangeCalls)
	})

	t.Run("missing cookie fails closed", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModeCookie)

		_, state, _ := startCookieLogin(t, ts)
		rec := ts.do(callbackRequest("/auth/callback?code=abc123&state="+state, nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "state_mismatch")
		require.Zero(t, ts.authority.exchangeCalls)
	})

	t.Run("state cannot be consumed twice", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModeCookie)
		ts.authority.exchangeAndVerifyFunc = func(_ context.Context, _, _ string) (*authority.TokenSet, relaytoken.Identity, error) {
			return &authority.TokenSet{AccessToken: "access"}, relaytoken.Identity{Subject: "s"}, nil
		}

		cookies, state, _ := startCookieLogin(t, ts)

		first := ts.do(callbackRequest("/auth/callback?code=abc123&state="+state, cookies))
		require.Equal(t, http.StatusOK, first.Code)

		replay := ts.do(callbackRequest("/auth/callback?code=abc123&state="+state, cookies))
		require.Equal(t, http.StatusBadRequest, replay.Code)
		require.Contains(t, replay.Body.String(), "state_mismatch")
		require.Equal(t, 1, ts.authority.exchangeCalls)
	})

	t.Run("missing code after valid state", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModeCookie)

		cookies, state, _ := startCookieLogin(t, ts)
		rec := ts.do(callbackRequest("/auth/callback?state="+state, cookies))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "missing_authorization_code")
		require.Zero(t, ts.authority.exchangeCalls)
	})

	t.Run("exchange failure relays an error message", func(t *testing.T) {
		ts := newTestServer(t, config.FlowModeCookie)
		ts.authority.exchangeAndVerifyFunc = func(_ context.Context, _, _ string) (*authority.TokenSet, relaytoken.Identity, error) {
			return nil, relaytoken.Identity{}, errors.New("provider unavailable")
		}

		cookies, state, _ := startCookieLogin(t, ts)
		rec := ts.do(callbackRequest("/auth/callback?code=abc123&state="+state, cookies))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Contains(t, rec.Body.String(), "token_exchange_failed")
	})
}
