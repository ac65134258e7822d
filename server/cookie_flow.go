package server

import (
	"net/http"

	"github.com/mkerhoas/outlook-relay/internal/apperrors"
	"github.com/mkerhoas/outlook-relay/relaytoken"
	"github.com/mkerhoas/outlook-relay/server/relaystate"
	"github.com/rs/zerolog/log"
)

const (
	stateCookieName = "relay_state"
	nonceCookieName = "relay_nonce"

	// relayCookieMaxAge matches the pending attempt TTL
	relayCookieMaxAge = 600
)

// CookieBoundFlow is the CSRF-hardened variant: state and nonce are bound to
// the browser via non-script-readable cookies and to the server via the
// relay state store, and the callback must match both before any token
// exchange happens.
type CookieBoundFlow struct {
	authority    AuthorityClient
	minter       *relaytoken.Minter
	attempts     relaystate.Repo
	targetOrigin string
}

func NewCookieBoundFlow(authorityClient AuthorityClient, minter *relaytoken.Minter, attempts relaystate.Repo, targetOrigin string) *CookieBoundFlow {
	if targetOrigin == "" {
		targetOrigin = "*"
	}
	return &CookieBoundFlow{
		authority:    authorityClient,
		minter:       minter,
		attempts:     attempts,
		targetOrigin: targetOrigin,
	}
}

func (f *CookieBoundFlow) Start(w http.ResponseWriter, r *http.Request) {
	attempt, err := f.attempts.Create()
	if err != nil {
		log.Error().Err(err).Msg("Failed to create pending login attempt")
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}

	setRelayCookie(w, r, stateCookieName, attempt.State)
	setRelayCookie(w, r, nonceCookieName, attempt.Nonce)

	http.Redirect(w, r, f.authority.AuthorizeURL(attempt.State, attempt.Nonce), http.StatusFound)
}

func (f *CookieBoundFlow) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errorParam := query.Get("error"); errorParam != "" {
		log.Warn().
			Str("error", errorParam).
			Str("error_description", query.Get("error_description")).
			Msg("Provider returned authorization error")
		renderRelayMessagePage(w, http.StatusBadRequest, RelayMessage{
			Type:  relayMessageTypeError,
			Error: "authorization_failed",
		}, f.targetOrigin)
		return
	}

	state := query.Get("state")
	if !f.stateMatchesCookie(r, state) {
		// Possible CSRF or replay; never proceed to an exchange from here
		log.Warn().
			Err(apperrors.ErrStateMismatch).
			Str("remote_addr", r.RemoteAddr).
			Msg("Callback state does not match login cookie")
		renderRelayMessagePage(w, http.StatusBadRequest, RelayMessage{
			Type:  relayMessageTypeError,
			Error: "state_mismatch",
		}, f.targetOrigin)
		return
	}

	attempt, err := f.attempts.Consume(state)
	if err != nil {
		log.Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("Callback state unknown, expired, or already consumed")
		renderRelayMessagePage(w, http.StatusBadRequest, RelayMessage{
			Type:  relayMessageTypeError,
			Error: "state_mismatch",
		}, f.targetOrigin)
		return
	}

	clearRelayCookies(w, r)

	code := query.Get("code")
	if code == "" {
		log.Warn().Err(apperrors.ErrMissingAuthorizationCode).Msg("Callback carried a valid state but no code")
		renderRelayMessagePage(w, http.StatusBadRequest, RelayMessage{
			Type:  relayMessageTypeError,
			Error: "missing_authorization_code",
		}, f.targetOrigin)
		return
	}

	tokenSet, identity, err := f.authority.ExchangeAndVerify(r.Context(), code, attempt.Nonce)
	if err != nil {
		log.Error().Err(err).Msg("Authorization code exchange failed")
		renderRelayMessagePage(w, http.StatusInternalServerError, RelayMessage{
			Type:  relayMessageTypeError,
			Error: "token_exchange_failed",
		}, f.targetOrigin)
		return
	}
	_ = tokenSet // access token lifetime is the provider's concern; the add-in gets our session token

	sessionToken, err := f.minter.Sign(identity)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mint session token")
		renderRelayMessagePage(w, http.StatusInternalServerError, RelayMessage{
			Type:  relayMessageTypeError,
			Error: "token_exchange_failed",
		}, f.targetOrigin)
		return
	}

	renderRelayMessagePage(w, http.StatusOK, RelayMessage{
		Type:  relayMessageTypeToken,
		Token: sessionToken,
	}, f.targetOrigin)
}

// stateMatchesCookie requires the callback state to exactly equal the value
// set at Start. An absent cookie fails closed.
func (f *CookieBoundFlow) stateMatchesCookie(r *http.Request, state string) bool {
	if state == "" {
		return false
	}
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return cookie.Value == state
}

func setRelayCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	isSecure := getScheme(r) == "https"

	sameSite := http.SameSiteLaxMode
	if isSecure {
		// The provider redirect is cross-site; None is required for the
		// cookie to travel with it, and None requires Secure.
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: sameSite,
		MaxAge:   relayCookieMaxAge,
	})
}

func clearRelayCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{stateCookieName, nonceCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/auth",
			HttpOnly: true,
			Secure:   getScheme(r) == "https",
			MaxAge:   -1,
		})
	}
}
