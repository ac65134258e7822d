package server

import (
	"net/http"

	"github.com/mkerhoas/outlook-relay/internal/apperrors"
	"github.com/mkerhoas/outlook-relay/relaytoken"
	"github.com/rs/zerolog/log"
)

const (
	// popupStateTag is the fixed correlation tag the popup relay sends as
	// state. The variant does no state binding; the private dialog channel
	// is what it trusts.
	popupStateTag = "outlook_addin"

	// popupErrorSignal is the bare failure signal the add-in side expects
	popupErrorSignal = "AUTH_ERROR"
)

// PopupRelayFlow is the dialog-API variant: the add-in opens an Office
// dialog at /auth/start, and the callback page messages the minted session
// token straight back to the dialog parent. Every failure ends as an error
// signal on the same channel, never as an error surfaced to the provider
// redirect.
type PopupRelayFlow struct {
	authority AuthorityClient
	minter    *relaytoken.Minter
}

func NewPopupRelayFlow(authorityClient AuthorityClient, minter *relaytoken.Minter) *PopupRelayFlow {
	return &PopupRelayFlow{
		authority: authorityClient,
		minter:    minter,
	}
}

func (f *PopupRelayFlow) Start(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, f.authority.AuthorizeURL(popupStateTag, ""), http.StatusFound)
}

func (f *PopupRelayFlow) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		log.Warn().Err(apperrors.ErrMissingAuthorizationCode).Str("remote_addr", r.RemoteAddr).Msg("Login callback missing authorization code")
		renderPopupRelayPage(w, popupErrorSignal)
		return
	}

	tokenSet, err := f.authority.ExchangeCode(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("Authorization code exchange failed")
		renderPopupRelayPage(w, popupErrorSignal)
		return
	}

	// The ID token arrived on this same TLS hop from the provider's token
	// endpoint, authenticated with our client secret. Decoding it without
	// signature verification is only acceptable in exactly this position;
	// never apply it to client-supplied input.
	claims, err := relaytoken.DecodeUnverified(tokenSet.IDToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode ID token from exchange")
		renderPopupRelayPage(w, popupErrorSignal)
		return
	}

	sessionToken, err := f.minter.Sign(relaytoken.IdentityFromClaims(claims))
	if err != nil {
		log.Error().Err(err).Msg("Failed to mint session token")
		renderPopupRelayPage(w, popupErrorSignal)
		return
	}

	renderPopupRelayPage(w, sessionToken)
}
