package server

import "net/http"

// AuthFlow is one login-relay strategy. Two variants exist: the popup relay
// (trusted same-origin dialog, no state binding) and the cookie-bound flow
// (CSRF-hardened, tolerates cross-origin redirects). Exactly one is active,
// selected by configuration.
type AuthFlow interface {
	// Start begins a login attempt by redirecting to the provider's
	// authorize endpoint.
	Start(w http.ResponseWriter, r *http.Request)

	// Callback receives the provider redirect carrying the authorization
	// code, finishes the exchange, and renders the page that delivers the
	// result across the dialog/window boundary.
	Callback(w http.ResponseWriter, r *http.Request)
}

func (s *Server) AuthStartHandler() http.HandlerFunc {
	return s.flow.Start
}

func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return s.flow.Callback
}
