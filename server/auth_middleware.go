package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/mkerhoas/outlook-relay/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyClaims stores parsed token claims
	ContextKeyClaims ContextKey = "claims"
	// ContextKeyInboundToken stores the raw validated bearer token; the
	// on-behalf-of exchange needs it as its assertion.
	ContextKeyInboundToken ContextKey = "inbound_token"
)

// RequireAuth is middleware that validates a Bearer token in the
// Authorization header: signature against the provider's published keys,
// audience against this service's client id, issuer against the expected
// provider issuer. Nothing past this middleware ever sees an unvalidated
// token.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Debug().Err(apperrors.ErrMissingBearerToken).Str("path", r.URL.Path).Msg("Request without Authorization header")
				writeJSONError(w, "unauthorized", "Missing Authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeJSONError(w, "unauthorized", "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			rawToken := parts[1]
			if rawToken == "" {
				writeJSONError(w, "unauthorized", "Empty token", http.StatusUnauthorized)
				return
			}

			claims, err := s.verifier.Verify(r.Context(), rawToken)
			if err != nil {
				// Log the rejection for abuse detection, never the token
				log.Warn().
					Err(err).
					Str("remote_addr", r.RemoteAddr).
					Str("path", r.URL.Path).
					Msg("Rejected inbound bearer token")
				writeJSONError(w, "unauthorized", "Invalid token", http.StatusUnauthorized)
				return
			}

			userID, _ := claims["oid"].(string)
			if userID == "" {
				userID, _ = claims["sub"].(string)
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			ctx = context.WithValue(ctx, ContextKeyInboundToken, rawToken)
			r = r.WithContext(ctx)

			next(w, r)
		}
	}
}
