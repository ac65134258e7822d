package apperrors

import (
	"errors"
	"fmt"
)

// Common error types for the token relay
var (
	// Login flow errors
	ErrMissingAuthorizationCode = errors.New("missing authorization code")
	ErrStateMismatch            = errors.New("state mismatch")
	ErrUnknownOrExpiredState    = errors.New("unknown or expired state")

	// Identity provider errors
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrOboExchangeFailed   = errors.New("on-behalf-of exchange failed")

	// Inbound token errors
	ErrMissingBearerToken  = errors.New("missing bearer token")
	ErrInvalidInboundToken = errors.New("invalid inbound token")
	ErrTokenExpired        = errors.New("token expired")
	ErrAudienceMismatch    = errors.New("audience mismatch")
	ErrIssuerMismatch      = errors.New("issuer mismatch")
	ErrUnknownSigningKey   = errors.New("unknown signing key")

	// Downstream API errors
	ErrDownstreamAPI = errors.New("downstream api error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
