// Package relaystate holds the per-attempt anti-forgery state for pending
// logins: the state/nonce pair issued at /auth/start and checked at
// /auth/callback.
package relaystate

import "time"

// PendingAttempt is one in-flight login. It is single use: Consume removes
// it, and a second callback carrying the same state must fail.
type PendingAttempt struct {
	State     string
	Nonce     string
	CreatedAt time.Time
}

// Repo stores pending login attempts
type Repo interface {
	// Create generates an unpredictable state/nonce pair and stores it
	Create() (*PendingAttempt, error)

	// Consume atomically looks up and invalidates the attempt for a state.
	// At most one caller succeeds per attempt, even under concurrent
	// duplicate callbacks. Unknown, already-consumed, and expired states
	// fail with apperrors.ErrUnknownOrExpiredState.
	Consume(state string) (*PendingAttempt, error)
}
