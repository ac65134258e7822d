package relaystate

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/mkerhoas/outlook-relay/internal/apperrors"
)

const (
	// DefaultTTL is how long an unconsumed attempt stays valid.
	DefaultTTL = 10 * time.Minute

	// DefaultMaxAttempts caps the store so abandoned attempts cannot grow
	// it unboundedly. The oldest attempt is evicted when the cap is hit.
	DefaultMaxAttempts = 10_000

	stateLength = 32
	nonceLength = 32
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. Expired attempts are purged lazily on Create and Consume;
// there is no background sweep.
type InMemoryRepo struct {
	mu          sync.Mutex
	ttl         time.Duration
	maxAttempts int
	attempts    map[string]*PendingAttempt
}

// NewInMemoryRepo creates a new in-memory pending attempt repository. Zero
// values fall back to DefaultTTL and DefaultMaxAttempts.
func NewInMemoryRepo(ttl time.Duration, maxAttempts int) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &InMemoryRepo{
		ttl:         ttl,
		maxAttempts: maxAttempts,
		attempts:    make(map[string]*PendingAttempt),
	}
}

// Create generates a cryptographically random state/nonce pair and stores
// the attempt.
func (r *InMemoryRepo) Create() (*PendingAttempt, error) {
	state, err := randomString(stateLength)
	if err != nil {
		return nil, fmt.Errorf("[relaystate Create] failed to generate state: %w", err)
	}
	nonce, err := randomString(nonceLength)
	if err != nil {
		return nil, fmt.Errorf("[relaystate Create] failed to generate nonce: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeExpiredLocked()
	if len(r.attempts) >= r.maxAttempts {
		r.evictOldestLocked()
	}

	attempt := &PendingAttempt{
		State:     state,
		Nonce:     nonce,
		CreatedAt: NowTimeFunc(),
	}
	r.attempts[state] = attempt

	return copyAttempt(attempt), nil
}

// Consume is the atomic check-and-invalidate step: lookup and delete happen
// under one lock so a replayed or duplicated callback cannot succeed twice.
func (r *InMemoryRepo) Consume(state string) (*PendingAttempt, error) {
	if state == "" {
		return nil, apperrors.ErrUnknownOrExpiredState
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeExpiredLocked()

	attempt, exists := r.attempts[state]
	if !exists {
		return nil, apperrors.ErrUnknownOrExpiredState
	}
	delete(r.attempts, state)

	return copyAttempt(attempt), nil
}

func (r *InMemoryRepo) purgeExpiredLocked() {
	cutoff := NowTimeFunc().Add(-r.ttl)
	for state, attempt := range r.attempts {
		if attempt.CreatedAt.Before(cutoff) {
			delete(r.attempts, state)
		}
	}
}

func (r *InMemoryRepo) evictOldestLocked() {
	var oldestState string
	var oldestAt time.Time
	for state, attempt := range r.attempts {
		if oldestState == "" || attempt.CreatedAt.Before(oldestAt) {
			oldestState = state
			oldestAt = attempt.CreatedAt
		}
	}
	if oldestState != "" {
		delete(r.attempts, oldestState)
	}
}

// copyAttempt returns a copy to prevent external modifications
func copyAttempt(a *PendingAttempt) *PendingAttempt {
	return &PendingAttempt{
		State:     a.State,
		Nonce:     a.Nonce,
		CreatedAt: a.CreatedAt,
	}
}

// randomString creates a random base64url string from n bytes of entropy
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
