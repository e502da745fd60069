package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/interfaces"
	"github.com/flexops/flexfill/internal/models"
)

// State is the session lifecycle state.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateReady           State = "ready"
	StateExpired         State = "expired"
	StateFailed          State = "failed"
)

// maxAcquireRetries bounds re-acquisition beyond the first attempt. The
// login collaborator blocks on a human, so it must never loop silently.
const maxAcquireRetries = 1

// ErrAuthFailed indicates no valid credentials could be obtained within the
// bounded retry budget. Fatal to the run.
var ErrAuthFailed = errors.New("authentication failed")

// Session orchestrates credential acquisition and supplies the rendered
// Cookie header shared by all fetch tasks. The header is captured once,
// before any fetch starts, and is read-only afterwards.
type Session struct {
	store         interfaces.CredentialStore
	authenticator interfaces.Authenticator
	expiryGrace   time.Duration
	logger        arbor.ILogger
	now           func() time.Time

	mu    sync.Mutex
	state State
	set   models.CredentialSet
}

// NewSession creates a session in the Unauthenticated state.
func NewSession(store interfaces.CredentialStore, authenticator interfaces.Authenticator, expiryGrace time.Duration, logger arbor.ILogger) *Session {
	return &Session{
		store:         store,
		authenticator: authenticator,
		expiryGrace:   expiryGrace,
		logger:        logger,
		now:           time.Now,
		state:         StateUnauthenticated,
	}
}

// WithClock overrides the session's clock. Test hook.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsureReady returns a rendered Cookie header backed by valid credentials,
// acquiring fresh ones through the interactive login collaborator when the
// persisted set is missing, corrupt, or expired. Acquisition is retried at
// most once before the session transitions to Failed.
func (s *Session) EnsureReady(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateReady && s.set.Valid(s.now()) {
		return s.set.Header(), nil
	}

	// An explicitly invalidated session means the persisted set was rejected
	// by the server even though it is still time-valid. Reloading it would
	// hand the same rejected cookies straight back, so go directly to a
	// fresh acquisition.
	if s.state == StateExpired {
		s.logger.Info().Msg("Session invalidated, forcing fresh authentication")
	} else if set, err := s.store.Load(); err == nil {
		if set.Valid(s.now()) {
			s.transition(StateReady)
			s.set = set
			return set.Header(), nil
		}
		s.logger.Info().Int("records", len(set)).Msg("Saved credentials expired, re-authenticating")
	} else if errors.Is(err, ErrNotFound) {
		s.logger.Info().Msg("No saved credentials for today, authenticating")
	} else {
		// Corrupt or unreadable file: recover by forcing re-authentication.
		s.logger.Warn().Err(err).Msg("Failed to load saved credentials, re-authenticating")
	}

	var lastErr error
	for attempt := 0; attempt <= maxAcquireRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn().
				Int("attempt", attempt+1).
				Err(lastErr).
				Msg("Retrying credential acquisition")
		}

		header, err := s.acquire(ctx)
		if err == nil {
			return header, nil
		}
		lastErr = err
	}

	s.transition(StateFailed)
	return "", fmt.Errorf("%w after %d attempts: %v", ErrAuthFailed, maxAcquireRetries+1, lastErr)
}

// acquire runs one blocking acquisition through the login collaborator and
// persists the result. Caller holds the lock.
func (s *Session) acquire(ctx context.Context) (string, error) {
	s.transition(StateAuthenticating)

	set, err := s.authenticator.AcquireCredentials(ctx)
	if err != nil {
		return "", fmt.Errorf("interactive login failed: %w", err)
	}

	// Extend captured expiries so same-day reuse stays reliable.
	if s.expiryGrace > 0 {
		set.Extend(s.expiryGrace)
	}

	if !set.Valid(s.now()) {
		return "", fmt.Errorf("captured credential set is not valid (%d records)", len(set))
	}

	if err := s.store.Save(set); err != nil {
		return "", fmt.Errorf("failed to persist credentials: %w", err)
	}

	s.transition(StateReady)
	s.set = set
	return set.Header(), nil
}

// Invalidate marks the session expired, forcing re-authentication on the
// next EnsureReady. Callers use this after repeated 401/403 responses.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transition(StateExpired)
	s.set = nil
}

// transition updates the state and logs the change. Caller holds the lock.
func (s *Session) transition(to State) {
	if s.state == to {
		return
	}
	s.logger.Info().
		Str("from", string(s.state)).
		Str("to", string(to)).
		Msg("Auth session state changed")
	s.state = to
}
