package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/crypto"
)

// SessionManager issues, verifies, extends, and revokes sessions. Session
// tokens are stored hashed; the raw value exists only in the create result.
type SessionManager struct {
	config  core.SessionConfig
	storage core.SessionStorage
	cache   core.Cache // optional, can be nil if caching is disabled
	logger  *slog.Logger
}

func NewSessionManager(config core.SessionConfig, storage core.SessionStorage, cache core.Cache, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{config: config, storage: storage, cache: cache, logger: logger}
}

// Create issues a new session for a member. Role is snapshotted onto the
// session at creation. A token-hash collision in storage is treated as a
// retry-the-generation case, not a caller-facing error.
func (sm *SessionManager) Create(memberID string, role core.Role, userAgent, ipAddress string) (*core.CreateSessionResult, error) {
	if len(userAgent) > core.MaxUserAgentLength {
		userAgent = userAgent[:core.MaxUserAgentLength]
	}

	for attempt := 0; ; attempt++ {
		pair, err := crypto.GenerateHashedToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}

		sessionID, err := crypto.NewID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session ID: %w", err)
		}

		now := time.Now()
		session := &core.Session{
			ID:             sessionID,
			MemberID:       memberID,
			Role:           role,
			TokenHash:      pair.Hash,
			UserAgent:      userAgent,
			CreatedIP:      ipAddress,
			LastAccessedIP: ipAddress,
			CreatedAt:      now,
			UpdatedAt:      now,
			ExpiresAt:      now.Add(sm.config.TTL),
		}

		if err := sm.storage.CreateSession(session); err != nil {
			if errors.Is(err, core.ErrSessionTokenExists) && attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		if sm.cache != nil {
			// We don't fail the request if caching fails
			_ = sm.cache.Set(pair.Hash, session)
		}

		return &core.CreateSessionResult{Session: session, Token: pair.Token}, nil
	}
}

// Verify resolves a raw token to a live session. Expired sessions are
// invalid for authorization even before the sweep removes them.
func (sm *SessionManager) Verify(token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	// Try cache first if caching is enabled
	if sm.cache != nil {
		if session, err := sm.cache.Get(tokenHash); err == nil {
			if session.IsExpired() {
				_ = sm.cache.Delete(tokenHash)
				return nil, core.ErrSessionExpired
			}
			return session, nil
		}
		// Cache miss - fall through to storage
	}

	session, err := sm.storage.GetSessionByHash(tokenHash)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, core.ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, core.ErrSessionExpired
	}

	if sm.cache != nil {
		_ = sm.cache.Set(tokenHash, session)
	}

	return session, nil
}

// ExtendExpiry implements the sliding window. When the remaining TTL is at
// or below the threshold, expiry is pushed forward by the full TTL and the
// last-accessed IP is recorded; otherwise no write happens at all.
func (sm *SessionManager) ExtendExpiry(token, ipAddress string) (*core.Session, error) {
	session, err := sm.Verify(token)
	if err != nil {
		return nil, err
	}

	remaining := time.Until(session.ExpiresAt)
	if remaining > sm.config.ExtendThreshold {
		return session, nil
	}

	// The verified session may be shared with concurrent lookups through
	// the cache; mutate a copy and re-cache that instead.
	extended := *session
	now := time.Now()
	extended.ExpiresAt = now.Add(sm.config.TTL)
	extended.LastAccessedIP = ipAddress
	extended.UpdatedAt = now

	if err := sm.storage.UpdateSession(&extended); err != nil {
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}

	if sm.cache != nil {
		_ = sm.cache.Set(extended.TokenHash, &extended)
	}

	return &extended, nil
}

// Destroy deletes a single session. Idempotent.
func (sm *SessionManager) Destroy(token string) error {
	if token == "" {
		return core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	if err := sm.storage.DeleteSessionByHash(tokenHash); err != nil {
		return err
	}

	if sm.cache != nil {
		_ = sm.cache.Delete(tokenHash)
	}

	return nil
}

// DestroyAllMemberSessions revokes every session a member holds. Used on
// logout-all and on security events (password change, password reset).
func (sm *SessionManager) DestroyAllMemberSessions(memberID string) (int, error) {
	if memberID == "" {
		return 0, core.ErrMemberNotFound
	}

	count, err := sm.storage.DeleteMemberSessions(memberID)
	if err != nil {
		return 0, err
	}

	// Clear entire cache when destroying all member sessions if caching is
	// enabled. Conservative: selective invalidation would need all token
	// hashes up front, which defeats the performance benefit.
	if sm.cache != nil && count > 0 {
		_ = sm.cache.Clear()
	}

	return count, nil
}

// DeleteExpired sweeps sessions past their expiry and returns the count
// removed. Meant for periodic invocation; lookups already reject expired
// sessions, so the sweep is hygiene, not correctness.
func (sm *SessionManager) DeleteExpired() (int, error) {
	count, err := sm.storage.DeleteExpiredSessions()
	if err != nil {
		return 0, err
	}
	if count > 0 {
		sm.logger.Info("expired sessions removed", slog.Int("count", count))
	}
	return count, nil
}
