package core

import "time"

// MaxUserAgentLength caps the stored user agent string.
const MaxUserAgentLength = 512

// Session represents an active login session. The raw bearer token is
// returned to the client once at creation; only its hash is stored.
//
// Role is a snapshot taken at creation, not re-derived per request.
type Session struct {
	ID             string    `json:"id"`
	MemberID       string    `json:"memberId"`
	Role           Role      `json:"role"`
	TokenHash      string    `json:"-"` // Never expose in JSON
	UserAgent      string    `json:"userAgent,omitempty"`
	CreatedIP      string    `json:"createdIp,omitempty"`
	LastAccessedIP string    `json:"lastAccessedIp,omitempty"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IsExpired reports whether the session has passed its expiry. An expired
// session that the sweep has not removed yet is still invalid for
// authorization.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionConfig controls session lifetime.
//
// ExtendThreshold bounds write amplification of the sliding window: expiry
// is only pushed forward once the remaining TTL falls to the threshold or
// below.
type SessionConfig struct {
	TTL             time.Duration
	ExtendThreshold time.Duration
}

// DefaultSessionConfig returns a 24h session extended during its last 6h.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TTL:             24 * time.Hour,
		ExtendThreshold: 6 * time.Hour,
	}
}

// CreateSessionResult pairs a persisted session with the raw token, the only
// time the raw value is available.
type CreateSessionResult struct {
	Session *Session `json:"session"`
	Token   string   `json:"token"`
}

// SessionData combines member and session info, the shape returned to clients.
type SessionData struct {
	Member  *Member  `json:"member"`
	Session *Session `json:"session"`
}
