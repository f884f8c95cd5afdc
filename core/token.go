package core

import "time"

// ActionToken is a single-use secret for the email-verification and
// password-reset workflows. The raw token is handed to the member exactly
// once at creation; only its hash is persisted.
type ActionToken struct {
	ID        string     `json:"id"`
	MemberID  string     `json:"memberId"`
	TokenHash string     `json:"-"` // Never expose in JSON
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Valid reports whether the token is neither used nor expired.
func (t *ActionToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// TokenConfig controls one token workflow: how long a token lives and how
// long a member must wait between issuances.
type TokenConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
}

// DefaultVerificationTokenConfig returns the email-verification defaults.
func DefaultVerificationTokenConfig() TokenConfig {
	return TokenConfig{TTL: 24 * time.Hour, ResendCooldown: time.Minute}
}

// DefaultResetTokenConfig returns the password-reset defaults. Reset tokens
// are short-lived because they grant account takeover.
func DefaultResetTokenConfig() TokenConfig {
	return TokenConfig{TTL: time.Hour, ResendCooldown: time.Minute}
}

// ResetTokenInfo is the result of validating a reset token without
// consuming it.
type ResetTokenInfo struct {
	Valid       bool   `json:"valid"`
	MaskedEmail string `json:"maskedEmail"`
}
