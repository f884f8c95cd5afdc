package core

import (
	"strings"
	"time"
)

// Role is a coarse authorization level snapshotted onto sessions and API keys.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Provider identifies an external OAuth identity provider. The set is closed;
// adding a provider means adding a constant here and endpoints in providers.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
	ProviderKakao  Provider = "kakao"
)

// ParseProvider validates a provider name from untrusted input.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderGitHub:
		return ProviderGitHub, nil
	case ProviderKakao:
		return ProviderKakao, nil
	default:
		return "", ErrUnknownProvider
	}
}

// OAuthConnection links a member to one provider account.
type OAuthConnection struct {
	ID          string    `json:"id"`
	Provider    Provider  `json:"provider"`
	ProviderID  string    `json:"providerId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Member is the account aggregate.
//
// Invariant: a member always has at least one usable login method, either a
// password hash or one or more OAuth connections. Every mutation below
// preserves it.
type Member struct {
	ID            string            `json:"id"`
	Email         string            `json:"email"`
	Nickname      string            `json:"nickname"`
	Image         *string           `json:"image,omitempty"`
	PasswordHash  *string           `json:"-"` // Never expose in JSON
	EmailVerified bool              `json:"emailVerified"`
	Connections   []OAuthConnection `json:"connections"`
	Role          Role              `json:"role"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`

	events []Event
}

// NewMemberWithEmail creates a member from email registration.
// The member starts unverified, with a password and no connections.
func NewMemberWithEmail(id, email, nickname, passwordHash string) (*Member, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(nickname) == "" {
		return nil, ErrNicknameRequired
	}

	now := time.Now()
	m := &Member{
		ID:            id,
		Email:         normalized,
		Nickname:      nickname,
		PasswordHash:  &passwordHash,
		EmailVerified: false,
		Role:          RoleUser,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.record(EventMemberRegistered, "")
	return m, nil
}

// NewMemberWithOAuth creates a member from OAuth registration. The provider
// is trusted to have verified the email, so the member starts verified, with
// no password and exactly one connection.
func NewMemberWithOAuth(id, connectionID, email, nickname string, provider Provider, providerID string, image *string) (*Member, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(nickname) == "" {
		return nil, ErrNicknameRequired
	}

	now := time.Now()
	m := &Member{
		ID:            id,
		Email:         normalized,
		Nickname:      nickname,
		Image:         image,
		EmailVerified: true,
		Role:          RoleUser,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		Connections: []OAuthConnection{{
			ID:          connectionID,
			Provider:    provider,
			ProviderID:  providerID,
			ConnectedAt: now,
		}},
	}
	m.record(EventMemberRegistered, provider)
	return m, nil
}

// HasPassword reports whether the member can log in with a password.
func (m *Member) HasPassword() bool {
	return m.PasswordHash != nil && *m.PasswordHash != ""
}

// Connection returns the connection for a provider, or nil.
func (m *Member) Connection(provider Provider) *OAuthConnection {
	for i := range m.Connections {
		if m.Connections[i].Provider == provider {
			return &m.Connections[i]
		}
	}
	return nil
}

// ConnectOAuth adds a provider connection. Each provider may appear at most
// once per member.
func (m *Member) ConnectOAuth(connectionID string, provider Provider, providerID string) error {
	if m.Connection(provider) != nil {
		return ErrProviderAlreadyConnected
	}

	m.Connections = append(m.Connections, OAuthConnection{
		ID:          connectionID,
		Provider:    provider,
		ProviderID:  providerID,
		ConnectedAt: time.Now(),
	})
	m.touch()
	m.record(EventOAuthConnected, provider)
	return nil
}

// DisconnectOAuth removes a provider connection. Refused when it would leave
// the member with no login method at all.
func (m *Member) DisconnectOAuth(provider Provider) error {
	idx := -1
	for i := range m.Connections {
		if m.Connections[i].Provider == provider {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrProviderNotConnected
	}
	if len(m.Connections) == 1 && !m.HasPassword() {
		return ErrLastLoginMethod
	}

	m.Connections = append(m.Connections[:idx], m.Connections[idx+1:]...)
	m.touch()
	m.record(EventOAuthDisconnected, provider)
	return nil
}

// SetPassword adds a password to a member that has none. OAuth-only members
// use this; members with a password must go through ChangePassword.
func (m *Member) SetPassword(hash string) error {
	if m.HasPassword() {
		return ErrPasswordAlreadySet
	}
	m.PasswordHash = &hash
	m.touch()
	m.record(EventPasswordSet, "")
	return nil
}

// ChangePassword replaces an existing password.
func (m *Member) ChangePassword(hash string) error {
	if !m.HasPassword() {
		return ErrPasswordNotSet
	}
	m.PasswordHash = &hash
	m.touch()
	m.record(EventPasswordChanged, "")
	return nil
}

// ResetPassword installs a new password unconditionally. Used by the
// token-based reset workflow, which has already proven control of the email.
func (m *Member) ResetPassword(hash string) {
	m.PasswordHash = &hash
	m.touch()
	m.record(EventPasswordChanged, "")
}

// VerifyEmail marks the email as verified. Idempotent: verifying an already
// verified member changes nothing and emits nothing.
func (m *Member) VerifyEmail() {
	if m.EmailVerified {
		return
	}
	m.EmailVerified = true
	m.touch()
	m.record(EventEmailVerified, "")
}

// UpdateProfile changes nickname and/or profile image. Passing nil leaves a
// field untouched. When nothing would change, no state changes and no event
// is emitted.
func (m *Member) UpdateProfile(nickname, image *string) error {
	if nickname != nil && strings.TrimSpace(*nickname) == "" {
		return ErrNicknameRequired
	}

	changed := false
	if nickname != nil && *nickname != m.Nickname {
		m.Nickname = *nickname
		changed = true
	}
	if image != nil && (m.Image == nil || *m.Image != *image) {
		m.Image = image
		changed = true
	}
	if !changed {
		return nil
	}

	m.touch()
	m.record(EventProfileUpdated, "")
	return nil
}

// TakeEvents returns the events recorded since the last call and clears them.
func (m *Member) TakeEvents() []Event {
	events := m.events
	m.events = nil
	return events
}

func (m *Member) touch() {
	m.UpdatedAt = time.Now()
}

func (m *Member) record(t EventType, provider Provider) {
	m.events = append(m.events, Event{
		Type:       t,
		MemberID:   m.ID,
		Provider:   provider,
		OccurredAt: time.Now(),
	})
}

// NormalizeEmail lowercases and trims an address and checks the local@domain
// shape. The domain must contain a dot.
func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrEmailRequired
	}

	at := strings.LastIndex(normalized, "@")
	if at <= 0 || at == len(normalized)-1 {
		return "", ErrInvalidEmail
	}
	domain := normalized[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", ErrInvalidEmail
	}
	if strings.ContainsAny(normalized, " \t\n") {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// MaskEmail hides most of the local part for display on the reset-token
// validation screen: "jo****@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "****"
	}
	local, domain := email[:at], email[at:]
	visible := local
	if len(local) > 2 {
		visible = local[:2]
	}
	return visible + "****" + domain
}
