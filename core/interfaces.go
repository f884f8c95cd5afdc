package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies.

// ============================================
// STORAGE PORTS (database operations)
// ============================================

// MemberStorage defines member-related database operations.
//
// UpdateMember compares the aggregate's Version against the stored row and
// fails with ErrConcurrentModification on mismatch; on success it bumps the
// version and refreshes UpdatedAt on the passed aggregate.
type MemberStorage interface {
	CreateMember(m *Member) error
	GetMemberByID(id string) (*Member, error)
	GetMemberByEmail(email string) (*Member, error)
	GetMemberByOAuth(provider Provider, providerID string) (*Member, error)
	ExistsByEmail(email string) (bool, error)
	UpdateMember(m *Member) error
}

// SessionStorage defines session-related database operations. Deletes are
// idempotent: removing a session that does not exist is not an error.
type SessionStorage interface {
	CreateSession(s *Session) error
	GetSessionByHash(tokenHash string) (*Session, error)
	UpdateSession(s *Session) error
	DeleteSessionByHash(tokenHash string) error
	DeleteMemberSessions(memberID string) (int, error)
	DeleteExpiredSessions() (int, error)
}

// TokenStorage defines operations for one action-token workflow. The
// verification and reset workflows each get their own instance.
//
// GetTokenByHash returns (nil, nil) when no token matches. MarkTokenUsed is
// the source of truth for single-use: it must fail if the token is already
// used.
type TokenStorage interface {
	CreateToken(t *ActionToken) error
	GetTokenByHash(tokenHash string) (*ActionToken, error)
	MarkTokenUsed(id string) error
	InvalidateMemberTokens(memberID string) error
	LatestTokenCreatedAt(memberID string) (*time.Time, error)
	DeleteExpiredTokens() (int, error)
}

// APIKeyStorage defines API-key database operations.
//
// DeleteAPIKey is scoped to the owning member and reports whether a row was
// removed; callers deliberately ignore the false case.
type APIKeyStorage interface {
	CreateAPIKey(k *APIKey) error
	GetAPIKeyByHash(keyHash string) (*APIKey, error)
	ListAPIKeysByMember(memberID string) ([]*APIKey, error)
	DeleteAPIKey(memberID, keyID string) (bool, error)
	TouchAPIKey(id, ip string, usedAt time.Time) error
}

// AuthStorage bundles every store the engine needs. The token workflows use
// separate physical stores so that invalidation in one never touches the
// other.
type AuthStorage interface {
	MemberStorage
	SessionStorage
	APIKeyStorage

	VerificationTokens() TokenStorage
	ResetTokens() TokenStorage
}

// ============================================
// CACHE PORT
// ============================================

// Cache defines session caching operations, keyed by token hash.
type Cache interface {
	Get(tokenHash string) (*Session, error)
	Set(tokenHash string, session *Session) error
	Delete(tokenHash string) error
	Clear() error
}

// CacheWithStats extends Cache with statistics tracking.
type CacheWithStats interface {
	Cache
	Stats() CacheStats
}

// CacheConfig configures cache behavior.
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats tracks cache performance metrics.
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// ============================================
// OUTBOUND PORTS
// ============================================

// EmailSender dispatches transactional mail. Fire-and-forget from the
// engine's perspective: workflows log failures and never surface them.
type EmailSender interface {
	SendVerificationEmail(email, nickname, rawToken string) error
	SendPasswordResetEmail(email, nickname, rawToken string) error
	SendPasswordChangedNotification(email, nickname string) error
}

// OAuthUserInfo is the identity a provider reports for an access token.
type OAuthUserInfo struct {
	ProviderID string
	Email      string
	Name       string
	Image      *string
}

// OAuthClient talks to external OAuth providers: authorization URL
// construction, code-for-token exchange, and user-info retrieval.
type OAuthClient interface {
	BuildAuthorizationURL(provider Provider, state string) (string, error)
	ExchangeCode(ctx context.Context, provider Provider, code string) (accessToken string, err error)
	FetchUserInfo(ctx context.Context, provider Provider, accessToken string) (*OAuthUserInfo, error)
}

// ============================================
// AUTH PROVIDER (for HTTP adapters)
// ============================================

// SignUpInput contains the data needed to register a member with a password.
type SignUpInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Nickname string  `json:"nickname"`
	Image    *string `json:"image,omitempty"`
}

// SignInInput contains the credentials for password authentication.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult contains the member and their fresh session. Token is the raw
// bearer value, not the hash.
type AuthResult struct {
	Member  *Member  `json:"member"`
	Session *Session `json:"session"`
	Token   string   `json:"token"`
}

// OAuthResult is AuthResult plus whether the callback auto-registered a new
// member.
type OAuthResult struct {
	Member      *Member  `json:"member"`
	Session     *Session `json:"session"`
	Token       string   `json:"token"`
	IsNewMember bool     `json:"isNewMember"`
}

// AuthProvider is the command surface HTTP adapters program against.
type AuthProvider interface {
	SignUp(input SignUpInput, ipAddress, userAgent string) (*AuthResult, error)
	SignIn(input SignInInput, ipAddress, userAgent string) (*AuthResult, error)
	SignOut(token string) error
	GetSession(token string) (*SessionData, error)
	ExtendSession(token, ipAddress string) (*Session, error)

	GetMember(memberID string) (*Member, error)
	UpdateProfile(memberID string, nickname, image *string) (*Member, error)
	SetPassword(memberID, password string) error
	ChangePassword(memberID, currentPassword, newPassword string) error
	DisconnectOAuth(memberID string, provider Provider) error

	SendVerificationEmail(memberID string) error
	VerifyEmail(rawToken string) (*Member, error)

	RequestPasswordReset(email string) error
	ValidateResetToken(rawToken string) (*ResetTokenInfo, error)
	ResetPassword(rawToken, newPassword string) error

	AuthorizationURL(provider Provider, state string) (string, error)
	HandleOAuthCallback(ctx context.Context, provider Provider, code, ipAddress, userAgent string) (*OAuthResult, error)
	HandleLinkCallback(ctx context.Context, memberID string, provider Provider, code string) (*Member, error)

	CreateAPIKey(memberID, name, ipAddress string) (*CreateAPIKeyResult, error)
	ValidateAPIKey(rawKey, ipAddress string) (*APIKey, error)
	ListAPIKeys(memberID string) ([]*APIKey, error)
	DeleteAPIKey(memberID, keyID string) error
}

// ============================================
// HTTP PORT
// ============================================

// HTTPAdapter registers the auth routes on a web framework.
type HTTPAdapter interface {
	RegisterRoutes(handler AuthProvider, basePath string) error
}
