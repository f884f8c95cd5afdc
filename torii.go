// Package torii is a member identity, credential and session lifecycle
// engine. It owns the member aggregate, password and OAuth credentials,
// email verification and password reset workflows, sliding sessions, and
// API keys, behind pluggable storage, mail, and HTTP adapters.
package torii

import (
	"context"
	"log/slog"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/cache"
	"github.com/torii-dev/torii/pkg/crypto"
	"github.com/torii-dev/torii/pkg/mail"
	"github.com/torii-dev/torii/providers"
	"github.com/torii-dev/torii/services"
)

// interfaces
type (
	AuthStorage = core.AuthStorage
	Cache       = core.Cache
	EmailSender = core.EmailSender
	OAuthClient = core.OAuthClient
	EventSink   = core.EventSink

	HTTPAdapter  = core.HTTPAdapter
	AuthProvider = core.AuthProvider

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	SessionConfig  = core.SessionConfig
	TokenConfig    = core.TokenConfig
	CacheConfig    = core.CacheConfig
	PasswordPolicy = core.PasswordPolicy
	ProviderConfig = providers.Config
)

type (
	Member          = core.Member
	OAuthConnection = core.OAuthConnection
	Session         = core.Session
	SessionData     = core.SessionData
	APIKey          = core.APIKey
	ActionToken     = core.ActionToken
	Event           = core.Event
	Provider        = core.Provider
	Role            = core.Role
	CacheStats      = core.CacheStats

	SignUpInput        = core.SignUpInput
	SignInInput        = core.SignInInput
	AuthResult         = core.AuthResult
	OAuthResult        = core.OAuthResult
	ResetTokenInfo     = core.ResetTokenInfo
	CreateAPIKeyResult = core.CreateAPIKeyResult
	CooldownError      = core.CooldownError
)

const defaultBasePath = "/api/auth"

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache = cache.NewInMemoryCache
	NewArgon2        = crypto.NewArgon2

	DefaultSessionConfig           = core.DefaultSessionConfig
	DefaultPasswordPolicy          = core.DefaultPasswordPolicy
	DefaultVerificationTokenConfig = core.DefaultVerificationTokenConfig
	DefaultResetTokenConfig        = core.DefaultResetTokenConfig
)

const (
	ProviderGoogle = core.ProviderGoogle
	ProviderGitHub = core.ProviderGitHub
	ProviderKakao  = core.ProviderKakao

	RoleUser  = core.RoleUser
	RoleAdmin = core.RoleAdmin
)

var (
	ErrMemberExists       = core.ErrMemberExists
	ErrMemberNotFound     = core.ErrMemberNotFound
	ErrInvalidCredentials = core.ErrInvalidCredentials
)

var (
	ErrMissingAuthHeader = core.ErrMissingAuthHeader
	ErrInvalidAuthHeader = core.ErrInvalidAuthHeader
	ErrInvalidToken      = core.ErrInvalidToken
	ErrSessionNotFound   = core.ErrSessionNotFound
	ErrSessionExpired    = core.ErrSessionExpired
	ErrCacheNotFound     = core.ErrCacheNotFound
)

var (
	ErrEmailRequired    = core.ErrEmailRequired
	ErrInvalidEmail     = core.ErrInvalidEmail
	ErrNicknameRequired = core.ErrNicknameRequired
	ErrPasswordRequired = core.ErrPasswordRequired
	ErrPasswordTooShort = core.ErrPasswordTooShort
	ErrPasswordTooLong  = core.ErrPasswordTooLong
	ErrPasswordTooWeak  = core.ErrPasswordTooWeak
)

var (
	ErrProviderAlreadyConnected = core.ErrProviderAlreadyConnected
	ErrProviderNotConnected     = core.ErrProviderNotConnected
	ErrPasswordAlreadySet       = core.ErrPasswordAlreadySet
	ErrPasswordNotSet           = core.ErrPasswordNotSet
	ErrLastLoginMethod          = core.ErrLastLoginMethod
	ErrOAuthIdentityExists      = core.ErrOAuthIdentityExists
	ErrAlreadyLinked            = core.ErrAlreadyLinked
	ErrUnknownProvider          = core.ErrUnknownProvider
	ErrConcurrentModification   = core.ErrConcurrentModification
)

var (
	ErrEmailAlreadyVerified = core.ErrEmailAlreadyVerified
	ErrResendCooldown       = core.ErrResendCooldown
	ErrAPIKeyNotFound       = core.ErrAPIKeyNotFound
	ErrStorageRequired      = core.ErrStorageRequired
)

// Config wires the engine. Storage is the only required field; everything
// else has a working default.
type Config struct {
	Storage AuthStorage

	// Optional adapters
	HTTP         HTTPAdapter
	Mail         EmailSender
	OAuth        OAuthClient
	Events       EventSink
	CacheAdapter Cache

	// Optional tuning
	SessionConfig      *SessionConfig
	VerificationConfig *TokenConfig
	ResetConfig        *TokenConfig
	PasswordPolicy     *PasswordPolicy
	PasswordHasher     PasswordHandler
	CacheConfig        *CacheConfig
	DisableCache       bool

	// OAuth provider credentials, used when no OAuth client is supplied.
	Providers map[Provider]ProviderConfig

	BasePath string
	Logger   *slog.Logger
}

// Torii is the assembled engine. It implements core.AuthProvider, so it can
// be handed straight to an HTTP adapter, and exposes the underlying services
// for direct library use.
type Torii struct {
	Auth         *services.AuthService
	Sessions     *services.SessionManager
	Members      *services.MemberService
	Verification *services.VerificationService
	Reset        *services.ResetService
	OAuth        *services.OAuthService
	APIKeys      *services.APIKeyManager

	BasePath string
}

var _ core.AuthProvider = (*Torii)(nil)

// noopSink drops events. Default when no sink is configured.
type noopSink struct{}

func (noopSink) Publish(...Event) error { return nil }

func New(config Config) (*Torii, error) {
	if config.Storage == nil {
		return nil, ErrStorageRequired
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Set Defaults

	cacheAdapter := config.CacheAdapter
	if cacheAdapter == nil && !config.DisableCache {
		cacheConfig := config.CacheConfig
		if cacheConfig == nil {
			cacheConfig = &CacheConfig{}
		}
		cacheAdapter = NewInMemoryCache(*cacheConfig)
	}

	sessionConfig := config.SessionConfig
	if sessionConfig == nil {
		defaults := DefaultSessionConfig()
		sessionConfig = &defaults
	}

	verificationConfig := config.VerificationConfig
	if verificationConfig == nil {
		defaults := DefaultVerificationTokenConfig()
		verificationConfig = &defaults
	}

	resetConfig := config.ResetConfig
	if resetConfig == nil {
		defaults := DefaultResetTokenConfig()
		resetConfig = &defaults
	}

	policy := config.PasswordPolicy
	if policy == nil {
		defaults := DefaultPasswordPolicy()
		policy = &defaults
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = NewArgon2()
	}

	mailSender := config.Mail
	if mailSender == nil {
		mailSender = mail.NewLogSender(logger)
	}

	oauthClient := config.OAuth
	if oauthClient == nil {
		oauthClient = providers.NewRegistry(config.Providers)
	}

	eventSink := config.Events
	if eventSink == nil {
		eventSink = noopSink{}
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	sessions := services.NewSessionManager(*sessionConfig, config.Storage, cacheAdapter, logger)
	verification := services.NewVerificationService(*verificationConfig, config.Storage, config.Storage.VerificationTokens(), mailSender, eventSink, logger)
	reset := services.NewResetService(*resetConfig, config.Storage, config.Storage.ResetTokens(), passwordHasher, *policy, sessions, mailSender, eventSink, logger)
	auth := services.NewAuthService(config.Storage, passwordHasher, *policy, sessions, verification, eventSink, logger)
	members := services.NewMemberService(config.Storage, passwordHasher, *policy, sessions, mailSender, eventSink, logger)
	oauth := services.NewOAuthService(config.Storage, oauthClient, sessions, eventSink, logger)
	apikeys := services.NewAPIKeyManager(config.Storage, config.Storage, logger)

	torii := &Torii{
		Auth:         auth,
		Sessions:     sessions,
		Members:      members,
		Verification: verification,
		Reset:        reset,
		OAuth:        oauth,
		APIKeys:      apikeys,
		BasePath:     basePath,
	}

	if config.HTTP != nil {
		if err := config.HTTP.RegisterRoutes(torii, basePath); err != nil {
			return nil, err
		}
	}

	return torii, nil
}

// ============================================
// AuthProvider delegation
// ============================================

func (t *Torii) SignUp(input SignUpInput, ipAddress, userAgent string) (*AuthResult, error) {
	return t.Auth.SignUp(input, ipAddress, userAgent)
}

func (t *Torii) SignIn(input SignInInput, ipAddress, userAgent string) (*AuthResult, error) {
	return t.Auth.SignIn(input, ipAddress, userAgent)
}

func (t *Torii) SignOut(token string) error {
	return t.Auth.SignOut(token)
}

func (t *Torii) GetSession(token string) (*SessionData, error) {
	return t.Auth.GetSession(token)
}

func (t *Torii) ExtendSession(token, ipAddress string) (*Session, error) {
	return t.Sessions.ExtendExpiry(token, ipAddress)
}

func (t *Torii) GetMember(memberID string) (*Member, error) {
	return t.Members.GetMember(memberID)
}

func (t *Torii) UpdateProfile(memberID string, nickname, image *string) (*Member, error) {
	return t.Members.UpdateProfile(memberID, nickname, image)
}

func (t *Torii) SetPassword(memberID, password string) error {
	return t.Members.SetPassword(memberID, password)
}

func (t *Torii) ChangePassword(memberID, currentPassword, newPassword string) error {
	return t.Members.ChangePassword(memberID, currentPassword, newPassword)
}

func (t *Torii) DisconnectOAuth(memberID string, provider Provider) error {
	return t.Members.DisconnectOAuth(memberID, provider)
}

func (t *Torii) SendVerificationEmail(memberID string) error {
	return t.Verification.SendVerificationEmail(memberID)
}

func (t *Torii) VerifyEmail(rawToken string) (*Member, error) {
	return t.Verification.VerifyEmail(rawToken)
}

func (t *Torii) RequestPasswordReset(email string) error {
	return t.Reset.RequestPasswordReset(email)
}

func (t *Torii) ValidateResetToken(rawToken string) (*ResetTokenInfo, error) {
	return t.Reset.ValidateResetToken(rawToken)
}

func (t *Torii) ResetPassword(rawToken, newPassword string) error {
	return t.Reset.ResetPassword(rawToken, newPassword)
}

func (t *Torii) AuthorizationURL(provider Provider, state string) (string, error) {
	return t.OAuth.AuthorizationURL(provider, state)
}

func (t *Torii) HandleOAuthCallback(ctx context.Context, provider Provider, code, ipAddress, userAgent string) (*OAuthResult, error) {
	return t.OAuth.HandleCallback(ctx, provider, code, ipAddress, userAgent)
}

func (t *Torii) HandleLinkCallback(ctx context.Context, memberID string, provider Provider, code string) (*Member, error) {
	return t.OAuth.HandleLinkCallback(ctx, memberID, provider, code)
}

func (t *Torii) CreateAPIKey(memberID, name, ipAddress string) (*CreateAPIKeyResult, error) {
	return t.APIKeys.Create(memberID, name, ipAddress)
}

func (t *Torii) ValidateAPIKey(rawKey, ipAddress string) (*APIKey, error) {
	return t.APIKeys.Validate(rawKey, ipAddress)
}

func (t *Torii) ListAPIKeys(memberID string) ([]*APIKey, error) {
	return t.APIKeys.List(memberID)
}

func (t *Torii) DeleteAPIKey(memberID, keyID string) error {
	return t.APIKeys.Delete(memberID, keyID)
}

// CleanupExpired removes expired sessions and action tokens. Run it
// periodically from a scheduler; each count is reported even when a later
// store fails.
func (t *Torii) CleanupExpired() (sessions, verifications, resets int, err error) {
	sessions, err = t.Sessions.DeleteExpired()
	if err != nil {
		return sessions, 0, 0, err
	}
	verifications, err = t.Verification.DeleteExpired()
	if err != nil {
		return sessions, verifications, 0, err
	}
	resets, err = t.Reset.DeleteExpired()
	return sessions, verifications, resets, err
}
