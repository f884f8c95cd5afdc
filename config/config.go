// Package config loads engine settings from TORII_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/providers"
)

type rawEnv struct {
	DatabaseURL string `env:"TORII_DATABASE_URL"`

	SessionTTL             time.Duration `env:"TORII_SESSION_TTL"              envDefault:"24h"`
	SessionExtendThreshold time.Duration `env:"TORII_SESSION_EXTEND_THRESHOLD" envDefault:"6h"`

	VerificationTTL      time.Duration `env:"TORII_VERIFICATION_TTL"      envDefault:"24h"`
	VerificationCooldown time.Duration `env:"TORII_VERIFICATION_COOLDOWN" envDefault:"1m"`
	ResetTTL             time.Duration `env:"TORII_RESET_TTL"             envDefault:"1h"`
	ResetCooldown        time.Duration `env:"TORII_RESET_COOLDOWN"        envDefault:"1m"`

	PasswordMinLength int `env:"TORII_PASSWORD_MIN_LENGTH" envDefault:"8"`
	PasswordMaxLength int `env:"TORII_PASSWORD_MAX_LENGTH" envDefault:"128"`

	CacheTTL     time.Duration `env:"TORII_CACHE_TTL"      envDefault:"5m"`
	CacheMaxSize int           `env:"TORII_CACHE_MAX_SIZE" envDefault:"500"`
	DisableCache bool          `env:"TORII_DISABLE_CACHE"  envDefault:"false"`

	GoogleClientID     string `env:"TORII_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"TORII_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"TORII_GOOGLE_REDIRECT_URL"`
	GitHubClientID     string `env:"TORII_GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"TORII_GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string `env:"TORII_GITHUB_REDIRECT_URL"`
	KakaoClientID      string `env:"TORII_KAKAO_CLIENT_ID"`
	KakaoClientSecret  string `env:"TORII_KAKAO_CLIENT_SECRET"`
	KakaoRedirectURL   string `env:"TORII_KAKAO_REDIRECT_URL"`
}

// Settings is the resolved engine configuration.
type Settings struct {
	DatabaseURL string

	Session      core.SessionConfig
	Verification core.TokenConfig
	Reset        core.TokenConfig
	Password     core.PasswordPolicy

	Cache        core.CacheConfig
	DisableCache bool

	// Providers holds configs for every provider with a client ID set.
	Providers map[core.Provider]providers.Config
}

// Load reads settings from the environment. Unset variables fall back to
// the documented defaults; providers without a client ID are left out.
func Load() (*Settings, error) {
	var raw rawEnv
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	policy := core.DefaultPasswordPolicy()
	policy.MinLength = raw.PasswordMinLength
	policy.MaxLength = raw.PasswordMaxLength

	settings := &Settings{
		DatabaseURL: raw.DatabaseURL,
		Session: core.SessionConfig{
			TTL:             raw.SessionTTL,
			ExtendThreshold: raw.SessionExtendThreshold,
		},
		Verification: core.TokenConfig{
			TTL:            raw.VerificationTTL,
			ResendCooldown: raw.VerificationCooldown,
		},
		Reset: core.TokenConfig{
			TTL:            raw.ResetTTL,
			ResendCooldown: raw.ResetCooldown,
		},
		Password: policy,
		Cache: core.CacheConfig{
			TTL:     raw.CacheTTL,
			MaxSize: raw.CacheMaxSize,
		},
		DisableCache: raw.DisableCache,
		Providers:    make(map[core.Provider]providers.Config),
	}

	if raw.GoogleClientID != "" {
		settings.Providers[core.ProviderGoogle] = providers.Config{
			ClientID:     raw.GoogleClientID,
			ClientSecret: raw.GoogleClientSecret,
			RedirectURL:  raw.GoogleRedirectURL,
		}
	}
	if raw.GitHubClientID != "" {
		settings.Providers[core.ProviderGitHub] = providers.Config{
			ClientID:     raw.GitHubClientID,
			ClientSecret: raw.GitHubClientSecret,
			RedirectURL:  raw.GitHubRedirectURL,
		}
	}
	if raw.KakaoClientID != "" {
		settings.Providers[core.ProviderKakao] = providers.Config{
			ClientID:     raw.KakaoClientID,
			ClientSecret: raw.KakaoClientSecret,
			RedirectURL:  raw.KakaoRedirectURL,
		}
	}

	return settings, nil
}
