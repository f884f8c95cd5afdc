// Package providers implements the outbound OAuth client for the supported
// identity providers. Endpoint URLs are overridable for tests.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/torii-dev/torii/core"
)

// Config holds one provider's OAuth application settings. Leaving the
// endpoint URLs empty selects the provider's well-known defaults.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

type endpoints struct {
	authURL     string
	tokenURL    string
	userInfoURL string
	scopes      []string
}

var defaultEndpoints = map[core.Provider]endpoints{
	core.ProviderGoogle: {
		authURL:     "https://accounts.google.com/o/oauth2/auth",
		tokenURL:    "https://oauth2.googleapis.com/token",
		userInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		scopes:      []string{"openid", "email", "profile"},
	},
	core.ProviderGitHub: {
		authURL:     "https://github.com/login/oauth/authorize",
		tokenURL:    "https://github.com/login/oauth/access_token",
		userInfoURL: "https://api.github.com/user",
		scopes:      []string{"read:user", "user:email"},
	},
	core.ProviderKakao: {
		authURL:     "https://kauth.kakao.com/oauth/authorize",
		tokenURL:    "https://kauth.kakao.com/oauth/token",
		userInfoURL: "https://kapi.kakao.com/v2/user/me",
		scopes:      []string{"profile_nickname", "profile_image", "account_email"},
	},
}

// Registry implements core.OAuthClient over a set of configured providers.
type Registry struct {
	configs map[core.Provider]Config
	client  *http.Client
}

var _ core.OAuthClient = (*Registry)(nil)

// NewRegistry builds a client for the given provider configs. Unset endpoint
// URLs and scopes fall back to the provider defaults.
func NewRegistry(configs map[core.Provider]Config) *Registry {
	resolved := make(map[core.Provider]Config, len(configs))
	for provider, config := range configs {
		defaults := defaultEndpoints[provider]
		if config.AuthURL == "" {
			config.AuthURL = defaults.authURL
		}
		if config.TokenURL == "" {
			config.TokenURL = defaults.tokenURL
		}
		if config.UserInfoURL == "" {
			config.UserInfoURL = defaults.userInfoURL
		}
		if len(config.Scopes) == 0 {
			config.Scopes = defaults.scopes
		}
		resolved[provider] = config
	}
	return &Registry{
		configs: resolved,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Registry) config(provider core.Provider) (Config, error) {
	config, ok := r.configs[provider]
	if !ok {
		return Config{}, core.ErrUnknownProvider
	}
	return config, nil
}

// BuildAuthorizationURL returns the provider consent URL with the given
// state parameter.
func (r *Registry) BuildAuthorizationURL(provider core.Provider, state string) (string, error) {
	config, err := r.config(provider)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"client_id":     {config.ClientID},
		"redirect_uri":  {config.RedirectURL},
		"response_type": {"code"},
		"scope":         {strings.Join(config.Scopes, " ")},
		"state":         {state},
	}
	return config.AuthURL + "?" + params.Encode(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode trades an authorization code for an access token.
func (r *Registry) ExchangeCode(ctx context.Context, provider core.Provider, code string) (string, error) {
	config, err := r.config(provider)
	if err != nil {
		return "", err
	}

	data := url.Values{
		"code":          {code},
		"client_id":     {config.ClientID},
		"client_secret": {config.ClientSecret},
		"redirect_uri":  {config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// GitHub answers with form-encoded data unless asked for JSON.
	req.Header.Set("Accept", "application/json")

	body, err := r.do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}
	return token.AccessToken, nil
}

// FetchUserInfo retrieves the provider identity behind an access token.
func (r *Registry) FetchUserInfo(ctx context.Context, provider core.Provider, accessToken string) (*core.OAuthUserInfo, error) {
	config, err := r.config(provider)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	body, err := r.do(req)
	if err != nil {
		return nil, fmt.Errorf("user info fetch failed: %w", err)
	}

	switch provider {
	case core.ProviderGoogle:
		return parseGoogleUserInfo(body)
	case core.ProviderGitHub:
		return parseGitHubUserInfo(body)
	case core.ProviderKakao:
		return parseKakaoUserInfo(body)
	default:
		return nil, core.ErrUnknownProvider
	}
}

func (r *Registry) do(req *http.Request) ([]byte, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func parseGoogleUserInfo(body []byte) (*core.OAuthUserInfo, error) {
	var payload struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	if payload.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}
	info := &core.OAuthUserInfo{
		ProviderID: payload.Sub,
		Email:      payload.Email,
		Name:       payload.Name,
	}
	if payload.Picture != "" {
		info.Image = &payload.Picture
	}
	return info, nil
}

func parseGitHubUserInfo(body []byte) (*core.OAuthUserInfo, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("empty id in user info response")
	}
	name := payload.Name
	if name == "" {
		name = payload.Login
	}
	info := &core.OAuthUserInfo{
		ProviderID: strconv.FormatInt(payload.ID, 10),
		Email:      payload.Email,
		Name:       name,
	}
	if payload.AvatarURL != "" {
		info.Image = &payload.AvatarURL
	}
	return info, nil
}

func parseKakaoUserInfo(body []byte) (*core.OAuthUserInfo, error) {
	var payload struct {
		ID      int64 `json:"id"`
		Account struct {
			Email   string `json:"email"`
			Profile struct {
				Nickname string `json:"nickname"`
				ImageURL string `json:"profile_image_url"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("empty id in user info response")
	}
	info := &core.OAuthUserInfo{
		ProviderID: strconv.FormatInt(payload.ID, 10),
		Email:      payload.Account.Email,
		Name:       payload.Account.Profile.Nickname,
	}
	if payload.Account.Profile.ImageURL != "" {
		info.Image = &payload.Account.Profile.ImageURL
	}
	return info, nil
}
