package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/torii-dev/torii/core"
)

// fakeProvider stands in for a real OAuth provider: one token endpoint, one
// user info endpoint.
func fakeProvider(t *testing.T, wantCode, accessToken, userInfoJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("code") != wantCode {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "authorization_code" {
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"` + accessToken + `","token_type":"bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+accessToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(userInfoJSON))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRegistry(server *httptest.Server, provider core.Provider) *Registry {
	return NewRegistry(map[core.Provider]Config{
		provider: {
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "https://app.example.com/callback",
			AuthURL:      server.URL + "/auth",
			TokenURL:     server.URL + "/token",
			UserInfoURL:  server.URL + "/userinfo",
		},
	})
}

func TestRegistry_BuildAuthorizationURL(t *testing.T) {
	registry := NewRegistry(map[core.Provider]Config{
		core.ProviderGoogle: {
			ClientID:    "client-id",
			RedirectURL: "https://app.example.com/callback",
		},
	})

	raw, err := registry.BuildAuthorizationURL(core.ProviderGoogle, "state-123")
	if err != nil {
		t.Fatalf("BuildAuthorizationURL() error = %v", err)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("unparseable URL %q: %v", raw, err)
	}
	if !strings.HasPrefix(raw, "https://accounts.google.com/") {
		t.Errorf("URL %q does not use the default google endpoint", raw)
	}
	query := parsed.Query()
	if query.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q", query.Get("client_id"))
	}
	if query.Get("state") != "state-123" {
		t.Errorf("state = %q", query.Get("state"))
	}
	if query.Get("response_type") != "code" {
		t.Errorf("response_type = %q", query.Get("response_type"))
	}
	if !strings.Contains(query.Get("scope"), "email") {
		t.Errorf("scope = %q, want default scopes", query.Get("scope"))
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := NewRegistry(nil)
	if _, err := registry.BuildAuthorizationURL(core.ProviderGoogle, "s"); !errors.Is(err, core.ErrUnknownProvider) {
		t.Errorf("error = %v, want ErrUnknownProvider", err)
	}
}

func TestRegistry_ExchangeCode(t *testing.T) {
	server := fakeProvider(t, "good-code", "token-abc", `{"sub":"g-1"}`)
	registry := newTestRegistry(server, core.ProviderGoogle)

	t.Run("valid code", func(t *testing.T) {
		token, err := registry.ExchangeCode(context.Background(), core.ProviderGoogle, "good-code")
		if err != nil {
			t.Fatalf("ExchangeCode() error = %v", err)
		}
		if token != "token-abc" {
			t.Errorf("token = %q", token)
		}
	})

	t.Run("rejected code", func(t *testing.T) {
		if _, err := registry.ExchangeCode(context.Background(), core.ProviderGoogle, "bad-code"); err == nil {
			t.Fatal("expected error for rejected code")
		}
	})
}

func TestRegistry_FetchUserInfo(t *testing.T) {
	tests := []struct {
		name     string
		provider core.Provider
		payload  string
		want     core.OAuthUserInfo
	}{
		{
			name:     "google",
			provider: core.ProviderGoogle,
			payload:  `{"sub":"g-1","email":"jo@example.com","name":"Jo","picture":"https://img/p.jpg"}`,
			want:     core.OAuthUserInfo{ProviderID: "g-1", Email: "jo@example.com", Name: "Jo"},
		},
		{
			name:     "github with login fallback",
			provider: core.ProviderGitHub,
			payload:  `{"id":12345,"login":"jodev","email":"jo@example.com","avatar_url":"https://img/a.png"}`,
			want:     core.OAuthUserInfo{ProviderID: "12345", Email: "jo@example.com", Name: "jodev"},
		},
		{
			name:     "kakao nested account",
			provider: core.ProviderKakao,
			payload:  `{"id":67890,"kakao_account":{"email":"jo@example.com","profile":{"nickname":"jo"}}}`,
			want:     core.OAuthUserInfo{ProviderID: "67890", Email: "jo@example.com", Name: "jo"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			server := fakeProvider(t, "code", "token-abc", test.payload)
			registry := newTestRegistry(server, test.provider)

			// Act
			info, err := registry.FetchUserInfo(context.Background(), test.provider, "token-abc")

			// Assert
			if err != nil {
				t.Fatalf("FetchUserInfo() error = %v", err)
			}
			if info.ProviderID != test.want.ProviderID {
				t.Errorf("ProviderID = %q, want %q", info.ProviderID, test.want.ProviderID)
			}
			if info.Email != test.want.Email {
				t.Errorf("Email = %q, want %q", info.Email, test.want.Email)
			}
			if info.Name != test.want.Name {
				t.Errorf("Name = %q, want %q", info.Name, test.want.Name)
			}
		})
	}
}

func TestRegistry_FetchUserInfo_MissingID(t *testing.T) {
	server := fakeProvider(t, "code", "token-abc", `{"email":"jo@example.com"}`)
	registry := newTestRegistry(server, core.ProviderGoogle)
	if _, err := registry.FetchUserInfo(context.Background(), core.ProviderGoogle, "token-abc"); err == nil {
		t.Fatal("expected error for missing sub")
	}
}
