package services

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/cache"
	"github.com/torii-dev/torii/pkg/crypto"
)

func newTestSessionManager(storage core.SessionStorage, c core.Cache) *SessionManager {
	return NewSessionManager(core.DefaultSessionConfig(), storage, c, nil)
}

// Requirement: Create generates a session whose raw token verifies against
// the stored hash.
func TestSessionManager_Create(t *testing.T) {
	tests := []struct {
		name      string
		memberID  string
		role      core.Role
		userAgent string
		ip        string
	}{
		{name: "normal browser session", memberID: "m1", role: core.RoleUser, userAgent: "Mozilla/5.0", ip: "192.168.1.1"},
		{name: "admin session", memberID: "m2", role: core.RoleAdmin, userAgent: "curl/8.0", ip: "10.0.0.1"},
		{name: "empty user agent", memberID: "m3", role: core.RoleUser, userAgent: "", ip: "10.0.0.2"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			storage := NewFakeSessionStorage()
			manager := newTestSessionManager(storage, nil)

			// Act
			result, err := manager.Create(test.memberID, test.role, test.userAgent, test.ip)

			// Assert
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if result.Token == "" {
				t.Fatal("Token is empty")
			}
			if result.Session.TokenHash != crypto.HashToken(result.Token) {
				t.Error("stored TokenHash does not match raw token")
			}
			if result.Session.MemberID != test.memberID {
				t.Errorf("MemberID = %q, want %q", result.Session.MemberID, test.memberID)
			}
			if result.Session.Role != test.role {
				t.Errorf("Role = %q, want %q", result.Session.Role, test.role)
			}
			if result.Session.CreatedIP != test.ip || result.Session.LastAccessedIP != test.ip {
				t.Errorf("IPs = (%q, %q), want both %q", result.Session.CreatedIP, result.Session.LastAccessedIP, test.ip)
			}
		})
	}
}

// Requirement: an oversized user agent is truncated, not rejected.
func TestSessionManager_Create_TruncatesUserAgent(t *testing.T) {
	// Arrange
	manager := newTestSessionManager(NewFakeSessionStorage(), nil)
	longUA := strings.Repeat("x", core.MaxUserAgentLength+100)

	// Act
	result, err := manager.Create("m1", core.RoleUser, longUA, "1.2.3.4")

	// Assert
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(result.Session.UserAgent) != core.MaxUserAgentLength {
		t.Errorf("UserAgent length = %d, want %d", len(result.Session.UserAgent), core.MaxUserAgentLength)
	}
}

// Requirement: TokenHash must never appear in serialized sessions.
func TestSessionManager_Create_TokenHashNotExposed(t *testing.T) {
	// Arrange
	manager := newTestSessionManager(NewFakeSessionStorage(), nil)
	result, err := manager.Create("m1", core.RoleUser, "Mozilla/5.0", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Act
	data, err := json.Marshal(result.Session)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	// Assert
	if _, exists := m["tokenHash"]; exists {
		t.Error("TokenHash exposed in JSON")
	}
}

// Requirement: a hash collision on insert is retried once with a fresh token.
func TestSessionManager_Create_RetriesOnTokenCollision(t *testing.T) {
	// Arrange
	storage := NewFakeSessionStorage()
	storage.createErr = core.ErrSessionTokenExists
	manager := newTestSessionManager(storage, nil)

	// Act: both attempts collide, so creation fails.
	_, err := manager.Create("m1", core.RoleUser, "ua", "1.2.3.4")

	// Assert
	if !errors.Is(err, core.ErrSessionTokenExists) {
		t.Fatalf("error = %v, want ErrSessionTokenExists", err)
	}
}

// Requirement: Verify resolves a raw token and rejects expired sessions.
func TestSessionManager_Verify(t *testing.T) {
	// Arrange
	storage := NewFakeSessionStorage()
	manager := newTestSessionManager(storage, nil)
	result, err := manager.Create("m1", core.RoleUser, "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		session, err := manager.Verify(result.Token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if session.ID != result.Session.ID {
			t.Errorf("session ID = %q, want %q", session.ID, result.Session.ID)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := manager.Verify("no-such-token")
		if !errors.Is(err, core.ErrSessionNotFound) {
			t.Errorf("error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("expired session", func(t *testing.T) {
		result.Session.ExpiresAt = time.Now().Add(-time.Minute)
		_, err := manager.Verify(result.Token)
		if !errors.Is(err, core.ErrSessionExpired) {
			t.Errorf("error = %v, want ErrSessionExpired", err)
		}
	})
}

// Requirement: ExtendExpiry slides the window only when less than the
// extend threshold remains.
func TestSessionManager_ExtendExpiry(t *testing.T) {
	tests := []struct {
		name       string
		remaining  time.Duration
		wantExtend bool
	}{
		{name: "plenty of time left", remaining: 20 * time.Hour, wantExtend: false},
		{name: "inside threshold", remaining: 2 * time.Hour, wantExtend: true},
		{name: "about to expire", remaining: time.Minute, wantExtend: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			storage := NewFakeSessionStorage()
			manager := newTestSessionManager(storage, nil)
			result, err := manager.Create("m1", core.RoleUser, "ua", "1.2.3.4")
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			result.Session.ExpiresAt = time.Now().Add(test.remaining)
			before := result.Session.ExpiresAt

			// Act
			session, err := manager.ExtendExpiry(result.Token, "5.6.7.8")

			// Assert
			if err != nil {
				t.Fatalf("ExtendExpiry() error = %v", err)
			}
			extended := session.ExpiresAt.After(before)
			if extended != test.wantExtend {
				t.Errorf("extended = %v, want %v", extended, test.wantExtend)
			}
			if test.wantExtend && session.LastAccessedIP != "5.6.7.8" {
				t.Errorf("LastAccessedIP = %q, want %q", session.LastAccessedIP, "5.6.7.8")
			}
		})
	}
}

// Requirement: extension never writes to the session instance other callers
// already hold; the cached object stays immutable once handed out.
func TestSessionManager_ExtendExpiry_CopiesSharedSession(t *testing.T) {
	// Arrange
	storage := NewFakeSessionStorage()
	c := cache.NewInMemoryCache(core.CacheConfig{TTL: time.Minute, MaxSize: 10})
	config := core.SessionConfig{TTL: 24 * time.Hour, ExtendThreshold: 24 * time.Hour}
	manager := NewSessionManager(config, storage, c, nil)
	result, err := manager.Create("m1", core.RoleUser, "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	shared, err := manager.Verify(result.Token) // populates the cache
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	expiryBefore := shared.ExpiresAt
	ipBefore := shared.LastAccessedIP

	// Act
	extended, err := manager.ExtendExpiry(result.Token, "5.6.7.8")

	// Assert
	if err != nil {
		t.Fatalf("ExtendExpiry() error = %v", err)
	}
	if extended == shared {
		t.Fatal("ExtendExpiry returned the shared instance instead of a copy")
	}
	if !shared.ExpiresAt.Equal(expiryBefore) || shared.LastAccessedIP != ipBefore {
		t.Error("previously handed-out session was mutated")
	}
	if !extended.ExpiresAt.After(expiryBefore) {
		t.Error("returned session was not extended")
	}
	refreshed, err := manager.Verify(result.Token)
	if err != nil {
		t.Fatalf("Verify() after extension error = %v", err)
	}
	if !refreshed.ExpiresAt.Equal(extended.ExpiresAt) {
		t.Error("subsequent lookups do not see the extension")
	}
}

// Requirement: extensions and lookups on the same token may run
// concurrently; run with the race detector enabled.
func TestSessionManager_ExtendExpiry_ConcurrentWithVerify(t *testing.T) {
	// Arrange
	storage := NewFakeSessionStorage()
	c := cache.NewInMemoryCache(core.CacheConfig{TTL: time.Minute, MaxSize: 10})
	config := core.SessionConfig{TTL: 24 * time.Hour, ExtendThreshold: 24 * time.Hour}
	manager := NewSessionManager(config, storage, c, nil)
	result, err := manager.Create("m1", core.RoleUser, "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Act
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := manager.ExtendExpiry(result.Token, "5.6.7.8"); err != nil {
					t.Errorf("ExtendExpiry() error = %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				session, err := manager.Verify(result.Token)
				if err != nil {
					t.Errorf("Verify() error = %v", err)
					return
				}
				if session.ExpiresAt.IsZero() {
					t.Error("session has no expiry")
					return
				}
			}
		}()
	}
	wg.Wait()

	// Assert
	if _, err := manager.Verify(result.Token); err != nil {
		t.Errorf("Verify() after concurrent extension = %v", err)
	}
}

// Requirement: Destroy removes the session from storage and cache.
func TestSessionManager_Destroy(t *testing.T) {
	// Arrange
	storage := NewFakeSessionStorage()
	c := cache.NewInMemoryCache(core.CacheConfig{TTL: time.Minute, MaxSize: 10})
	manager := newTestSessionManager(storage, c)
	result, err := manager.Create("m1", core.RoleUser, "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Act
	if err := manager.Destroy(result.Token); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	// Assert
	if _, err := manager.Verify(result.Token); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("Verify() after Destroy = %v, want ErrSessionNotFound", err)
	}
}

// Requirement: DestroyAllMemberSessions removes only the member's sessions
// and reports the count.
func TestSessionManager_DestroyAllMemberSessions(t *testing.T) {
	// Arrange
	storage := NewFakeSessionStorage()
	manager := newTestSessionManager(storage, nil)
	for i := 0; i < 3; i++ {
		if _, err := manager.Create("victim", core.RoleUser, "ua", "1.2.3.4"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	other, err := manager.Create("bystander", core.RoleUser, "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Act
	count, err := manager.DestroyAllMemberSessions("victim")

	// Assert
	if err != nil {
		t.Fatalf("DestroyAllMemberSessions() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if _, err := manager.Verify(other.Token); err != nil {
		t.Errorf("bystander session gone: %v", err)
	}
}

// Requirement: DeleteExpired sweeps only expired sessions.
func TestSessionManager_DeleteExpired(t *testing.T) {
	// Arrange
	storage := NewFakeSessionStorage()
	manager := newTestSessionManager(storage, nil)
	live, err := manager.Create("m1", core.RoleUser, "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	dead, err := manager.Create("m2", core.RoleUser, "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	dead.Session.ExpiresAt = time.Now().Add(-time.Hour)

	// Act
	count, err := manager.DeleteExpired()

	// Assert
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if storage.Len() != 1 {
		t.Errorf("storage has %d sessions, want 1", storage.Len())
	}
	if _, err := manager.Verify(live.Token); err != nil {
		t.Errorf("live session gone: %v", err)
	}
}
