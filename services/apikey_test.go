package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/torii-dev/torii/core"
)

func newAPIKeyFixture(t *testing.T) (*APIKeyManager, *FakeAPIKeyStorage, *FakeMemberStorage) {
	t.Helper()
	keys := NewFakeAPIKeyStorage()
	members := NewFakeMemberStorage()
	member, err := core.NewMemberWithEmail("m1", "jo@example.com", "jo", "argon2-hash")
	if err != nil {
		t.Fatalf("NewMemberWithEmail() error = %v", err)
	}
	member.TakeEvents()
	if err := members.CreateMember(member); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	return NewAPIKeyManager(keys, members, nil), keys, members
}

// Requirement: Create returns the raw key once, stores only its hash, and
// snapshots the member's role.
func TestAPIKeyManager_Create(t *testing.T) {
	// Arrange
	manager, keys, members := newAPIKeyFixture(t)
	member, _ := members.GetMemberByID("m1")
	member.Role = core.RoleAdmin

	// Act
	result, err := manager.Create("m1", "ci-deploy", "1.2.3.4")

	// Assert
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.RawKey == "" {
		t.Fatal("RawKey is empty")
	}
	if result.Key.KeyHash == result.RawKey {
		t.Error("raw key stored instead of hash")
	}
	if !strings.HasPrefix(result.RawKey, result.Key.Prefix) {
		t.Errorf("Prefix %q is not a prefix of the raw key", result.Key.Prefix)
	}
	if result.Key.Role != core.RoleAdmin {
		t.Errorf("Role = %q, want role snapshot %q", result.Key.Role, core.RoleAdmin)
	}
	if result.Key.Name != "ci-deploy" {
		t.Errorf("Name = %q", result.Key.Name)
	}
	stored, err := keys.GetAPIKeyByHash(result.Key.KeyHash)
	if err != nil {
		t.Fatalf("key not stored: %v", err)
	}
	if stored.CreatedIP != "1.2.3.4" {
		t.Errorf("CreatedIP = %q", stored.CreatedIP)
	}
}

func TestAPIKeyManager_Create_UnknownMember(t *testing.T) {
	manager, _, _ := newAPIKeyFixture(t)
	if _, err := manager.Create("ghost", "x", "1.2.3.4"); !errors.Is(err, core.ErrMemberNotFound) {
		t.Errorf("error = %v, want ErrMemberNotFound", err)
	}
}

// Requirement: Validate resolves the raw key and stamps last use; a failed
// stamp does not fail authentication.
func TestAPIKeyManager_Validate(t *testing.T) {
	// Arrange
	manager, keys, _ := newAPIKeyFixture(t)
	created, err := manager.Create("m1", "ci-deploy", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("valid key", func(t *testing.T) {
		key, err := manager.Validate(created.RawKey, "5.6.7.8")
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if key.ID != created.Key.ID {
			t.Errorf("ID = %q, want %q", key.ID, created.Key.ID)
		}
		if key.LastUsedIP != "5.6.7.8" || key.LastUsedAt == nil {
			t.Errorf("usage not stamped: ip=%q, at=%v", key.LastUsedIP, key.LastUsedAt)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if _, err := manager.Validate("not-a-key", "5.6.7.8"); !errors.Is(err, core.ErrAPIKeyNotFound) {
			t.Errorf("error = %v, want ErrAPIKeyNotFound", err)
		}
	})

	t.Run("empty key", func(t *testing.T) {
		if _, err := manager.Validate("", "5.6.7.8"); !errors.Is(err, core.ErrAPIKeyNotFound) {
			t.Errorf("error = %v, want ErrAPIKeyNotFound", err)
		}
	})

	t.Run("touch failure ignored", func(t *testing.T) {
		keys.touchErr = errors.New("db timeout")
		defer func() { keys.touchErr = nil }()
		if _, err := manager.Validate(created.RawKey, "5.6.7.8"); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}

// Requirement: Delete is ownership-scoped and silent about misses.
func TestAPIKeyManager_Delete(t *testing.T) {
	// Arrange
	manager, _, members := newAPIKeyFixture(t)
	other, err := core.NewMemberWithEmail("m2", "other@example.com", "other", "argon2-hash")
	if err != nil {
		t.Fatalf("NewMemberWithEmail() error = %v", err)
	}
	other.TakeEvents()
	if err := members.CreateMember(other); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	created, err := manager.Create("m1", "ci-deploy", "1.2.3.4")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Act: someone else's delete is a no-op, the key survives.
	if err := manager.Delete("m2", created.Key.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := manager.Validate(created.RawKey, "1.2.3.4"); err != nil {
		t.Fatal("key deleted by non-owner")
	}

	// Owner's delete removes it; repeating is still fine.
	if err := manager.Delete("m1", created.Key.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := manager.Validate(created.RawKey, "1.2.3.4"); !errors.Is(err, core.ErrAPIKeyNotFound) {
		t.Errorf("error = %v, want ErrAPIKeyNotFound", err)
	}
	if err := manager.Delete("m1", created.Key.ID); err != nil {
		t.Fatalf("repeat Delete() error = %v", err)
	}
}

// Requirement: List returns only the member's keys.
func TestAPIKeyManager_List(t *testing.T) {
	// Arrange
	manager, _, members := newAPIKeyFixture(t)
	other, err := core.NewMemberWithEmail("m2", "other@example.com", "other", "argon2-hash")
	if err != nil {
		t.Fatalf("NewMemberWithEmail() error = %v", err)
	}
	other.TakeEvents()
	if err := members.CreateMember(other); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	for _, name := range []string{"one", "two"} {
		if _, err := manager.Create("m1", name, "1.2.3.4"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := manager.Create("m2", "theirs", "1.2.3.4"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Act
	list, err := manager.List("m1")

	// Assert
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len = %d, want 2", len(list))
	}
	for _, k := range list {
		if k.MemberID != "m1" {
			t.Errorf("foreign key in list: %+v", k)
		}
	}
}
