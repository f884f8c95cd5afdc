package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/crypto"
)

// apiKeyPrefixLength is how many leading characters of the raw key are kept
// in plaintext for display. Enough to recognize a key, useless to guess it.
const apiKeyPrefixLength = 8

// APIKeyManager issues and validates long-lived machine credentials. Keys
// carry a role snapshot from creation time; a later role change on the member
// does not alter issued keys.
type APIKeyManager struct {
	keys    core.APIKeyStorage
	members core.MemberStorage
	logger  *slog.Logger
}

func NewAPIKeyManager(keys core.APIKeyStorage, members core.MemberStorage, logger *slog.Logger) *APIKeyManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyManager{keys: keys, members: members, logger: logger}
}

// Create issues a new key for the member. The raw key is returned exactly
// once; only its hash is stored.
func (m *APIKeyManager) Create(memberID, name, ipAddress string) (*core.CreateAPIKeyResult, error) {
	member, err := m.members.GetMemberByID(memberID)
	if err != nil {
		return nil, err
	}

	pair, err := crypto.GenerateHashedToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}

	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	key := &core.APIKey{
		ID:        id,
		MemberID:  member.ID,
		Role:      member.Role,
		Name:      name,
		Prefix:    pair.Token[:apiKeyPrefixLength],
		KeyHash:   pair.Hash,
		CreatedIP: ipAddress,
		CreatedAt: time.Now(),
	}

	if err := m.keys.CreateAPIKey(key); err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}

	m.logger.Info("api key created",
		slog.String("member_id", member.ID),
		slog.String("key_id", key.ID),
	)

	return &core.CreateAPIKeyResult{Key: key, RawKey: pair.Token}, nil
}

// Validate resolves a raw key to its record and stamps last use. A failed
// stamp is logged but does not fail the authentication.
func (m *APIKeyManager) Validate(rawKey, ipAddress string) (*core.APIKey, error) {
	if rawKey == "" {
		return nil, core.ErrAPIKeyNotFound
	}

	key, err := m.keys.GetAPIKeyByHash(crypto.HashToken(rawKey))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := m.keys.TouchAPIKey(key.ID, ipAddress, now); err != nil {
		m.logger.Warn("failed to stamp api key usage",
			slog.String("key_id", key.ID),
			slog.String("error", err.Error()),
		)
	} else {
		key.LastUsedIP = ipAddress
		key.LastUsedAt = &now
	}

	return key, nil
}

// List returns the member's keys. Raw key material is never recoverable;
// callers see prefix and metadata only.
func (m *APIKeyManager) List(memberID string) ([]*core.APIKey, error) {
	return m.keys.ListAPIKeysByMember(memberID)
}

// Delete removes a key the member owns. Deleting a key that does not exist
// or belongs to someone else is a silent no-op.
func (m *APIKeyManager) Delete(memberID, keyID string) error {
	deleted, err := m.keys.DeleteAPIKey(memberID, keyID)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if deleted {
		m.logger.Info("api key deleted",
			slog.String("member_id", memberID),
			slog.String("key_id", keyID),
		)
	}
	return nil
}
