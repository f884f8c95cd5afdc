package core

import "time"

// APIKey is a long-lived bearer credential for programmatic access. The raw
// key material is returned once at creation; lookups operate on its hash.
// Prefix is a short non-secret identifier for telling keys apart in a list.
type APIKey struct {
	ID         string     `json:"id"`
	MemberID   string     `json:"memberId"`
	Role       Role       `json:"role"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"-"` // Never expose in JSON
	CreatedIP  string     `json:"createdIp,omitempty"`
	LastUsedIP string     `json:"lastUsedIp,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// CreateAPIKeyResult pairs the stored key metadata with the raw key, the
// only time the raw value is available.
type CreateAPIKeyResult struct {
	Key    *APIKey `json:"key"`
	RawKey string  `json:"rawKey"`
}
