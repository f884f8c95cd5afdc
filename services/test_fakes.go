package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/torii-dev/torii/core"
)

// Test-only fakes implementing the core storage and outbound ports. Each
// stores records in maps and exposes error fields for behavior injection.

// ============================================
// MEMBER STORAGE
// ============================================

type FakeMemberStorage struct {
	members   map[string]*core.Member
	mu        sync.RWMutex
	createErr error
	getErr    error
	updateErr error
}

func NewFakeMemberStorage() *FakeMemberStorage {
	return &FakeMemberStorage{members: make(map[string]*core.Member)}
}

func (f *FakeMemberStorage) CreateMember(m *core.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.members {
		if existing.Email == m.Email {
			return core.ErrMemberExists
		}
		for _, conn := range m.Connections {
			if existing.Connection(conn.Provider) != nil &&
				existing.Connection(conn.Provider).ProviderID == conn.ProviderID {
				return core.ErrOAuthIdentityExists
			}
		}
	}
	f.members[m.ID] = m
	return nil
}

func (f *FakeMemberStorage) GetMemberByID(id string) (*core.Member, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	m, ok := f.members[id]
	if !ok {
		return nil, core.ErrMemberNotFound
	}
	return m, nil
}

func (f *FakeMemberStorage) GetMemberByEmail(email string) (*core.Member, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, m := range f.members {
		if m.Email == email {
			return m, nil
		}
	}
	return nil, core.ErrMemberNotFound
}

func (f *FakeMemberStorage) GetMemberByOAuth(provider core.Provider, providerID string) (*core.Member, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, m := range f.members {
		if conn := m.Connection(provider); conn != nil && conn.ProviderID == providerID {
			return m, nil
		}
	}
	return nil, core.ErrMemberNotFound
}

func (f *FakeMemberStorage) ExistsByEmail(email string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return false, f.getErr
	}
	for _, m := range f.members {
		if m.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeMemberStorage) UpdateMember(m *core.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.members[m.ID]
	if !ok {
		return core.ErrMemberNotFound
	}
	if stored != m && stored.Version != m.Version {
		return core.ErrConcurrentModification
	}
	m.Version++
	m.UpdatedAt = time.Now()
	f.members[m.ID] = m
	return nil
}

// ============================================
// SESSION STORAGE
// ============================================

type FakeSessionStorage struct {
	sessions  map[string]*core.Session
	mu        sync.RWMutex
	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func NewFakeSessionStorage() *FakeSessionStorage {
	return &FakeSessionStorage{sessions: make(map[string]*core.Session)}
}

func (f *FakeSessionStorage) CreateSession(s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.sessions[s.TokenHash]; ok {
		return core.ErrSessionTokenExists
	}
	f.sessions[s.TokenHash] = s
	return nil
}

func (f *FakeSessionStorage) GetSessionByHash(tokenHash string) (*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[tokenHash]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return s, nil
}

func (f *FakeSessionStorage) UpdateSession(s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.sessions[s.TokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	f.sessions[s.TokenHash] = s
	return nil
}

func (f *FakeSessionStorage) DeleteSessionByHash(tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.sessions, tokenHash)
	return nil
}

func (f *FakeSessionStorage) DeleteMemberSessions(memberID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	count := 0
	for hash, s := range f.sessions {
		if s.MemberID == memberID {
			delete(f.sessions, hash)
			count++
		}
	}
	return count, nil
}

func (f *FakeSessionStorage) DeleteExpiredSessions() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	count := 0
	for hash, s := range f.sessions {
		if s.IsExpired() {
			delete(f.sessions, hash)
			count++
		}
	}
	return count, nil
}

func (f *FakeSessionStorage) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}

// ============================================
// TOKEN STORAGE
// ============================================

type FakeTokenStorage struct {
	tokens    map[string]*core.ActionToken
	mu        sync.RWMutex
	createErr error
	getErr    error
	markErr   error
}

func NewFakeTokenStorage() *FakeTokenStorage {
	return &FakeTokenStorage{tokens: make(map[string]*core.ActionToken)}
}

func (f *FakeTokenStorage) CreateToken(t *core.ActionToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[t.ID] = t
	return nil
}

func (f *FakeTokenStorage) GetTokenByHash(tokenHash string) (*core.ActionToken, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, t := range f.tokens {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return nil, nil
}

func (f *FakeTokenStorage) MarkTokenUsed(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	t, ok := f.tokens[id]
	if !ok || t.UsedAt != nil {
		return core.ErrInvalidToken
	}
	now := time.Now()
	t.UsedAt = &now
	return nil
}

func (f *FakeTokenStorage) InvalidateMemberTokens(memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, t := range f.tokens {
		if t.MemberID == memberID && t.UsedAt == nil {
			t.UsedAt = &now
		}
	}
	return nil
}

func (f *FakeTokenStorage) LatestTokenCreatedAt(memberID string) (*time.Time, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var latest *time.Time
	for _, t := range f.tokens {
		if t.MemberID == memberID && (latest == nil || t.CreatedAt.After(*latest)) {
			created := t.CreatedAt
			latest = &created
		}
	}
	return latest, nil
}

func (f *FakeTokenStorage) DeleteExpiredTokens() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	now := time.Now()
	for id, t := range f.tokens {
		if now.After(t.ExpiresAt) {
			delete(f.tokens, id)
			count++
		}
	}
	return count, nil
}

func (f *FakeTokenStorage) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tokens)
}

// ============================================
// API KEY STORAGE
// ============================================

type FakeAPIKeyStorage struct {
	keys      map[string]*core.APIKey
	mu        sync.RWMutex
	createErr error
	getErr    error
	touchErr  error
}

func NewFakeAPIKeyStorage() *FakeAPIKeyStorage {
	return &FakeAPIKeyStorage{keys: make(map[string]*core.APIKey)}
}

func (f *FakeAPIKeyStorage) CreateAPIKey(k *core.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.keys[k.ID] = k
	return nil
}

func (f *FakeAPIKeyStorage) GetAPIKeyByHash(keyHash string) (*core.APIKey, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, k := range f.keys {
		if k.KeyHash == keyHash {
			return k, nil
		}
	}
	return nil, core.ErrAPIKeyNotFound
}

func (f *FakeAPIKeyStorage) ListAPIKeysByMember(memberID string) ([]*core.APIKey, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var keys []*core.APIKey
	for _, k := range f.keys {
		if k.MemberID == memberID {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *FakeAPIKeyStorage) DeleteAPIKey(memberID, keyID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[keyID]
	if !ok || k.MemberID != memberID {
		return false, nil
	}
	delete(f.keys, keyID)
	return true, nil
}

func (f *FakeAPIKeyStorage) TouchAPIKey(id, ip string, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	k, ok := f.keys[id]
	if !ok {
		return core.ErrAPIKeyNotFound
	}
	k.LastUsedIP = ip
	k.LastUsedAt = &usedAt
	return nil
}

// ============================================
// OUTBOUND FAKES
// ============================================

// FakeEmailSender records every dispatched message.
type FakeEmailSender struct {
	mu            sync.Mutex
	verifications []string // raw tokens, in send order
	resets        []string
	notifications []string // recipient emails
	sendErr       error
}

func NewFakeEmailSender() *FakeEmailSender {
	return &FakeEmailSender{}
}

func (f *FakeEmailSender) SendVerificationEmail(email, nickname, rawToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.verifications = append(f.verifications, rawToken)
	return nil
}

func (f *FakeEmailSender) SendPasswordResetEmail(email, nickname, rawToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.resets = append(f.resets, rawToken)
	return nil
}

func (f *FakeEmailSender) SendPasswordChangedNotification(email, nickname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.notifications = append(f.notifications, email)
	return nil
}

func (f *FakeEmailSender) LastVerificationToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.verifications) == 0 {
		return ""
	}
	return f.verifications[len(f.verifications)-1]
}

func (f *FakeEmailSender) LastResetToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.resets) == 0 {
		return ""
	}
	return f.resets[len(f.resets)-1]
}

// FakeEventSink collects published events.
type FakeEventSink struct {
	mu     sync.Mutex
	events []core.Event
}

func NewFakeEventSink() *FakeEventSink {
	return &FakeEventSink{}
}

func (f *FakeEventSink) Publish(events ...core.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *FakeEventSink) Types() []core.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]core.EventType, len(f.events))
	for i, e := range f.events {
		types[i] = e.Type
	}
	return types
}

// FakeOAuthClient maps authorization codes to canned user info.
type FakeOAuthClient struct {
	users       map[string]*core.OAuthUserInfo // code -> info
	exchangeErr error
	fetchErr    error
}

func NewFakeOAuthClient() *FakeOAuthClient {
	return &FakeOAuthClient{users: make(map[string]*core.OAuthUserInfo)}
}

func (f *FakeOAuthClient) AddUser(code string, info *core.OAuthUserInfo) {
	f.users[code] = info
}

func (f *FakeOAuthClient) BuildAuthorizationURL(provider core.Provider, state string) (string, error) {
	var b strings.Builder
	b.WriteString("https://example.com/oauth/")
	b.WriteString(string(provider))
	b.WriteString("?state=")
	b.WriteString(state)
	return b.String(), nil
}

func (f *FakeOAuthClient) ExchangeCode(_ context.Context, _ core.Provider, code string) (string, error) {
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return "access-" + code, nil
}

func (f *FakeOAuthClient) FetchUserInfo(_ context.Context, _ core.Provider, accessToken string) (*core.OAuthUserInfo, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	code := strings.TrimPrefix(accessToken, "access-")
	info, ok := f.users[code]
	if !ok {
		return nil, core.ErrInvalidToken
	}
	return info, nil
}
