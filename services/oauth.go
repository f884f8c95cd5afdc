package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/crypto"
)

// OAuthService drives the provider login and account-link flows. The actual
// HTTP conversation with the provider lives behind core.OAuthClient; this
// service owns identity resolution and member creation.
type OAuthService struct {
	members  core.MemberStorage
	client   core.OAuthClient
	sessions *SessionManager
	events   core.EventSink // optional
	logger   *slog.Logger
}

func NewOAuthService(
	members core.MemberStorage,
	client core.OAuthClient,
	sessions *SessionManager,
	events core.EventSink,
	logger *slog.Logger,
) *OAuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthService{
		members:  members,
		client:   client,
		sessions: sessions,
		events:   events,
		logger:   logger,
	}
}

// AuthorizationURL returns the provider consent URL for the given state.
func (s *OAuthService) AuthorizationURL(provider core.Provider, state string) (string, error) {
	return s.client.BuildAuthorizationURL(provider, state)
}

// HandleCallback completes a provider login. Resolution order:
//
//  1. A member already connected to (provider, providerID) signs in.
//  2. Otherwise a member with the same verified provider email gets the
//     connection linked implicitly and signs in.
//  3. Otherwise a new member is registered from the provider profile.
//
// Implicit email linking trusts the provider's email claim; restrict the
// configured providers to ones that verify email addresses.
func (s *OAuthService) HandleCallback(ctx context.Context, provider core.Provider, code, ipAddress, userAgent string) (*core.OAuthResult, error) {
	info, err := s.fetchUserInfo(ctx, provider, code)
	if err != nil {
		return nil, err
	}

	member, isNew, err := s.resolveMember(provider, info)
	if err != nil {
		return nil, err
	}

	result, err := s.sessions.Create(member.ID, member.Role, userAgent, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &core.OAuthResult{
		Member:      member,
		Session:     result.Session,
		Token:       result.Token,
		IsNewMember: isNew,
	}, nil
}

// HandleLinkCallback attaches a provider identity to an existing signed-in
// member. The identity must not belong to anyone yet.
func (s *OAuthService) HandleLinkCallback(ctx context.Context, memberID string, provider core.Provider, code string) (*core.Member, error) {
	info, err := s.fetchUserInfo(ctx, provider, code)
	if err != nil {
		return nil, err
	}

	owner, err := s.members.GetMemberByOAuth(provider, info.ProviderID)
	if err != nil && !errors.Is(err, core.ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to look up oauth identity: %w", err)
	}
	if owner != nil {
		if owner.ID == memberID {
			return nil, core.ErrProviderAlreadyConnected
		}
		return nil, core.ErrAlreadyLinked
	}

	member, err := s.members.GetMemberByID(memberID)
	if err != nil {
		return nil, err
	}

	connectionID, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	if err := member.ConnectOAuth(connectionID, provider, info.ProviderID); err != nil {
		return nil, err
	}

	if err := s.members.UpdateMember(member); err != nil {
		if errors.Is(err, core.ErrOAuthIdentityExists) {
			return nil, core.ErrAlreadyLinked
		}
		return nil, fmt.Errorf("failed to save member: %w", err)
	}

	publishEvents(s.events, s.logger, member.TakeEvents())
	return member, nil
}

func (s *OAuthService) fetchUserInfo(ctx context.Context, provider core.Provider, code string) (*core.OAuthUserInfo, error) {
	accessToken, err := s.client.ExchangeCode(ctx, provider, code)
	if err != nil {
		return nil, fmt.Errorf("oauth code exchange failed: %w", err)
	}

	info, err := s.client.FetchUserInfo(ctx, provider, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch oauth user info: %w", err)
	}
	if info.ProviderID == "" {
		return nil, core.ErrInvalidToken
	}
	return info, nil
}

func (s *OAuthService) resolveMember(provider core.Provider, info *core.OAuthUserInfo) (*core.Member, bool, error) {
	// Branch 1: known identity.
	member, err := s.members.GetMemberByOAuth(provider, info.ProviderID)
	if err == nil {
		return member, false, nil
	}
	if !errors.Is(err, core.ErrMemberNotFound) {
		return nil, false, fmt.Errorf("failed to look up oauth identity: %w", err)
	}

	// Branch 2: same email, implicit link. Providers must hand us a usable
	// email address to register or link at all.
	email, err := core.NormalizeEmail(info.Email)
	if err != nil {
		return nil, false, core.ErrInvalidEmail
	}

	existing, err := s.members.GetMemberByEmail(email)
	if err == nil {
		return s.linkExisting(existing, provider, info)
	}
	if !errors.Is(err, core.ErrMemberNotFound) {
		return nil, false, fmt.Errorf("failed to look up member by email: %w", err)
	}

	// Branch 3: fresh registration.
	return s.registerMember(provider, info, email)
}

func (s *OAuthService) linkExisting(member *core.Member, provider core.Provider, info *core.OAuthUserInfo) (*core.Member, bool, error) {
	connectionID, err := crypto.NewID()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate id: %w", err)
	}

	if err := member.ConnectOAuth(connectionID, provider, info.ProviderID); err != nil {
		return nil, false, err
	}

	if err := s.members.UpdateMember(member); err != nil {
		if errors.Is(err, core.ErrOAuthIdentityExists) {
			// Lost a race with a concurrent callback for the same identity.
			return s.retryLookup(provider, info.ProviderID)
		}
		return nil, false, fmt.Errorf("failed to save member: %w", err)
	}

	publishEvents(s.events, s.logger, member.TakeEvents())
	return member, false, nil
}

func (s *OAuthService) registerMember(provider core.Provider, info *core.OAuthUserInfo, email string) (*core.Member, bool, error) {
	memberID, err := crypto.NewID()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate id: %w", err)
	}
	connectionID, err := crypto.NewID()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate id: %w", err)
	}

	member, err := core.NewMemberWithOAuth(memberID, connectionID, email, nicknameFromInfo(info), provider, info.ProviderID, info.Image)
	if err != nil {
		return nil, false, err
	}

	if err := s.members.CreateMember(member); err != nil {
		if errors.Is(err, core.ErrOAuthIdentityExists) || errors.Is(err, core.ErrMemberExists) {
			// Concurrent callback won the insert; fall back to sign-in.
			return s.retryLookup(provider, info.ProviderID)
		}
		return nil, false, fmt.Errorf("failed to create member: %w", err)
	}

	s.logger.Info("member registered via oauth",
		slog.String("member_id", member.ID),
		slog.String("provider", string(provider)),
	)
	publishEvents(s.events, s.logger, member.TakeEvents())
	return member, true, nil
}

func (s *OAuthService) retryLookup(provider core.Provider, providerID string) (*core.Member, bool, error) {
	member, err := s.members.GetMemberByOAuth(provider, providerID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up oauth identity after conflict: %w", err)
	}
	return member, false, nil
}

// nicknameFromInfo derives a display name from the provider profile, falling
// back to the email local part, then to the bare provider ID.
func nicknameFromInfo(info *core.OAuthUserInfo) string {
	if name := strings.TrimSpace(info.Name); name != "" {
		return name
	}
	if at := strings.Index(info.Email, "@"); at > 0 {
		return info.Email[:at]
	}
	return info.ProviderID
}
