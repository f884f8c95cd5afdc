package services

import (
	"fmt"
	"log/slog"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/crypto"
)

// MemberService covers account self-management: profile updates, password
// set/change, and OAuth disconnects. Each operation is a load-check-save on
// the aggregate; the optimistic version guards concurrent writers.
type MemberService struct {
	members   core.MemberStorage
	passwords crypto.PasswordHandler
	policy    core.PasswordPolicy
	sessions  *SessionManager
	mail      core.EmailSender
	events    core.EventSink // optional
	logger    *slog.Logger
}

func NewMemberService(
	members core.MemberStorage,
	passwords crypto.PasswordHandler,
	policy core.PasswordPolicy,
	sessions *SessionManager,
	mail core.EmailSender,
	events core.EventSink,
	logger *slog.Logger,
) *MemberService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberService{
		members:   members,
		passwords: passwords,
		policy:    policy,
		sessions:  sessions,
		mail:      mail,
		events:    events,
		logger:    logger,
	}
}

// GetMember loads a member by ID.
func (s *MemberService) GetMember(memberID string) (*core.Member, error) {
	return s.members.GetMemberByID(memberID)
}

// UpdateProfile changes nickname and/or profile image. A no-op update (same
// values) does not write or emit anything.
func (s *MemberService) UpdateProfile(memberID string, nickname, image *string) (*core.Member, error) {
	member, err := s.members.GetMemberByID(memberID)
	if err != nil {
		return nil, err
	}

	if err := member.UpdateProfile(nickname, image); err != nil {
		return nil, err
	}

	events := member.TakeEvents()
	if len(events) == 0 {
		return member, nil
	}

	if err := s.members.UpdateMember(member); err != nil {
		return nil, fmt.Errorf("failed to save member: %w", err)
	}

	publishEvents(s.events, s.logger, events)
	return member, nil
}

// SetPassword adds a password to an OAuth-only member. Fails when a password
// already exists; existing sessions remain valid because no credential was
// replaced.
func (s *MemberService) SetPassword(memberID, password string) error {
	if err := s.policy.Validate(password); err != nil {
		return err
	}

	member, err := s.members.GetMemberByID(memberID)
	if err != nil {
		return err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := member.SetPassword(hash); err != nil {
		return err
	}

	if err := s.members.UpdateMember(member); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}

	publishEvents(s.events, s.logger, member.TakeEvents())
	return nil
}

// ChangePassword replaces an existing password after verifying the current
// one, then revokes every session the member holds and sends a notification.
func (s *MemberService) ChangePassword(memberID, currentPassword, newPassword string) error {
	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}

	member, err := s.members.GetMemberByID(memberID)
	if err != nil {
		return err
	}

	if !member.HasPassword() {
		return core.ErrPasswordNotSet
	}

	valid, err := s.passwords.Verify(currentPassword, *member.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return core.ErrInvalidCredentials
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := member.ChangePassword(hash); err != nil {
		return err
	}

	if err := s.members.UpdateMember(member); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}

	// Same rule as password reset: a credential change invalidates every
	// outstanding session.
	if _, err := s.sessions.DestroyAllMemberSessions(member.ID); err != nil {
		s.logger.Error("session revocation after password change failed",
			slog.String("member_id", member.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.mail != nil {
		if err := s.mail.SendPasswordChangedNotification(member.Email, member.Nickname); err != nil {
			s.logger.Warn("password changed notification dispatch failed",
				slog.String("member_id", member.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	publishEvents(s.events, s.logger, member.TakeEvents())
	return nil
}

// DisconnectOAuth removes a provider connection. The aggregate refuses when
// the connection is the member's only remaining login method.
func (s *MemberService) DisconnectOAuth(memberID string, provider core.Provider) error {
	member, err := s.members.GetMemberByID(memberID)
	if err != nil {
		return err
	}

	if err := member.DisconnectOAuth(provider); err != nil {
		return err
	}

	if err := s.members.UpdateMember(member); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}

	publishEvents(s.events, s.logger, member.TakeEvents())
	return nil
}
