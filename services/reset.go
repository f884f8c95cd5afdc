package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/crypto"
)

// ResetService runs the password-reset token workflow. Requesting a reset
// never reveals whether an email exists; completing one revokes every
// session the member holds.
type ResetService struct {
	config    core.TokenConfig
	members   core.MemberStorage
	tokens    core.TokenStorage
	passwords crypto.PasswordHandler
	policy    core.PasswordPolicy
	sessions  *SessionManager
	mail      core.EmailSender
	events    core.EventSink // optional
	logger    *slog.Logger
}

func NewResetService(
	config core.TokenConfig,
	members core.MemberStorage,
	tokens core.TokenStorage,
	passwords crypto.PasswordHandler,
	policy core.PasswordPolicy,
	sessions *SessionManager,
	mail core.EmailSender,
	events core.EventSink,
	logger *slog.Logger,
) *ResetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetService{
		config:    config,
		members:   members,
		tokens:    tokens,
		passwords: passwords,
		policy:    policy,
		sessions:  sessions,
		mail:      mail,
		events:    events,
		logger:    logger,
	}
}

// RequestPasswordReset issues a reset token for the address, if a member
// owns it. An unknown email returns success with no side effects so the
// endpoint cannot be used to enumerate accounts.
func (s *ResetService) RequestPasswordReset(email string) error {
	normalized, err := core.NormalizeEmail(email)
	if err != nil {
		// Malformed input gets the same silent success as an unknown email.
		return nil
	}

	member, err := s.members.GetMemberByEmail(normalized)
	if err != nil {
		if errors.Is(err, core.ErrMemberNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	if err := checkCooldown(s.tokens, member.ID, s.config.ResendCooldown); err != nil {
		return err
	}

	raw, err := issueToken(s.tokens, member.ID, s.config.TTL)
	if err != nil {
		return err
	}

	if s.mail != nil {
		if err := s.mail.SendPasswordResetEmail(member.Email, member.Nickname, raw); err != nil {
			s.logger.Warn("password reset email dispatch failed",
				slog.String("member_id", member.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// ValidateResetToken checks a raw token without consuming it and returns the
// masked email the reset form displays.
func (s *ResetService) ValidateResetToken(rawToken string) (*core.ResetTokenInfo, error) {
	token, err := s.lookupValidToken(rawToken)
	if err != nil {
		return nil, err
	}

	member, err := s.members.GetMemberByID(token.MemberID)
	if err != nil {
		return nil, err
	}

	return &core.ResetTokenInfo{
		Valid:       true,
		MaskedEmail: core.MaskEmail(member.Email),
	}, nil
}

// ResetPassword consumes a reset token and installs a new password. The
// policy is checked before anything is mutated, so a rejected password never
// burns a valid token. The password is persisted before sessions are
// revoked; a revocation failure is logged rather than aborting, because the
// new password is already safely in place.
func (s *ResetService) ResetPassword(rawToken, newPassword string) error {
	token, err := s.lookupValidToken(rawToken)
	if err != nil {
		return err
	}

	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}

	member, err := s.members.GetMemberByID(token.MemberID)
	if err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	member.ResetPassword(hash)
	if err := s.members.UpdateMember(member); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}

	if err := s.tokens.MarkTokenUsed(token.ID); err != nil {
		return fmt.Errorf("failed to consume token: %w", err)
	}

	// A password reset is a security event: no session issued before it may
	// survive it.
	if _, err := s.sessions.DestroyAllMemberSessions(member.ID); err != nil {
		s.logger.Error("session revocation after password reset failed",
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

	s.logger.Info("password reset completed", slog.String("member_id", member.ID))
	return nil
}

// DeleteExpired sweeps expired reset tokens and returns the count.
func (s *ResetService) DeleteExpired() (int, error) {
	return s.tokens.DeleteExpiredTokens()
}

func (s *ResetService) lookupValidToken(rawToken string) (*core.ActionToken, error) {
	if rawToken == "" {
		return nil, core.ErrInvalidToken
	}

	token, err := s.tokens.GetTokenByHash(crypto.HashToken(rawToken))
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if token == nil || !token.Valid(time.Now()) {
		return nil, core.ErrInvalidToken
	}
	return token, nil
}
