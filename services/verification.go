package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/crypto"
)

// VerificationService runs the email-verification token workflow: issuance
// with a resend cooldown, single-use consumption, and the idempotent
// verified flag on the member.
type VerificationService struct {
	config  core.TokenConfig
	members core.MemberStorage
	tokens  core.TokenStorage
	mail    core.EmailSender
	events  core.EventSink // optional
	logger  *slog.Logger
}

func NewVerificationService(
	config core.TokenConfig,
	members core.MemberStorage,
	tokens core.TokenStorage,
	mail core.EmailSender,
	events core.EventSink,
	logger *slog.Logger,
) *VerificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationService{
		config:  config,
		members: members,
		tokens:  tokens,
		mail:    mail,
		events:  events,
		logger:  logger,
	}
}

// SendVerificationEmail issues a fresh verification token for the member and
// dispatches it. All prior tokens are invalidated first, so at most one live
// token exists per member. Mail delivery failure is logged, never surfaced:
// the token is already persisted and valid.
func (s *VerificationService) SendVerificationEmail(memberID string) error {
	member, err := s.members.GetMemberByID(memberID)
	if err != nil {
		return err
	}
	if member.EmailVerified {
		return core.ErrEmailAlreadyVerified
	}

	if err := checkCooldown(s.tokens, memberID, s.config.ResendCooldown); err != nil {
		return err
	}

	raw, err := issueToken(s.tokens, memberID, s.config.TTL)
	if err != nil {
		return err
	}

	if s.mail != nil {
		if err := s.mail.SendVerificationEmail(member.Email, member.Nickname, raw); err != nil {
			s.logger.Warn("verification email dispatch failed",
				slog.String("member_id", memberID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// VerifyEmail consumes a raw verification token and marks the member's email
// verified. The token store's mark-as-used is the source of truth for
// single-use; a second call with the same raw token fails.
func (s *VerificationService) VerifyEmail(rawToken string) (*core.Member, error) {
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

	if err := s.tokens.MarkTokenUsed(token.ID); err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}

	member, err := s.members.GetMemberByID(token.MemberID)
	if err != nil {
		return nil, err
	}

	member.VerifyEmail()
	if err := s.members.UpdateMember(member); err != nil {
		return nil, fmt.Errorf("failed to save member: %w", err)
	}

	publishEvents(s.events, s.logger, member.TakeEvents())

	s.logger.Info("email verified", slog.String("member_id", member.ID))
	return member, nil
}

// DeleteExpired sweeps expired verification tokens and returns the count.
func (s *VerificationService) DeleteExpired() (int, error) {
	return s.tokens.DeleteExpiredTokens()
}

// checkCooldown enforces the minimum interval between token issuances for
// one member. Read-then-write with no transactional guard: two concurrent
// requests can both pass, costing at most one extra token per race window.
func checkCooldown(tokens core.TokenStorage, memberID string, cooldown time.Duration) error {
	if cooldown <= 0 {
		return nil
	}

	latest, err := tokens.LatestTokenCreatedAt(memberID)
	if err != nil {
		return fmt.Errorf("failed to check cooldown: %w", err)
	}
	if latest == nil {
		return nil
	}

	elapsed := time.Since(*latest)
	if elapsed < cooldown {
		remaining := int((cooldown - elapsed).Round(time.Second) / time.Second)
		if remaining < 1 {
			remaining = 1
		}
		return &core.CooldownError{RemainingSeconds: remaining}
	}
	return nil
}

// issueToken invalidates all of a member's live tokens and creates one new
// token, returning the raw value for delivery.
func issueToken(tokens core.TokenStorage, memberID string, ttl time.Duration) (string, error) {
	if err := tokens.InvalidateMemberTokens(memberID); err != nil {
		return "", fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	pair, err := crypto.GenerateHashedToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	id, err := crypto.NewID()
	if err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}

	now := time.Now()
	token := &core.ActionToken{
		ID:        id,
		MemberID:  memberID,
		TokenHash: pair.Hash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := tokens.CreateToken(token); err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}

	return pair.Token, nil
}

func publishEvents(sink core.EventSink, logger *slog.Logger, events []core.Event) {
	if sink == nil || len(events) == 0 {
		return
	}
	if err := sink.Publish(events...); err != nil {
		logger.Warn("event publish failed", slog.String("error", err.Error()))
	}
}
