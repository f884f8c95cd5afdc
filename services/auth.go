package services

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/torii-dev/torii/core"
	"github.com/torii-dev/torii/pkg/crypto"
)

// AuthService implements password sign-up, sign-in, and session retrieval.
type AuthService struct {
	members      core.MemberStorage
	passwords    crypto.PasswordHandler
	policy       core.PasswordPolicy
	sessions     *SessionManager
	verification *VerificationService // optional, sends the initial verification mail
	events       core.EventSink       // optional
	logger       *slog.Logger
}

func NewAuthService(
	members core.MemberStorage,
	passwords crypto.PasswordHandler,
	policy core.PasswordPolicy,
	sessions *SessionManager,
	verification *VerificationService,
	events core.EventSink,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		members:      members,
		passwords:    passwords,
		policy:       policy,
		sessions:     sessions,
		verification: verification,
		events:       events,
		logger:       logger,
	}
}

// SignUp registers a new member with email and password. The member starts
// unverified; a verification mail is dispatched out-of-band and its failure
// never fails the registration.
func (s *AuthService) SignUp(input core.SignUpInput, ipAddress, userAgent string) (*core.AuthResult, error) {
	email, err := core.NormalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Validate(input.Password); err != nil {
		return nil, err
	}

	exists, err := s.members.ExistsByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing member: %w", err)
	}
	if exists {
		return nil, core.ErrMemberExists
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate member ID: %w", err)
	}

	member, err := core.NewMemberWithEmail(id, email, input.Nickname, hash)
	if err != nil {
		return nil, err
	}
	member.Image = input.Image

	if err := s.members.CreateMember(member); err != nil {
		if errors.Is(err, core.ErrMemberExists) {
			return nil, core.ErrMemberExists
		}
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	publishEvents(s.events, s.logger, member.TakeEvents())

	if s.verification != nil {
		if err := s.verification.SendVerificationEmail(member.ID); err != nil {
			s.logger.Warn("initial verification email not sent",
				slog.String("member_id", member.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	result, err := s.sessions.Create(member.ID, member.Role, userAgent, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("member registered",
		slog.String("member_id", member.ID),
	)

	return &core.AuthResult{Member: member, Session: result.Session, Token: result.Token}, nil
}

// SignIn authenticates a member with email and password. All failure shapes
// collapse into ErrInvalidCredentials so the response does not reveal which
// emails exist.
func (s *AuthService) SignIn(input core.SignInInput, ipAddress, userAgent string) (*core.AuthResult, error) {
	email, err := core.NormalizeEmail(input.Email)
	if err != nil {
		return nil, core.ErrInvalidCredentials
	}

	member, err := s.members.GetMemberByEmail(email)
	if err != nil {
		if errors.Is(err, core.ErrMemberNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}

	if !member.HasPassword() {
		return nil, core.ErrInvalidCredentials
	}

	valid, err := s.passwords.Verify(input.Password, *member.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, core.ErrInvalidCredentials
	}

	result, err := s.sessions.Create(member.ID, member.Role, userAgent, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &core.AuthResult{Member: member, Session: result.Session, Token: result.Token}, nil
}

// SignOut invalidates the current session.
func (s *AuthService) SignOut(token string) error {
	return s.sessions.Destroy(token)
}

// GetSession retrieves session data by token.
func (s *AuthService) GetSession(token string) (*core.SessionData, error) {
	session, err := s.sessions.Verify(token)
	if err != nil {
		return nil, err
	}

	member, err := s.members.GetMemberByID(session.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &core.SessionData{Member: member, Session: session}, nil
}
