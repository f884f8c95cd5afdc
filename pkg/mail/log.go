// Package mail provides a log-only EmailSender for development and tests.
// Production deployments supply their own core.EmailSender backed by a real
// delivery service.
package mail

import (
	"log/slog"

	"github.com/torii-dev/torii/core"
)

// LogSender writes every outgoing mail to the logger instead of delivering
// it. Raw tokens are logged at debug level only.
type LogSender struct {
	logger *slog.Logger
}

var _ core.EmailSender = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationEmail(email, nickname, rawToken string) error {
	s.logger.Info("verification email (log sender, not delivered)",
		"email", core.MaskEmail(email),
		"nickname", nickname,
	)
	s.logger.Debug("verification token", "token", rawToken)
	return nil
}

func (s *LogSender) SendPasswordResetEmail(email, nickname, rawToken string) error {
	s.logger.Info("password reset email (log sender, not delivered)",
		"email", core.MaskEmail(email),
		"nickname", nickname,
	)
	s.logger.Debug("reset token", "token", rawToken)
	return nil
}

func (s *LogSender) SendPasswordChangedNotification(email, nickname string) error {
	s.logger.Info("password changed notification (log sender, not delivered)",
		"email", core.MaskEmail(email),
		"nickname", nickname,
	)
	return nil
}
