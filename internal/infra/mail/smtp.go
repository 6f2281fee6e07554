package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/avelychko/contacthub/internal/core/port"
	"github.com/avelychko/contacthub/internal/infra/config"
	"github.com/avelychko/contacthub/internal/infra/logger"
)

// SMTPSender delivers account emails over plain SMTP. It targets a local
// relay (mailhog in development), so no TLS negotiation is attempted.
type SMTPSender struct {
	addr   string
	auth   smtp.Auth
	from   string
	logger *zap.Logger
}

// NewSMTPSender constructs a sender for the configured relay.
func NewSMTPSender(cfg config.MailSettings, log *zap.Logger) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPSender{
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:   auth,
		from:   cfg.From,
		logger: log,
	}
}

// SendVerification emails the account activation link.
func (s *SMTPSender) SendVerification(ctx context.Context, email, link string) error {
	body := fmt.Sprintf("Welcome to ContactHub!\r\n\r\nConfirm your email address by following this link:\r\n%s\r\n\r\nThe link expires in 24 hours.\r\n", link)
	return s.send(ctx, email, "Confirm your email", body)
}

// SendPasswordReset emails the password reset link.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, email, link string) error {
	body := fmt.Sprintf("A password reset was requested for your ContactHub account.\r\n\r\nFollow this link to choose a new password:\r\n%s\r\n\r\nIf you did not request a reset, ignore this message.\r\n", link)
	return s.send(ctx, email, "Reset your password", body)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		logger.WithContext(ctx).Error("smtp delivery failed",
			zap.String("to", logger.MaskEmail(to)),
			zap.Error(err),
		)
		return fmt.Errorf("send mail: %w", err)
	}

	logger.WithContext(ctx).Info("mail delivered",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("subject", subject),
	)
	return nil
}

var _ port.NotificationSender = (*SMTPSender)(nil)

// LogSender writes notifications to the log instead of delivering them.
// Used when no SMTP relay is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a logging notification sender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) SendVerification(_ context.Context, email, link string) error {
	s.logger.Info("verification mail (log only)",
		zap.String("to", logger.MaskEmail(email)),
		zap.String("link", link),
	)
	return nil
}

func (s *LogSender) SendPasswordReset(_ context.Context, email, link string) error {
	s.logger.Info("password reset mail (log only)",
		zap.String("to", logger.MaskEmail(email)),
		zap.String("link", link),
	)
	return nil
}

var _ port.NotificationSender = (*LogSender)(nil)
