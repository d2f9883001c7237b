// Package notify sends outbound email. Every send is best-effort: callers
// log failures and move on, they never fail the triggering operation.
package notify

import (
	"context"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
)

// Mailer delivers a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends through an SMTP server via go-mail.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

// NewSMTPMailer builds an SMTP-backed mailer from config.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Port),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, err
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return m.client.DialAndSendWithContext(ctx, msg)
}

// Close shuts down the SMTP connection.
func (m *SMTPMailer) Close() error {
	return m.client.Close()
}

// LogMailer logs messages instead of sending them. Used when SMTP is not
// configured, e.g. in development.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds the log-only mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the would-be message.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("email disabled; message not sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// NewMailer picks SMTP when a host is configured, falling back to logging.
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	mailer, err := NewSMTPMailer(cfg)
	if err != nil {
		logger.Warn("smtp mailer unavailable; falling back to log mailer", zap.Error(err))
		return NewLogMailer(logger)
	}
	return mailer
}
