package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/angola031/Ecoswap-sub003/internal/config"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender delivers one e-mail.
type Sender interface {
	Send(ctx context.Context, to []string, subject, bodyHTML, bodyText string) error
}

type smtpSender struct {
	from   string
	dialer *gomail.Dialer
	logger *logger.Logger
}

// NewSMTPSender builds a gomail-backed Sender. Encryption is "ssl", "tls",
// "starttls" or "none".
func NewSMTPSender(cfg config.SMTPConfig, log *logger.Logger) (Sender, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.SenderEmail == "" {
		return nil, errors.New("SMTP host, port, and sender email must be configured")
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	serverName := cfg.ServerName
	if serverName == "" {
		serverName = cfg.Host
	}
	switch strings.ToLower(cfg.Encryption) {
	case "ssl":
		dialer.SSL = true
		dialer.TLSConfig = &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}
	case "tls", "starttls":
		dialer.TLSConfig = &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}
	}

	return &smtpSender{from: cfg.SenderEmail, dialer: dialer, logger: log.Named("SMTPSender")}, nil
}

func (s *smtpSender) Send(ctx context.Context, to []string, subject, bodyHTML, bodyText string) error {
	if len(to) == 0 {
		return errors.New("no recipients provided for email")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	switch {
	case bodyHTML != "":
		m.SetBody("text/html", bodyHTML)
		if bodyText != "" {
			m.AddAlternative("text/plain", bodyText)
		}
	case bodyText != "":
		m.SetBody("text/plain", bodyText)
	default:
		return errors.New("email body (HTML or Text) must be provided")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("Email sending cancelled or timed out", zap.Strings("to", to), zap.String("subject", subject), zap.Error(ctx.Err()))
		return fmt.Errorf("email sending cancelled or timed out: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			s.logger.Error("Failed to send email", zap.Strings("to", to), zap.String("subject", subject), zap.Error(err))
			return fmt.Errorf("failed to send email: %w", err)
		}
	}
	s.logger.Info("Email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}
