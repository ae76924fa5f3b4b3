// Package notify delivers account emails. An SMTP or log Mailer does the
// sending; Dispatcher puts it behind a ProtoActor mailbox so sends are
// serialized and bounded by a timeout.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/example/khanpan/pkg/config"
	"go.uber.org/zap"
)

// Mail is a plain-text email.
type Mail struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPMailer sends through an SMTP relay. Port 465 uses implicit TLS, other
// ports rely on smtp.SendMail's STARTTLS negotiation.
type SMTPMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := s.cfg
	if cfg.Username == "" {
		return fmt.Errorf("mail: username not configured")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	raw := buildRaw(fmt.Sprintf("%s <%s>", cfg.FromName, from), m)
	addr := cfg.Host + ":" + cfg.Port
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)

	if cfg.Port == "465" {
		return sendTLS(addr, cfg.Host, auth, from, m.To, raw)
	}
	return smtp.SendMail(addr, auth, from, []string{m.To}, raw)
}

func sendTLS(addr, host string, auth smtp.Auth, from, to string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("mail: TLS dial: %w", err)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func buildRaw(from string, m Mail) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// LogMailer writes mails to the log instead of sending them. Used when no
// SMTP host is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, m Mail) error {
	l.logger.Info("Mail not sent, no SMTP host configured",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body))
	return nil
}

// NewMailer picks the SMTP mailer when a host is configured.
func NewMailer(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}
