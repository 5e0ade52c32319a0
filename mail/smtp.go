package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/MrEthical07/shopauth"
	"github.com/google/uuid"
)

// SMTPConfig configures [SMTPMailer].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// RequireTLS fails the send when the server does not offer STARTTLS.
	RequireTLS bool
	Timeout    time.Duration
}

// SMTPMailer delivers over SMTP with optional STARTTLS and PLAIN auth.
type SMTPMailer struct {
	cfg  SMTPConfig
	addr string
}

// NewSMTPMailer validates cfg.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, errors.New("smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPMailer{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
	}, nil
}

// Send transmits msg. A recipient refused with a 5xx reply yields a receipt
// listing it as rejected and no error; connection and protocol failures are
// returned as errors.
func (m *SMTPMailer) Send(ctx context.Context, msg shopauth.MailMessage) (shopauth.MailReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return shopauth.MailReceipt{}, fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("smtp hello: %w", err)
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return shopauth.MailReceipt{}, fmt.Errorf("smtp starttls: %w", err)
		}
	} else if m.cfg.RequireTLS {
		return shopauth.MailReceipt{}, errors.New("smtp server does not offer STARTTLS")
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return shopauth.MailReceipt{}, fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		var perr *textproto.Error
		if errors.As(err, &perr) && perr.Code >= 500 {
			return shopauth.MailReceipt{Rejected: []string{msg.To}}, nil
		}
		return shopauth.MailReceipt{}, fmt.Errorf("smtp rcpt: %w", err)
	}

	messageID := "<" + uuid.NewString() + "@" + m.cfg.Host + ">"
	w, err := c.Data()
	if err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(m.cfg.From, messageID, msg)); err != nil {
		_ = w.Close()
		return shopauth.MailReceipt{}, fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("smtp data close: %w", err)
	}
	_ = c.Quit()

	return shopauth.MailReceipt{
		MessageID: messageID,
		Accepted:  []string{msg.To},
	}, nil
}

func buildMessage(from, messageID string, msg shopauth.MailMessage) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("Message-ID: " + messageID + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
