// Package mailer sends outbound ticket mail over SMTP.
package mailer

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ticketdesk-go/internal/config"
)

// Sender delivers one outbound message and returns its Message-ID. A send
// failure returns an error; callers decide whether it is fatal (the
// ingestion pipeline logs acknowledgement failures without failing the
// message).
type Sender interface {
	Send(ctx context.Context, to, subject, body, inReplyTo string) (string, error)
}

// SMTPSender implements Sender over a plain SMTP connection, with STARTTLS
// and authentication when credentials are configured (a bare connection
// serves Mailhog-style dev setups).
type SMTPSender struct {
	cfg *config.SMTPConfig
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg *config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers the message and returns the generated Message-ID without
// angle brackets. The dial is bounded by the configured timeout.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body, inReplyTo string) (string, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	conn, err := net.DialTimeout("tcp", addr, s.cfg.Timeout)
	if err != nil {
		return "", fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	conn.SetDeadline(time.Now().Add(s.cfg.Timeout))

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer c.Close()

	if s.cfg.User != "" {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return "", fmt.Errorf("failed to start TLS: %w", err)
			}
		}
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return "", fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	messageID := generateMessageID(s.cfg.From)

	if err := c.Mail(s.cfg.From); err != nil {
		return "", fmt.Errorf("failed to set sender: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return "", fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return "", fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write(buildMessage(s.cfg.From, to, subject, body, messageID, inReplyTo)); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish message: %w", err)
	}
	if err := c.Quit(); err != nil {
		logrus.Warnf("SMTP quit failed: %v", err)
	}

	logrus.Infof("Email sent to %s (message id %s)", to, messageID)
	return messageID, nil
}

func buildMessage(from, to, subject, body, messageID, inReplyTo string) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: Support <%s>\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", messageID))
	if inReplyTo != "" {
		b.WriteString(fmt.Sprintf("In-Reply-To: <%s>\r\n", inReplyTo))
		b.WriteString(fmt.Sprintf("References: <%s>\r\n", inReplyTo))
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func generateMessageID(from string) string {
	domain := "ticketdesk.local"
	if i := strings.LastIndex(from, "@"); i >= 0 {
		domain = from[i+1:]
	}
	buf := make([]byte, 8)
	rand.Read(buf)
	return fmt.Sprintf("%d.%s@%s", time.Now().UnixNano(), hex.EncodeToString(buf), domain)
}
