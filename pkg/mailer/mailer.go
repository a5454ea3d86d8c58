// Package mailer delivers the markdown summary over SMTP.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/lirany1/cucumber-insights/pkg/config"
	"github.com/lirany1/cucumber-insights/pkg/logger"
)

// ErrMissingCredentials is returned before any network activity when the
// host, user or password is unset
var ErrMissingCredentials = errors.New("set SMTP_HOST, SMTP_USER, SMTP_PASS env vars")

const dialTimeout = 30 * time.Second

// Config is a resolved delivery target
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	To       []string
	Subject  string
}

// FromSettings resolves SMTP settings: recipients are comma separated and
// default to the sending user
func FromSettings(s config.SMTPConfig) Config {
	cfg := Config{
		Host:     strings.TrimSpace(s.Host),
		Port:     s.Port,
		User:     strings.TrimSpace(s.User),
		Password: s.Password,
		Subject:  s.Subject,
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	for _, addr := range strings.Split(s.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			cfg.To = append(cfg.To, addr)
		}
	}
	if len(cfg.To) == 0 && cfg.User != "" {
		cfg.To = []string{cfg.User}
	}
	return cfg
}

// Validate checks that delivery can be attempted
func (c Config) Validate() error {
	if c.Host == "" || c.User == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	if len(c.To) == 0 {
		return fmt.Errorf("no recipients configured")
	}
	return nil
}

// BuildMessage composes a plain-text UTF-8 message
func BuildMessage(c Config, body string) []byte {
	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s\r\n", c.User))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(c.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", c.Subject)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.Bytes()
}

// Send delivers body once over STARTTLS with PLAIN auth
func Send(ctx context.Context, c Config, body string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fmt.Errorf("server %s does not support STARTTLS", addr)
	}
	if err := client.StartTLS(&tls.Config{ServerName: c.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls failed: %w", err)
	}
	if err := client.Auth(smtp.PlainAuth("", c.User, c.Password, c.Host)); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := client.Mail(c.User); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, rcpt := range c.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s rejected: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(BuildMessage(c, body)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	if err := client.Quit(); err != nil {
		logger.Debugf("QUIT failed: %v", err)
	}
	logger.Infof("Email sent to %s", strings.Join(c.To, ", "))
	return nil
}
