package mailer

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lirany1/cucumber-insights/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSettings(t *testing.T) {
	tests := []struct {
		name string
		in   config.SMTPConfig
		to   []string
		port int
	}{
		{
			name: "defaults to user",
			in:   config.SMTPConfig{Host: "smtp.example.com", User: "qa@example.com"},
			to:   []string{"qa@example.com"},
			port: 587,
		},
		{
			name: "comma separated list",
			in:   config.SMTPConfig{User: "qa@example.com", To: " a@example.com, ,b@example.com ", Port: 2525},
			to:   []string{"a@example.com", "b@example.com"},
			port: 2525,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromSettings(tt.in)
			assert.Equal(t, tt.to, cfg.To)
			assert.Equal(t, tt.port, cfg.Port)
		})
	}
}

func TestValidate(t *testing.T) {
	full := Config{Host: "h", User: "u", Password: "p", To: []string{"u"}}
	assert.NoError(t, full.Validate())

	for _, c := range []Config{
		{User: "u", Password: "p", To: []string{"u"}},
		{Host: "h", Password: "p", To: []string{"u"}},
		{Host: "h", User: "u", To: []string{"u"}},
	} {
		assert.ErrorIs(t, c.Validate(), ErrMissingCredentials)
	}

	noRcpt := full
	noRcpt.To = nil
	assert.Error(t, noRcpt.Validate())
}

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage(Config{
		User:    "qa@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "QA Automated Summary",
	}, "# QA Automated Summary\n\n- Passed: 7  •  Failed: 2"))

	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)

	assert.Contains(t, headers, "From: qa@example.com\r\n")
	assert.Contains(t, headers, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, headers, "Subject: QA Automated Summary\r\n")
	assert.Contains(t, headers, "Content-Type: text/plain; charset=UTF-8")
	assert.Equal(t, "# QA Automated Summary\n\n- Passed: 7  •  Failed: 2", body)
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	msg := string(BuildMessage(Config{User: "u", To: []string{"u"}, Subject: "Résumé QA"}, ""))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
}

func TestSendMissingCredentials(t *testing.T) {
	err := Send(context.Background(), FromSettings(config.SMTPConfig{Host: "127.0.0.1"}), "body")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

// fakeServer answers the greeting and EHLO without advertising STARTTLS and
// records every command it receives
func fakeServer(t *testing.T) (string, <-chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	commands := make(chan []string, 1)
	go func() {
		var seen []string
		defer func() { commands <- seen }()

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 localhost ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(line)
			seen = append(seen, cmd)
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				_, _ = conn.Write([]byte("250 localhost\r\n"))
			case cmd == "QUIT":
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("502 not implemented\r\n"))
			}
		}
	}()
	return ln.Addr().String(), commands
}

func TestSendRequiresStartTLS(t *testing.T) {
	addr, commands := fakeServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = Send(ctx, Config{Host: host, Port: port, User: "u", Password: "p", To: []string{"u"}}, "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")

	seen := <-commands
	for _, cmd := range seen {
		assert.False(t, strings.HasPrefix(cmd, "MAIL"), "mail must not be sent without TLS")
		assert.False(t, strings.HasPrefix(cmd, "AUTH"), "credentials must not be sent without TLS")
	}
}

func TestSendCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Send(ctx, Config{Host: "127.0.0.1", Port: 1, User: "u", Password: "p", To: []string{"u"}}, "body")
	assert.Error(t, err)
}
