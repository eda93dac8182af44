// Package mailer delivers operator notices over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

const DefaultTimeout = 15 * time.Second

var ErrMissingPassword = errors.New("missing GMAIL_APP_PASSWORD env var")

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	From     string `json:"from"`
	To       string `json:"to"`

	// ImplicitTLS dials TLS directly (port 465). Otherwise STARTTLS is used
	// when the server offers it.
	ImplicitTLS bool `json:"implicit_tls"`

	// skip certificate checks, local relays only
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`
}

// SendError is what callers show to the client. It names the failing stage
// and keeps the underlying error for logs.
type SendError struct {
	Stage string
	Err   error
}

func (e *SendError) Error() string {
	return "Email send failed: " + e.Stage
}

func (e *SendError) Unwrap() error {
	return e.Err
}

type SMTPMailer struct {
	cfg     Config
	timeout time.Duration
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPMailer{cfg: cfg, timeout: DefaultTimeout}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.Password == "" {
		return ErrMissingPassword
	}

	raw, err := build(m.cfg.From, m.cfg.To, msg)
	if err != nil {
		return &SendError{Stage: "compose", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.deliver(ctx, raw); err != nil {
		slog.Error("Mail delivery failed", "subject", msg.Subject, "error", err)
		return err
	}
	slog.Info("Mail delivered", "subject", msg.Subject, "attachments", len(msg.Attachments))
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, raw []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsCfg := &tls.Config{ServerName: m.cfg.Host, InsecureSkipVerify: m.cfg.InsecureSkipVerify}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	var (
		conn net.Conn
		err  error
	)
	if m.cfg.ImplicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return &SendError{Stage: "connect", Err: err}
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return &SendError{Stage: "connect", Err: err}
	}
	defer func() {
		if err := c.Quit(); err != nil {
			slog.Debug("SMTP quit failed", "error", err)
		}
	}()

	if err := c.Hello("localhost"); err != nil {
		return &SendError{Stage: "hello", Err: err}
	}
	if !m.cfg.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				return &SendError{Stage: "tls", Err: err}
			}
		}
	}
	if m.cfg.User != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
				return &SendError{Stage: "authentication", Err: err}
			}
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return &SendError{Stage: "sender rejected", Err: err}
	}
	if err := c.Rcpt(m.cfg.To); err != nil {
		return &SendError{Stage: "recipient rejected", Err: err}
	}
	w, err := c.Data()
	if err != nil {
		return &SendError{Stage: "data", Err: err}
	}
	if _, err := w.Write(raw); err != nil {
		return &SendError{Stage: "data", Err: err}
	}
	if err := w.Close(); err != nil {
		return &SendError{Stage: "data", Err: fmt.Errorf("server rejected message: %w", err)}
	}
	return nil
}
