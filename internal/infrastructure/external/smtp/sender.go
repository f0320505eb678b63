// Package smtp delivers HTML email through an SMTP relay (Gmail by default).
// Delivery runs behind a circuit breaker and retries transient failures.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/circuitbreaker"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// From defaults to Username
	From string

	// Timeout bounds dialing and the whole SMTP conversation
	Timeout time.Duration

	// InsecureSkipVerify disables certificate checks for STARTTLS (local relays)
	InsecureSkipVerify bool

	Logger *slog.Logger
}

// DefaultConfig returns settings for Gmail submission with STARTTLS.
func DefaultConfig() Config {
	return Config{
		Host:    "smtp.gmail.com",
		Port:    587,
		Timeout: 15 * time.Second,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDER
// ══════════════════════════════════════════════════════════════════════════════

// Sender implements notification.Sender over SMTP.
type Sender struct {
	config  Config
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	logger  *slog.Logger
	now     func() time.Time
}

var _ notification.Sender = (*Sender)(nil)

// NewSender creates a Sender. Zero fields fall back to DefaultConfig.
func NewSender(config Config) *Sender {
	defaults := DefaultConfig()
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.Port == 0 {
		config.Port = defaults.Port
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.From == "" {
		config.From = config.Username
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	log := config.Logger.With("component", "smtp")

	return &Sender{
		config: config,
		breaker: circuitbreaker.SMTPBreaker(countsAsOutage, func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
		retrier: retry.SMTPRetrier(),
		logger:  log,
		now:     time.Now,
	}
}

// Send delivers msg. Failures are returned as external-service domain errors.
func (s *Sender) Send(ctx context.Context, msg notification.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return shared.NewDomainError("email", "Send", shared.ErrEmptyValue, "recipient is required")
	}

	body := s.compose(msg)

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.deliver(ctx, msg.To, body)
		})
	})
	if err != nil {
		kind := shared.ErrExternalService
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			kind = shared.ErrServiceUnavailable
		}
		return shared.WrapError("email", "Send", kind, "failed to send email to "+msg.To, err)
	}

	s.logger.Debug("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Verify opens a session and authenticates without sending anything.
func (s *Sender) Verify(ctx context.Context) error {
	return s.session(ctx, func(*smtp.Client) error { return nil })
}

// Name is used by the health checker.
func (s *Sender) Name() string {
	return "smtp"
}

// ─────────────────────────────────────────────────────────────────────────────
// SMTP conversation
// ─────────────────────────────────────────────────────────────────────────────

func (s *Sender) deliver(ctx context.Context, to string, body []byte) error {
	return s.session(ctx, func(c *smtp.Client) error {
		if err := c.Mail(s.config.From); err != nil {
			return classify(fmt.Errorf("MAIL FROM: %w", err))
		}
		if err := c.Rcpt(to); err != nil {
			return classify(fmt.Errorf("RCPT TO: %w", err))
		}
		w, err := c.Data()
		if err != nil {
			return classify(fmt.Errorf("DATA: %w", err))
		}
		if _, err := w.Write(body); err != nil {
			return retry.Retryable(fmt.Errorf("write body: %w", err))
		}
		if err := w.Close(); err != nil {
			return classify(fmt.Errorf("end of data: %w", err))
		}
		return nil
	})
}

// session dials, upgrades to TLS when offered, authenticates and runs fn.
func (s *Sender) session(ctx context.Context, fn func(*smtp.Client) error) error {
	dialer := net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.config.Addr())
	if err != nil {
		return retry.Retryable(fmt.Errorf("dial %s: %w", s.config.Addr(), err))
	}

	deadline := s.now().Add(s.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return retry.Retryable(fmt.Errorf("greeting: %w", err))
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName:         s.config.Host,
			InsecureSkipVerify: s.config.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			return retry.Retryable(fmt.Errorf("starttls: %w", err))
		}
	}

	if s.config.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
			if err := c.Auth(auth); err != nil {
				return retry.Permanent(fmt.Errorf("auth: %w", err))
			}
		}
	}

	if err := fn(c); err != nil {
		return err
	}
	return c.Quit()
}

// classify marks 4xx replies as transient and 5xx replies as permanent.
func classify(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if protoErr.Code >= 500 {
			return retry.Permanent(err)
		}
		return retry.Retryable(err)
	}
	return retry.Retryable(err)
}

// countsAsOutage keeps permanent rejections (5xx replies) from opening the breaker.
func countsAsOutage(err error) bool {
	var protoErr *textproto.Error
	return !errors.As(err, &protoErr) || protoErr.Code < 500
}

// ─────────────────────────────────────────────────────────────────────────────
// Message composition
// ─────────────────────────────────────────────────────────────────────────────

func (s *Sender) compose(msg notification.Message) []byte {
	var b strings.Builder

	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	header("From", s.config.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", s.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(msg.HTML, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")

	return []byte(b.String())
}
