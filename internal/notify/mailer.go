// Package notify sends the emails users and admins receive: account
// verification, approval requests, password resets and post status changes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"postflow/internal/config"
	"postflow/internal/logger"
)

var ErrNoRecipient = errors.New("notify: message has no recipient")

// Message is a rendered email.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers through an SMTP relay, dialing once per message.
type SMTPMailer struct {
	from   string
	client *mail.Client
}

// NewSMTP builds a mailer from cfg. Authentication is used only when a user is set.
func NewSMTP(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("notify: SMTP host is empty")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	return &SMTPMailer{from: cfg.From, client: c}, nil
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("notify: send %q: %w", msg.Subject, err)
	}
	return nil
}

func buildMsg(from string, msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipient
	}
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("notify: from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("notify: to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogMailer struct {
	log *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log.With("mailer")}
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipient
	}
	l.log.Info("mail_logged", map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Text,
	})
	return nil
}

// New picks SMTP when a host is configured and falls back to LogMailer.
func New(cfg config.SMTPConfig, log *logger.Logger) (Mailer, error) {
	if cfg.Host == "" {
		return NewLogMailer(log), nil
	}
	return NewSMTP(cfg)
}
