package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned when no SMTP credentials are set.
var ErrNotConfigured = errors.New("mail sender is not configured")

// Message is a plaintext mail to the site owner.
type Message struct {
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ContactMessage builds the mail sent for a contact form submission.
func ContactMessage(name, email, phone, message string) Message {
	return Message{
		ReplyTo: email,
		Subject: "New message from " + name,
		Body:    fmt.Sprintf("%s\n\nName: %s\nEmail: %s\nPhone: %s\n", message, name, email, phone),
	}
}

const (
	DefaultPort    = 587
	DefaultTimeout = 120 * time.Second
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// To defaults to Username.
	To      string
	Timeout time.Duration
}

// SMTPSender opens one authenticated STARTTLS connection per message.
type SMTPSender struct {
	cfg Config
}

func NewSMTPSender(cfg Config) *SMTPSender {
	if cfg.To == "" {
		cfg.To = cfg.Username
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.Host == "" || s.cfg.Username == "" || s.cfg.Password == "" {
		return ErrNotConfigured
	}

	m := gomail.NewMsg()
	if err := m.From(s.cfg.Username); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := m.To(s.cfg.To); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return fmt.Errorf("setting reply-to: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	c, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithTimeout(s.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	// DialAndSendWithContext closes the connection on every path.
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}
