// Package mail sends transactional email through an SMTP relay.
package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/panyam/webauth"
)

// SMTPConfig describes the relay and the sender identity.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Allows plaintext relays, e.g. a local catcher in development.
	Insecure bool
	// Connects over TLS from the first byte (SMTPS) instead of STARTTLS.
	// Port 465 implies it.
	SSL     bool
	Timeout time.Duration
}

// SMTPSPort is the conventional implicit-TLS submission port.
const SMTPSPort = 465

// SMTPMailer implements webauth.Mailer with one SMTP session per message.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
		if cfg.SSL {
			cfg.Port = SMTPSPort
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{cfg: cfg}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg webauth.Message) error {
	out, err := m.buildMessage(msg)
	if err != nil {
		return err
	}
	client, err := m.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(msg webauth.Message) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextPlain, msg.Text)
	return out, nil
}

func (m *SMTPMailer) implicitTLS() bool {
	return m.cfg.SSL || m.cfg.Port == SMTPSPort
}

func (m *SMTPMailer) newClient() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(m.cfg.Timeout),
	}
	switch {
	case m.implicitTLS():
		opts = append(opts, gomail.WithSSL())
	case m.cfg.Insecure:
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}
