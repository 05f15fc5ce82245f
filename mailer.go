package webauth

import (
	"context"
	"log"
)

// Message is a single transactional email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer delivers one message through a relay. A nil error means the relay
// accepted the message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg Message) error

func (f MailerFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// ConsoleMailer is a development implementation that logs emails to console
type ConsoleMailer struct {
	From string
}

func (c *ConsoleMailer) Send(ctx context.Context, msg Message) error {
	log.Printf("\n=== EMAIL: %s ===", msg.Subject)
	log.Printf("From: %s", c.From)
	log.Printf("To: %s", msg.To)
	log.Printf("Body: %s", msg.Text)
	log.Printf("===========================\n")
	return nil
}

// passwordResetMessage builds the mail carrying a temporary password.
func passwordResetMessage(to, temporary string) Message {
	return Message{
		To:      to,
		Subject: "Password Reset",
		Text:    "Your new password is: " + temporary,
	}
}
