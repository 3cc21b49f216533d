package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/siterescue/leadloop/internal/config"
)

// Attachment is an optional file (a website screenshot) included with a message.
type Attachment struct {
	Filename string
	Content  []byte
}

type Message struct {
	To         string
	From       string
	Subject    string
	Body       string
	Attachment *Attachment
}

type Result struct {
	Success   bool
	MessageID string
	Error     error
}

type Sender interface {
	Send(ctx context.Context, msg Message) Result
	Name() string
}

func NewSender(cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "", "smtp":
		return NewSMTPSender(cfg.SMTP, cfg.From), nil
	case "sendgrid":
		return NewSendGridSender(cfg.SendGrid.APIKey, cfg.From), nil
	case "resend":
		return NewResendSender(cfg.Resend.APIKey, cfg.From), nil
	}
	return nil, fmt.Errorf("unknown email provider: %s (smtp, sendgrid, resend)", cfg.Provider)
}

// IsRateLimit reports whether a delivery failure looks like provider-side
// throttling. Such failures abort the remaining batch instead of being
// recorded per-lead.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "quota") || strings.Contains(s, "rate")
}

// ValidateEmail checks for injection characters and RFC 5322 compliance
func ValidateEmail(email string) error {
	if strings.ContainsAny(email, "\r\n,;") {
		return fmt.Errorf("email contains invalid characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	return nil
}

func validateMessage(msg Message) error {
	if err := ValidateEmail(msg.From); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := ValidateEmail(msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("subject contains invalid characters")
	}
	return nil
}
