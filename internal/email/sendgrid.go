package email

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridSender struct {
	client *sendgrid.Client
	from   string
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

func (s *SendGridSender) Name() string {
	return "sendgrid"
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) Result {
	if msg.From == "" {
		msg.From = s.from
	}
	if err := validateMessage(msg); err != nil {
		return Result{Error: err}
	}

	from := mail.NewEmail("", msg.From)
	to := mail.NewEmail("", msg.To)
	m := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	if msg.Attachment != nil {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(msg.Attachment.Content))
		att.SetFilename(msg.Attachment.Filename)
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return Result{Error: fmt.Errorf("sendgrid send: %w", err)}
	}
	if resp.StatusCode >= 400 {
		if resp.StatusCode == 429 {
			return Result{Error: fmt.Errorf("sendgrid rate limit exceeded (status %d)", resp.StatusCode)}
		}
		return Result{Error: fmt.Errorf("sendgrid rejected message (status %d): %s", resp.StatusCode, resp.Body)}
	}

	var messageID string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	return Result{Success: true, MessageID: messageID}
}
