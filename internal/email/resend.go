package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Name() string {
	return "resend"
}

func (s *ResendSender) Send(ctx context.Context, msg Message) Result {
	if msg.From == "" {
		msg.From = s.from
	}
	if err := validateMessage(msg); err != nil {
		return Result{Error: err}
	}

	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	}
	if msg.Attachment != nil {
		req.Attachments = []*resend.Attachment{{
			Filename: msg.Attachment.Filename,
			Content:  msg.Attachment.Content,
		}}
	}

	sent, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return Result{Error: fmt.Errorf("resend send: %w", err)}
	}

	return Result{Success: true, MessageID: sent.Id}
}
