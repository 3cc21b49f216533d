package email

import (
	"errors"
	"strings"
	"testing"

	"github.com/siterescue/leadloop/internal/config"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid", "owner@example.com", false},
		{"valid with name", "Jane Owner <owner@example.com>", false},
		{"empty", "", true},
		{"no at sign", "owner.example.com", true},
		{"newline injection", "owner@example.com\r\nBcc: evil@example.com", true},
		{"comma injection", "a@example.com,b@example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("450 Rate limit exceeded"), true},
		{"quota", errors.New("552 daily sending QUOTA reached"), true},
		{"generic", errors.New("550 mailbox unavailable"), false},
		{"wrapped rate", errors.New("smtp send: 421 too many messages, rate exceeded"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimit(tt.err); got != tt.want {
				t.Errorf("IsRateLimit(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewSender(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"", "smtp", false},
		{"smtp", "smtp", false},
		{"sendgrid", "sendgrid", false},
		{"resend", "resend", false},
		{"mailgun", "", true},
	}
	for _, tt := range tests {
		t.Run("provider_"+tt.provider, func(t *testing.T) {
			cfg := config.EmailConfig{Provider: tt.provider, From: "me@example.com"}
			s, err := NewSender(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSender(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
			}
			if err == nil && s.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.wantName)
			}
		})
	}
}

func TestBuildMIMEMessagePlain(t *testing.T) {
	msg := Message{
		To:      "owner@example.com",
		From:    "me@example.com",
		Subject: "Quick question",
		Body:    "Hi there",
	}
	raw := string(buildMIMEMessage(msg))
	for _, want := range []string{
		"From: me@example.com",
		"To: owner@example.com",
		"Subject: Quick question",
		"Content-Type: text/plain",
		"Hi there",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q:\n%s", want, raw)
		}
	}
	if strings.Contains(raw, "multipart/mixed") {
		t.Error("plain message should not be multipart")
	}
}

func TestBuildMIMEMessageAttachment(t *testing.T) {
	msg := Message{
		To:      "owner@example.com",
		From:    "me@example.com",
		Subject: "Quick question",
		Body:    "Hi there",
		Attachment: &Attachment{
			Filename: "screenshot.png",
			Content:  []byte("fake png bytes"),
		},
	}
	raw := string(buildMIMEMessage(msg))
	for _, want := range []string{
		"multipart/mixed",
		"Content-Transfer-Encoding: base64",
		`filename="screenshot.png"`,
		"Content-Type: image/png",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q:\n%s", want, raw)
		}
	}
}
