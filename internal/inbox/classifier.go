// Package inbox pulls prospect replies over IMAP and classifies them by
// keyword scoring.
package inbox

import (
	"strings"

	"github.com/siterescue/leadloop/internal/config"
)

// Verdict is a classification outcome for an inbound reply.
type Verdict string

const (
	VerdictYes    Verdict = "YES"
	VerdictNo     Verdict = "NO"
	VerdictMaybe  Verdict = "MAYBE"
	VerdictIgnore Verdict = "IGNORE"
)

// Default keyword lists. Config can override each list wholesale.
var (
	defaultPositive = []string{
		"yes", "interested", "sounds good", "tell me more", "send it",
		"sure", "okay", "ok", "absolutely", "love to", "would like",
		"go ahead", "please send", "let's talk", "schedule", "call me",
	}
	defaultNegative = []string{
		"no thanks", "not interested", "no thank you", "unsubscribe",
		"remove me", "stop emailing", "don't contact", "not now",
		"maybe later", "in the future",
	}
	defaultIgnore = []string{
		"out of office", "away from", "automatic reply", "auto-reply",
		"vacation", "delivery failed", "undeliverable", "mailer-daemon",
	}
)

// Classifier scores reply bodies against keyword lists.
type Classifier struct {
	positive []string
	negative []string
	ignore   []string
}

func NewClassifier(cfg config.ClassifierConfig) *Classifier {
	c := &Classifier{
		positive: defaultPositive,
		negative: defaultNegative,
		ignore:   defaultIgnore,
	}
	if len(cfg.PositiveKeywords) > 0 {
		c.positive = lower(cfg.PositiveKeywords)
	}
	if len(cfg.NegativeKeywords) > 0 {
		c.negative = lower(cfg.NegativeKeywords)
	}
	if len(cfg.IgnoreKeywords) > 0 {
		c.ignore = lower(cfg.IgnoreKeywords)
	}
	return c
}

// Classify scores a reply body. Auto-reply markers win outright; otherwise
// the side with more distinct keyword hits wins, and a tie (including an
// empty body) is MAYBE. The same input always yields the same verdict.
func (c *Classifier) Classify(body string) Verdict {
	text := strings.ToLower(body)

	if strings.TrimSpace(text) != "" {
		for _, kw := range c.ignore {
			if strings.Contains(text, kw) {
				return VerdictIgnore
			}
		}
	}

	pos := countDistinct(text, c.positive)
	neg := countDistinct(text, c.negative)

	switch {
	case pos > neg:
		return VerdictYes
	case neg > pos:
		return VerdictNo
	default:
		return VerdictMaybe
	}
}

// MentionsUnsubscribe reports whether the reply asks to be removed. Such
// replies mark the lead unsubscribed regardless of the keyword score.
func MentionsUnsubscribe(body string) bool {
	return strings.Contains(strings.ToLower(body), "unsubscribe")
}

func countDistinct(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func lower(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, kw := range keywords {
		out[i] = strings.ToLower(kw)
	}
	return out
}
