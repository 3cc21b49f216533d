package inbox

import (
	"testing"

	"github.com/siterescue/leadloop/internal/config"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(config.ClassifierConfig{})

	tests := []struct {
		name string
		body string
		want Verdict
	}{
		{
			name: "clear yes",
			body: "Yes, I'm interested! Tell me more about what you can do.",
			want: VerdictYes,
		},
		{
			name: "clear no",
			body: "No thanks, we're not interested at this time.",
			want: VerdictNo,
		},
		{
			name: "empty body",
			body: "",
			want: VerdictMaybe,
		},
		{
			name: "no keywords at all",
			body: "Who gave you this address?",
			want: VerdictMaybe,
		},
		{
			name: "tie between sides",
			body: "Sounds good but not now.",
			want: VerdictMaybe,
		},
		{
			name: "out of office",
			body: "I am currently out of office and will return Monday.",
			want: VerdictIgnore,
		},
		{
			name: "bounce",
			body: "Your message could not be delivered: undeliverable.",
			want: VerdictIgnore,
		},
		{
			name: "ignore wins over positive keywords",
			body: "Automatic reply: yes I will absolutely get back to you, sounds good.",
			want: VerdictIgnore,
		},
		{
			name: "case insensitive",
			body: "YES, PLEASE SEND the details.",
			want: VerdictYes,
		},
		{
			name: "distinct count not occurrence count",
			body: "yes yes yes yes but no thanks, not interested, remove me",
			want: VerdictNo,
		},
		{
			name: "unsubscribe is negative",
			body: "Unsubscribe me from this list.",
			want: VerdictNo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.body); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.body, got, tt.want)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(config.ClassifierConfig{})
	body := "Sounds good, let's talk - but maybe later."
	first := c.Classify(body)
	for i := 0; i < 10; i++ {
		if got := c.Classify(body); got != first {
			t.Fatalf("classification flapped: %s then %s", first, got)
		}
	}
}

func TestClassifyConfigOverrides(t *testing.T) {
	c := NewClassifier(config.ClassifierConfig{
		PositiveKeywords: []string{"oui"},
		NegativeKeywords: []string{"non"},
	})

	if got := c.Classify("Oui, absolutely!"); got != VerdictYes {
		t.Errorf("override positive: got %s", got)
	}
	// Default positives no longer apply once overridden.
	if got := c.Classify("yes, interested, tell me more"); got != VerdictMaybe {
		t.Errorf("default keywords should be replaced: got %s", got)
	}
	if got := c.Classify("non merci"); got != VerdictNo {
		t.Errorf("override negative: got %s", got)
	}
}

func TestMentionsUnsubscribe(t *testing.T) {
	if !MentionsUnsubscribe("Please UNSUBSCRIBE me now") {
		t.Error("should detect unsubscribe regardless of case")
	}
	if MentionsUnsubscribe("not interested, thanks") {
		t.Error("false positive on plain refusal")
	}
}
