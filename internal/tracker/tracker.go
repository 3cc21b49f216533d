// Package tracker matches inbound replies to leads and applies the
// classification outcome to the lead store.
package tracker

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/siterescue/leadloop/internal/history"
	"github.com/siterescue/leadloop/internal/inbox"
	"github.com/siterescue/leadloop/internal/lead"
	"github.com/siterescue/leadloop/internal/logging"
)

// excerptRunes caps how much reply text is stored on the lead row.
const excerptRunes = 100

type Tracker struct {
	Store      *lead.Store
	Classifier *inbox.Classifier
	History    *history.Store // optional
	Today      time.Time
}

type Summary struct {
	Seen       int
	Matched    int
	Updated    int
	Ignored    int
	AlreadySet int
}

// Process applies a batch of inbound emails to the lead store. A lead that
// has already recorded a response is never overwritten, so re-running over
// the same inbox is safe. The store is saved once at the end when anything
// changed.
func (t *Tracker) Process(emails []inbox.Email) (*Summary, error) {
	log := logging.Named("tracker")
	today := t.Today
	if today.IsZero() {
		today = time.Now()
	}

	summary := &Summary{Seen: len(emails)}
	changed := false

	for _, em := range emails {
		addr := senderAddress(em)
		l := t.Store.FindByEmail(addr)
		if l == nil {
			continue
		}
		summary.Matched++

		verdict := t.Classifier.Classify(em.Body)
		if verdict == inbox.VerdictIgnore {
			summary.Ignored++
			log.Debug().Str("from", addr).Msg("auto-reply ignored")
			continue
		}

		if l.HasResponded() {
			summary.AlreadySet++
			continue
		}

		applyVerdict(l, verdict, em.Body)
		l.ResponseDate = today.Format(lead.DateFormat)
		l.ResponseText = excerpt(em.Body)
		changed = true
		summary.Updated++

		fmt.Printf("  📨 %s (%s): %s\n", l.BusinessName, addr, l.Response)
		t.record(l, em, today)
	}

	if changed {
		if err := t.Store.Save(); err != nil {
			return summary, fmt.Errorf("failed to persist lead store: %w", err)
		}
	}
	return summary, nil
}

// applyVerdict maps a classification to the lead's response and status. An
// unsubscribe request overrides the status even on an otherwise-negative
// reply.
func applyVerdict(l *lead.Lead, verdict inbox.Verdict, body string) {
	switch verdict {
	case inbox.VerdictYes:
		l.Response = lead.ResponseYes
		l.Status = lead.StatusInterested
	case inbox.VerdictNo:
		l.Response = lead.ResponseNo
		if inbox.MentionsUnsubscribe(body) {
			l.Status = lead.StatusUnsubscribed
		} else {
			l.Status = lead.StatusNotInterested
		}
	case inbox.VerdictMaybe:
		l.Response = lead.ResponseMaybe
		l.Status = lead.StatusNeutral
	}
}

// senderAddress extracts the bare address from a sender that may be either
// "a@b.com" or "Name <a@b.com>".
func senderAddress(em inbox.Email) string {
	if a, err := mail.ParseAddress(em.From); err == nil {
		return a.Address
	}
	return em.From
}

// excerpt truncates on rune boundaries so multibyte replies stay valid.
func excerpt(body string) string {
	runes := []rune(body)
	if len(runes) <= excerptRunes {
		return body
	}
	return string(runes[:excerptRunes])
}

func (t *Tracker) record(l *lead.Lead, em inbox.Email, today time.Time) {
	if t.History == nil {
		return
	}
	reply := &history.Reply{
		Business:       l.BusinessName,
		Email:          l.Email,
		Classification: string(l.Response),
		Subject:        em.Subject,
		Excerpt:        l.ResponseText,
		ReceivedAt:     em.ReceivedAt,
	}
	if err := t.History.AddReply(reply); err != nil {
		fmt.Printf("  ⚠️  Failed to record reply history: %v\n", err)
	}
}
