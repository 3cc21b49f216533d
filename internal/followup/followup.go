// Package followup walks the lead store and sends the next follow-up in the
// sequence to every lead whose initial email has aged past the configured
// threshold without a reply.
package followup

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/siterescue/leadloop/internal/config"
	"github.com/siterescue/leadloop/internal/dispatch"
	"github.com/siterescue/leadloop/internal/email"
	"github.com/siterescue/leadloop/internal/history"
	"github.com/siterescue/leadloop/internal/lead"
	"github.com/siterescue/leadloop/internal/template"
)

type Scheduler struct {
	Cfg     *config.Config
	Store   *lead.Store
	Engine  *template.Engine
	Sender  email.Sender
	History *history.Store // optional

	DryRun bool
	Today  time.Time
}

type Summary struct {
	Due         int
	Sent        int
	Failed      int
	MarkedDead  int
	RateLimited bool
	Skipped     string // non-empty when the whole run was skipped
}

// candidate pairs a lead with the follow-up number it is due for.
type candidate struct {
	lead *lead.Lead
	k    int // 1-based follow-up number
}

// Run sends at most one follow-up per lead. Weekends are skipped entirely
// when configured; replies mid-sequence end the sequence for that lead.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	today := s.Today
	if today.IsZero() {
		today = time.Now()
	}

	if s.Cfg.FollowUp.SkipWeekends {
		if wd := today.Weekday(); wd == time.Saturday || wd == time.Sunday {
			msg := fmt.Sprintf("weekend (%s)", wd)
			fmt.Printf("📅 Skipping follow-ups: %s.\n", msg)
			return &Summary{Skipped: msg}, nil
		}
	}

	counter, err := dispatch.LoadCounter(s.Cfg.Paths.CounterFile, today)
	if err != nil {
		return nil, err
	}

	due := s.dueLeads(today)
	summary := &Summary{Due: len(due)}
	if len(due) == 0 {
		fmt.Println("No follow-ups due.")
		return summary, nil
	}

	remaining := counter.Remaining(s.Cfg.Sending.MaxDailySends)
	if remaining == 0 {
		fmt.Printf("🛑 Daily limit reached (%d/%d sent today).\n",
			counter.Count, s.Cfg.Sending.MaxDailySends)
		return summary, nil
	}
	if len(due) > remaining {
		fmt.Printf("⚠️  %d follow-ups due but only %d sends left today; batch truncated.\n",
			len(due), remaining)
		due = due[:remaining]
	}

	if s.DryRun {
		fmt.Println("🔍 DRY RUN MODE - No emails will be sent")
	}
	fmt.Printf("📤 Sending %d follow-up(s)...\n\n", len(due))

	limiter := rate.NewLimiter(rate.Every(time.Duration(s.Cfg.Sending.DelaySeconds)*time.Second), 1)
	pace := false

	for i, c := range due {
		// An interrupt stops the batch; leads not yet attempted keep their
		// clean state so the store stays a record of real attempts.
		if ctx.Err() != nil {
			fmt.Println("\n🛑 Interrupted - stopping with progress saved.")
			break
		}
		l := c.lead
		fmt.Printf("[%d/%d] %s (%s) - follow-up %d\n", i+1, len(due), l.BusinessName, l.Email, c.k)

		kind, err := template.FollowUpKind(c.k)
		if err != nil {
			return summary, err
		}
		values := template.Values(l.BusinessName, l.DraftHook, "", "", s.Cfg.Sender)
		rendered, err := s.Engine.Render(kind, values)
		if err != nil {
			fmt.Printf("  ❌ Failed to render template: %v\n", err)
			summary.Failed++
			continue
		}

		to := l.Email
		if s.Cfg.Test.Enabled {
			to = s.Cfg.Test.Redirect
		}
		msg := email.Message{
			To:      to,
			From:    s.Cfg.Email.From,
			Subject: rendered.Subject,
			Body:    rendered.Body,
		}

		if s.DryRun {
			fmt.Printf("  📧 Would send: %s\n", msg.Subject)
			summary.Sent++
			continue
		}

		if pace {
			if err := limiter.Wait(ctx); err != nil {
				return summary, err
			}
		}

		result := s.Sender.Send(ctx, msg)
		pace = result.Success

		if result.Success {
			l.FollowUpSent[c.k-1] = today.Format(lead.DateFormat)
			summary.Sent++
			fmt.Printf("  ✅ Sent successfully\n")
			if c.k == s.Cfg.FollowUp.MaxFollowUps {
				l.Status = lead.StatusDead
				summary.MarkedDead++
				fmt.Printf("  💀 Sequence exhausted, lead marked dead\n")
			}
		} else {
			summary.Failed++
			fmt.Printf("  ❌ Failed: %v\n", result.Error)
		}

		if err := s.Store.Save(); err != nil {
			return summary, fmt.Errorf("failed to persist lead store: %w", err)
		}
		s.record(l, kind, result, today)

		if result.Success {
			if err := counter.Increment(); err != nil {
				return summary, err
			}
		}

		if !result.Success && email.IsRateLimit(result.Error) {
			fmt.Println("\n🛑 Provider rate limit hit - aborting remaining follow-ups.")
			summary.RateLimited = true
			break
		}
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if s.DryRun {
		fmt.Printf("📊 Dry run complete: %d follow-up(s) would be sent\n", summary.Sent)
	} else {
		fmt.Printf("📊 Complete: %d sent, %d failed, %d marked dead\n",
			summary.Sent, summary.Failed, summary.MarkedDead)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// dueLeads returns, for each lead, the lowest unsent follow-up whose day
// threshold has passed. A lead gets at most one follow-up per run.
func (s *Scheduler) dueLeads(today time.Time) []candidate {
	thresholds := s.Cfg.FollowUp.Thresholds()
	maxK := s.Cfg.FollowUp.MaxFollowUps

	var out []candidate
	for i := range s.Store.Leads {
		l := &s.Store.Leads[i]
		if !l.EmailSent || l.HasResponded() || l.Status != lead.StatusActive {
			continue
		}
		days, ok := lead.DaysSince(l.DateSent, today)
		if !ok {
			// Unparseable send date: never due, never dead.
			continue
		}

		for k := 1; k <= maxK && k <= lead.MaxFollowUps; k++ {
			if l.FollowUpSent[k-1] != "" {
				continue
			}
			if days >= thresholds[k-1] {
				out = append(out, candidate{lead: l, k: k})
			}
			break
		}
	}
	return out
}

func (s *Scheduler) record(l *lead.Lead, kind string, result email.Result, today time.Time) {
	if s.History == nil {
		return
	}

	status := history.StatusSent
	errStr := ""
	if !result.Success {
		status = history.StatusFailed
		if result.Error != nil {
			errStr = result.Error.Error()
		}
	}
	attempt := &history.Attempt{
		Business:  l.BusinessName,
		Email:     l.Email,
		Kind:      kind,
		Status:    status,
		MessageID: result.MessageID,
		Error:     errStr,
		SentAt:    today,
	}
	if err := s.History.AddAttempt(attempt); err != nil {
		fmt.Printf("  ⚠️  Failed to record history: %v\n", err)
	}
}
