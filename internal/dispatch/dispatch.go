// Package dispatch sends the initial outreach email to eligible leads,
// enforcing the daily cap, test-mode redirect, attachment ceiling, and
// inter-send pacing.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/siterescue/leadloop/internal/config"
	"github.com/siterescue/leadloop/internal/email"
	"github.com/siterescue/leadloop/internal/history"
	"github.com/siterescue/leadloop/internal/lead"
	"github.com/siterescue/leadloop/internal/template"
)

// Dispatcher sends initial outreach to leads that have never been emailed.
type Dispatcher struct {
	Cfg     *config.Config
	Store   *lead.Store
	Engine  *template.Engine
	Sender  email.Sender
	History *history.Store // optional

	// Niche and City from the current rotation slot, substituted into
	// templates. Either may be empty.
	Niche string
	City  string

	DryRun bool
	Today  time.Time
}

// Summary reports what a dispatch run did.
type Summary struct {
	Eligible    int
	Sent        int
	Failed      int
	RateLimited bool
}

// Run sends the initial email to every eligible lead, up to the remaining
// daily allowance. The lead store is persisted after every attempt.
func (d *Dispatcher) Run(ctx context.Context) (*Summary, error) {
	today := d.Today
	if today.IsZero() {
		today = time.Now()
	}

	counter, err := LoadCounter(d.Cfg.Paths.CounterFile, today)
	if err != nil {
		return nil, err
	}

	eligible := d.eligibleLeads()
	summary := &Summary{Eligible: len(eligible)}
	if len(eligible) == 0 {
		fmt.Println("No eligible leads to email.")
		return summary, nil
	}

	remaining := counter.Remaining(d.Cfg.Sending.MaxDailySends)
	if remaining == 0 {
		fmt.Printf("🛑 Daily limit reached (%d/%d sent today). Try again tomorrow.\n",
			counter.Count, d.Cfg.Sending.MaxDailySends)
		return summary, nil
	}
	if len(eligible) > remaining {
		fmt.Printf("⚠️  %d eligible leads but only %d sends left today; batch truncated.\n",
			len(eligible), remaining)
		eligible = eligible[:remaining]
	}

	if d.Cfg.Test.Enabled {
		if len(eligible) > d.Cfg.Test.LeadLimit {
			eligible = eligible[:d.Cfg.Test.LeadLimit]
		}
		fmt.Printf("🧪 TEST MODE: %d lead(s), all mail redirected to %s\n",
			len(eligible), d.Cfg.Test.Redirect)
	}
	if d.DryRun {
		fmt.Println("🔍 DRY RUN MODE - No emails will be sent")
	}
	fmt.Printf("📤 Processing %d lead(s)...\n\n", len(eligible))

	limiter := rate.NewLimiter(rate.Every(time.Duration(d.Cfg.Sending.DelaySeconds)*time.Second), 1)
	pace := false

	for i, l := range eligible {
		// An interrupt stops the batch; leads not yet attempted keep their
		// clean state so the store stays a record of real attempts.
		if ctx.Err() != nil {
			fmt.Println("\n🛑 Interrupted - stopping with progress saved.")
			break
		}
		fmt.Printf("[%d/%d] %s (%s)\n", i+1, len(eligible), l.BusinessName, l.Email)

		msg, err := d.buildMessage(l)
		if err != nil {
			fmt.Printf("  ❌ Failed to render template: %v\n", err)
			summary.Failed++
			continue
		}

		if d.DryRun {
			fmt.Printf("  📧 Would send: %s\n", msg.Subject)
			fmt.Printf("  📍 To: %s\n", msg.To)
			summary.Sent++
			continue
		}

		// Pacing applies only after a successful send; failures retry
		// immediately on the next lead.
		if pace {
			if err := limiter.Wait(ctx); err != nil {
				return summary, err
			}
		}

		result := d.Sender.Send(ctx, *msg)
		pace = result.Success

		dateStr := today.Format(lead.DateFormat)
		if result.Success {
			l.EmailSent = true
			l.DateSent = dateStr
			l.SendStatus = "Success"
			summary.Sent++
			fmt.Printf("  ✅ Sent successfully\n")
		} else {
			l.SendStatus = fmt.Sprintf("Failed: %v", result.Error)
			summary.Failed++
			fmt.Printf("  ❌ Failed: %v\n", result.Error)
		}

		if err := d.Store.Save(); err != nil {
			return summary, fmt.Errorf("failed to persist lead store: %w", err)
		}
		d.record(l, template.Initial, result, today)

		if result.Success {
			if err := counter.Increment(); err != nil {
				return summary, err
			}
		}

		if !result.Success && email.IsRateLimit(result.Error) {
			fmt.Println("\n🛑 Provider rate limit hit - aborting remaining sends.")
			summary.RateLimited = true
			break
		}
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if d.DryRun {
		fmt.Printf("📊 Dry run complete: %d lead(s) would receive emails\n", summary.Sent)
	} else {
		fmt.Printf("📊 Complete: %d sent, %d failed (%d/%d today)\n",
			summary.Sent, summary.Failed, counter.Count, d.Cfg.Sending.MaxDailySends)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// eligibleLeads returns pointers into the store for every lead that should
// receive the initial email.
func (d *Dispatcher) eligibleLeads() []*lead.Lead {
	allowed := make(map[string]bool, len(d.Cfg.Sending.AllowedTiers))
	for _, t := range d.Cfg.Sending.AllowedTiers {
		allowed[strings.ToUpper(strings.TrimSpace(t))] = true
	}

	var out []*lead.Lead
	for i := range d.Store.Leads {
		l := &d.Store.Leads[i]
		if l.EmailSent || l.Status != lead.StatusActive {
			continue
		}
		if !allowed[strings.ToUpper(string(l.Tier))] {
			continue
		}
		if email.ValidateEmail(l.Email) != nil {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (d *Dispatcher) buildMessage(l *lead.Lead) (*email.Message, error) {
	values := template.Values(l.BusinessName, l.DraftHook, d.Niche, d.City, d.Cfg.Sender)
	rendered, err := d.Engine.Render(template.Initial, values)
	if err != nil {
		return nil, err
	}

	to := l.Email
	if d.Cfg.Test.Enabled {
		to = d.Cfg.Test.Redirect
	}

	msg := &email.Message{
		To:      to,
		From:    d.Cfg.Email.From,
		Subject: rendered.Subject,
		Body:    rendered.Body,
	}
	msg.Attachment = d.loadAttachment(l)
	return msg, nil
}

// loadAttachment returns the lead's screenshot as an attachment, or nil when
// attachments are disabled, the file is missing, or it exceeds the size
// ceiling. Missing or oversized files are warnings, never send failures.
func (d *Dispatcher) loadAttachment(l *lead.Lead) *email.Attachment {
	if !d.Cfg.Sending.AttachScreens || l.Screenshot == "" {
		return nil
	}

	path := l.Screenshot
	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(d.Cfg.Paths.ScreenshotDir, l.Screenshot)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("  ⚠️  Screenshot not found, sending without attachment: %s\n", l.Screenshot)
		return nil
	}
	maxBytes := int64(d.Cfg.Sending.MaxAttachmentMB) * 1024 * 1024
	if info.Size() > maxBytes {
		fmt.Printf("  ⚠️  Screenshot too large (%.1f MB > %d MB), sending without attachment\n",
			float64(info.Size())/(1024*1024), d.Cfg.Sending.MaxAttachmentMB)
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("  ⚠️  Could not read screenshot, sending without attachment: %v\n", err)
		return nil
	}
	return &email.Attachment{Filename: filepath.Base(path), Content: content}
}

func (d *Dispatcher) record(l *lead.Lead, kind string, result email.Result, today time.Time) {
	if d.History == nil {
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
		Niche:     d.Niche,
		City:      d.City,
		Status:    status,
		MessageID: result.MessageID,
		Error:     errStr,
		SentAt:    today,
	}
	if err := d.History.AddAttempt(attempt); err != nil {
		fmt.Printf("  ⚠️  Failed to record history: %v\n", err)
	}
}
