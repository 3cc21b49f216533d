package followup

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/siterescue/leadloop/internal/config"
	"github.com/siterescue/leadloop/internal/email"
	"github.com/siterescue/leadloop/internal/lead"
	"github.com/siterescue/leadloop/internal/template"
)

// Monday.
var monday = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type fakeSender struct {
	results []email.Result
	sent    []email.Message
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, msg email.Message) email.Result {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return email.Result{Success: true, MessageID: "fake-id"}
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Sender: config.Identity{Name: "Alex", Email: "alex@example.com"},
		Email:  config.EmailConfig{Provider: "smtp", From: "alex@example.com"},
	}
	cfg.Paths.LeadsCSV = filepath.Join(dir, "leads.csv")
	cfg.Paths.CounterFile = filepath.Join(dir, "sent_emails_today.txt")
	cfg.Sending.MaxDailySends = 50
	cfg.Sending.DelaySeconds = 0
	cfg.FollowUp.FirstDays = 3
	cfg.FollowUp.SecondDays = 7
	cfg.FollowUp.ThirdDays = 14
	cfg.FollowUp.MaxFollowUps = 2
	cfg.FollowUp.SkipWeekends = true
	return cfg
}

// sentLead builds a lead whose initial email went out daysAgo days before
// the fixed test Monday.
func sentLead(name, addr string, daysAgo int) lead.Lead {
	return lead.Lead{
		BusinessName: name,
		Email:        addr,
		Tier:         lead.TierHot,
		EmailSent:    true,
		DateSent:     monday.AddDate(0, 0, -daysAgo).Format(lead.DateFormat),
		SendStatus:   "Success",
		Status:       lead.StatusActive,
	}
}

func newScheduler(t *testing.T, cfg *config.Config, leads []lead.Lead, sender email.Sender) (*Scheduler, *lead.Store) {
	t.Helper()
	s := &lead.Store{Path: cfg.Paths.LeadsCSV, Leads: leads}
	if err := s.Save(); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	engine, err := template.NewEngine()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return &Scheduler{
		Cfg:    cfg,
		Store:  s,
		Engine: engine,
		Sender: sender,
		Today:  monday,
	}, s
}

func TestDueLeadsSelectsLowestUnsentFollowUp(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.FollowUp.MaxFollowUps = 3

	tooFresh := sentLead("Fresh", "fresh@example.com", 2)
	dueFirst := sentLead("Due First", "first@example.com", 10)
	dueSecond := sentLead("Due Second", "second@example.com", 10)
	dueSecond.FollowUpSent[0] = "2025-05-26"
	notDueSecond := sentLead("Waiting", "waiting@example.com", 5)
	notDueSecond.FollowUpSent[0] = "2025-05-30"
	replied := sentLead("Replied", "replied@example.com", 10)
	replied.Response = lead.ResponseMaybe
	badDate := sentLead("Bad Date", "bad@example.com", 10)
	badDate.DateSent = "June 2nd"

	sched, _ := newScheduler(t, cfg, []lead.Lead{
		tooFresh, dueFirst, dueSecond, notDueSecond, replied, badDate,
	}, &fakeSender{})

	due := sched.dueLeads(monday)
	if len(due) != 2 {
		t.Fatalf("got %d due leads, want 2", len(due))
	}
	byEmail := map[string]int{}
	for _, c := range due {
		byEmail[c.lead.Email] = c.k
	}
	if byEmail["first@example.com"] != 1 {
		t.Errorf("first@example.com due for %d, want follow-up 1", byEmail["first@example.com"])
	}
	if byEmail["second@example.com"] != 2 {
		t.Errorf("second@example.com due for %d, want follow-up 2", byEmail["second@example.com"])
	}
}

// A lead 10 days old with nothing sent gets only follow-up 1 in a single
// run, even though the second threshold (7 days) has also passed.
func TestRunSendsOneFollowUpPerLead(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	sender := &fakeSender{}
	sched, _ := newScheduler(t, cfg, []lead.Lead{
		sentLead("Biz", "a@example.com", 10),
	}, sender)

	summary, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Sent != 1 {
		t.Errorf("Sent = %d, want 1", summary.Sent)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sender got %d messages, want 1", len(sender.sent))
	}
	if !strings.HasPrefix(sender.sent[0].Subject, "Re:") {
		t.Errorf("expected first follow-up subject, got %q", sender.sent[0].Subject)
	}

	reloaded, _ := lead.ReadStore(cfg.Paths.LeadsCSV)
	l := reloaded.FindByEmail("a@example.com")
	if l.FollowUpSent[0] != monday.Format(lead.DateFormat) {
		t.Errorf("FollowUp_1_Sent = %q, want today", l.FollowUpSent[0])
	}
	if l.FollowUpSent[1] != "" {
		t.Error("follow-up 2 must not fire in the same run")
	}
}

func TestRunMarksDeadAtFinalFollowUp(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.FollowUp.MaxFollowUps = 2

	l := sentLead("Biz", "a@example.com", 10)
	l.FollowUpSent[0] = "2025-05-26"
	sched, _ := newScheduler(t, cfg, []lead.Lead{l}, &fakeSender{})

	summary, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Sent != 1 || summary.MarkedDead != 1 {
		t.Errorf("Sent=%d MarkedDead=%d, want 1/1", summary.Sent, summary.MarkedDead)
	}

	reloaded, _ := lead.ReadStore(cfg.Paths.LeadsCSV)
	got := reloaded.FindByEmail("a@example.com")
	if got.Status != lead.StatusDead {
		t.Errorf("Status = %q, want Dead", got.Status)
	}
}

func TestRunFailedFinalFollowUpStaysActive(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.FollowUp.MaxFollowUps = 2

	l := sentLead("Biz", "a@example.com", 10)
	l.FollowUpSent[0] = "2025-05-26"
	sender := &fakeSender{results: []email.Result{
		{Error: errors.New("550 mailbox unavailable")},
	}}
	sched, _ := newScheduler(t, cfg, []lead.Lead{l}, sender)

	summary, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.MarkedDead != 0 {
		t.Errorf("Failed=%d MarkedDead=%d, want 1/0", summary.Failed, summary.MarkedDead)
	}

	reloaded, _ := lead.ReadStore(cfg.Paths.LeadsCSV)
	got := reloaded.FindByEmail("a@example.com")
	if got.Status != lead.StatusActive || got.FollowUpSent[1] != "" {
		t.Errorf("failed send must not advance the sequence: %+v", got)
	}
}

func TestRunSkipsWeekends(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	sender := &fakeSender{}
	sched, _ := newScheduler(t, cfg, []lead.Lead{
		sentLead("Biz", "a@example.com", 10),
	}, sender)
	sched.Today = time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC) // Saturday

	summary, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped == "" {
		t.Error("weekend run should report skipped")
	}
	if len(sender.sent) != 0 {
		t.Error("weekend run must not send")
	}

	cfg.FollowUp.SkipWeekends = false
	summary, err = sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Sent != 1 {
		t.Errorf("with skip disabled Sent = %d, want 1", summary.Sent)
	}
}

func TestRunRateLimitAborts(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	sender := &fakeSender{results: []email.Result{
		{Success: true, MessageID: "id-1"},
		{Error: errors.New("quota exceeded")},
	}}
	sched, _ := newScheduler(t, cfg, []lead.Lead{
		sentLead("Biz a", "a@example.com", 10),
		sentLead("Biz b", "b@example.com", 10),
		sentLead("Biz c", "c@example.com", 10),
	}, sender)

	summary, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.RateLimited {
		t.Error("RateLimited not set")
	}
	if len(sender.sent) != 2 {
		t.Errorf("sender got %d messages, want 2 (abort after quota error)", len(sender.sent))
	}
}

// interruptingSender cancels the context during its first send.
type interruptingSender struct {
	cancel context.CancelFunc
	calls  int
}

func (s *interruptingSender) Name() string { return "interrupting" }

func (s *interruptingSender) Send(ctx context.Context, msg email.Message) email.Result {
	s.calls++
	s.cancel()
	return email.Result{Error: ctx.Err()}
}

func TestRunInterruptStopsBatchAndLeavesUntriedLeadsClean(t *testing.T) {
	cfg := testConfig(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &interruptingSender{cancel: cancel}
	sched, _ := newScheduler(t, cfg, []lead.Lead{
		sentLead("Biz a", "a@example.com", 10),
		sentLead("Biz b", "b@example.com", 10),
		sentLead("Biz c", "c@example.com", 10),
	}, sender)

	summary, err := sched.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned err = %v, want context.Canceled", err)
	}
	if sender.calls != 1 {
		t.Errorf("sender called %d times after cancellation, want 1", sender.calls)
	}
	if summary.Sent != 0 || summary.Failed != 1 {
		t.Errorf("Sent=%d Failed=%d, want 0/1", summary.Sent, summary.Failed)
	}

	reloaded, _ := lead.ReadStore(cfg.Paths.LeadsCSV)
	for _, n := range []string{"b", "c"} {
		l := reloaded.FindByEmail(n + "@example.com")
		if l == nil || l.FollowUpSent[0] != "" || l.Status != lead.StatusActive {
			t.Errorf("untried lead %s was touched: %+v", n, l)
		}
	}
}

func TestRunRespectsSharedDailyCounter(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Sending.MaxDailySends = 1

	sender := &fakeSender{}
	sched, _ := newScheduler(t, cfg, []lead.Lead{
		sentLead("Biz a", "a@example.com", 10),
		sentLead("Biz b", "b@example.com", 10),
	}, sender)

	summary, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Sent != 1 {
		t.Errorf("Sent = %d, want 1 under cap", summary.Sent)
	}
}
