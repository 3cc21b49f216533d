package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/siterescue/leadloop/internal/config"
	"github.com/siterescue/leadloop/internal/dispatch"
	"github.com/siterescue/leadloop/internal/email"
	"github.com/siterescue/leadloop/internal/followup"
	"github.com/siterescue/leadloop/internal/history"
	"github.com/siterescue/leadloop/internal/inbox"
	"github.com/siterescue/leadloop/internal/lead"
	"github.com/siterescue/leadloop/internal/logging"
	"github.com/siterescue/leadloop/internal/rotation"
	"github.com/siterescue/leadloop/internal/template"
	"github.com/siterescue/leadloop/internal/tracker"
)

var (
	cfgFile  string
	leadFile string
	dryRun   bool
	yes      bool
)

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "leadloop",
		Short: "Leadloop - Automated outreach for web design leads",
		Long: `Leadloop automates cold outreach to small businesses discovered by a
lead-scanning bot: it sends the initial pitch email, schedules follow-ups,
tracks replies over IMAP, and rotates the scanning target across niches
and cities.

All state lives in plain files (a CSV lead store, a JSON rotation cursor,
and a one-line daily counter) so every step is inspectable and resumable.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leadloop/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&leadFile, "leads", "", "lead CSV file (default from config)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(followupCmd())
	rootCmd.AddCommand(trackCmd())
	rootCmd.AddCommand(rotateCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext cancels on Ctrl+C so a batch stops between sends, after the
// current lead has been persisted.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if leadFile != "" {
		cfg.Paths.LeadsCSV = leadFile
	}
	logging.Init(logging.Options{LogFile: cfg.Paths.LogFile})
	return cfg, nil
}

func openHistory(cfg *config.Config) *history.Store {
	store, err := history.NewStore(cfg.Paths.HistoryDB)
	if err != nil {
		fmt.Printf("⚠️  History database unavailable, continuing without it: %v\n", err)
		return nil
	}
	return store
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with your sender identity and email settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the initial outreach email to new leads",
		Long: `Send the initial pitch to every lead that has not been emailed yet,
respecting the tier filter, the daily cap, and the inter-send delay.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSendInitial()
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview emails without sending")
	return cmd
}

func followupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followup",
		Short: "Send due follow-up emails",
		Long: `Send the next follow-up in the sequence to every contacted lead whose
initial email has aged past the configured threshold without a reply.
Weekends are skipped when configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFollowUp()
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview follow-ups without sending")
	return cmd
}

func trackCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Check the inbox and classify prospect replies",
		Long: `Connect to the configured IMAP inbox, match replies to leads, classify
them by keyword scoring, and record the outcome in the lead store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(days)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "How many days back to scan (default from config)")
	return cmd
}

func rotateCmd() *cobra.Command {
	var leadsFound int

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Show or advance the niche/city rotation",
		Long: `Show the current search target for the lead-scanning bot. When a new
day has started, advance the niche; pass --leads-found to record the
yield of a completed scan (a low yield advances the city).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRotate(leadsFound)
		},
	}
	cmd.Flags().IntVar(&leadsFound, "leads-found", -1, "Record a finished scan with this many leads found")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full daily pipeline",
		Long: `Run every pipeline stage in order: track replies, send follow-ups,
send initial emails, and advance the rotation. Each stage asks for
confirmation unless --yes is given; a failed stage does not stop the
remaining ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll()
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Run all stages without asking")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview sends without sending")
	return cmd
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline state and send history",
		Long:  "Display lead store counts, today's send allowance, rotation state, and recent send attempts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent attempts to show")
	return cmd
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("🔧 Leadloop Configuration Setup")
	fmt.Println("================================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("📋 Sender Identity (substituted into outreach emails)")
	fmt.Println()
	cfg.Sender.Name = prompt(reader, "Your name: ")
	cfg.Sender.Email = prompt(reader, "Your email address: ")
	cfg.Sender.Phone = prompt(reader, "Phone number (optional): ")
	cfg.Sender.Website = prompt(reader, "Website (optional): ")
	cfg.Sender.City = prompt(reader, "City (optional): ")

	fmt.Println()
	fmt.Println("📧 Email Settings")
	fmt.Println()

	provider := prompt(reader, "Provider (smtp/sendgrid/resend) [smtp]: ")
	if provider == "" {
		provider = "smtp"
	}
	cfg.Email.Provider = provider
	cfg.Email.From = cfg.Sender.Email

	switch provider {
	case "smtp":
		fmt.Println()
		fmt.Println("Gmail SMTP Configuration:")
		fmt.Println("  (See https://support.google.com/accounts/answer/185833 for app password setup)")
		fmt.Println()
		cfg.Email.SMTP.Host = "smtp.gmail.com"
		cfg.Email.SMTP.Port = 465
		cfg.Email.SMTP.UseTLS = true
		cfg.Email.SMTP.Username = prompt(reader, "  Gmail address: ")
		cfg.Email.SMTP.Password = prompt(reader, "  App password (16-character code): ")
	case "sendgrid":
		cfg.Email.SendGrid.APIKey = prompt(reader, "  SendGrid API key: ")
	case "resend":
		cfg.Email.Resend.APIKey = prompt(reader, "  Resend API key: ")
	}

	fmt.Println()
	fmt.Println("📬 Reply Tracking (IMAP, optional)")
	fmt.Println()
	if promptYesNo(reader, "Enable reply tracking?") {
		cfg.Inbox.Enabled = true
		cfg.Inbox.Provider = "gmail"
		cfg.Inbox.Email = prompt(reader, "  IMAP email [default: sender email]: ")
		if cfg.Inbox.Email == "" {
			cfg.Inbox.Email = cfg.Sender.Email
		}
		cfg.Inbox.Password = prompt(reader, "  IMAP app password: ")
	}

	fmt.Println()
	fmt.Println("⚙️  Options")
	fmt.Println()
	if daily := prompt(reader, "Max emails per day [50]: "); daily != "" {
		if n, err := strconv.Atoi(daily); err == nil && n > 0 {
			cfg.Sending.MaxDailySends = n
		}
	}
	if promptYesNo(reader, "Start in test mode (redirect all mail to yourself)?") {
		cfg.Test.Enabled = true
		cfg.Test.Redirect = prompt(reader, "  Redirect address: ")
	}

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit the config file if needed")
	fmt.Println("  2. Drop your lead CSV next to the binary (or point --leads at it)")
	fmt.Println("  3. Run 'leadloop send --dry-run' to preview emails")
	fmt.Println("  4. Run 'leadloop send' to start outreach")

	return nil
}

func runSendInitial() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := lead.ReadStore(cfg.Paths.LeadsCSV)
	if err != nil {
		return err
	}
	printWarnings(store)

	engine, err := template.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}

	var sender email.Sender
	if !dryRun {
		sender, err = email.NewSender(cfg.Email)
		if err != nil {
			return fmt.Errorf("failed to initialize email sender: %w", err)
		}
	}

	hist := openHistory(cfg)
	if hist != nil {
		defer hist.Close()
	}

	planner := rotation.Load(cfg.Paths.RotationFile, nil, nil)
	niche, city := planner.Current()

	ctx, cancel := signalContext()
	defer cancel()

	d := &dispatch.Dispatcher{
		Cfg:     cfg,
		Store:   store,
		Engine:  engine,
		Sender:  sender,
		History: hist,
		Niche:   niche,
		City:    city,
		DryRun:  dryRun,
	}
	_, err = d.Run(ctx)
	return err
}

func runFollowUp() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := lead.ReadStore(cfg.Paths.LeadsCSV)
	if err != nil {
		return err
	}
	printWarnings(store)

	engine, err := template.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}

	var sender email.Sender
	if !dryRun {
		sender, err = email.NewSender(cfg.Email)
		if err != nil {
			return fmt.Errorf("failed to initialize email sender: %w", err)
		}
	}

	hist := openHistory(cfg)
	if hist != nil {
		defer hist.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	s := &followup.Scheduler{
		Cfg:     cfg,
		Store:   store,
		Engine:  engine,
		Sender:  sender,
		History: hist,
		DryRun:  dryRun,
	}
	_, err = s.Run(ctx)
	return err
}

func runTrack(days int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateInbox(); err != nil {
		return err
	}
	if days <= 0 {
		days = cfg.Inbox.LookbackDays
	}

	store, err := lead.ReadStore(cfg.Paths.LeadsCSV)
	if err != nil {
		return err
	}
	printWarnings(store)

	ctx, cancel := signalContext()
	defer cancel()

	monitor := inbox.NewMonitor(cfg.Inbox)
	fmt.Printf("📬 Connecting to %s...\n", cfg.Inbox.Server)
	if err := monitor.Connect(ctx); err != nil {
		return err
	}
	defer monitor.Disconnect()

	emails, err := monitor.FetchRecentEmails(ctx, days)
	if err != nil {
		return err
	}
	fmt.Printf("📥 Fetched %d message(s) from the last %d days\n\n", len(emails), days)

	hist := openHistory(cfg)
	if hist != nil {
		defer hist.Close()
	}

	tr := &tracker.Tracker{
		Store:      store,
		Classifier: inbox.NewClassifier(cfg.Classifier),
		History:    hist,
	}
	summary, err := tr.Process(emails)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 %d message(s) matched leads: %d recorded, %d auto-replies ignored, %d already answered\n",
		summary.Matched, summary.Updated, summary.Ignored, summary.AlreadySet)
	return nil
}

func runRotate(leadsFound int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	planner := rotation.Load(cfg.Paths.RotationFile, nil, nil)
	today := time.Now()

	if leadsFound >= 0 {
		planner.MarkRunComplete(today, leadsFound)
		if err := planner.Save(); err != nil {
			return err
		}
		fmt.Printf("✅ Recorded scan: %d lead(s) found\n\n", leadsFound)
	} else if planner.ShouldRotate(today) {
		planner.RotateNiche()
		if err := planner.Save(); err != nil {
			return err
		}
		fmt.Println("🔄 New day - advanced to the next niche")
		fmt.Println()
	}

	fmt.Println(planner.Summary())
	return nil
}

type pipelineStage struct {
	name    string
	enabled bool
	run     func() error
}

// pipelineStages lists the daily stages in order: outreach first, then reply
// tracking, then follow-ups, then the rotation cursor.
func pipelineStages(cfg *config.Config) []pipelineStage {
	return []pipelineStage{
		{"Send initial outreach", true, runSendInitial},
		{"Track replies", cfg.Inbox.Enabled, func() error { return runTrack(0) }},
		{"Send follow-ups", true, runFollowUp},
		{"Advance rotation", true, func() error { return runRotate(-1) }},
	}
}

// runAll executes every pipeline stage in order. A failing stage is reported
// and the rest still run, so one bad IMAP login does not block the day's
// outreach.
func runAll() error {
	reader := bufio.NewReader(os.Stdin)
	var failures []string

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for _, st := range pipelineStages(cfg) {
		fmt.Println()
		fmt.Printf("▶️  %s\n", st.name)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		if !st.enabled {
			fmt.Println("Skipped (not configured).")
			continue
		}
		if !yes && !promptYesNo(reader, "Run this stage?") {
			fmt.Println("Skipped.")
			continue
		}
		if err := st.run(); err != nil {
			fmt.Printf("❌ %s failed: %v\n", st.name, err)
			failures = append(failures, st.name)
		}
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if len(failures) > 0 {
		return fmt.Errorf("pipeline finished with failed stages: %s", strings.Join(failures, ", "))
	}
	fmt.Println("✅ Pipeline complete")
	return nil
}

func runStatus(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("📊 Leadloop Status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	store, err := lead.ReadStore(cfg.Paths.LeadsCSV)
	if err != nil {
		fmt.Printf("Lead store: unavailable (%v)\n", err)
	} else {
		printWarnings(store)
		var contacted, responded, dead, unsub int
		for _, l := range store.Leads {
			if l.EmailSent {
				contacted++
			}
			if l.HasResponded() {
				responded++
			}
			switch l.Status {
			case lead.StatusDead:
				dead++
			case lead.StatusUnsubscribed:
				unsub++
			}
		}
		fmt.Println("Lead store:")
		fmt.Printf("  Leads: %d (%d contacted, %d responded, %d dead, %d unsubscribed)\n",
			len(store.Leads), contacted, responded, dead, unsub)
	}

	counter, err := dispatch.LoadCounter(cfg.Paths.CounterFile, time.Now())
	if err == nil {
		fmt.Printf("  Today: %d/%d emails sent\n", counter.Count, cfg.Sending.MaxDailySends)
	}

	fmt.Println()
	planner := rotation.Load(cfg.Paths.RotationFile, nil, nil)
	fmt.Println(planner.Summary())

	hist := openHistory(cfg)
	if hist == nil {
		return nil
	}
	defer hist.Close()

	total, sent, failed, err := hist.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	fmt.Println()
	fmt.Println("All time:")
	fmt.Printf("  Attempts: %d (%d sent, %d failed)\n", total, sent, failed)

	if kinds, err := hist.GetKindStats(); err == nil && len(kinds) > 0 {
		fmt.Printf("  By kind: initial=%d followup_1=%d followup_2=%d followup_3=%d\n",
			kinds["initial"], kinds["followup_1"], kinds["followup_2"], kinds["followup_3"])
	}
	if replies, err := hist.GetReplyStats(); err == nil && len(replies) > 0 {
		fmt.Printf("  Replies: YES=%d NO=%d MAYBE=%d\n",
			replies["YES"], replies["NO"], replies["MAYBE"])
	}

	attempts, err := hist.GetRecentAttempts(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent attempts: %w", err)
	}
	if len(attempts) > 0 {
		fmt.Println()
		fmt.Printf("📜 Recent Attempts (last %d)\n", limit)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		for _, a := range attempts {
			status := "✅"
			if a.Status == history.StatusFailed {
				status = "❌"
			}
			fmt.Printf("%s %s - %s (%s)\n",
				status, a.SentAt.Format("2006-01-02 15:04"), a.Business, a.Kind)
			if a.Error != "" {
				fmt.Printf("   Error: %s\n", a.Error)
			}
		}
	}

	return nil
}

func printWarnings(store *lead.Store) {
	for _, w := range store.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}

func promptYesNo(reader *bufio.Reader, message string) bool {
	answer := prompt(reader, message+" [y/N]: ")
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}
