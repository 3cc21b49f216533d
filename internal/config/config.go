package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxDailySends   = 50
	defaultDelaySeconds    = 10
	defaultMaxAttachmentMB = 10
	defaultLookbackDays    = 14
	defaultTestLeadLimit   = 2
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Sender     Identity         `yaml:"sender"`
	Email      EmailConfig      `yaml:"email"`
	Inbox      InboxConfig      `yaml:"inbox,omitempty"`
	Sending    SendingConfig    `yaml:"sending"`
	FollowUp   FollowUpConfig   `yaml:"followup"`
	Classifier ClassifierConfig `yaml:"classifier,omitempty"`
	Test       TestConfig       `yaml:"test,omitempty"`
	Paths      Paths            `yaml:"paths,omitempty"`
}

// Identity is the sender persona substituted into outreach templates.
type Identity struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Phone   string `yaml:"phone,omitempty"`
	Website string `yaml:"website,omitempty"`
	City    string `yaml:"city,omitempty"`
}

type EmailConfig struct {
	Provider string       `yaml:"provider"` // "smtp", "sendgrid", "resend"
	From     string       `yaml:"from"`
	SMTP     SMTPConfig   `yaml:"smtp,omitempty"`
	SendGrid APIKeyConfig `yaml:"sendgrid,omitempty"`
	Resend   APIKeyConfig `yaml:"resend,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

type APIKeyConfig struct {
	APIKey string `yaml:"api_key"`
}

// InboxConfig holds IMAP settings for tracking prospect replies
type InboxConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Provider     string `yaml:"provider"` // "gmail", "outlook", "imap"
	Server       string `yaml:"server"`   // e.g., "imap.gmail.com"
	Port         int    `yaml:"port"`     // e.g., 993
	Email        string `yaml:"email"`
	Password     string `yaml:"password"` // App password (not main password)
	Folder       string `yaml:"folder"`   // Folder to check (default: "INBOX")
	LookbackDays int    `yaml:"lookback_days"`
}

// SendingConfig caps and paces outbound delivery.
type SendingConfig struct {
	AllowedTiers    []string `yaml:"allowed_tiers"`
	MaxDailySends   int      `yaml:"max_daily_sends"`
	DelaySeconds    int      `yaml:"delay_seconds"`
	AttachScreens   bool     `yaml:"attach_screenshots"`
	MaxAttachmentMB int      `yaml:"max_attachment_mb"`
}

// FollowUpConfig holds the follow-up sequence timing, in days since the
// initial send.
type FollowUpConfig struct {
	FirstDays    int  `yaml:"first_days"`
	SecondDays   int  `yaml:"second_days"`
	ThirdDays    int  `yaml:"third_days"`
	MaxFollowUps int  `yaml:"max_followups"`
	SkipWeekends bool `yaml:"skip_weekends"`
}

// Thresholds returns the day thresholds for follow-ups 1..3.
func (f FollowUpConfig) Thresholds() [3]int {
	return [3]int{f.FirstDays, f.SecondDays, f.ThirdDays}
}

// ClassifierConfig overrides the built-in keyword lists. An empty list means
// "use the defaults".
type ClassifierConfig struct {
	PositiveKeywords []string `yaml:"positive_keywords,omitempty"`
	NegativeKeywords []string `yaml:"negative_keywords,omitempty"`
	IgnoreKeywords   []string `yaml:"ignore_keywords,omitempty"`
}

// TestConfig redirects real sends to a safe address while still exercising
// the full pipeline against the lead store.
type TestConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Redirect  string `yaml:"redirect"` // all mail goes here instead
	LeadLimit int    `yaml:"lead_limit"`
}

type Paths struct {
	LeadsCSV      string `yaml:"leads_csv"`
	CounterFile   string `yaml:"counter_file"`
	RotationFile  string `yaml:"rotation_file"`
	ScreenshotDir string `yaml:"screenshot_dir"`
	LogFile       string `yaml:"log_file,omitempty"`
	HistoryDB     string `yaml:"history_db,omitempty"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".leadloop", "config.yaml")
}

func DefaultHistoryDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "leadloop_history.db"
	}
	return filepath.Join(home, ".leadloop", "history.db")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Sending.AllowedTiers) == 0 {
		c.Sending.AllowedTiers = []string{"HOT", "WARM"}
	}
	if c.Sending.MaxDailySends == 0 {
		c.Sending.MaxDailySends = defaultMaxDailySends
	}
	if c.Sending.DelaySeconds == 0 {
		c.Sending.DelaySeconds = defaultDelaySeconds
	}
	if c.Sending.MaxAttachmentMB == 0 {
		c.Sending.MaxAttachmentMB = defaultMaxAttachmentMB
	}

	if c.FollowUp.FirstDays == 0 {
		c.FollowUp.FirstDays = 3
	}
	if c.FollowUp.SecondDays == 0 {
		c.FollowUp.SecondDays = 7
	}
	if c.FollowUp.ThirdDays == 0 {
		c.FollowUp.ThirdDays = 14
	}
	if c.FollowUp.MaxFollowUps == 0 {
		c.FollowUp.MaxFollowUps = 2
	}

	if c.Inbox.Folder == "" {
		c.Inbox.Folder = "INBOX"
	}
	if c.Inbox.LookbackDays == 0 {
		c.Inbox.LookbackDays = defaultLookbackDays
	}
	if c.Inbox.Provider == "gmail" && c.Inbox.Server == "" {
		c.Inbox.Server = "imap.gmail.com"
		c.Inbox.Port = 993
	}
	if c.Inbox.Provider == "outlook" && c.Inbox.Server == "" {
		c.Inbox.Server = "outlook.office365.com"
		c.Inbox.Port = 993
	}

	if c.Test.LeadLimit == 0 {
		c.Test.LeadLimit = defaultTestLeadLimit
	}

	if c.Paths.LeadsCSV == "" {
		c.Paths.LeadsCSV = "leads.csv"
	}
	if c.Paths.CounterFile == "" {
		c.Paths.CounterFile = "sent_emails_today.txt"
	}
	if c.Paths.RotationFile == "" {
		c.Paths.RotationFile = "rotation_state.json"
	}
	if c.Paths.ScreenshotDir == "" {
		c.Paths.ScreenshotDir = "scans"
	}
	if c.Paths.HistoryDB == "" {
		c.Paths.HistoryDB = DefaultHistoryDBPath()
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Sender.Name == "" {
		return fmt.Errorf("sender: name is required")
	}
	if c.Sender.Email == "" {
		return fmt.Errorf("sender: email is required")
	}
	if c.Email.From == "" {
		return fmt.Errorf("email: from address is required")
	}

	switch c.Email.Provider {
	case "smtp":
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp: host is required")
		}
		if c.Email.SMTP.Port == 0 {
			return fmt.Errorf("email.smtp: port is required")
		}
	case "sendgrid":
		if c.Email.SendGrid.APIKey == "" {
			return fmt.Errorf("email.sendgrid: api_key is required")
		}
	case "resend":
		if c.Email.Resend.APIKey == "" {
			return fmt.Errorf("email.resend: api_key is required")
		}
	case "":
		return fmt.Errorf("email: provider is required")
	default:
		return fmt.Errorf("email: unknown provider %q (smtp, sendgrid, resend)", c.Email.Provider)
	}

	if c.Test.Enabled && c.Test.Redirect == "" {
		return fmt.Errorf("test: redirect address is required when test mode is enabled")
	}

	if !(c.FollowUp.FirstDays < c.FollowUp.SecondDays && c.FollowUp.SecondDays < c.FollowUp.ThirdDays) {
		return fmt.Errorf("followup: day thresholds must be strictly increasing")
	}
	if c.FollowUp.MaxFollowUps < 0 || c.FollowUp.MaxFollowUps > 3 {
		return fmt.Errorf("followup: max_followups must be between 0 and 3")
	}

	return nil
}

// ValidateInbox validates inbox configuration (only called when response tracking is used)
func (c *Config) ValidateInbox() error {
	if !c.Inbox.Enabled {
		return fmt.Errorf("inbox: tracking is not enabled in config")
	}
	if c.Inbox.Email == "" {
		return fmt.Errorf("inbox: email address is required")
	}
	if c.Inbox.Password == "" {
		return fmt.Errorf("inbox: password (app password) is required")
	}
	if c.Inbox.Server == "" {
		return fmt.Errorf("inbox: IMAP server is required")
	}
	if c.Inbox.Port == 0 {
		return fmt.Errorf("inbox: IMAP port is required")
	}
	return nil
}
