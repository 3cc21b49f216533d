package lead

import (
	"strings"
	"time"
)

// Tier is the qualification bucket assigned by the discovery bot.
type Tier string

const (
	TierHot          Tier = "HOT"
	TierWarm         Tier = "WARM"
	TierManualReview Tier = "MANUAL_REVIEW"
)

// Response is the classified reply outcome for a lead.
type Response string

const (
	ResponseNone  Response = ""
	ResponseYes   Response = "YES"
	ResponseNo    Response = "NO"
	ResponseMaybe Response = "MAYBE"
)

// Status is the lifecycle state of a lead. Everything except Active is
// terminal for outbound sends.
type Status string

const (
	StatusActive        Status = "Active"
	StatusInterested    Status = "Responded-Interested"
	StatusNotInterested Status = "Responded-NotInterested"
	StatusNeutral       Status = "Responded-Neutral"
	StatusUnsubscribed  Status = "Unsubscribed"
	StatusDead          Status = "Dead"
)

// DateFormat is how all lifecycle dates are stored in the CSV.
const DateFormat = "2006-01-02"

// MaxFollowUps is the schema ceiling; the configured maximum may be lower.
const MaxFollowUps = 3

// Lead is one prospect row. Date fields hold YYYY-MM-DD strings, empty when
// unset, matching the on-disk contract.
type Lead struct {
	BusinessName  string
	URL           string
	Tier          Tier
	Email         string
	ContactPage   string
	DesignScore   string
	IsOutdated    string
	SpecificFlaws string
	DraftHook     string
	Screenshot    string

	EmailSent  bool
	DateSent   string
	SendStatus string

	FollowUpSent [MaxFollowUps]string

	Response     Response
	ResponseDate string
	ResponseText string
	Status       Status
}

// Key returns the normalized contact address used to identify the lead.
func (l *Lead) Key() string {
	return NormalizeEmail(l.Email)
}

// HasResponded reports whether a reply has already been recorded.
func (l *Lead) HasResponded() bool {
	return l.Response != ResponseNone
}

// Unsubscribed leads must never receive further sends.
func (l *Lead) Unsubscribed() bool {
	return l.Status == StatusUnsubscribed
}

// NormalizeEmail lowercases and trims an address for matching.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ParseDate parses a stored YYYY-MM-DD value. ok is false for empty or
// malformed values; callers treat those as "no date" rather than failing.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysSince returns whole days elapsed from a stored date to today.
// ok is false when the stored value does not parse.
func DaysSince(dateStr string, today time.Time) (int, bool) {
	t, ok := ParseDate(dateStr)
	if !ok {
		return 0, false
	}
	days := int(today.Truncate(24*time.Hour).Sub(t.Truncate(24*time.Hour)).Hours() / 24)
	return days, true
}

// knownStatuses is the closed set accepted by the store parser.
var knownStatuses = map[Status]bool{
	StatusActive:        true,
	StatusInterested:    true,
	StatusNotInterested: true,
	StatusNeutral:       true,
	StatusUnsubscribed:  true,
	StatusDead:          true,
}

// knownResponses is the closed set accepted by the store parser.
var knownResponses = map[Response]bool{
	ResponseNone:  true,
	ResponseYes:   true,
	ResponseNo:    true,
	ResponseMaybe: true,
}
