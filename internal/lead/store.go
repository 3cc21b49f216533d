package lead

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Column names, in on-disk order. The lifecycle columns are appended to rows
// produced by the discovery bot when missing.
var columns = []string{
	"Business_Name", "URL", "Tier", "Email", "Contact_Page",
	"Design_Score", "Is_Outdated", "Specific_Flaws", "Draft_Hook", "Screenshot",
	"Email_Sent", "Date_Sent", "Send_Status",
	"FollowUp_1_Sent", "FollowUp_2_Sent", "FollowUp_3_Sent",
	"Response", "Response_Date", "Response_Text", "Status",
}

// Store holds the entire lead table in memory. Every mutation is persisted by
// rewriting the whole file; there is no row-level persistence.
type Store struct {
	Path  string
	Leads []Lead

	// Warnings collects rows whose Tier/Response/Status carried values
	// outside the closed enums. The raw value is preserved on the Lead.
	Warnings []string
}

// ReadStore loads the lead CSV. Missing lifecycle columns are tolerated (the
// discovery bot writes only the first ten); they default to empty / Active.
func ReadStore(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lead store: %w", err)
	}
	defer f.Close()

	s := &Store{Path: path}
	if err := s.read(f); err != nil {
		return nil, fmt.Errorf("failed to read lead store %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) read(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return fmt.Errorf("lead store is empty")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	if _, ok := idx["Business_Name"]; !ok {
		return fmt.Errorf("missing required column %q", "Business_Name")
	}
	if _, ok := idx["Email"]; !ok {
		return fmt.Errorf("missing required column %q", "Email")
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++

		l := Lead{
			BusinessName:  field(rec, "Business_Name"),
			URL:           field(rec, "URL"),
			Tier:          Tier(strings.TrimSpace(field(rec, "Tier"))),
			Email:         strings.TrimSpace(field(rec, "Email")),
			ContactPage:   field(rec, "Contact_Page"),
			DesignScore:   field(rec, "Design_Score"),
			IsOutdated:    field(rec, "Is_Outdated"),
			SpecificFlaws: field(rec, "Specific_Flaws"),
			DraftHook:     field(rec, "Draft_Hook"),
			Screenshot:    field(rec, "Screenshot"),
			EmailSent:     strings.EqualFold(strings.TrimSpace(field(rec, "Email_Sent")), "true"),
			DateSent:      strings.TrimSpace(field(rec, "Date_Sent")),
			SendStatus:    field(rec, "Send_Status"),
			ResponseDate:  strings.TrimSpace(field(rec, "Response_Date")),
			ResponseText:  field(rec, "Response_Text"),
		}
		l.FollowUpSent[0] = strings.TrimSpace(field(rec, "FollowUp_1_Sent"))
		l.FollowUpSent[1] = strings.TrimSpace(field(rec, "FollowUp_2_Sent"))
		l.FollowUpSent[2] = strings.TrimSpace(field(rec, "FollowUp_3_Sent"))

		l.Response = Response(strings.ToUpper(strings.TrimSpace(field(rec, "Response"))))
		if !knownResponses[l.Response] {
			s.Warnings = append(s.Warnings, fmt.Sprintf("row %d (%s): unrecognized response %q", row, l.BusinessName, l.Response))
		}

		l.Status = Status(strings.TrimSpace(field(rec, "Status")))
		if l.Status == "" {
			l.Status = StatusActive
		}
		if !knownStatuses[l.Status] {
			s.Warnings = append(s.Warnings, fmt.Sprintf("row %d (%s): unrecognized status %q", row, l.BusinessName, l.Status))
		}

		s.Leads = append(s.Leads, l)
	}

	return nil
}

// Save rewrites the entire store. Called after every attempted send so an
// interrupt loses at most the in-flight row.
func (s *Store) Save() error {
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to write lead store: %w", err)
	}

	if err := s.write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write lead store %s: %w", s.Path, err)
	}
	return f.Close()
}

func (s *Store) write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}

	for i := range s.Leads {
		l := &s.Leads[i]
		sent := "false"
		if l.EmailSent {
			sent = "true"
		}
		rec := []string{
			l.BusinessName, l.URL, string(l.Tier), l.Email, l.ContactPage,
			l.DesignScore, l.IsOutdated, l.SpecificFlaws, l.DraftHook, l.Screenshot,
			sent, l.DateSent, l.SendStatus,
			l.FollowUpSent[0], l.FollowUpSent[1], l.FollowUpSent[2],
			string(l.Response), l.ResponseDate, l.ResponseText, string(l.Status),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// FindByEmail returns the lead whose contact address matches, or nil.
// Matching is case-insensitive on the normalized address.
func (s *Store) FindByEmail(addr string) *Lead {
	key := NormalizeEmail(addr)
	if key == "" {
		return nil
	}
	for i := range s.Leads {
		if s.Leads[i].Key() == key {
			return &s.Leads[i]
		}
	}
	return nil
}
