package lead

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// The discovery bot writes only the first ten columns; the lifecycle columns
// appear after the first save.
func TestReadStoreToleratesMissingLifecycleColumns(t *testing.T) {
	path := writeCSV(t, strings.Join([]string{
		"Business_Name,URL,Tier,Email,Contact_Page,Design_Score,Is_Outdated,Specific_Flaws,Draft_Hook,Screenshot",
		`Hot Pipes,http://hotpipes.example,HOT,info@hotpipes.example,,3,true,"outdated layout, no mobile",your site still lists 2019 hours,hotpipes.png`,
	}, "\n") + "\n")

	s, err := ReadStore(path)
	if err != nil {
		t.Fatalf("ReadStore: %v", err)
	}
	if len(s.Leads) != 1 {
		t.Fatalf("got %d leads, want 1", len(s.Leads))
	}

	l := s.Leads[0]
	if l.BusinessName != "Hot Pipes" || l.Tier != TierHot {
		t.Errorf("parsed lead wrong: %+v", l)
	}
	if l.EmailSent || l.DateSent != "" {
		t.Error("missing lifecycle columns must default to unsent")
	}
	if l.Status != StatusActive {
		t.Errorf("Status = %q, want Active default", l.Status)
	}
	if len(s.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", s.Warnings)
	}
}

func TestReadStoreFlagsUnknownEnums(t *testing.T) {
	path := writeCSV(t, strings.Join([]string{
		strings.Join(columns, ","),
		"Biz,,HOT,a@example.com,,,,,,,true,2025-06-01,Success,,,,PERHAPS,,,Frozen",
	}, "\n") + "\n")

	s, err := ReadStore(path)
	if err != nil {
		t.Fatalf("ReadStore: %v", err)
	}
	if len(s.Warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(s.Warnings), s.Warnings)
	}
	// Raw values survive so a save does not destroy data.
	l := s.Leads[0]
	if string(l.Response) != "PERHAPS" || string(l.Status) != "Frozen" {
		t.Errorf("raw enum values not preserved: %q / %q", l.Response, l.Status)
	}
}

func TestReadStoreRequiresKeyColumns(t *testing.T) {
	path := writeCSV(t, "Name,Address\nBiz,somewhere\n")
	if _, err := ReadStore(path); err == nil {
		t.Error("expected error for missing Business_Name/Email columns")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	s := &Store{Path: path}
	l := Lead{
		BusinessName:  "Hot Pipes",
		URL:           "http://hotpipes.example",
		Tier:          TierHot,
		Email:         "info@hotpipes.example",
		SpecificFlaws: "outdated layout, no mobile",
		DraftHook:     "your site still lists 2019 hours",
		EmailSent:     true,
		DateSent:      "2025-06-01",
		SendStatus:    "Success",
		Response:      ResponseYes,
		ResponseDate:  "2025-06-03",
		ResponseText:  "Yes, tell me more",
		Status:        StatusInterested,
	}
	l.FollowUpSent[0] = "2025-06-04"
	s.Leads = append(s.Leads, l)

	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r, err := ReadStore(path)
	if err != nil {
		t.Fatalf("ReadStore: %v", err)
	}
	if len(r.Leads) != 1 {
		t.Fatalf("got %d leads, want 1", len(r.Leads))
	}
	if r.Leads[0] != l {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", r.Leads[0], l)
	}
}

func TestFindByEmail(t *testing.T) {
	s := &Store{Leads: []Lead{
		{BusinessName: "A", Email: "Info@Example.com"},
		{BusinessName: "B", Email: "b@example.com"},
	}}

	if l := s.FindByEmail("info@example.com"); l == nil || l.BusinessName != "A" {
		t.Error("case-insensitive lookup failed")
	}
	if l := s.FindByEmail("  B@EXAMPLE.COM "); l == nil || l.BusinessName != "B" {
		t.Error("whitespace-tolerant lookup failed")
	}
	if l := s.FindByEmail("missing@example.com"); l != nil {
		t.Error("unknown address should return nil")
	}
	if l := s.FindByEmail(""); l != nil {
		t.Error("empty address should return nil")
	}
}
