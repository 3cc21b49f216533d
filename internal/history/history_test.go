package history

import (
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAttemptRoundTrip(t *testing.T) {
	s := testStore(t)
	sentAt := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	attempts := []*Attempt{
		{Business: "Hot Pipes", Email: "hot@example.com", Kind: "initial",
			Niche: "Plumbers", City: "Austin TX", Status: StatusSent,
			MessageID: "id-1", SentAt: sentAt},
		{Business: "Cold Pipes", Email: "cold@example.com", Kind: "followup_1",
			Status: StatusFailed, Error: "550 mailbox unavailable", SentAt: sentAt.Add(time.Minute)},
	}
	for _, a := range attempts {
		if err := s.AddAttempt(a); err != nil {
			t.Fatalf("AddAttempt: %v", err)
		}
		if a.ID == 0 {
			t.Error("AddAttempt did not set ID")
		}
	}

	recent, err := s.GetRecentAttempts(10)
	if err != nil {
		t.Fatalf("GetRecentAttempts: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d attempts, want 2", len(recent))
	}
	// Newest first.
	if recent[0].Business != "Cold Pipes" || recent[0].Error != "550 mailbox unavailable" {
		t.Errorf("wrong first attempt: %+v", recent[0])
	}
	if recent[1].Niche != "Plumbers" || recent[1].MessageID != "id-1" {
		t.Errorf("wrong second attempt: %+v", recent[1])
	}

	total, sent, failed, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if total != 2 || sent != 1 || failed != 1 {
		t.Errorf("stats = %d/%d/%d, want 2/1/1", total, sent, failed)
	}

	kinds, err := s.GetKindStats()
	if err != nil {
		t.Fatalf("GetKindStats: %v", err)
	}
	if kinds["initial"] != 1 || kinds["followup_1"] != 0 {
		t.Errorf("kind stats count failed sends: %v", kinds)
	}
}

func TestReplyStats(t *testing.T) {
	s := testStore(t)
	for _, cls := range []string{"YES", "YES", "NO", "MAYBE"} {
		r := &Reply{Business: "Biz", Email: "a@example.com", Classification: cls,
			ReceivedAt: time.Now()}
		if err := s.AddReply(r); err != nil {
			t.Fatalf("AddReply: %v", err)
		}
	}

	stats, err := s.GetReplyStats()
	if err != nil {
		t.Fatalf("GetReplyStats: %v", err)
	}
	if stats["YES"] != 2 || stats["NO"] != 1 || stats["MAYBE"] != 1 {
		t.Errorf("reply stats = %v", stats)
	}
}

func TestEmptyStoreStats(t *testing.T) {
	s := testStore(t)
	total, sent, failed, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats on empty store: %v", err)
	}
	if total != 0 || sent != 0 || failed != 0 {
		t.Errorf("empty stats = %d/%d/%d", total, sent, failed)
	}
}
