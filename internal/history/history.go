// Package history keeps a permanent audit trail of every send attempt and
// every classified reply in a local sqlite database. The CSV lead store is
// the working state; this is the append-only record behind the status command.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Attempt is one outbound email attempt, initial or follow-up.
type Attempt struct {
	ID        int64
	Business  string
	Email     string
	Kind      string // "initial", "followup_1", "followup_2", "followup_3"
	Niche     string
	City      string
	Status    Status
	MessageID string
	Error     string
	SentAt    time.Time
	CreatedAt time.Time
}

// Reply is one classified inbound response.
type Reply struct {
	ID             int64
	Business       string
	Email          string
	Classification string // YES, NO, MAYBE
	Subject        string
	Excerpt        string
	ReceivedAt     time.Time
	CreatedAt      time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS send_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		business TEXT NOT NULL,
		email TEXT NOT NULL,
		kind TEXT NOT NULL,
		niche TEXT,
		city TEXT,
		status TEXT NOT NULL,
		message_id TEXT,
		error TEXT,
		sent_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sa_email ON send_attempts(email);
	CREATE INDEX IF NOT EXISTS idx_sa_sent_at ON send_attempts(sent_at);
	CREATE INDEX IF NOT EXISTS idx_sa_status ON send_attempts(status);

	CREATE TABLE IF NOT EXISTS replies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		business TEXT NOT NULL,
		email TEXT NOT NULL,
		classification TEXT NOT NULL,
		subject TEXT,
		excerpt TEXT,
		received_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_r_email ON replies(email);
	CREATE INDEX IF NOT EXISTS idx_r_classification ON replies(classification);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) AddAttempt(a *Attempt) error {
	query := `
	INSERT INTO send_attempts (business, email, kind, niche, city, status, message_id, error, sent_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		a.Business, a.Email, a.Kind, a.Niche, a.City,
		a.Status, a.MessageID, a.Error, a.SentAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

func (s *Store) AddReply(r *Reply) error {
	query := `
	INSERT INTO replies (business, email, classification, subject, excerpt, received_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		r.Business, r.Email, r.Classification, r.Subject, r.Excerpt, r.ReceivedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reply: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	return nil
}

func (s *Store) GetRecentAttempts(limit int) ([]Attempt, error) {
	query := `
	SELECT id, business, email, kind, niche, city, status, message_id, error, sent_at, created_at
	FROM send_attempts ORDER BY sent_at DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var niche, city, messageID, errStr sql.NullString
		var sentAt, createdAt sql.NullTime

		if err := rows.Scan(&a.ID, &a.Business, &a.Email, &a.Kind, &niche, &city,
			&a.Status, &messageID, &errStr, &sentAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}

		a.Niche = niche.String
		a.City = city.String
		a.MessageID = messageID.String
		a.Error = errStr.String
		a.SentAt = sentAt.Time
		a.CreatedAt = createdAt.Time
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *Store) GetStats() (total, sent, failed int, err error) {
	query := `SELECT COUNT(*), SUM(CASE WHEN status='sent' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END) FROM send_attempts`

	var sentNull, failedNull sql.NullInt64
	err = s.db.QueryRow(query).Scan(&total, &sentNull, &failedNull)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get stats: %w", err)
	}
	return total, int(sentNull.Int64), int(failedNull.Int64), nil
}

// GetKindStats returns successful-send counts grouped by email kind.
func (s *Store) GetKindStats() (map[string]int, error) {
	query := `SELECT kind, COUNT(*) FROM send_attempts WHERE status='sent' GROUP BY kind`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query kind stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind stat: %w", err)
		}
		stats[kind] = count
	}
	return stats, rows.Err()
}

// GetReplyStats returns reply counts grouped by classification.
func (s *Store) GetReplyStats() (map[string]int, error) {
	query := `SELECT classification, COUNT(*) FROM replies GROUP BY classification`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reply stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var classification string
		var count int
		if err := rows.Scan(&classification, &count); err != nil {
			return nil, fmt.Errorf("failed to scan reply stat: %w", err)
		}
		stats[classification] = count
	}
	return stats, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }
