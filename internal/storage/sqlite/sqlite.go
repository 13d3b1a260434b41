// Package sqlite is the append-only ticket store: each save is a single
// INSERT instead of a whole-table rewrite.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"triagebot/internal/domain"
	"triagebot/internal/storage"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tickets (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		issue             TEXT NOT NULL DEFAULT '',
		category          TEXT NOT NULL DEFAULT '',
		urgency           TEXT NOT NULL DEFAULT '',
		suggested_actions TEXT NOT NULL DEFAULT '[]',
		explanation       TEXT NOT NULL DEFAULT '',
		confidence        REAL NOT NULL,
		timestamp         TEXT NOT NULL,
		ticket_text       TEXT NOT NULL DEFAULT '',
		model_used        TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_timestamp ON tickets(timestamp);
	CREATE INDEX IF NOT EXISTS idx_tickets_model ON tickets(model_used);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, loc: loc}
}

// Open initializes the database at path and wraps it in a Store.
func Open(path string, loc *time.Location) (*Store, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, fmt.Errorf("init sqlite store %s: %w", path, err)
	}
	return New(db, loc), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(record domain.TicketRecord) error {
	actions, err := storage.EncodeActions(record.SuggestedActions)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO tickets (issue, category, urgency, suggested_actions, explanation, confidence, timestamp, ticket_text, model_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Issue, record.Category, record.Urgency, actions, record.Explanation,
		record.Confidence, storage.FormatTimestamp(record.Timestamp, s.loc), record.TicketText, record.ModelUsed,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	log.Printf("store sqlite saved model=%s", record.ModelUsed)
	return nil
}

// Load returns every record, newest first. Rows with equal timestamps come
// back most recently inserted first, matching the csv backend.
func (s *Store) Load() ([]domain.TicketRecord, error) {
	rows, err := s.db.Query(
		`SELECT issue, category, urgency, suggested_actions, explanation, confidence, timestamp, ticket_text, model_used
		 FROM tickets ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.TicketRecord{}
	for rows.Next() {
		var r domain.TicketRecord
		var actions, ts string
		if err := rows.Scan(&r.Issue, &r.Category, &r.Urgency, &actions, &r.Explanation, &r.Confidence, &ts, &r.TicketText, &r.ModelUsed); err != nil {
			return nil, err
		}
		if r.SuggestedActions, err = storage.DecodeActions(actions); err != nil {
			return nil, err
		}
		if r.Timestamp, err = storage.ParseTimestamp(ts, s.loc); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	storage.SortNewestFirst(records)
	return records, nil
}

// Count returns the number of stored tickets.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tickets`).Scan(&n)
	return n, err
}
