// Package csvstore keeps the ticket log as one flat CSV table that is read
// and rewritten in full on every save.
//
// The store is not safe for concurrent writers: two overlapping saves each
// rewrite the table from the snapshot they read, and the later rename wins.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"triagebot/internal/domain"
	"triagebot/internal/storage"
)

type Store struct {
	path string
	loc  *time.Location
}

func New(path string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{path: path, loc: loc}
}

func (s *Store) Path() string { return s.path }

// Save prepends record to the existing table and rewrites the whole file.
// A missing file is treated as an empty table.
func (s *Store) Save(record domain.TicketRecord) error {
	existing, err := s.readRows()
	if err != nil {
		return err
	}
	row, err := encodeRow(record, s.loc)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(existing)+2)
	rows = append(rows, storage.Columns, row)
	rows = append(rows, existing...)

	if err := s.writeRows(rows); err != nil {
		return err
	}
	log.Printf("store csv saved path=%s rows=%d model=%s", s.path, len(rows)-1, record.ModelUsed)
	return nil
}

// Load returns every record, newest first. A missing file yields an empty
// slice and no error.
func (s *Store) Load() ([]domain.TicketRecord, error) {
	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}
	records := make([]domain.TicketRecord, 0, len(rows))
	for i, row := range rows {
		record, err := decodeRow(row, s.loc)
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", s.path, i+2, err)
		}
		records = append(records, record)
	}
	storage.SortNewestFirst(records)
	return records, nil
}

// readRows returns the data rows in file order, reordered into the canonical
// column order when the header differs.
func (s *Store) readRows() ([][]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", s.path, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range storage.Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("read %s: missing column %q", s.path, col)
		}
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		row := make([]string, len(storage.Columns))
		for i, col := range storage.Columns {
			if idx := index[col]; idx < len(rec) {
				row[i] = rec[idx]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) writeRows(rows [][]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func encodeRow(r domain.TicketRecord, loc *time.Location) ([]string, error) {
	actions, err := storage.EncodeActions(r.SuggestedActions)
	if err != nil {
		return nil, err
	}
	return []string{
		r.Issue,
		r.Category,
		r.Urgency,
		actions,
		r.Explanation,
		strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		storage.FormatTimestamp(r.Timestamp, loc),
		r.TicketText,
		r.ModelUsed,
	}, nil
}

func decodeRow(row []string, loc *time.Location) (domain.TicketRecord, error) {
	actions, err := storage.DecodeActions(row[3])
	if err != nil {
		return domain.TicketRecord{}, err
	}
	confidence, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return domain.TicketRecord{}, fmt.Errorf("parse confidence %q: %w", row[5], err)
	}
	ts, err := storage.ParseTimestamp(row[6], loc)
	if err != nil {
		return domain.TicketRecord{}, err
	}
	return domain.TicketRecord{
		Issue:            row[0],
		Category:         row[1],
		Urgency:          row[2],
		SuggestedActions: actions,
		Explanation:      row[4],
		Confidence:       confidence,
		Timestamp:        ts,
		TicketText:       row[7],
		ModelUsed:        row[8],
	}, nil
}
