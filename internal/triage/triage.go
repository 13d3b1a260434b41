// Package triage runs tickets through the analysis pipeline and records the
// results. A Session carries one run's results to whoever renders them.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"triagebot/internal/domain"
)

var ErrEmptyTicket = errors.New("ticket text is empty")

// Analyzer turns ticket text into a stamped record.
type Analyzer interface {
	Analyze(ctx context.Context, ticketText, model string) (domain.TicketRecord, error)
}

// Store is the ticket log.
type Store interface {
	Save(record domain.TicketRecord) error
	Load() ([]domain.TicketRecord, error)
}

type Service struct {
	Analyzer     Analyzer
	Store        Store
	Models       []string // A/B candidates, run in order
	DefaultModel string
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Triage analyzes the ticket with a single model and saves the result.
// An empty model selects DefaultModel.
func (s *Service) Triage(ctx context.Context, text, model string) (*domain.Session, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyTicket
	}
	if strings.TrimSpace(model) == "" {
		model = s.DefaultModel
	}
	session := &domain.Session{TicketText: text, StartedAt: s.now()}
	if err := s.run(ctx, session, model); err != nil {
		return session, err
	}
	return session, nil
}

// TriageAB analyzes the ticket with every candidate model in turn. Each
// record is saved as soon as it is produced; the first failure stops the
// run and the partial session is returned with the error.
func (s *Service) TriageAB(ctx context.Context, text string) (*domain.Session, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyTicket
	}
	if len(s.Models) == 0 {
		return nil, errors.New("no A/B models configured")
	}
	session := &domain.Session{TicketText: text, ABTest: true, StartedAt: s.now()}
	for _, model := range s.Models {
		if err := ctx.Err(); err != nil {
			return session, err
		}
		if err := s.run(ctx, session, model); err != nil {
			return session, err
		}
	}
	if session.UrgencyDisagreement() {
		log.Printf("triage ab urgency disagreement models=%s", strings.Join(session.Models(), ","))
	}
	return session, nil
}

func (s *Service) run(ctx context.Context, session *domain.Session, model string) error {
	record, err := s.Analyzer.Analyze(ctx, session.TicketText, model)
	if err != nil {
		log.Printf("triage analyze failed model=%s err=%v", model, err)
		return err
	}
	if err := s.Store.Save(record); err != nil {
		return fmt.Errorf("save record for model %s: %w", record.ModelUsed, err)
	}
	session.Results = append(session.Results, record)
	log.Printf("triage saved model=%s category=%q urgency=%q confidence=%.2f",
		record.ModelUsed, record.Category, record.Urgency, record.Confidence)
	return nil
}

// History returns up to limit records, newest first. A limit <= 0 returns
// the whole log.
func (s *Service) History(limit int) ([]domain.TicketRecord, error) {
	records, err := s.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load ticket log: %w", err)
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

// Snapshot reloads the full ticket log for aggregate views.
func (s *Service) Snapshot() ([]domain.TicketRecord, error) {
	return s.History(0)
}
