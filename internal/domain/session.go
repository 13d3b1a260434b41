package domain

import "time"

// Session carries the results of one triage interaction from the analysis
// step to whatever renders it. A/B runs hold one record per candidate model.
type Session struct {
	TicketText string
	ABTest     bool
	Results    []TicketRecord
	StartedAt  time.Time
}

// Primary is the record shown as the headline result.
func (s *Session) Primary() (TicketRecord, bool) {
	if s == nil || len(s.Results) == 0 {
		return TicketRecord{}, false
	}
	return s.Results[0], true
}

// UrgencyDisagreement reports whether the models in the session produced
// more than one distinct urgency value.
func (s *Session) UrgencyDisagreement() bool {
	if s == nil || len(s.Results) < 2 {
		return false
	}
	seen := make(map[string]bool, len(s.Results))
	for _, r := range s.Results {
		seen[r.Urgency] = true
	}
	return len(seen) > 1
}

// Models lists the model identifiers in result order.
func (s *Session) Models() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Results))
	for _, r := range s.Results {
		out = append(out, r.ModelUsed)
	}
	return out
}
