// Package storage holds the encoding shared by the ticket store backends:
// column names, timestamp layout and the suggested-actions list encoding.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"triagebot/internal/domain"
)

// Columns is the persisted column order.
var Columns = []string{
	"issue",
	"category",
	"urgency",
	"suggested_actions",
	"explanation",
	"confidence",
	"timestamp",
	"ticket_text",
	"model_used",
}

var timestampLayouts = []string{
	domain.TimestampLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// FormatTimestamp writes t as zone-less wall-clock time in loc, the same
// location ParseTimestamp reads it back in.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(domain.TimestampLayout)
}

// ParseTimestamp reads zone-less timestamps in loc; values carrying their own
// offset keep it.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// EncodeActions stores the action list as a JSON array.
func EncodeActions(actions []string) (string, error) {
	if actions == nil {
		actions = []string{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("encode suggested_actions: %w", err)
	}
	return string(data), nil
}

// DecodeActions reads a JSON array. Tables written by the older dashboard
// hold Python list literals such as ['a', "b's"]; those are read with a
// literal-only parser.
func DecodeActions(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	var actions []string
	if err := json.Unmarshal([]byte(s), &actions); err == nil {
		if actions == nil {
			actions = []string{}
		}
		return actions, nil
	}
	actions, err := parseQuotedList(s)
	if err != nil {
		return nil, fmt.Errorf("decode suggested_actions %q: %w", s, err)
	}
	return actions, nil
}

func parseQuotedList(s string) ([]string, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("not a list")
	}
	body := []rune(s[1 : len(s)-1])
	out := []string{}
	i := 0
	skipSpace := func() {
		for i < len(body) && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n' || body[i] == '\r') {
			i++
		}
	}
	for {
		skipSpace()
		if i >= len(body) {
			return out, nil
		}
		quote := body[i]
		if quote != '\'' && quote != '"' {
			return nil, fmt.Errorf("expected quoted string at offset %d", i)
		}
		i++
		var sb strings.Builder
		closed := false
		for i < len(body) {
			c := body[i]
			if c == '\\' && i+1 < len(body) {
				next := body[i+1]
				switch next {
				case 'n':
					sb.WriteRune('\n')
				case 't':
					sb.WriteRune('\t')
				default:
					sb.WriteRune(next)
				}
				i += 2
				continue
			}
			if c == quote {
				closed = true
				i++
				break
			}
			sb.WriteRune(c)
			i++
		}
		if !closed {
			return nil, fmt.Errorf("unterminated string")
		}
		out = append(out, sb.String())
		skipSpace()
		if i >= len(body) {
			return out, nil
		}
		if body[i] != ',' {
			return nil, fmt.Errorf("expected ',' at offset %d", i)
		}
		i++
	}
}

// SortNewestFirst orders records by timestamp descending. Equal timestamps
// keep their stored order.
func SortNewestFirst(records []domain.TicketRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}
