package render

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"triagebot/internal/analytics"
	"triagebot/internal/domain"
)

func TestFormatConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0%"},
		{0.75, "75%"},
		{0.857, "85%"},
		{1, "100%"},
	}
	for _, tt := range tests {
		if got := FormatConfidence(tt.in); got != tt.want {
			t.Fatalf("FormatConfidence(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatUrgency(t *testing.T) {
	for in, want := range map[string]string{"HIGH": "High", "low": "Low", " critical ": "Critical", "": ""} {
		if got := FormatUrgency(in); got != want {
			t.Fatalf("FormatUrgency(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChecklist(t *testing.T) {
	got := Checklist([]string{"Reset password", "Email customer"})
	want := "- [ ] Reset password\n- [ ] Email customer"
	if got != want {
		t.Fatalf("Checklist = %q, want %q", got, want)
	}
	if Checklist(nil) == "" {
		t.Fatal("empty checklist should render a placeholder")
	}
}

func TestRecordMarksUnknownValues(t *testing.T) {
	out := Record(domain.TicketRecord{
		Issue:      "Printer on fire",
		Category:   "Hardware",
		Urgency:    "critical",
		Confidence: 0.9,
		ModelUsed:  "m",
	})
	if !strings.Contains(out, "Category: Hardware (unrecognized)") {
		t.Fatalf("unknown category should be flagged:\n%s", out)
	}
	if !strings.Contains(out, "Urgency: Critical\n") {
		t.Fatalf("urgency should be capitalized and recognized:\n%s", out)
	}
	if !strings.Contains(out, "Confidence: 90%") {
		t.Fatalf("missing confidence:\n%s", out)
	}
}

func TestSessionComparison(t *testing.T) {
	s := &domain.Session{
		ABTest: true,
		Results: []domain.TicketRecord{
			{Issue: "a", Category: "Billing", Urgency: "High", Confidence: 0.8, ModelUsed: "small"},
			{Issue: "b", Category: "Billing", Urgency: "Critical", Confidence: 0.6, ModelUsed: "large"},
		},
	}
	out := Session(s)
	if !strings.Contains(out, "A/B comparison across 2 models") {
		t.Fatalf("missing comparison header:\n%s", out)
	}
	if !strings.Contains(out, "disagree on urgency") {
		t.Fatalf("missing disagreement warning:\n%s", out)
	}

	s.Results[1].Urgency = "High"
	if out := Session(s); !strings.Contains(out, "agree on urgency") || strings.Contains(out, "disagree") {
		t.Fatalf("expected agreement note:\n%s", out)
	}

	single := &domain.Session{Results: s.Results[:1]}
	if out := Session(single); strings.Contains(out, "A/B") {
		t.Fatalf("single session should not render a comparison:\n%s", out)
	}
	if Session(nil) != "No results." {
		t.Fatal("nil session should render a placeholder")
	}
}

func TestHistoryTable(t *testing.T) {
	ts := time.Date(2026, 10, 19, 9, 30, 15, 0, time.UTC)
	out := History([]domain.TicketRecord{{
		Issue:      "Very long issue text that goes on and on and on beyond what fits in a row",
		Category:   "Billing",
		Urgency:    "High",
		Confidence: 0.5,
		Timestamp:  ts,
		ModelUsed:  "m",
	}})
	if !strings.Contains(out, "2026-10-19 09:30:15") {
		t.Fatalf("missing timestamp:\n%s", out)
	}
	if !strings.Contains(out, "…") {
		t.Fatalf("long issue should be truncated:\n%s", out)
	}
	if History(nil) == "" {
		t.Fatal("empty history should render a placeholder")
	}
}

func TestStatsIncludesEveryView(t *testing.T) {
	ts := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	records := []domain.TicketRecord{
		{Category: "Billing", Urgency: "High", Confidence: 0.8, Timestamp: ts, ModelUsed: "small", Explanation: "x"},
		{Category: "Other", Urgency: "Low", Confidence: 0.4, Timestamp: ts.AddDate(0, 0, -4), ModelUsed: "large"},
	}
	out := Stats(records, StatsOptions{Window: 10, SplitDays: 2, Unit: analytics.Day})
	for _, want := range []string{
		"Category trend",
		"Recent drift (last 10)",
		"Urgency distribution",
		"- High: 50.0%",
		"Category shift (last 2 days vs before)",
		"- Billing: +1 (recent 1, past 0)",
		"- Other: -1 (recent 0, past 1)",
		"Newest categories",
		"Volume per day",
		"- 2026-10-19: 1",
		"Mean confidence per day",
		"Mean explanation length per day",
		"Avg conf",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output missing %q:\n%s", want, out)
		}
	}
	if Stats(nil, StatsOptions{Unit: analytics.Day}) == "" {
		t.Fatal("empty stats should render a placeholder")
	}
}

func TestTableAlignsColumns(t *testing.T) {
	out := table([]string{"A", "B"}, [][]string{{"long value", "x"}})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected table: %q", out)
	}
	if strings.Index(lines[0], "B") != strings.Index(lines[1], "x") {
		t.Fatalf("columns not aligned:\n%s", out)
	}

	wide := table([]string{"A", "B"}, [][]string{{"日本", "x"}})
	lines = strings.Split(strings.TrimSuffix(wide, "\n"), "\n")
	headerCol := runewidth.StringWidth(lines[0][:strings.Index(lines[0], "B")])
	rowCol := runewidth.StringWidth(lines[1][:strings.Index(lines[1], "x")])
	if headerCol != rowCol || headerCol != 6 {
		t.Fatalf("wide characters misaligned (%d vs %d):\n%s", headerCol, rowCol, wide)
	}
}
