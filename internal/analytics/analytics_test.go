package analytics

import (
	"math"
	"reflect"
	"testing"
	"time"

	"triagebot/internal/domain"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func rec(category, urgency string, ts time.Time) domain.TicketRecord {
	return domain.TicketRecord{Category: category, Urgency: urgency, Timestamp: ts, Confidence: 0.5, ModelUsed: "m"}
}

func TestEmptyInputYieldsEmptyOutput(t *testing.T) {
	var none []domain.TicketRecord
	if got := CategoryTrend(none); got == nil || len(got) != 0 {
		t.Fatalf("CategoryTrend: %#v", got)
	}
	if got := RecentDrift(none, 5); len(got) != 0 {
		t.Fatalf("RecentDrift: %#v", got)
	}
	if got := VolumeOverTime(none, Day); len(got) != 0 {
		t.Fatalf("VolumeOverTime: %#v", got)
	}
	if got := UrgencyDistribution(none); len(got) != 0 {
		t.Fatalf("UrgencyDistribution: %#v", got)
	}
	if got := CategoryShift(none, 2); got == nil || len(got) != 0 {
		t.Fatalf("CategoryShift: %#v", got)
	}
	if got := NewCategories(none); len(got) != 0 {
		t.Fatalf("NewCategories: %#v", got)
	}
	if got := ConfidenceTrend(none, Week); len(got) != 0 {
		t.Fatalf("ConfidenceTrend: %#v", got)
	}
	if got := ComplexityTrend(none, Month); len(got) != 0 {
		t.Fatalf("ComplexityTrend: %#v", got)
	}
	if got := UrgencyByModel(none); len(got) != 0 {
		t.Fatalf("UrgencyByModel: %#v", got)
	}
}

func TestCategoryTrendOrdersByCountThenName(t *testing.T) {
	records := []domain.TicketRecord{
		rec("Billing", "High", now),
		rec("Performance", "Low", now),
		rec("Billing", "Low", now),
		rec("Authentication", "Low", now),
	}
	want := []Count{{"Billing", 2}, {"Authentication", 1}, {"Performance", 1}}
	if got := CategoryTrend(records); !reflect.DeepEqual(got, want) {
		t.Fatalf("CategoryTrend = %#v, want %#v", got, want)
	}
}

func TestRecentDriftUsesLeadingRecords(t *testing.T) {
	records := []domain.TicketRecord{
		rec("Billing", "High", now),
		rec("Billing", "High", now.Add(-time.Hour)),
		rec("Other", "Low", now.Add(-2*time.Hour)),
	}
	want := []Count{{"Billing", 2}}
	if got := RecentDrift(records, 2); !reflect.DeepEqual(got, want) {
		t.Fatalf("RecentDrift = %#v, want %#v", got, want)
	}
	if got := RecentDrift(records, 10); len(got) != 2 {
		t.Fatalf("RecentDrift with n > len should cover everything: %#v", got)
	}
	if got := RecentDrift(records, 0); len(got) != 0 {
		t.Fatalf("RecentDrift(0) = %#v", got)
	}
}

func TestUrgencyDistribution(t *testing.T) {
	records := []domain.TicketRecord{
		rec("A", "Critical", now),
		rec("A", "Critical", now),
		rec("A", "High", now),
		rec("A", "Low", now),
	}
	want := []Share{{"Critical", 0.5}, {"High", 0.25}, {"Low", 0.25}}
	got := UrgencyDistribution(records)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UrgencyDistribution = %#v, want %#v", got, want)
	}
	var total float64
	for _, s := range got {
		total += s.Share
	}
	if math.Abs(total-1) > 1e-9 {
		t.Fatalf("shares should sum to 1, got %f", total)
	}
}

func TestCategoryShift(t *testing.T) {
	fiveDaysAgo := now.AddDate(0, 0, -5)
	records := []domain.TicketRecord{
		rec("Billing", "High", now),
		rec("Billing", "High", fiveDaysAgo),
		rec("Billing", "High", fiveDaysAgo),
		rec("Billing", "High", fiveDaysAgo),
		rec("Performance", "Low", now.Add(-time.Hour)),
	}
	got := CategoryShift(records, 2)
	want := []Delta{
		{Category: "Performance", Recent: 1, Past: 0, Delta: 1},
		{Category: "Billing", Recent: 1, Past: 3, Delta: -2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CategoryShift = %#v, want %#v", got, want)
	}
}

func TestCategoryShiftCutoffIsExclusive(t *testing.T) {
	records := []domain.TicketRecord{
		rec("Billing", "High", now),
		rec("Billing", "High", now.AddDate(0, 0, -2)),
	}
	got := CategoryShift(records, 2)
	if len(got) != 1 || got[0].Recent != 1 || got[0].Past != 1 {
		t.Fatalf("record exactly at the cutoff should count as past: %#v", got)
	}
}

func TestNewCategories(t *testing.T) {
	records := []domain.TicketRecord{
		rec("Billing", "High", now),
		rec("Billing", "High", now.AddDate(0, 0, -10)),
		rec("UI Bug", "Low", now.AddDate(0, 0, -1)),
	}
	want := []FirstSeen{
		{Category: "UI Bug", FirstSeen: now.AddDate(0, 0, -1)},
		{Category: "Billing", FirstSeen: now.AddDate(0, 0, -10)},
	}
	if got := NewCategories(records); !reflect.DeepEqual(got, want) {
		t.Fatalf("NewCategories = %#v, want %#v", got, want)
	}
}

func TestVolumeOverTimeSkipsEmptyBuckets(t *testing.T) {
	day1 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	records := []domain.TicketRecord{
		rec("A", "Low", day1.Add(3*time.Hour)),
		rec("A", "Low", day1),
		rec("A", "Low", day1.AddDate(0, 0, 2)),
	}
	got := VolumeOverTime(records, Day)
	want := []Point{
		{Bucket: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), Value: 2},
		{Bucket: time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC), Value: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("VolumeOverTime = %#v, want %#v", got, want)
	}
}

func TestBucketStart(t *testing.T) {
	// 2026-10-18 is a Sunday.
	sunday := time.Date(2026, 10, 18, 22, 45, 10, 0, time.UTC)
	tests := []struct {
		unit Unit
		want time.Time
	}{
		{Hour, time.Date(2026, 10, 18, 22, 0, 0, 0, time.UTC)},
		{Day, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)},
		{Week, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{Month, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := tt.unit.BucketStart(sunday); !got.Equal(tt.want) {
			t.Fatalf("%s: BucketStart = %s, want %s", tt.unit, got, tt.want)
		}
	}
	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	if got := Week.BucketStart(monday); !got.Equal(monday) {
		t.Fatalf("monday should start its own week, got %s", got)
	}
}

func TestParseUnit(t *testing.T) {
	tests := map[string]Unit{"": Day, "D": Day, "hour": Hour, "H": Hour, "W": Week, "weekly": Week, "M": Month}
	for in, want := range tests {
		got, err := ParseUnit(in)
		if err != nil || got != want {
			t.Fatalf("ParseUnit(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseUnit("fortnight"); err == nil {
		t.Fatal("expected error for unknown unit")
	}
}

func TestConfidenceAndComplexityTrend(t *testing.T) {
	day := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	a := rec("A", "Low", day)
	a.Confidence = 0.4
	a.Explanation = "héllo"
	b := rec("A", "Low", day.Add(time.Hour))
	b.Confidence = 0.8
	b.Explanation = "hi"

	conf := ConfidenceTrend([]domain.TicketRecord{a, b}, Day)
	if len(conf) != 1 || math.Abs(conf[0].Value-0.6) > 1e-9 {
		t.Fatalf("ConfidenceTrend = %#v", conf)
	}
	complexity := ComplexityTrend([]domain.TicketRecord{a, b}, Day)
	if len(complexity) != 1 || complexity[0].Value != 3.5 {
		t.Fatalf("ComplexityTrend should count characters, got %#v", complexity)
	}
}

func TestModelBreakdowns(t *testing.T) {
	r1 := rec("A", "High", now)
	r1.ModelUsed, r1.Confidence = "small", 0.6
	r2 := rec("A", "Low", now)
	r2.ModelUsed, r2.Confidence = "small", 0.8
	r3 := rec("A", "High", now)
	r3.ModelUsed, r3.Confidence = "large", 0.9
	records := []domain.TicketRecord{r1, r2, r3}

	usage := ModelUsage(records)
	if !reflect.DeepEqual(usage, []Count{{"small", 2}, {"large", 1}}) {
		t.Fatalf("ModelUsage = %#v", usage)
	}
	means := ConfidenceByModel(records)
	if len(means) != 2 || means[0].Key != "large" || math.Abs(means[1].Mean-0.7) > 1e-9 || means[1].Count != 2 {
		t.Fatalf("ConfidenceByModel = %#v", means)
	}
	cross := UrgencyByModel(records)
	if len(cross) != 2 || cross[1].Model != "small" || cross[1].Counts["High"] != 1 || cross[1].Counts["Low"] != 1 || cross[1].Total != 2 {
		t.Fatalf("UrgencyByModel = %#v", cross)
	}
}

func TestViewsAreIdempotentAndDoNotMutate(t *testing.T) {
	records := []domain.TicketRecord{
		rec("Billing", "High", now.AddDate(0, 0, -3)),
		rec("Other", "Low", now),
		rec("Billing", "Critical", now.AddDate(0, 0, -1)),
	}
	snapshot := append([]domain.TicketRecord(nil), records...)

	first := CategoryShift(records, 2)
	second := CategoryShift(records, 2)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("CategoryShift not idempotent: %#v vs %#v", first, second)
	}
	if !reflect.DeepEqual(NewCategories(records), NewCategories(records)) {
		t.Fatal("NewCategories not idempotent")
	}
	if !reflect.DeepEqual(records, snapshot) {
		t.Fatal("input records were mutated")
	}
}
