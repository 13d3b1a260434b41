package storage

import (
	"strings"
	"testing"
	"time"

	"triagebot/internal/domain"
)

func TestDecodeActions(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{name: "empty", in: "", want: []string{}},
		{name: "json", in: `["a", "b, c"]`, want: []string{"a", "b, c"}},
		{name: "json null", in: `null`, want: []string{}},
		{name: "python literal", in: `['Reset password', "Check user's MFA"]`, want: []string{"Reset password", "Check user's MFA"}},
		{name: "escaped quote", in: `['It\'s fine']`, want: []string{"It's fine"}},
		{name: "trailing comma", in: `['a', ]`, want: []string{"a"}},
		{name: "empty literal", in: `[]`, want: []string{}},
		{name: "code is not evaluated", in: `__import__('os').system('true')`, wantErr: true},
		{name: "unterminated", in: `['abc]`, wantErr: true},
		{name: "bare words", in: `[abc]`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := DecodeActions(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %#v", tt.name, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got == nil || strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Fatalf("%s: DecodeActions = %#v, want %#v", tt.name, got, tt.want)
		}
	}
}

func TestEncodeActions(t *testing.T) {
	got, err := EncodeActions(nil)
	if err != nil || got != "[]" {
		t.Fatalf("EncodeActions(nil) = %q, %v", got, err)
	}
	got, err = EncodeActions([]string{"say \"hi\""})
	if err != nil || got != `["say \"hi\""]` {
		t.Fatalf("EncodeActions = %q, %v", got, err)
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	ts, err := ParseTimestamp("2026-10-19T09:30:15", loc)
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	if ts.Location() != loc || ts.Hour() != 9 {
		t.Fatalf("zone-less timestamp should be read in the given location: %s", ts)
	}
	if FormatTimestamp(ts, loc) != "2026-10-19T09:30:15" {
		t.Fatalf("format round-trip mismatch: %s", FormatTimestamp(ts, loc))
	}
	tokyo := time.FixedZone("JST", 9*60*60)
	if got := FormatTimestamp(ts.In(tokyo), loc); got != "2026-10-19T09:30:15" {
		t.Fatalf("timestamp from another zone should be written in loc: %s", got)
	}

	ts, err = ParseTimestamp("2026-10-19T09:30:15Z", loc)
	if err != nil || !ts.Equal(time.Date(2026, 10, 19, 9, 30, 15, 0, time.UTC)) {
		t.Fatalf("RFC3339 timestamp mismatch: %s %v", ts, err)
	}
	if _, err := ParseTimestamp("yesterday", loc); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}

func TestSortNewestFirstIsStable(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []domain.TicketRecord{
		{Issue: "a", Timestamp: base},
		{Issue: "b", Timestamp: base.Add(time.Hour)},
		{Issue: "c", Timestamp: base},
	}
	SortNewestFirst(records)
	if records[0].Issue != "b" || records[1].Issue != "a" || records[2].Issue != "c" {
		t.Fatalf("unexpected order: %s %s %s", records[0].Issue, records[1].Issue, records[2].Issue)
	}
}
