// Package analytics computes aggregate views over a snapshot of the ticket
// log. Every function is pure: the input slice is never modified and an
// empty log yields an empty result.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"triagebot/internal/domain"
)

// Unit is a time-bucket width.
type Unit string

const (
	Hour  Unit = "hour"
	Day   Unit = "day"
	Week  Unit = "week"
	Month Unit = "month"
)

// ParseUnit accepts unit names and the single-letter aliases H, D, W, M.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "d", "day", "daily":
		return Day, nil
	case "h", "hour", "hourly":
		return Hour, nil
	case "w", "week", "weekly":
		return Week, nil
	case "m", "month", "monthly":
		return Month, nil
	}
	return "", fmt.Errorf("unknown bucket unit %q (want hour, day, week or month)", s)
}

// BucketStart returns the start of the bucket containing t, in t's location.
// Weeks start on Monday.
func (u Unit) BucketStart(t time.Time) time.Time {
	switch u {
	case Hour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case Week:
		weekday := t.Weekday()
		if weekday == time.Sunday {
			weekday = 7
		}
		daysFromMonday := int(weekday) - int(time.Monday)
		return time.Date(t.Year(), t.Month(), t.Day()-daysFromMonday, 0, 0, 0, 0, t.Location())
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

type Count struct {
	Key   string
	Count int
}

type Share struct {
	Key   string
	Share float64
}

type Delta struct {
	Category string
	Recent   int
	Past     int
	Delta    int
}

type FirstSeen struct {
	Category  string
	FirstSeen time.Time
}

type Point struct {
	Bucket time.Time
	Value  float64
}

type Mean struct {
	Key   string
	Mean  float64
	Count int
}

// ModelUrgency is one row of the model × urgency crosstab.
type ModelUrgency struct {
	Model  string
	Counts map[string]int
	Total  int
}

// CategoryTrend counts records per category over the whole log.
func CategoryTrend(records []domain.TicketRecord) []Count {
	return countBy(records, func(r domain.TicketRecord) string { return r.Category })
}

// RecentDrift counts categories among the first n records, which are the n
// most recent when records come straight from a store Load.
func RecentDrift(records []domain.TicketRecord, n int) []Count {
	if n <= 0 {
		return []Count{}
	}
	if n < len(records) {
		records = records[:n]
	}
	return CategoryTrend(records)
}

// VolumeOverTime counts records per bucket. Buckets with no records are
// omitted.
func VolumeOverTime(records []domain.TicketRecord, unit Unit) []Point {
	return bucketMean(records, unit, func(domain.TicketRecord) float64 { return 1 }, true)
}

// UrgencyDistribution returns the share of records at each urgency level.
func UrgencyDistribution(records []domain.TicketRecord) []Share {
	counts := countBy(records, func(r domain.TicketRecord) string { return r.Urgency })
	out := make([]Share, 0, len(counts))
	total := float64(len(records))
	for _, c := range counts {
		out = append(out, Share{Key: c.Key, Share: float64(c.Count) / total})
	}
	return out
}

// CategoryShift splits the log at max(timestamp) - splitDays. Records
// strictly after the cutoff are recent; the rest are past. The result is
// sorted by Delta (recent - past) descending.
func CategoryShift(records []domain.TicketRecord, splitDays int) []Delta {
	if len(records) == 0 {
		return []Delta{}
	}
	latest := records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	cutoff := latest.AddDate(0, 0, -splitDays)

	byCategory := make(map[string]*Delta)
	for _, r := range records {
		d, ok := byCategory[r.Category]
		if !ok {
			d = &Delta{Category: r.Category}
			byCategory[r.Category] = d
		}
		if r.Timestamp.After(cutoff) {
			d.Recent++
		} else {
			d.Past++
		}
	}

	out := make([]Delta, 0, len(byCategory))
	for _, d := range byCategory {
		d.Delta = d.Recent - d.Past
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Delta != out[j].Delta {
			return out[i].Delta > out[j].Delta
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// NewCategories returns the earliest timestamp of each category, the most
// recently introduced category first.
func NewCategories(records []domain.TicketRecord) []FirstSeen {
	first := make(map[string]time.Time)
	for _, r := range records {
		if seen, ok := first[r.Category]; !ok || r.Timestamp.Before(seen) {
			first[r.Category] = r.Timestamp
		}
	}
	out := make([]FirstSeen, 0, len(first))
	for category, ts := range first {
		out = append(out, FirstSeen{Category: category, FirstSeen: ts})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.After(out[j].FirstSeen)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// ConfidenceTrend averages confidence per bucket.
func ConfidenceTrend(records []domain.TicketRecord, unit Unit) []Point {
	return bucketMean(records, unit, func(r domain.TicketRecord) float64 { return r.Confidence }, false)
}

// ComplexityTrend averages explanation length (in characters) per bucket.
func ComplexityTrend(records []domain.TicketRecord, unit Unit) []Point {
	return bucketMean(records, unit, func(r domain.TicketRecord) float64 {
		return float64(utf8.RuneCountInString(r.Explanation))
	}, false)
}

// ModelUsage counts records per model.
func ModelUsage(records []domain.TicketRecord) []Count {
	return countBy(records, func(r domain.TicketRecord) string { return r.ModelUsed })
}

// ConfidenceByModel averages confidence per model, ordered by model name.
func ConfidenceByModel(records []domain.TicketRecord) []Mean {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range records {
		sums[r.ModelUsed] += r.Confidence
		counts[r.ModelUsed]++
	}
	out := make([]Mean, 0, len(sums))
	for model, sum := range sums {
		out = append(out, Mean{Key: model, Mean: sum / float64(counts[model]), Count: counts[model]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// UrgencyByModel cross-tabulates models against urgency levels.
func UrgencyByModel(records []domain.TicketRecord) []ModelUrgency {
	byModel := make(map[string]*ModelUrgency)
	for _, r := range records {
		row, ok := byModel[r.ModelUsed]
		if !ok {
			row = &ModelUrgency{Model: r.ModelUsed, Counts: make(map[string]int)}
			byModel[r.ModelUsed] = row
		}
		row.Counts[r.Urgency]++
		row.Total++
	}
	out := make([]ModelUrgency, 0, len(byModel))
	for _, row := range byModel {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// countBy builds a frequency table ordered by count descending, then key.
func countBy(records []domain.TicketRecord, key func(domain.TicketRecord) string) []Count {
	counts := make(map[string]int)
	for _, r := range records {
		counts[key(r)]++
	}
	out := make([]Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// bucketMean groups records into buckets and reports either the count or
// the mean of value per bucket, in ascending bucket order.
func bucketMean(records []domain.TicketRecord, unit Unit, value func(domain.TicketRecord) float64, sum bool) []Point {
	type acc struct {
		total float64
		n     int
	}
	buckets := make(map[int64]*acc)
	starts := make(map[int64]time.Time)
	for _, r := range records {
		start := unit.BucketStart(r.Timestamp)
		key := start.Unix()
		a, ok := buckets[key]
		if !ok {
			a = &acc{}
			buckets[key] = a
			starts[key] = start
		}
		a.total += value(r)
		a.n++
	}

	out := make([]Point, 0, len(buckets))
	for key, a := range buckets {
		v := a.total
		if !sum {
			v = a.total / float64(a.n)
		}
		out = append(out, Point{Bucket: starts[key], Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out
}
