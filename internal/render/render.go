// Package render formats triage results and aggregate views as Slack
// mrkdwn text. The CLI prints the same text.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mattn/go-runewidth"

	"triagebot/internal/analytics"
	"triagebot/internal/domain"
)

const displayLayout = "2006-01-02 15:04:05"

// FormatConfidence renders a [0,1] confidence as a whole percentage,
// truncating toward zero (0.857 -> "85%").
func FormatConfidence(v float64) string {
	return fmt.Sprintf("%d%%", int(v*100))
}

// FormatUrgency capitalizes the first letter and lowercases the rest, so a
// model answering "HIGH" or "high" displays as "High".
func FormatUrgency(level string) string {
	r := []rune(strings.ToLower(strings.TrimSpace(level)))
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Checklist renders suggested actions as a markdown task list.
func Checklist(actions []string) string {
	if len(actions) == 0 {
		return "_No suggested actions._"
	}
	lines := make([]string, 0, len(actions))
	for _, a := range actions {
		lines = append(lines, "- [ ] "+a)
	}
	return strings.Join(lines, "\n")
}

func label(value string, known bool) string {
	if value == "" {
		return "(none)"
	}
	if !known {
		return value + " (unrecognized)"
	}
	return value
}

// Record renders one analysis result in full.
func Record(r domain.TicketRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s*\n", strings.TrimSpace(r.Issue)))
	sb.WriteString(fmt.Sprintf("- Category: %s\n", label(r.Category, domain.IsKnownCategory(r.Category))))
	sb.WriteString(fmt.Sprintf("- Urgency: %s\n", label(FormatUrgency(r.Urgency), domain.IsKnownUrgency(r.Urgency))))
	sb.WriteString(fmt.Sprintf("- Confidence: %s\n", FormatConfidence(r.Confidence)))
	sb.WriteString(fmt.Sprintf("- Model: `%s`\n", r.ModelUsed))
	if r.Explanation != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", r.Explanation))
	}
	sb.WriteString("\n*Suggested actions*\n")
	sb.WriteString(Checklist(r.SuggestedActions))
	sb.WriteString("\n")
	return sb.String()
}

// Session renders a single-model result, or a side-by-side comparison when
// the session is an A/B run.
func Session(s *domain.Session) string {
	if s == nil || len(s.Results) == 0 {
		return "No results."
	}
	if !s.ABTest {
		primary, _ := s.Primary()
		return Record(primary)
	}
	return Comparison(s)
}

// Comparison renders the A/B table followed by each model's details.
func Comparison(s *domain.Session) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*A/B comparison across %d models*\n", len(s.Results)))
	sb.WriteString("```\n")
	sb.WriteString(table(
		[]string{"Model", "Category", "Urgency", "Confidence"},
		comparisonRows(s.Results),
	))
	sb.WriteString("```\n")
	if s.UrgencyDisagreement() {
		sb.WriteString(":warning: Models disagree on urgency. Review before acting.\n")
	} else {
		sb.WriteString("Models agree on urgency.\n")
	}
	for _, r := range s.Results {
		sb.WriteString("\n")
		sb.WriteString(Record(r))
	}
	return sb.String()
}

func comparisonRows(records []domain.TicketRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.ModelUsed, r.Category, FormatUrgency(r.Urgency), FormatConfidence(r.Confidence)})
	}
	return rows
}

// History renders the most recent records, newest first.
func History(records []domain.TicketRecord) string {
	if len(records) == 0 {
		return "No tickets have been triaged yet."
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Timestamp.Format(displayLayout),
			r.Category,
			FormatUrgency(r.Urgency),
			FormatConfidence(r.Confidence),
			r.ModelUsed,
			truncate(oneLine(r.Issue), 48),
		})
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Recent tickets (%d)*\n", len(records)))
	sb.WriteString("```\n")
	sb.WriteString(table([]string{"Time", "Category", "Urgency", "Conf", "Model", "Issue"}, rows))
	sb.WriteString("```")
	return sb.String()
}

type StatsOptions struct {
	Window    int
	SplitDays int
	Unit      analytics.Unit
}

// Stats renders every aggregate view over a snapshot of the log.
func Stats(records []domain.TicketRecord, opts StatsOptions) string {
	if len(records) == 0 {
		return "No tickets have been triaged yet."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Ticket analytics* (%d tickets)\n", len(records)))

	sb.WriteString("\n*Category trend*\n")
	sb.WriteString(Counts(analytics.CategoryTrend(records)))

	sb.WriteString(fmt.Sprintf("\n*Recent drift (last %d)*\n", opts.Window))
	sb.WriteString(Counts(analytics.RecentDrift(records, opts.Window)))

	sb.WriteString("\n*Urgency distribution*\n")
	sb.WriteString(Shares(analytics.UrgencyDistribution(records)))

	sb.WriteString(fmt.Sprintf("\n*Category shift (last %d days vs before)*\n", opts.SplitDays))
	sb.WriteString(Deltas(analytics.CategoryShift(records, opts.SplitDays)))

	sb.WriteString("\n*Newest categories*\n")
	for _, f := range analytics.NewCategories(records) {
		sb.WriteString(fmt.Sprintf("- %s: first seen %s\n", f.Category, f.FirstSeen.Format(displayLayout)))
	}

	sb.WriteString(fmt.Sprintf("\n*Volume per %s*\n", opts.Unit))
	sb.WriteString(Points(analytics.VolumeOverTime(records, opts.Unit), opts.Unit, "%.0f"))

	sb.WriteString(fmt.Sprintf("\n*Mean confidence per %s*\n", opts.Unit))
	sb.WriteString(Points(analytics.ConfidenceTrend(records, opts.Unit), opts.Unit, "%.2f"))

	sb.WriteString(fmt.Sprintf("\n*Mean explanation length per %s*\n", opts.Unit))
	sb.WriteString(Points(analytics.ComplexityTrend(records, opts.Unit), opts.Unit, "%.0f"))

	sb.WriteString("\n*Models*\n")
	sb.WriteString(ModelBreakdown(records))
	return sb.String()
}

func Counts(counts []analytics.Count) string {
	var sb strings.Builder
	for _, c := range counts {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", c.Key, c.Count))
	}
	return sb.String()
}

func Shares(shares []analytics.Share) string {
	var sb strings.Builder
	for _, s := range shares {
		sb.WriteString(fmt.Sprintf("- %s: %.1f%%\n", s.Key, s.Share*100))
	}
	return sb.String()
}

func Deltas(deltas []analytics.Delta) string {
	var sb strings.Builder
	for _, d := range deltas {
		sb.WriteString(fmt.Sprintf("- %s: %+d (recent %d, past %d)\n", d.Category, d.Delta, d.Recent, d.Past))
	}
	return sb.String()
}

// Points renders a bucketed series with the value formatted by valueFormat.
func Points(points []analytics.Point, unit analytics.Unit, valueFormat string) string {
	var sb strings.Builder
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("- %s: "+valueFormat+"\n", bucketLabel(p.Bucket, unit), p.Value))
	}
	return sb.String()
}

func bucketLabel(t time.Time, unit analytics.Unit) string {
	switch unit {
	case analytics.Hour:
		return t.Format("2006-01-02 15:00")
	case analytics.Week:
		return "week of " + t.Format("2006-01-02")
	case analytics.Month:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// ModelBreakdown renders usage, mean confidence, and urgency mix per model.
func ModelBreakdown(records []domain.TicketRecord) string {
	usage := make(map[string]int)
	for _, c := range analytics.ModelUsage(records) {
		usage[c.Key] = c.Count
	}
	urgencyByModel := make(map[string]map[string]int)
	for _, row := range analytics.UrgencyByModel(records) {
		urgencyByModel[row.Model] = row.Counts
	}

	rows := [][]string{}
	for _, m := range analytics.ConfidenceByModel(records) {
		rows = append(rows, []string{
			m.Key,
			fmt.Sprintf("%d", usage[m.Key]),
			FormatConfidence(m.Mean),
			urgencyMix(urgencyByModel[m.Key]),
		})
	}
	return "```\n" + table([]string{"Model", "Tickets", "Avg conf", "Urgency mix"}, rows) + "```\n"
}

func urgencyMix(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := domain.UrgencyRank(keys[i]), domain.UrgencyRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

// table lays out rows in fixed-width columns for a code block.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := runewidth.StringWidth(cell); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(cells)-1 {
				sb.WriteString(cell)
				continue
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		sb.WriteString("\n")
	}
	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most max display columns.
func truncate(s string, max int) string {
	return runewidth.Truncate(s, max, "…")
}
