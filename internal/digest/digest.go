// Package digest posts a scheduled analytics summary of the ticket log to
// a Slack channel.
package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"

	"triagebot/internal/analytics"
	"triagebot/internal/config"
	"triagebot/internal/domain"
	"triagebot/internal/render"
)

type Config = config.Config

// maxVolumePoints bounds the volume series to the most recent buckets.
const maxVolumePoints = 7

// Source supplies a snapshot of the ticket log.
type Source interface {
	Snapshot() ([]domain.TicketRecord, error)
}

// Poster is the subset of *slack.Client the digest needs.
type Poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(spec))
}

// BuildDigest summarizes the records: recent volume, category shift,
// urgency distribution and the volume series.
func BuildDigest(records []domain.TicketRecord, splitDays int, unit analytics.Unit, now time.Time) string {
	if len(records) == 0 {
		return "*Ticket digest*\nNo tickets have been triaged yet."
	}

	since := now.AddDate(0, 0, -splitDays)
	recent := 0
	for _, r := range records {
		if r.Timestamp.After(since) {
			recent++
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Ticket digest* (%s)\n", now.Format("Mon Jan 2 15:04")))
	sb.WriteString(fmt.Sprintf("- Total tickets: %d\n", len(records)))
	sb.WriteString(fmt.Sprintf("- Last %d days: %d\n", splitDays, recent))

	sb.WriteString(fmt.Sprintf("\n*Category shift (last %d days vs before)*\n", splitDays))
	sb.WriteString(render.Deltas(analytics.CategoryShift(records, splitDays)))

	sb.WriteString("\n*Urgency distribution*\n")
	sb.WriteString(render.Shares(analytics.UrgencyDistribution(records)))

	volume := analytics.VolumeOverTime(records, unit)
	if len(volume) > maxVolumePoints {
		volume = volume[len(volume)-maxVolumePoints:]
	}
	sb.WriteString(fmt.Sprintf("\n*Volume per %s*\n", unit))
	sb.WriteString(render.Points(volume, unit, "%.0f"))
	return sb.String()
}

// RunOnce builds the digest from a fresh snapshot and posts it.
func RunOnce(cfg Config, source Source, poster Poster, now time.Time) error {
	records, err := source.Snapshot()
	if err != nil {
		return fmt.Errorf("load ticket log: %w", err)
	}
	unit, err := analytics.ParseUnit(cfg.AnalyticsUnit)
	if err != nil {
		unit = analytics.Day
	}
	text := BuildDigest(records, cfg.AnalyticsSplitDays, unit, now)
	if _, _, err := poster.PostMessage(cfg.DigestChannelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("post digest: %w", err)
	}
	log.Printf("digest posted channel=%s tickets=%d", cfg.DigestChannelID, len(records))
	return nil
}

// StartScheduler posts the digest on cfg.DigestSchedule until ctx is done.
// It returns immediately; a blank or invalid schedule disables the digest.
func StartScheduler(ctx context.Context, cfg Config, source Source, poster Poster) {
	spec := strings.TrimSpace(cfg.DigestSchedule)
	if spec == "" {
		log.Println("digest disabled (digest_schedule not set)")
		return
	}
	if cfg.DigestChannelID == "" {
		log.Println("digest disabled (digest_channel_id not set)")
		return
	}
	sched, err := ParseSchedule(spec)
	if err != nil {
		log.Printf("digest disabled: invalid digest_schedule %q: %v", spec, err)
		return
	}
	log.Printf("digest scheduled cron=%q channel=%s", spec, cfg.DigestChannelID)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("digest next run at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Println("digest scheduler stopped")
				return
			case <-timer.C:
			}

			if err := RunOnce(cfg, source, poster, time.Now().In(cfg.Location)); err != nil {
				log.Printf("digest error: %v", err)
			}
		}
	}()
}
