package domain

import (
	"strings"
	"time"
)

// TimestampLayout is the on-disk form of TicketRecord.Timestamp: local wall
// clock, second precision, no zone.
const TimestampLayout = "2006-01-02T15:04:05"

// DefaultConfidence is used when the model omits a confidence value.
const DefaultConfidence = 0.75

const (
	CategoryAuthentication = "Authentication"
	CategoryBilling        = "Billing"
	CategoryPerformance    = "Performance"
	CategoryUIBug          = "UI Bug"
	CategoryIntegration    = "Integration"
	CategoryOther          = "Other"
)

const (
	UrgencyCritical = "Critical"
	UrgencyHigh     = "High"
	UrgencyMedium   = "Medium"
	UrgencyLow      = "Low"
)

var categories = []string{
	CategoryAuthentication,
	CategoryBilling,
	CategoryPerformance,
	CategoryUIBug,
	CategoryIntegration,
	CategoryOther,
}

var urgencies = []string{
	UrgencyCritical,
	UrgencyHigh,
	UrgencyMedium,
	UrgencyLow,
}

// TicketRecord is one analyzed ticket. Records are never updated after they
// are written.
type TicketRecord struct {
	Issue            string
	Category         string
	Urgency          string
	SuggestedActions []string
	Explanation      string
	Confidence       float64
	Timestamp        time.Time
	TicketText       string
	ModelUsed        string
}

// Categories returns the category vocabulary in prompt order.
func Categories() []string {
	return append([]string(nil), categories...)
}

// Urgencies returns the urgency vocabulary from most to least urgent.
func Urgencies() []string {
	return append([]string(nil), urgencies...)
}

func IsKnownCategory(category string) bool {
	return containsFold(categories, category)
}

func IsKnownUrgency(urgency string) bool {
	return containsFold(urgencies, urgency)
}

// UrgencyRank orders urgencies for display; unknown values sort last.
func UrgencyRank(urgency string) int {
	for i, u := range urgencies {
		if strings.EqualFold(u, strings.TrimSpace(urgency)) {
			return i
		}
	}
	return len(urgencies)
}

func containsFold(list []string, value string) bool {
	value = strings.TrimSpace(value)
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
