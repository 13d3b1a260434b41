package slackbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"triagebot/internal/domain"
	"triagebot/internal/storage/csvstore"
	"triagebot/internal/triage"
)

// slackRecorder captures the messages the bot posts to the mock Slack API.
type slackRecorder struct {
	mu         sync.Mutex
	ephemerals []string
	blocks     []string
	messages   []string
}

func (r *slackRecorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ephemerals...)
}

func (r *slackRecorder) last(t *testing.T) string {
	t.Helper()
	texts := r.texts()
	if len(texts) == 0 {
		t.Fatal("expected at least one ephemeral message")
	}
	return texts[len(texts)-1]
}

func newMockSlackAPI(t *testing.T) (*slack.Client, *slackRecorder) {
	t.Helper()

	rec := &slackRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/")
		_ = r.ParseForm()
		switch path {
		case "chat.postEphemeral":
			rec.mu.Lock()
			if b := r.Form.Get("blocks"); b != "" {
				rec.blocks = append(rec.blocks, b)
			} else {
				rec.ephemerals = append(rec.ephemerals, r.Form.Get("text"))
			}
			rec.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "message_ts": "1.23"})
		case "chat.postMessage":
			rec.mu.Lock()
			rec.messages = append(rec.messages, r.Form.Get("text"))
			rec.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": r.Form.Get("channel"), "ts": "1.23"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	t.Cleanup(server.Close)

	api := slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/api/"))
	return api, rec
}

type stubAnalyzer struct {
	confidence float64
	urgencies  map[string]string
	failOn     string
}

func (s stubAnalyzer) Analyze(_ context.Context, text, model string) (domain.TicketRecord, error) {
	if model == s.failOn {
		return domain.TicketRecord{}, errors.New("upstream timeout")
	}
	urgency := s.urgencies[model]
	if urgency == "" {
		urgency = domain.UrgencyHigh
	}
	return domain.TicketRecord{
		Issue:            "Customer charged twice",
		Category:         domain.CategoryBilling,
		Urgency:          urgency,
		SuggestedActions: []string{"Refund duplicate charge"},
		Explanation:      "Duplicate invoice",
		Confidence:       s.confidence,
		Timestamp:        time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		TicketText:       text,
		ModelUsed:        model,
	}, nil
}

func newTestService(t *testing.T, analyzer triage.Analyzer) *triage.Service {
	t.Helper()
	store := csvstore.New(filepath.Join(t.TempDir(), "tickets.csv"), time.UTC)
	return &triage.Service{
		Analyzer:     analyzer,
		Store:        store,
		Models:       []string{"small", "large"},
		DefaultModel: "small",
	}
}
