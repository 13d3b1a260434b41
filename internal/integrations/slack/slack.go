package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"triagebot/internal/analytics"
	"triagebot/internal/config"
	llm "triagebot/internal/integrations/llm"
	"triagebot/internal/render"
	"triagebot/internal/triage"
)

type Config = config.Config

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50

	// Single-model results below this confidence offer an A/B comparison.
	lowConfidenceThreshold = 0.70
	// Slack rejects button values longer than this.
	maxButtonValueLen = 2000

	actionCompareModels = "triage_compare_models"
)

// StartSlackBot runs the Socket Mode event loop until ctx is cancelled.
func StartSlackBot(ctx context.Context, cfg Config, svc *triage.Service, api *slack.Client) error {
	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go handleSlashCommand(ctx, api, svc, cfg, cmd)
			case socketmode.EventTypeEventsAPI:
				client.Ack(*evt.Request)
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				go handleEventsAPI(api, eventsAPIEvent)
			case socketmode.EventTypeInteractive:
				client.Ack(*evt.Request)
				callback, ok := evt.Data.(slack.InteractionCallback)
				if !ok {
					continue
				}
				go handleInteraction(ctx, api, svc, callback)
			}
		}
	}()

	log.Println("slack bot connected via Socket Mode")
	return client.RunContext(ctx)
}

func handleSlashCommand(ctx context.Context, api *slack.Client, svc *triage.Service, cfg Config, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/triage":
		handleTriage(ctx, api, svc, cmd)
	case "/triage-ab":
		handleTriageAB(ctx, api, svc, cmd.ChannelID, cmd.UserID, cmd.Text)
	case "/triage-history":
		handleHistory(api, svc, cmd)
	case "/triage-stats":
		handleStats(api, svc, cfg, cmd)
	case "/triage-help":
		handleHelp(api, svc, cmd)
	}
}

func handleEventsAPI(api *slack.Client, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MemberJoinedChannelEvent:
		handleMemberJoined(api, ev)
	}
}

func handleMemberJoined(api *slack.Client, ev *slackevents.MemberJoinedChannelEvent) {
	log.Printf("member-joined user=%s channel=%s", ev.User, ev.Channel)

	intro := "Welcome! I triage support tickets: paste a ticket and I'll suggest a category, urgency, and next steps.\n\n" +
		"• `/triage <ticket text>` — Analyze a ticket\n" +
		"• `/triage-ab <ticket text>` — Compare several models on the same ticket\n" +
		"• `/triage-help` — See all available commands"

	_, _, err := api.PostMessage(ev.Channel,
		slack.MsgOptionText(intro, false),
		slack.MsgOptionPostEphemeral(ev.User),
	)
	if err != nil {
		log.Printf("member-joined intro error user=%s channel=%s: %v", ev.User, ev.Channel, err)
	}
}

// parseTriageArgs splits an optional leading "model:<id>" token from the
// ticket text.
func parseTriageArgs(text string) (model, ticket string) {
	trimmed := strings.TrimSpace(text)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 || !strings.HasPrefix(strings.ToLower(fields[0]), "model:") {
		return "", trimmed
	}
	model = strings.TrimSpace(fields[0][len("model:"):])
	ticket = strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0]))
	return model, ticket
}

func handleTriage(ctx context.Context, api *slack.Client, svc *triage.Service, cmd slack.SlashCommand) {
	model, ticket := parseTriageArgs(cmd.Text)
	if ticket == "" {
		postEphemeral(api, cmd, "Usage: `/triage [model:<id>] <ticket text>`")
		return
	}
	shown := model
	if shown == "" {
		shown = svc.DefaultModel
	}
	postEphemeral(api, cmd, fmt.Sprintf("Analyzing ticket with `%s`...", shown))

	session, err := svc.Triage(ctx, ticket, model)
	if err != nil {
		postEphemeral(api, cmd, describeError(err))
		log.Printf("triage error user=%s model=%s: %v", cmd.UserID, shown, err)
		return
	}
	postEphemeral(api, cmd, render.Session(session))
	log.Printf("triage done user=%s model=%s", cmd.UserID, shown)

	if primary, ok := session.Primary(); ok && primary.Confidence < lowConfidenceThreshold {
		offerComparison(api, cmd.ChannelID, cmd.UserID, ticket, primary.Confidence)
	}
}

// offerComparison posts a button that reruns a low-confidence ticket
// through every A/B model.
func offerComparison(api *slack.Client, channelID, userID, ticket string, confidence float64) {
	if len(ticket) > maxButtonValueLen {
		return
	}
	text := fmt.Sprintf("Low confidence (%s). Compare how other models triage this ticket?", render.FormatConfidence(confidence))
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		slack.NewActionBlock("",
			slack.NewButtonBlockElement(actionCompareModels, ticket,
				slack.NewTextBlockObject(slack.PlainTextType, "Compare models", false, false)),
		),
	}
	if _, err := api.PostEphemeral(channelID, userID, slack.MsgOptionBlocks(blocks...)); err != nil {
		log.Printf("compare offer error user=%s: %v", userID, err)
	}
}

func handleTriageAB(ctx context.Context, api *slack.Client, svc *triage.Service, channelID, userID, text string) {
	ticket := strings.TrimSpace(text)
	if ticket == "" {
		postEphemeralTo(api, channelID, userID, "Usage: `/triage-ab <ticket text>`")
		return
	}
	postEphemeralTo(api, channelID, userID,
		fmt.Sprintf("Comparing %d models: %s...", len(svc.Models), "`"+strings.Join(svc.Models, "`, `")+"`"))

	session, err := svc.TriageAB(ctx, ticket)
	if err != nil {
		msg := describeError(err)
		if session != nil && len(session.Results) > 0 {
			msg += "\n\nResults before the failure:\n" + render.Comparison(session)
		}
		postEphemeralTo(api, channelID, userID, msg)
		log.Printf("triage-ab error user=%s completed=%d: %v", userID, len(session.Models()), err)
		return
	}
	postEphemeralTo(api, channelID, userID, render.Session(session))
	log.Printf("triage-ab done user=%s models=%d disagreement=%t", userID, len(session.Results), session.UrgencyDisagreement())
}

func describeError(err error) string {
	var invocation *llm.ModelInvocationError
	var malformed *llm.MalformedResponseError
	switch {
	case errors.Is(err, triage.ErrEmptyTicket):
		return "Please include the ticket text."
	case errors.As(err, &invocation):
		return fmt.Sprintf("The model `%s` could not be reached: %v", invocation.Model, invocation.Err)
	case errors.As(err, &malformed):
		return fmt.Sprintf("The model returned a response I could not parse: %v", malformed.Err)
	default:
		return fmt.Sprintf("Error triaging ticket: %v", err)
	}
}

// parseHistoryLimit reads an optional count, clamped to [1, maxHistoryLimit].
func parseHistoryLimit(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count %q", text)
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}

func handleHistory(api *slack.Client, svc *triage.Service, cmd slack.SlashCommand) {
	limit, err := parseHistoryLimit(cmd.Text)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Usage: `/triage-history [n]` (%v)", err))
		return
	}
	records, err := svc.History(limit)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error loading history: %v", err))
		log.Printf("triage-history error: %v", err)
		return
	}
	postEphemeral(api, cmd, render.History(records))
	log.Printf("triage-history sent user=%s count=%d", cmd.UserID, len(records))
}

func handleStats(api *slack.Client, svc *triage.Service, cfg Config, cmd slack.SlashCommand) {
	unitArg := strings.TrimSpace(cmd.Text)
	if unitArg == "" {
		unitArg = cfg.AnalyticsUnit
	}
	unit, err := analytics.ParseUnit(unitArg)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Usage: `/triage-stats [hour|day|week|month]` (%v)", err))
		return
	}
	records, err := svc.Snapshot()
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error loading tickets: %v", err))
		log.Printf("triage-stats error: %v", err)
		return
	}
	postEphemeral(api, cmd, render.Stats(records, render.StatsOptions{
		Window:    cfg.AnalyticsWindow,
		SplitDays: cfg.AnalyticsSplitDays,
		Unit:      unit,
	}))
	log.Printf("triage-stats sent user=%s tickets=%d unit=%s", cmd.UserID, len(records), unit)
}

func handleHelp(api *slack.Client, svc *triage.Service, cmd slack.SlashCommand) {
	lines := []string{
		"*TriageBot Commands*",
		"",
		"`/triage <ticket text>` — Analyze a ticket with the default model (`" + svc.DefaultModel + "`).",
		"`/triage model:<id> <ticket text>` — Analyze with a specific model.",
		">*Example:* `/triage model:llama-3.3-70b-versatile I was charged twice this month`",
		"`/triage-ab <ticket text>` — Run every comparison model and flag urgency disagreement.",
		"`/triage-history [n]` — Show the n most recent tickets (default 10).",
		"`/triage-stats [hour|day|week|month]` — Show ticket analytics.",
		"`/triage-help` — Show this help.",
	}
	postEphemeral(api, cmd, strings.Join(lines, "\n"))
}

func handleInteraction(ctx context.Context, api *slack.Client, svc *triage.Service, cb slack.InteractionCallback) {
	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		return
	}
	act := cb.ActionCallback.BlockActions[0]
	channelID := cb.Channel.ID
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}

	switch act.ActionID {
	case actionCompareModels:
		if !utf8.ValidString(act.Value) {
			postEphemeralTo(api, channelID, cb.User.ID, "Invalid ticket text.")
			return
		}
		handleTriageAB(ctx, api, svc, channelID, cb.User.ID, act.Value)
	}
}

func postEphemeral(api *slack.Client, cmd slack.SlashCommand, text string) {
	postEphemeralTo(api, cmd.ChannelID, cmd.UserID, text)
}

func postEphemeralTo(api *slack.Client, channelID, userID, text string) {
	_, err := api.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}
