package llm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"triagebot/internal/config"
	"triagebot/internal/domain"
)

type Config = config.Config

type LLMUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// completer sends one system+user prompt pair and returns the raw text.
type completer interface {
	complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, LLMUsage, error)
}

// Client runs the triage pipeline against the configured model providers.
// It holds no per-call state and is safe to share.
type Client struct {
	cfg        Config
	guidance   string
	completers map[string]completer
	now        func() time.Time
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	completers := make(map[string]completer)
	temperature := cfg.Temperature()
	if key := cfg.APIKey(config.ProviderGroq); key != "" {
		completers[config.ProviderGroq] = newOpenAICompleter(config.ProviderGroq, key, baseURLFor(cfg, config.ProviderGroq), httpClient, cfg.LLMMaxTokens, temperature)
	}
	if key := cfg.APIKey(config.ProviderOpenAI); key != "" {
		completers[config.ProviderOpenAI] = newOpenAICompleter(config.ProviderOpenAI, key, baseURLFor(cfg, config.ProviderOpenAI), httpClient, cfg.LLMMaxTokens, temperature)
	}
	if key := cfg.APIKey(config.ProviderAnthropic); key != "" {
		completers[config.ProviderAnthropic] = newAnthropicCompleter(key, baseURLFor(cfg, config.ProviderAnthropic), httpClient, cfg.LLMMaxTokens, temperature)
	}
	return &Client{
		cfg:        cfg,
		guidance:   loadTriageGuidance(cfg.LLMGuidePath),
		completers: completers,
		now:        time.Now,
	}
}

func (c *Client) location() *time.Location {
	if c.cfg.Location != nil {
		return c.cfg.Location
	}
	return time.Local
}

// llm_base_url only applies to the configured provider; models routed
// elsewhere keep their vendor default.
func baseURLFor(cfg Config, provider string) string {
	if provider == cfg.LLMProvider {
		return cfg.LLMBaseURL
	}
	return ""
}

// Analyze classifies one ticket with the given model. It returns a
// *ModelInvocationError when the model call fails and a
// *MalformedResponseError when the response holds no usable JSON object.
// Persisting the record is the caller's job.
func (c *Client) Analyze(ctx context.Context, ticketText, model string) (domain.TicketRecord, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = c.cfg.LLMModel
	}
	provider := c.cfg.ProviderForModel(model)
	comp, ok := c.completers[provider]
	if !ok {
		return domain.TicketRecord{}, &ModelInvocationError{
			Provider: provider,
			Model:    model,
			Err:      fmt.Errorf("provider %s is not configured", provider),
		}
	}

	systemPrompt, userPrompt := buildTriagePrompts(ticketText, c.guidance)
	log.Printf("llm triage provider=%s model=%s chars=%d", provider, model, len(ticketText))

	responseText, usage, err := comp.complete(ctx, model, systemPrompt, userPrompt)
	if err != nil {
		return domain.TicketRecord{}, &ModelInvocationError{Provider: provider, Model: model, Err: err}
	}
	raw := strings.TrimSpace(responseText)

	parsed, err := extractJSONObject(raw)
	if err != nil {
		log.Printf("llm triage malformed response provider=%s model=%s size=%d: %v", provider, model, len(raw), err)
		return domain.TicketRecord{}, &MalformedResponseError{Raw: raw, Err: err}
	}
	record, err := decodeTriageFields(parsed)
	if err != nil {
		return domain.TicketRecord{}, &MalformedResponseError{Raw: raw, Err: err}
	}

	record.Timestamp = c.now().In(c.location()).Truncate(time.Second)
	record.TicketText = ticketText
	record.ModelUsed = model

	if !domain.IsKnownCategory(record.Category) {
		log.Printf("llm triage unrecognized category=%q model=%s (kept as-is)", record.Category, model)
	}
	if !domain.IsKnownUrgency(record.Urgency) {
		log.Printf("llm triage unrecognized urgency=%q model=%s (kept as-is)", record.Urgency, model)
	}
	log.Printf("llm triage done model=%s category=%q urgency=%q confidence=%.2f tokens=%d", model, record.Category, record.Urgency, record.Confidence, usage.TotalTokens())
	return record, nil
}
