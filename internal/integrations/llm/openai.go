package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	openAIBaseURL = "https://api.openai.com/v1"
)

// openAICompleter speaks the OpenAI chat-completions wire format, which Groq
// serves as well.
type openAICompleter struct {
	name        string
	apiKey      string
	baseURL     string
	rest        *resty.Client
	maxTokens   int
	temperature float64
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newOpenAICompleter(name, apiKey, baseURL string, httpClient *http.Client, maxTokens int, temperature float64) *openAICompleter {
	if baseURL == "" {
		baseURL = openAIBaseURL
		if name == "groq" {
			baseURL = groqBaseURL
		}
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &openAICompleter{
		name:        name,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		rest:        resty.NewWithClient(httpClient),
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (o *openAICompleter) complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	reqBody := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}

	resp, err := o.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(o.apiKey).
		SetBody(reqBody).
		Post(o.baseURL + "/chat/completions")
	if err != nil {
		log.Printf("llm %s error: %v", o.name, err)
		return "", LLMUsage{}, fmt.Errorf("%s API error: %w", o.name, err)
	}

	var chatResp openAIResponse
	if err := json.Unmarshal(resp.Body(), &chatResp); err != nil {
		if resp.IsError() {
			return "", LLMUsage{}, fmt.Errorf("%s API error: status %d", o.name, resp.StatusCode())
		}
		return "", LLMUsage{}, fmt.Errorf("parsing %s response: %w", o.name, err)
	}

	if chatResp.Error != nil {
		log.Printf("llm %s api error status=%d: %s", o.name, resp.StatusCode(), chatResp.Error.Message)
		return "", LLMUsage{}, fmt.Errorf("%s API error: %s", o.name, chatResp.Error.Message)
	}
	if resp.IsError() {
		return "", LLMUsage{}, fmt.Errorf("%s API error: status %d", o.name, resp.StatusCode())
	}

	if len(chatResp.Choices) == 0 {
		return "", LLMUsage{}, fmt.Errorf("no choices in %s response", o.name)
	}
	usage := LLMUsage{}
	if chatResp.Usage != nil {
		usage.InputTokens = chatResp.Usage.PromptTokens
		usage.OutputTokens = chatResp.Usage.CompletionTokens
	}

	content := chatResp.Choices[0].Message.Content
	log.Printf("llm %s response size=%d tokens_in=%d tokens_out=%d", o.name, len(content), usage.InputTokens, usage.OutputTokens)
	return content, usage, nil
}
