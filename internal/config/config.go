package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	StoreBackendCSV    = "csv"
	StoreBackendSQLite = "sqlite"
)

var defaultABModels = []string{
	"llama-3.1-8b-instant",
	"llama-3.3-70b-versatile",
	"openai/gpt-oss-120b",
}

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	LLMProvider    string   `yaml:"llm_provider"`
	LLMModel       string   `yaml:"llm_model"`
	LLMABModels    []string `yaml:"llm_ab_models"`
	LLMTemperature *float64 `yaml:"llm_temperature"`
	LLMMaxTokens   int      `yaml:"llm_max_tokens"`
	LLMBaseURL     string   `yaml:"llm_base_url"`
	LLMGuidePath   string   `yaml:"llm_triage_guide_path"`

	GroqAPIKey      string `yaml:"groq_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	StoreBackend               string `yaml:"store_backend"`
	StorePath                  string `yaml:"store_path"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`

	DigestSchedule  string `yaml:"digest_schedule"`
	DigestChannelID string `yaml:"digest_channel_id"`

	AnalyticsWindow    int    `yaml:"analytics_window"`
	AnalyticsSplitDays int    `yaml:"analytics_split_days"`
	AnalyticsUnit      string `yaml:"analytics_unit"`
	Timezone           string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig loads configuration and exits the process on invalid settings.
func LoadConfig() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

// Load reads config.yaml (or CONFIG_PATH), then .env, then environment
// variables, applies defaults and validates the result.
func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing %s: %w", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envFile := ".env"
	if envPath := os.Getenv("ENV_FILE"); envPath != "" {
		envFile = envPath
	}
	// godotenv.Load never overwrites variables that are already set.
	if err := godotenv.Load(envFile); err == nil {
		log.Printf("Loaded environment from %s", envFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("error parsing %s: %w", envFile, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverrideList(&cfg.LLMABModels, "LLM_AB_MODELS")
	envOverride(&cfg.LLMBaseURL, "LLM_BASE_URL")
	envOverride(&cfg.LLMGuidePath, "LLM_TRIAGE_GUIDE_PATH")
	envOverride(&cfg.GroqAPIKey, "GROQ_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.StoreBackend, "STORE_BACKEND")
	envOverride(&cfg.StorePath, "STORE_PATH")
	envOverride(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverride(&cfg.DigestChannelID, "DIGEST_CHANNEL_ID")
	envOverride(&cfg.AnalyticsUnit, "ANALYTICS_UNIT")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if err := envOverrideInt(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS"); err != nil {
		return err
	}
	if err := envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"); err != nil {
		return err
	}
	if err := envOverrideInt(&cfg.AnalyticsWindow, "ANALYTICS_WINDOW"); err != nil {
		return err
	}
	if err := envOverrideInt(&cfg.AnalyticsSplitDays, "ANALYTICS_SPLIT_DAYS"); err != nil {
		return err
	}
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid LLM_TEMPERATURE '%s': %w", val, err)
		}
		cfg.LLMTemperature = &parsed
	}
	return nil
}

func applyDefaults(cfg *Config) {
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = ProviderGroq
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = DefaultModel(cfg.LLMProvider)
	}
	if len(cfg.LLMABModels) == 0 {
		cfg.LLMABModels = append([]string(nil), defaultABModels...)
	}
	if cfg.LLMTemperature == nil {
		t := 0.2
		cfg.LLMTemperature = &t
	}
	if cfg.LLMMaxTokens == 0 {
		cfg.LLMMaxTokens = 2048
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = StoreBackendCSV
	}
	if cfg.StorePath == "" {
		if cfg.StoreBackend == StoreBackendSQLite {
			cfg.StorePath = "./tickets.db"
		} else {
			cfg.StorePath = "./tickets.csv"
		}
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.AnalyticsWindow == 0 {
		cfg.AnalyticsWindow = 10
	}
	if cfg.AnalyticsSplitDays == 0 {
		cfg.AnalyticsSplitDays = 2
	}
	if cfg.AnalyticsUnit == "" {
		cfg.AnalyticsUnit = "day"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
}

// Validate checks settings every command needs. Slack settings are checked
// separately by ValidateSlack because the CLI does not need them.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGroq, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("llm_provider must be 'groq', 'openai' or 'anthropic', got '%s'", c.LLMProvider)
	}
	if c.APIKey(c.LLMProvider) == "" {
		return fmt.Errorf("%s_api_key is required when llm_provider=%s", c.LLMProvider, c.LLMProvider)
	}
	for _, m := range append([]string{c.LLMModel}, c.LLMABModels...) {
		if p := c.ProviderForModel(m); p != c.LLMProvider && c.APIKey(p) == "" {
			return fmt.Errorf("model '%s' is served by %s but %s_api_key is not set", m, p, p)
		}
	}

	switch c.StoreBackend {
	case StoreBackendCSV, StoreBackendSQLite:
	default:
		return fmt.Errorf("store_backend must be 'csv' or 'sqlite', got '%s'", c.StoreBackend)
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	if t := *c.LLMTemperature; t < 0 || t > 2 {
		return fmt.Errorf("invalid llm_temperature '%f': must be between 0 and 2", t)
	}
	if c.LLMMaxTokens < 256 {
		return fmt.Errorf("invalid llm_max_tokens '%d': must be >= 256", c.LLMMaxTokens)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if c.AnalyticsWindow < 1 {
		return fmt.Errorf("invalid analytics_window '%d': must be >= 1", c.AnalyticsWindow)
	}
	if c.AnalyticsSplitDays < 1 {
		return fmt.Errorf("invalid analytics_split_days '%d': must be >= 1", c.AnalyticsSplitDays)
	}
	if c.DigestSchedule != "" && c.DigestChannelID == "" {
		return fmt.Errorf("digest_schedule is set but digest_channel_id is not")
	}
	return nil
}

func (c Config) ValidateSlack() error {
	required := map[string]string{
		"slack_bot_token": c.SlackBotToken,
		"slack_app_token": c.SlackAppToken,
	}
	for _, name := range []string{"slack_bot_token", "slack_app_token"} {
		if required[name] == "" {
			return fmt.Errorf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}
	return nil
}

// APIKey returns the credential for a provider.
func (c Config) APIKey(provider string) string {
	switch provider {
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

// ProviderForModel routes Claude model ids to Anthropic regardless of the
// configured provider; every other id goes to LLMProvider.
func (c Config) ProviderForModel(model string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "claude-") {
		return ProviderAnthropic
	}
	return c.LLMProvider
}

// Temperature returns the sampling temperature with the default applied.
func (c Config) Temperature() float64 {
	if c.LLMTemperature == nil {
		return 0.2
	}
	return *c.LLMTemperature
}

func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-5-20250929"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	default:
		return "llama-3.1-8b-instant"
	}
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			*field = append(*field, item)
		}
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
