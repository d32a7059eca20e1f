package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
)

// Config is everything the bot reads from the environment. A .env file in
// the working directory is honored when present (loaded in main).
type Config struct {
	TelegramToken string
	BotUsername   string

	DBPath        string
	RetentionDays int

	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string

	DefaultWindowHours   int
	ContextTokenBudget   int
	GenerationMaxRetries int
	Temperature          float64
	TopP                 float64
	MaxOutputTokens      int

	ConcurrencyPolicy string
	RequestTimeout    time.Duration
	SummaryCacheTTL   time.Duration

	Timezone string
	Location *time.Location
}

// FromEnv builds a Config from environment variables, applying defaults,
// and validates it. All validation problems are reported together.
func FromEnv() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		BotUsername:   getEnv("BOT_USERNAME", "bratishka"),

		DBPath:        getEnv("DB_PATH", "bratishka.db"),
		RetentionDays: getInt("RETENTION_DAYS", 30),

		LLMBaseURL: getEnv("LLM_BASE_URL", "http://localhost:11434/v1/"),
		LLMModel:   getEnv("LLM_MODEL", "llama3.1:8b"),
		// The openai client refuses an empty token even for local
		// backends that ignore it, so default to a placeholder.
		LLMAPIKey: getEnv("OPENAI_API_KEY", "ollama"),

		DefaultWindowHours:   getInt("DEFAULT_WINDOW_HOURS", 2),
		ContextTokenBudget:   getInt("CONTEXT_TOKEN_BUDGET", 4096),
		GenerationMaxRetries: getInt("GENERATION_MAX_RETRIES", 2),
		Temperature:          getFloat("LLM_TEMPERATURE", 0.6),
		TopP:                 getFloat("LLM_TOP_P", 0.95),
		MaxOutputTokens:      getInt("LLM_MAX_TOKENS", 512),

		ConcurrencyPolicy: getEnv("CONCURRENCY_POLICY", "reject"),
		RequestTimeout:    time.Duration(getInt("REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		SummaryCacheTTL:   time.Duration(getInt("SUMMARY_CACHE_TTL_SECONDS", 1800)) * time.Second,

		Timezone: getEnv("TIMEZONE", "UTC"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var err error

	if c.TelegramToken == "" {
		err = multierr.Append(err, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set"))
	}
	if c.DefaultWindowHours <= 0 {
		err = multierr.Append(err, fmt.Errorf("DEFAULT_WINDOW_HOURS must be positive, got %d", c.DefaultWindowHours))
	}
	if c.ContextTokenBudget <= 0 {
		err = multierr.Append(err, fmt.Errorf("CONTEXT_TOKEN_BUDGET must be positive, got %d", c.ContextTokenBudget))
	}
	if c.GenerationMaxRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("GENERATION_MAX_RETRIES must not be negative, got %d", c.GenerationMaxRetries))
	}
	if c.ConcurrencyPolicy != "reject" && c.ConcurrencyPolicy != "queue" {
		err = multierr.Append(err, fmt.Errorf("CONCURRENCY_POLICY must be reject or queue, got %q", c.ConcurrencyPolicy))
	}
	if c.RetentionDays <= 0 {
		err = multierr.Append(err, fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays))
	}

	loc, locErr := time.LoadLocation(c.Timezone)
	if locErr != nil {
		err = multierr.Append(err, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, locErr))
	} else {
		c.Location = loc
	}

	return err
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
