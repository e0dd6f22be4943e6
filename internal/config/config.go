package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             int
	NatsURL          string
	NatsToken        string
	DatabaseURL      string
	RedisURL         string
	LogLevel         string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string
	MaxTokens        int
	OracleRPS        float64
	GapAnalysis      bool
	ScoreCacheTTL    time.Duration
	SynthesisSubject string
	SynthesisTimeout time.Duration
	APIToken         string
	SlackBotToken    string
	SlackChannel     string
}

func Load() Config {
	return Config{
		Port:             envInt("DOSSIER_PORT", 8760),
		NatsURL:          envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:        envStr("NATS_TOKEN", ""),
		DatabaseURL:      envStr("DATABASE_URL", ""),
		RedisURL:         envStr("REDIS_URL", ""),
		LogLevel:         envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey:  envStr("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: envStr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicModel:   envStr("DOSSIER_MODEL", "claude-sonnet-4-20250514"),
		MaxTokens:        envInt("DOSSIER_MAX_TOKENS", 8192),
		OracleRPS:        envFloat("ORACLE_RPS", 2),
		GapAnalysis:      envBool("DOSSIER_GAP_ANALYSIS", true),
		ScoreCacheTTL:    envDuration("SCORE_CACHE_TTL", 10*time.Minute),
		SynthesisSubject: envStr("SYNTHESIS_SUBJECT", "profile.field.synthesize"),
		SynthesisTimeout: envDuration("SYNTHESIS_TIMEOUT", 30*time.Second),
		APIToken:         envStr("DOSSIER_API_TOKEN", ""),
		SlackBotToken:    envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:     envStr("SLACK_PROFILE_CHANNEL", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s", "10m").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
