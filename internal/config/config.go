package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	LogLevel string

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAITemperature float64
	LLMTimeout        time.Duration

	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderAreaIndex int
	GeocoderTimeout   time.Duration

	BackendReportURL string
	BackendTimeout   time.Duration

	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	DatabaseURL string
	NatsURL     string
	NatsToken   string
}

// Load reads .env.local and .env (when present) and then the process
// environment. Values already set in the environment win.
func Load() Config {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	return Config{
		Port:     envInt("RADAR_PORT", 8080),
		LogLevel: envStr("LOG_LEVEL", "info"),

		OpenAIAPIKey:      envStr("OPENAI_API_KEY", ""),
		OpenAIModel:       envStr("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:     envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAITemperature: envFloat("OPENAI_TEMPERATURE", 0.2),
		LLMTimeout:        envDuration("LLM_TIMEOUT", 60*time.Second),

		GeocoderURL:       envStr("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: envStr("GEOCODER_USER_AGENT", "radar-campinas/1.0"),
		GeocoderAreaIndex: envInt("GEOCODER_AREA_INDEX", 1),
		GeocoderTimeout:   envDuration("GEOCODER_TIMEOUT", 10*time.Second),

		BackendReportURL: envStr("BACKEND_REPORT_URL", ""),
		BackendTimeout:   envDuration("BACKEND_TIMEOUT", 15*time.Second),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		SessionTTL:    envDuration("SESSION_TTL", 2*time.Hour),

		DatabaseURL: envStr("DATABASE_URL", ""),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
