package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// LLMTimeouts holds the per-stage call budgets. A timeout produces a stage
// fallback or a typed error; only gate and intent retry, exactly once.
type LLMTimeouts struct {
	Gate      time.Duration
	Intent    time.Duration
	Filters   time.Duration
	Mapper    time.Duration
	Enforcer  time.Duration
	Assistant time.Duration
}

type CacheConfig struct {
	L1MaxEntries   int
	L1MaxTTL       time.Duration
	L2DefaultTTL   time.Duration
	L2EmptyTTL     time.Duration
	L1EmptyTTL     time.Duration
	SamplingRate   float64
	CanonicalTTL   time.Duration
	LandmarkTTL    time.Duration
	GeocodeTTL     time.Duration
}

type JobsConfig struct {
	MaxRunningAge    time.Duration
	SuccessFreshFor  time.Duration
	HeartbeatEvery   time.Duration
	StoreTTL         time.Duration
}

// ProviderLanguagePolicy values. queryLanguage is the active policy;
// regionDefault is retained for rollback only.
const (
	PolicyQueryLanguage = "queryLanguage"
	PolicyRegionDefault = "regionDefault"
)

type ProviderConfig struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	LanguagePolicy string
}

type Config struct {
	Repositories RepositoriesConfig
	ServerPort   string
	GeminiAPIKey string
	SessionKey   string
	Provider     ProviderConfig
	LLM          LLMTimeouts
	Cache        CacheConfig
	Jobs         JobsConfig
	Env          string
}

func Load() (*Config, error) {
	env := getEnvOrDefault("APP_ENV", "dev")

	maxRunningDefault := 90 * time.Second
	if env == "prod" {
		maxRunningDefault = 300 * time.Second
	}

	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5454"),
				DB:       getEnvOrDefault("POSTGRES_DB", "loci_search"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
			Redis: RedisConfig{
				Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
				Password: getEnvOrDefault("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
			},
		},
		ServerPort:   getEnvOrDefault("SERVER_PORT", "8091"),
		GeminiAPIKey: getEnvOrDefault("GEMINI_API_KEY", ""),
		SessionKey:   getEnvOrDefault("SESSION_SIGNING_KEY", ""),
		Provider: ProviderConfig{
			APIKey:         getEnvOrDefault("PLACES_API_KEY", ""),
			BaseURL:        getEnvOrDefault("PLACES_BASE_URL", "https://places.googleapis.com/v1"),
			Timeout:        getEnvDurationMs("PROVIDER_TIMEOUT_MS", 6*time.Second),
			LanguagePolicy: getEnvOrDefault("PROVIDER_LANGUAGE_POLICY", PolicyQueryLanguage),
		},
		LLM: LLMTimeouts{
			Gate:      getEnvDurationMs("LLM_TIMEOUT_GATE_MS", 3500*time.Millisecond),
			Intent:    getEnvDurationMs("LLM_TIMEOUT_INTENT_MS", 3500*time.Millisecond),
			Filters:   getEnvDurationMs("LLM_TIMEOUT_FILTERS_MS", 4500*time.Millisecond),
			Mapper:    getEnvDurationMs("LLM_TIMEOUT_MAPPER_MS", 3500*time.Millisecond),
			Enforcer:  getEnvDurationMs("FILTER_ENFORCER_TIMEOUT_MS", 4000*time.Millisecond),
			Assistant: getEnvDurationMs("LLM_TIMEOUT_ASSISTANT_MS", 3000*time.Millisecond),
		},
		Cache: CacheConfig{
			L1MaxEntries: getEnvInt("L1_MAX_ENTRIES", 500),
			L1MaxTTL:     getEnvDurationS("L1_MAX_TTL_S", 60*time.Second),
			L2DefaultTTL: getEnvDurationS("L2_DEFAULT_TTL_S", 900*time.Second),
			L2EmptyTTL:   getEnvDurationS("L2_EMPTY_TTL_S", 120*time.Second),
			L1EmptyTTL:   getEnvDurationS("L1_EMPTY_TTL_S", 30*time.Second),
			SamplingRate: getEnvFloat("CACHE_SAMPLING_RATE", 0.05),
			CanonicalTTL: getEnvDurationS("CANONICAL_QUERY_TTL_S", 86400*time.Second),
			LandmarkTTL:  getEnvDurationS("LANDMARK_RESOLUTION_TTL_S", 604800*time.Second),
			GeocodeTTL:   getEnvDurationS("GEOCODE_TTL_S", 86400*time.Second),
		},
		Jobs: JobsConfig{
			MaxRunningAge:   getEnvDurationMs("MAX_RUNNING_JOB_AGE_MS", maxRunningDefault),
			SuccessFreshFor: getEnvDurationMs("DONE_SUCCESS_FRESH_WINDOW_MS", 5*time.Second),
			HeartbeatEvery:  getEnvDurationMs("HEARTBEAT_INTERVAL_MS", 15*time.Second),
			StoreTTL:        getEnvDurationS("JOB_STORE_TTL_S", 3600*time.Second),
		},
		Env: env,
	}

	if cfg.SessionKey == "" {
		return nil, fmt.Errorf("SESSION_SIGNING_KEY environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDurationMs(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultValue
}

func getEnvDurationS(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}
