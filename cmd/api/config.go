package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/pkg/cohere"
)

// Config holds all environment-based configuration.
type Config struct {
	APIKey        string
	Collection    string
	Threshold     float32
	TopK          int
	Port          string
	CORSOrigin    string
	CohereBaseURL string
	EmbedModel    string
	RerankEnabled bool
	RerankModel   string
	Backend       string
	QdrantURL     string
	RedisURL      string
	EmbedCacheTTL time.Duration
	NATSURL       string
	DataFile      string
	RateLimitRPS  float64
	RateBurst     int
	Reindex       bool
	LogLevel      string
}

var defaults = map[string]string{
	"COLLECTION_NAME":      "perso_qa",
	"SIMILARITY_THRESHOLD": "0.7",
	"TOP_K":                "3",
	"PORT":                 "8000",
	"CORS_ORIGIN":          "*",
	"COHERE_BASE_URL":      cohere.DefaultBaseURL,
	"EMBED_MODEL":          cohere.DefaultEmbedModel,
	"RERANK_ENABLED":       "false",
	"RERANK_MODEL":         cohere.DefaultRerankModel,
	"VECTOR_BACKEND":       "memory",
	"QDRANT_URL":           "localhost:6334",
	"EMBED_CACHE_TTL":      "1h",
	"RATE_LIMIT_RPS":       "10",
	"RATE_LIMIT_BURST":     "20",
	"REINDEX_ENABLED":      "false",
	"LOG_LEVEL":            "info",
}

// loadConfig reads .env (if present) and the process environment once.
func loadConfig(dotenv ...string) (Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load(dotenv...)

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return Config{}, &domain.ConfigurationError{Key: "environment", Wrapped: err}
	}
	return parseConfig(k)
}

func parseConfig(k *koanf.Koanf) (Config, error) {
	get := func(key string) string {
		if v := strings.TrimSpace(k.String(key)); v != "" {
			return v
		}
		return defaults[key]
	}

	cfg := Config{
		APIKey:        get("API_KEY"),
		Collection:    get("COLLECTION_NAME"),
		Port:          get("PORT"),
		CORSOrigin:    get("CORS_ORIGIN"),
		CohereBaseURL: get("COHERE_BASE_URL"),
		EmbedModel:    get("EMBED_MODEL"),
		RerankModel:   get("RERANK_MODEL"),
		Backend:       strings.ToLower(get("VECTOR_BACKEND")),
		QdrantURL:     get("QDRANT_URL"),
		RedisURL:      get("REDIS_URL"),
		NATSURL:       get("NATS_URL"),
		DataFile:      get("QA_DATA_FILE"),
		LogLevel:      get("LOG_LEVEL"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = get("COHERE_API_KEY")
	}
	if cfg.APIKey == "" {
		return Config{}, &domain.ConfigurationError{Key: "API_KEY", Wrapped: domain.ErrMissingConfig}
	}

	threshold, err := strconv.ParseFloat(get("SIMILARITY_THRESHOLD"), 32)
	if err != nil || threshold < -1 || threshold > 1 {
		return Config{}, invalid("SIMILARITY_THRESHOLD", get("SIMILARITY_THRESHOLD"), "a number in [-1, 1]")
	}
	cfg.Threshold = float32(threshold)

	if cfg.TopK, err = strconv.Atoi(get("TOP_K")); err != nil || cfg.TopK <= 0 {
		return Config{}, invalid("TOP_K", get("TOP_K"), "a positive integer")
	}
	if cfg.RerankEnabled, err = strconv.ParseBool(get("RERANK_ENABLED")); err != nil {
		return Config{}, invalid("RERANK_ENABLED", get("RERANK_ENABLED"), "a boolean")
	}
	if cfg.Reindex, err = strconv.ParseBool(get("REINDEX_ENABLED")); err != nil {
		return Config{}, invalid("REINDEX_ENABLED", get("REINDEX_ENABLED"), "a boolean")
	}
	if cfg.EmbedCacheTTL, err = time.ParseDuration(get("EMBED_CACHE_TTL")); err != nil || cfg.EmbedCacheTTL <= 0 {
		return Config{}, invalid("EMBED_CACHE_TTL", get("EMBED_CACHE_TTL"), "a positive duration")
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(get("RATE_LIMIT_RPS"), 64); err != nil || cfg.RateLimitRPS < 0 {
		return Config{}, invalid("RATE_LIMIT_RPS", get("RATE_LIMIT_RPS"), "a non-negative number")
	}
	if cfg.RateBurst, err = strconv.Atoi(get("RATE_LIMIT_BURST")); err != nil || cfg.RateBurst < 0 {
		return Config{}, invalid("RATE_LIMIT_BURST", get("RATE_LIMIT_BURST"), "a non-negative integer")
	}
	switch cfg.Backend {
	case "memory", "chromem", "qdrant":
	default:
		return Config{}, invalid("VECTOR_BACKEND", cfg.Backend, "one of memory, chromem, qdrant")
	}
	return cfg, nil
}

func invalid(key, value, want string) error {
	return &domain.ConfigurationError{Key: key, Wrapped: fmt.Errorf("%q is not %s", value, want)}
}
