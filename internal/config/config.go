package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Elasticsearch sink.
	ESURL           string
	ESUser          string
	ESPassword      string
	NewsIndex       string
	TerrorIndex     string

	// Live news ingestion. NewsEnabled is derived from the API keys unless
	// NEWS_ENABLED overrides it.
	NewsAPIKey           string
	GroqAPIKey           string
	GroqModel            string
	NewsEnabled          bool
	FetchInterval        time.Duration
	MaxArticlesPerFetch  int
	TokensPerMinute      int

	// Geocoding.
	GeocodeMinDelay   time.Duration
	GeocodeUserAgent  string
	GeocodeCacheFile  string
	ClassifyCacheFile string

	// Historical CSV import (empty path skips the file).
	GTDCSVPath  string
	RANDCSVPath string

	// Optional Kafka event-stream publisher.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocodeMinDelay, err := parseDuration("GEOCODE_MIN_DELAY", "2s")
	if err != nil {
		return nil, err
	}
	fetchIntervalMinutes, err := parsePositiveInt("FETCH_INTERVAL_MINUTES", 2)
	if err != nil {
		return nil, err
	}
	maxArticles, err := parsePositiveInt("MAX_ARTICLES_PER_FETCH", 100)
	if err != nil {
		return nil, err
	}
	tokensPerMinute, err := parsePositiveInt("TOKENS_PER_MINUTE", 4500)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ESURL:       envOrDefault("ES_URL", "http://localhost:9200"),
		ESUser:      envOrDefault("ES_USER", "elastic"),
		ESPassword:  os.Getenv("ES_PASSWORD"),
		NewsIndex:   envOrDefault("ES_INDEX_FOR_NEWS", "news_index"),
		TerrorIndex: envOrDefault("ES_INDEX_FOR_TERROR", "terror_index"),

		NewsAPIKey:          os.Getenv("NEWS_API_KEY"),
		GroqAPIKey:          os.Getenv("GROQ_API_KEY"),
		GroqModel:           envOrDefault("GROQ_MODEL", "mixtral-8x7b-32768"),
		FetchInterval:       time.Duration(fetchIntervalMinutes) * time.Minute,
		MaxArticlesPerFetch: maxArticles,
		TokensPerMinute:     tokensPerMinute,

		GeocodeMinDelay:   geocodeMinDelay,
		GeocodeUserAgent:  envOrDefault("GEOCODE_USER_AGENT", "terror-data-ingest"),
		GeocodeCacheFile:  envOrDefault("GEOCODE_CACHE_FILE", "geocoding_cache.json"),
		ClassifyCacheFile: envOrDefault("CLASSIFY_CACHE_FILE", "classification_cache.json"),

		GTDCSVPath:  os.Getenv("GTD_CSV_PATH"),
		RANDCSVPath: os.Getenv("RAND_CSV_PATH"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "terror-events"),
	}

	cfg.NewsEnabled = cfg.NewsAPIKey != "" && cfg.GroqAPIKey != ""
	if v := os.Getenv("NEWS_ENABLED"); v != "" {
		cfg.NewsEnabled = v == "true"
	}

	if cfg.ESURL == "" {
		return nil, errors.New("ES_URL is required")
	}
	if cfg.NewsIndex == "" || cfg.TerrorIndex == "" {
		return nil, errors.New("ES_INDEX_FOR_NEWS and ES_INDEX_FOR_TERROR are required")
	}
	if cfg.NewsEnabled && (cfg.NewsAPIKey == "" || cfg.GroqAPIKey == "") {
		return nil, errors.New("NEWS_ENABLED is true but NEWS_API_KEY or GROQ_API_KEY is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.GeocodeMinDelay < 0 {
		return nil, errors.New("GEOCODE_MIN_DELAY must not be negative")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
