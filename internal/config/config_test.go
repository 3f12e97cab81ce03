package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT",
		"ES_URL", "ES_USER", "ES_PASSWORD", "ES_INDEX_FOR_NEWS", "ES_INDEX_FOR_TERROR",
		"NEWS_API_KEY", "GROQ_API_KEY", "GROQ_MODEL", "NEWS_ENABLED",
		"FETCH_INTERVAL_MINUTES", "MAX_ARTICLES_PER_FETCH", "TOKENS_PER_MINUTE",
		"GEOCODE_MIN_DELAY", "GEOCODE_USER_AGENT", "GEOCODE_CACHE_FILE", "CLASSIFY_CACHE_FILE",
		"GTD_CSV_PATH", "RAND_CSV_PATH",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:9200", cfg.ESURL)
	assert.Equal(t, "news_index", cfg.NewsIndex)
	assert.Equal(t, "terror_index", cfg.TerrorIndex)
	assert.Equal(t, 2*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 100, cfg.MaxArticlesPerFetch)
	assert.Equal(t, 4500, cfg.TokensPerMinute)
	assert.Equal(t, 2*time.Second, cfg.GeocodeMinDelay)
	assert.Equal(t, "mixtral-8x7b-32768", cfg.GroqModel)
	assert.False(t, cfg.NewsEnabled, "news ingestion requires API keys")
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_NewsEnabledByKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEWS_API_KEY", "news-key")
	t.Setenv("GROQ_API_KEY", "groq-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.NewsEnabled)
}

func TestLoad_NewsEnabledOverrideWithoutKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEWS_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidFetchInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("FETCH_INTERVAL_MINUTES", "zero")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_INTERVAL_MINUTES")
}

func TestLoad_InvalidGeocodeDelay(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOCODE_MIN_DELAY", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_KafkaBrokersParsed(t *testing.T) {
	clearEnv(t)
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)
}
