// Package classify wraps a language-model completion call with token-budget
// throttling, retry/backoff on rate limits, JSON repair of the response,
// validation, and a persisted cache.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/cache"
	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	"github.com/couchcryptid/terror-data-ingest/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrRateLimited is wrapped by Completer implementations when the provider
// rejects a request for quota reasons, so the retry loop can back off instead
// of burning attempts.
var ErrRateLimited = errors.New("rate limited")

// Completer is a single blocking chat-completion call. Model, temperature,
// and output budget are fixed by the implementation.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const (
	defaultRetries = 3

	// The provider enforces a token-per-minute budget. Each recorded request
	// is charged a fixed bookkeeping cost, and a new request is assumed to
	// cost estimatedRequestTokens until proven otherwise.
	requestWindow          = time.Minute
	recordedRequestTokens  = 100
	estimatedRequestTokens = 2500
)

const systemPrompt = "You are a JSON-only API that must respond with a valid JSON object and nothing else."

// Classifier serializes all callers behind one mutex: the completion provider
// is a single token-per-minute quota domain per process. Admission pauses and
// rate-limit backoffs sleep while holding the lock.
type Classifier struct {
	completer Completer
	cache     *cache.Store[domain.Classification]
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	tokensPerMinute  int
	retries          int
	admissionPause   time.Duration
	rateLimitBackoff time.Duration

	mu       sync.Mutex
	requests []time.Time
}

// New creates a Classifier with the given token-per-minute budget.
func New(completer Completer, store *cache.Store[domain.Classification], clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, tokensPerMinute int) *Classifier {
	return &Classifier{
		completer:        completer,
		cache:            store,
		clock:            clock,
		logger:           logger,
		metrics:          metrics,
		tokensPerMinute:  tokensPerMinute,
		retries:          defaultRetries,
		admissionPause:   15 * time.Second,
		rateLimitBackoff: 15 * time.Second,
	}
}

// Classify categorizes one article. Returns false when no valid
// classification could be obtained within the retry budget; invalid results
// are never cached.
func (c *Classifier) Classify(ctx context.Context, title, content string) (domain.Classification, bool) {
	key := title + ":" + content
	if result, ok := c.cache.Get(key); ok {
		c.metrics.ClassificationCache.WithLabelValues("hit").Inc()
		return result, true
	}
	c.metrics.ClassificationCache.WithLabelValues("miss").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.admit()

	for attempt := 0; attempt < c.retries; attempt++ {
		raw, err := c.completer.Complete(ctx, systemPrompt, userPrompt(title, content))
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				c.metrics.ClassificationOutcomes.WithLabelValues("rate_limited").Inc()
				c.logger.Warn("completion rate limited", "attempt", attempt, "error", err)
				if attempt == c.retries-1 {
					return domain.Classification{}, false
				}
				c.clock.Sleep(time.Duration(attempt+1) * c.rateLimitBackoff)
				continue
			}
			c.metrics.ClassificationOutcomes.WithLabelValues("error").Inc()
			c.logger.Warn("completion failed", "attempt", attempt, "error", err)
			if attempt == c.retries-1 {
				return domain.Classification{}, false
			}
			continue
		}

		result, err := parseClassification(raw)
		if err != nil {
			c.metrics.ClassificationOutcomes.WithLabelValues("invalid").Inc()
			c.logger.Warn("invalid classification response", "attempt", attempt, "error", err)
			if attempt == c.retries-1 {
				return domain.Classification{}, false
			}
			continue
		}

		c.metrics.ClassificationOutcomes.WithLabelValues("success").Inc()
		c.cache.Put(key, result)
		c.requests = append(c.requests, c.clock.Now())
		return result, true
	}

	return domain.Classification{}, false
}

// admit prunes request records older than the window and, when the budget
// would be exceeded, pauses once before proceeding. The check is not repeated
// after the pause; one sleep then one attempt.
func (c *Classifier) admit() {
	now := c.clock.Now()
	kept := c.requests[:0]
	for _, t := range c.requests {
		if now.Sub(t) < requestWindow {
			kept = append(kept, t)
		}
	}
	c.requests = kept

	if len(c.requests)*recordedRequestTokens+estimatedRequestTokens > c.tokensPerMinute {
		c.logger.Warn("token budget exhausted, pausing",
			"recent_requests", len(c.requests),
			"tokens_per_minute", c.tokensPerMinute,
		)
		c.clock.Sleep(c.admissionPause)
	}
}

// userPrompt asks for strict JSON with exactly the three classification
// fields. Kept deterministic so identical articles hit the cache upstream
// and produce comparable results downstream.
func userPrompt(title, content string) string {
	return fmt.Sprintf(`Return ONLY a JSON object:
Title: %s
Content: %s

Format: {"category": "terror_event", "location": "City, Country", "confidence": 0.9}

Rules:
1. category must be: "terror_event", "historic_terror", or "general_news"
2. location must be: "City, Country" or just "Country"
3. confidence must be between 0 and 1`, title, content)
}

// cleanResponse strips escape artifacts the model commonly emits before the
// text is parsed as JSON.
func cleanResponse(text string) string {
	text = strings.ReplaceAll(text, `\"`, `"`)
	text = strings.ReplaceAll(text, `\_`, `_`)
	return strings.TrimSpace(text)
}

// parseClassification cleans, parses, and validates a raw completion. All
// three fields must be present and well-typed or the result is rejected.
func parseClassification(raw string) (domain.Classification, error) {
	cleaned := cleanResponse(raw)

	var parsed struct {
		Category   *string  `json:"category"`
		Location   *string  `json:"location"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return domain.Classification{}, fmt.Errorf("parse response: %w", err)
	}

	if parsed.Category == nil || parsed.Location == nil || parsed.Confidence == nil {
		return domain.Classification{}, errors.New("missing required field")
	}
	switch *parsed.Category {
	case domain.CategoryTerrorEvent, domain.CategoryHistoricTerror, domain.CategoryGeneralNews:
	default:
		return domain.Classification{}, fmt.Errorf("unrecognized category %q", *parsed.Category)
	}
	if strings.TrimSpace(*parsed.Location) == "" {
		return domain.Classification{}, errors.New("empty location")
	}
	if *parsed.Confidence < 0 || *parsed.Confidence > 1 {
		return domain.Classification{}, fmt.Errorf("confidence %v out of range", *parsed.Confidence)
	}

	return domain.Classification{
		Category:   *parsed.Category,
		Location:   strings.TrimSpace(*parsed.Location),
		Confidence: *parsed.Confidence,
	}, nil
}
