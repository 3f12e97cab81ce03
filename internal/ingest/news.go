// Package ingest orchestrates the fetch-classify-geocode-store cycle for live
// news and the one-shot import of historical CSV datasets.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	"github.com/couchcryptid/terror-data-ingest/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher returns candidate articles from the news source.
type Fetcher interface {
	FetchArticles(ctx context.Context) ([]domain.Article, error)
}

// Classifier categorizes one article. False means no valid classification
// could be obtained; the article is skipped.
type Classifier interface {
	Classify(ctx context.Context, title, content string) (domain.Classification, bool)
}

// DocumentStore persists documents into a named index.
type DocumentStore interface {
	Index(ctx context.Context, index string, doc any) error
}

// Publisher forwards emitted events to a downstream stream. Optional.
type Publisher interface {
	Publish(ctx context.Context, event domain.TerrorEvent) error
}

// NewsPipeline runs one ingestion cycle: fetch articles, classify each,
// geocode the classified location, and index the resulting document. A
// failure on any one article never aborts the cycle.
type NewsPipeline struct {
	fetcher    Fetcher
	classifier Classifier
	geocoder   domain.Geocoder
	store      DocumentStore
	publisher  Publisher
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	newsIndex   string
	terrorIndex string

	ready atomic.Bool
}

// NewNewsPipeline wires the ingestion stages. publisher may be nil.
func NewNewsPipeline(
	fetcher Fetcher,
	classifier Classifier,
	geocoder domain.Geocoder,
	store DocumentStore,
	publisher Publisher,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
	newsIndex, terrorIndex string,
) *NewsPipeline {
	return &NewsPipeline{
		fetcher:     fetcher,
		classifier:  classifier,
		geocoder:    geocoder,
		store:       store,
		publisher:   publisher,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		newsIndex:   newsIndex,
		terrorIndex: terrorIndex,
	}
}

// CheckReadiness returns nil once at least one ingestion cycle has completed,
// or an error describing why the service is not yet ready.
func (p *NewsPipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no ingestion cycle has completed yet")
	}
	return nil
}

// ProcessNews executes one complete cycle. A fetch failure is treated as an
// empty result: logged, counted, and the cycle ends cleanly.
func (p *NewsPipeline) ProcessNews(ctx context.Context) {
	start := p.clock.Now()
	p.metrics.IngestRunning.Set(1)
	defer func() {
		p.metrics.IngestRunning.Set(0)
		p.metrics.IngestRunDuration.Observe(p.clock.Since(start).Seconds())
		p.ready.Store(true)
	}()

	articles, err := p.fetcher.FetchArticles(ctx)
	if err != nil {
		p.logger.Warn("article fetch failed, skipping cycle", "error", err)
		return
	}
	p.metrics.ArticlesFetched.Add(float64(len(articles)))
	p.logger.Info("ingestion cycle started", "articles", len(articles))

	emitted := 0
	for _, article := range articles {
		if ctx.Err() != nil {
			p.logger.Info("ingestion cycle interrupted", "reason", ctx.Err())
			return
		}
		if p.processArticle(ctx, article) {
			emitted++
		}
	}

	p.logger.Info("ingestion cycle finished",
		"articles", len(articles),
		"emitted", emitted,
		"duration", p.clock.Since(start),
	)
}

// processArticle classifies, geocodes, and stores one article. Returns true
// when a document was emitted.
func (p *NewsPipeline) processArticle(ctx context.Context, article domain.Article) bool {
	if strings.TrimSpace(article.Title) == "" || strings.TrimSpace(article.Body) == "" {
		p.metrics.ArticlesSkipped.WithLabelValues("missing_fields").Inc()
		p.logger.Debug("skipping article with missing fields", "url", article.URL)
		return false
	}

	classifyStart := p.clock.Now()
	classification, ok := p.classifier.Classify(ctx, article.Title, article.Body)
	p.metrics.ClassificationDuration.Observe(p.clock.Since(classifyStart).Seconds())
	if !ok {
		p.metrics.ArticlesSkipped.WithLabelValues("classification_failed").Inc()
		p.logger.Warn("classification failed, skipping article", "title", article.Title)
		return false
	}

	event := domain.TerrorEvent{
		Title:           article.Title,
		Content:         article.Body,
		PublicationDate: p.parsePublicationDate(article.DateTime),
		Category:        classification.Category,
		Location:        classification.Location,
		Confidence:      classification.Confidence,
		SourceURL:       article.URL,
	}

	city, country := splitLocation(classification.Location)
	if city != "" {
		if coords, found := p.geocoder.GetCoordinates(ctx, city, country); found {
			event.Coordinates = &coords
		}
	}

	index := p.newsIndex
	if classification.Category == domain.CategoryTerrorEvent || classification.Category == domain.CategoryHistoricTerror {
		index = p.terrorIndex
	}

	if err := p.store.Index(ctx, index, event); err != nil {
		p.metrics.IndexErrors.WithLabelValues(index).Inc()
		p.logger.Error("indexing failed", "index", index, "title", event.Title, "error", err)
		return false
	}
	p.metrics.EventsIndexed.WithLabelValues(index).Inc()
	p.metrics.ArticlesProcessed.Inc()

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.logger.Warn("publish failed", "title", event.Title, "error", err)
		}
	}

	return true
}

// parsePublicationDate accepts the news source's timestamp formats, falling
// back to now when the value is missing or unparseable.
func (p *NewsPipeline) parsePublicationDate(value string) time.Time {
	if value == "" {
		return p.clock.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	p.logger.Debug("unparseable publication date", "value", value)
	return p.clock.Now().UTC()
}

// splitLocation breaks a "City, Country" label into its parts. A single-token
// label is treated as a city; the geocoder falls back sensibly either way.
func splitLocation(location string) (city, country string) {
	parts := strings.SplitN(location, ",", 2)
	city = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		country = strings.TrimSpace(parts[1])
	}
	return city, country
}
