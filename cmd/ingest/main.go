package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/adapter/elastic"
	"github.com/couchcryptid/terror-data-ingest/internal/adapter/groq"
	httpadapter "github.com/couchcryptid/terror-data-ingest/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/terror-data-ingest/internal/adapter/kafka"
	"github.com/couchcryptid/terror-data-ingest/internal/adapter/newsapi"
	"github.com/couchcryptid/terror-data-ingest/internal/adapter/nominatim"
	"github.com/couchcryptid/terror-data-ingest/internal/cache"
	"github.com/couchcryptid/terror-data-ingest/internal/classify"
	"github.com/couchcryptid/terror-data-ingest/internal/config"
	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	"github.com/couchcryptid/terror-data-ingest/internal/geocode"
	"github.com/couchcryptid/terror-data-ingest/internal/ingest"
	"github.com/couchcryptid/terror-data-ingest/internal/observability"
	"github.com/couchcryptid/terror-data-ingest/internal/scheduler"
	"github.com/jonboulle/clockwork"
)

const adapterTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage sink and index bootstrap.
	esClient, err := elastic.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
	if err != nil {
		logger.Error("failed to create elasticsearch client", "error", err)
		os.Exit(1)
	}
	sink := elastic.NewSink(esClient, logger)
	for _, index := range []string{cfg.NewsIndex, cfg.TerrorIndex} {
		if err := sink.EnsureIndex(ctx, index); err != nil {
			logger.Error("failed to ensure index", "index", index, "error", err)
			os.Exit(1)
		}
	}

	// Geocoding with a persisted cache.
	geocodeCache := cache.NewStore[domain.Coordinates](cfg.GeocodeCacheFile, logger)
	nominatimClient := nominatim.NewClient(cfg.GeocodeUserAgent, adapterTimeout, logger)
	geocoder := geocode.New(nominatimClient, geocodeCache, clock, logger, metrics, cfg.GeocodeMinDelay)

	// Classification with a persisted cache.
	classifyCache := cache.NewStore[domain.Classification](cfg.ClassifyCacheFile, logger)
	groqClient := groq.NewClient(cfg.GroqAPIKey, cfg.GroqModel, adapterTimeout, logger)
	classifier := classify.New(groqClient, classifyCache, clock, logger, metrics, cfg.TokensPerMinute)

	// Optional event-stream publisher.
	var publisher ingest.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	fetcher := newsapi.NewClient(cfg.NewsAPIKey, cfg.MaxArticlesPerFetch, adapterTimeout, logger)
	pipeline := ingest.NewNewsPipeline(
		fetcher, classifier, geocoder, sink, publisher,
		clock, logger, metrics,
		cfg.NewsIndex, cfg.TerrorIndex,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, pipeline, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// One-shot historical import, run in the background so live ingestion is
	// not delayed behind hours of geocoding.
	if cfg.GTDCSVPath != "" || cfg.RANDCSVPath != "" {
		importer := ingest.NewCSVImporter(geocoder, sink, logger, metrics, cfg.TerrorIndex)
		go func() {
			if cfg.GTDCSVPath != "" {
				if err := importer.ImportGTD(ctx, cfg.GTDCSVPath); err != nil {
					logger.Error("gtd import failed", "path", cfg.GTDCSVPath, "error", err)
				}
			}
			if cfg.RANDCSVPath != "" {
				if err := importer.ImportRAND(ctx, cfg.RANDCSVPath); err != nil {
					logger.Error("rand import failed", "path", cfg.RANDCSVPath, "error", err)
				}
			}
		}()
	}

	var sched *scheduler.Scheduler
	if cfg.NewsEnabled {
		sched = scheduler.New(pipeline.ProcessNews, cfg.FetchInterval, logger, metrics)
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("live news ingestion disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
