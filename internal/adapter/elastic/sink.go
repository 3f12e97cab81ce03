// Package elastic stores processed events in Elasticsearch.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"
)

// eventMapping types the fields the dashboards query on. Coordinates are a
// geo_point so map visualizations work without a reindex.
const eventMapping = `{
	"mappings": {
		"properties": {
			"title": {"type": "text"},
			"content": {"type": "text"},
			"publication_date": {"type": "date"},
			"category": {"type": "keyword"},
			"location": {"type": "text"},
			"confidence": {"type": "float"},
			"source_url": {"type": "keyword"},
			"coordinates": {"type": "geo_point"}
		}
	}
}`

// Sink writes documents to Elasticsearch indices.
type Sink struct {
	client *es.Client
	logger *slog.Logger
}

// NewSink wraps an Elasticsearch client.
func NewSink(client *es.Client, logger *slog.Logger) *Sink {
	return &Sink{
		client: client,
		logger: logger,
	}
}

// NewClient connects to the Elasticsearch cluster at url. user and password
// may be empty for unsecured clusters.
func NewClient(url, user, password string) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: strings.Split(url, ","),
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// EnsureIndex creates the index with the event mapping if it does not exist.
func (s *Sink) EnsureIndex(ctx context.Context, index string) error {
	res, err := s.client.Indices.Exists(
		[]string{index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("check index %q: %w", index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %q: %s", index, res.String())
	}

	createRes, err := s.client.Indices.Create(
		index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(eventMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %q: %w", index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("create index %q: %s", index, createRes.String())
	}

	s.logger.Info("created index", "index", index)
	return nil
}

// Index stores a single document.
func (s *Sink) Index(ctx context.Context, index string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := s.client.Index(
		index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document: %s", res.String())
	}

	return nil
}

// Ping verifies the cluster is reachable.
func (s *Sink) Ping(ctx context.Context) error {
	res, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch info: %s", res.String())
	}

	return nil
}
