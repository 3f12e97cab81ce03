//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/couchcryptid/terror-data-ingest/internal/adapter/elastic"
	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tces "github.com/testcontainers/testcontainers-go/modules/elasticsearch"
)

const elasticsearchImage = "docker.elastic.co/elasticsearch/elasticsearch:8.19.3"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startElasticsearch launches a single-node cluster and returns a connected
// client.
func startElasticsearch(ctx context.Context, t *testing.T) *es.Client {
	t.Helper()

	ctr, err := tces.Run(ctx, elasticsearchImage)
	require.NoError(t, err, "start elasticsearch container")
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	client, err := es.NewClient(es.Config{
		Addresses: []string{ctr.Settings.Address},
		Username:  "elastic",
		Password:  ctr.Settings.Password,
		CACert:    ctr.Settings.CACert,
	})
	require.NoError(t, err, "create elasticsearch client")
	return client
}

// TestSinkRoundTrip verifies index bootstrap and document persistence against
// a real cluster: the mapping lands as declared and an indexed event comes
// back intact through a geo query.
func TestSinkRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	client := startElasticsearch(ctx, t)
	sink := elastic.NewSink(client, discardLogger())

	const index = "terror_index"
	require.NoError(t, sink.EnsureIndex(ctx, index))

	// Idempotent: a second bootstrap must not fail.
	require.NoError(t, sink.EnsureIndex(ctx, index))

	// The mapping must declare coordinates as geo_point.
	mappingRes, err := client.Indices.GetMapping(
		client.Indices.GetMapping.WithContext(ctx),
		client.Indices.GetMapping.WithIndex(index),
	)
	require.NoError(t, err)
	defer mappingRes.Body.Close()
	require.False(t, mappingRes.IsError(), mappingRes.String())

	var mapping map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type string `json:"type"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.NewDecoder(mappingRes.Body).Decode(&mapping))
	props := mapping[index].Mappings.Properties
	assert.Equal(t, "geo_point", props["coordinates"].Type)
	assert.Equal(t, "date", props["publication_date"].Type)
	assert.Equal(t, "keyword", props["category"].Type)

	event := domain.TerrorEvent{
		Title:           "Terror Attack in Baghdad, Iraq",
		Content:         "Market bombing.",
		PublicationDate: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		Category:        domain.CategoryTerrorEvent,
		Location:        "Baghdad, Iraq",
		Confidence:      0.92,
		SourceURL:       "https://example.com/1",
		Coordinates:     &domain.Coordinates{Lat: 33.3152, Lon: 44.3661},
	}
	require.NoError(t, sink.Index(ctx, index, event))

	// Make the document searchable before querying.
	refreshRes, err := client.Indices.Refresh(
		client.Indices.Refresh.WithContext(ctx),
		client.Indices.Refresh.WithIndex(index),
	)
	require.NoError(t, err)
	refreshRes.Body.Close()

	searchRes, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(index),
	)
	require.NoError(t, err)
	defer searchRes.Body.Close()
	require.False(t, searchRes.IsError(), searchRes.String())

	var result struct {
		Hits struct {
			Hits []struct {
				Source domain.TerrorEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	require.NoError(t, json.NewDecoder(searchRes.Body).Decode(&result))
	require.Len(t, result.Hits.Hits, 1)

	got := result.Hits.Hits[0].Source
	assert.Equal(t, event.Title, got.Title)
	assert.Equal(t, event.Category, got.Category)
	assert.True(t, event.PublicationDate.Equal(got.PublicationDate))
	require.NotNil(t, got.Coordinates)
	assert.InEpsilon(t, event.Coordinates.Lat, got.Coordinates.Lat, 0.0001)
	assert.InEpsilon(t, event.Coordinates.Lon, got.Coordinates.Lon, 0.0001)
}
