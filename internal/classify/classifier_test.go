package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/cache"
	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	"github.com/couchcryptid/terror-data-ingest/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter replays a fixed sequence of completions.
type scriptedCompleter struct {
	responses []completerResponse
	calls     int
}

type completerResponse struct {
	text string
	err  error
}

func (c *scriptedCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	c.calls++
	if len(c.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r.text, r.err
}

func newTestClassifier(t *testing.T, completer Completer) *Classifier {
	t.Helper()
	store := cache.NewStore[domain.Classification](filepath.Join(t.TempDir(), "cls.json"), slog.Default())
	c := New(completer, store, clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting(), 4500)
	c.admissionPause = time.Millisecond
	c.rateLimitBackoff = time.Millisecond
	return c
}

const validResponse = `{"category": "terror_event", "location": "Baghdad, Iraq", "confidence": 0.92}`

func TestClassify_ValidResponse(t *testing.T) {
	cmp := &scriptedCompleter{responses: []completerResponse{{text: validResponse}}}
	c := newTestClassifier(t, cmp)

	result, ok := c.Classify(context.Background(), "Blast in Baghdad", "Details of the blast.")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryTerrorEvent, result.Category)
	assert.Equal(t, "Baghdad, Iraq", result.Location)
	assert.InEpsilon(t, 0.92, result.Confidence, 0.0001)
}

func TestClassify_ResultIsCached(t *testing.T) {
	cmp := &scriptedCompleter{responses: []completerResponse{{text: validResponse}}}
	c := newTestClassifier(t, cmp)

	_, ok := c.Classify(context.Background(), "Blast in Baghdad", "Details.")
	require.True(t, ok)

	// The script is exhausted; a cache miss would fail.
	result, ok := c.Classify(context.Background(), "Blast in Baghdad", "Details.")
	require.True(t, ok)
	assert.Equal(t, "Baghdad, Iraq", result.Location)
	assert.Equal(t, 1, cmp.calls)
}

func TestClassify_EscapeArtifactsRepaired(t *testing.T) {
	raw := `  {\"category\": \"general\_news\", \"location\": \"Oslo, Norway\", \"confidence\": 0.4}  `
	cmp := &scriptedCompleter{responses: []completerResponse{{text: raw}}}
	c := newTestClassifier(t, cmp)

	result, ok := c.Classify(context.Background(), "t", "c")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryGeneralNews, result.Category)
}

func TestClassify_InvalidResultsNeverCached(t *testing.T) {
	cases := []string{
		`{"category": "terror_event", "location": "Baghdad, Iraq"}`,                            // missing confidence
		`{"category": "weather_event", "location": "Baghdad, Iraq", "confidence": 0.9}`,        // unknown category
		`{"category": "terror_event", "location": "  ", "confidence": 0.9}`,                    // empty location
		`{"category": "terror_event", "location": "Baghdad, Iraq", "confidence": 1.5}`,         // out of range
		`{"category": "terror_event", "location": "Baghdad, Iraq", "confidence": "very high"}`, // wrong type
		`not json at all`,
	}

	for i, raw := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			cmp := &scriptedCompleter{responses: []completerResponse{
				{text: raw}, {text: raw}, {text: raw},
			}}
			c := newTestClassifier(t, cmp)

			_, ok := c.Classify(context.Background(), "title", "content")
			assert.False(t, ok)
			assert.Equal(t, 3, cmp.calls, "invalid responses consume the full retry budget")
			assert.Zero(t, c.cache.Len(), "failures must not be cached")
		})
	}
}

func TestClassify_ParseFailureThenSuccess(t *testing.T) {
	cmp := &scriptedCompleter{responses: []completerResponse{
		{text: "garbage"},
		{text: validResponse},
	}}
	c := newTestClassifier(t, cmp)

	result, ok := c.Classify(context.Background(), "t", "c")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryTerrorEvent, result.Category)
}

func TestClassify_RateLimitBacksOffThenRetries(t *testing.T) {
	cmp := &scriptedCompleter{responses: []completerResponse{
		{err: fmt.Errorf("quota: %w", ErrRateLimited)},
		{text: validResponse},
	}}
	c := newTestClassifier(t, cmp)

	result, ok := c.Classify(context.Background(), "t", "c")
	require.True(t, ok)
	assert.Equal(t, 2, cmp.calls)
	assert.Equal(t, "Baghdad, Iraq", result.Location)
}

func TestClassify_RetriesExhausted(t *testing.T) {
	cmp := &scriptedCompleter{responses: []completerResponse{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}
	c := newTestClassifier(t, cmp)

	_, ok := c.Classify(context.Background(), "t", "c")
	assert.False(t, ok)
	assert.Equal(t, 3, cmp.calls)
}

func TestClassify_SuccessRecordsRequest(t *testing.T) {
	cmp := &scriptedCompleter{responses: []completerResponse{{text: validResponse}}}
	c := newTestClassifier(t, cmp)

	_, ok := c.Classify(context.Background(), "t", "c")
	require.True(t, ok)
	assert.Len(t, c.requests, 1)
}

func TestClassify_AdmissionPrunesOldRequests(t *testing.T) {
	cmp := &scriptedCompleter{responses: []completerResponse{{text: validResponse}}}
	c := newTestClassifier(t, cmp)

	// Stale entries beyond the window must be discarded, recent ones kept.
	now := time.Now()
	c.requests = []time.Time{now.Add(-2 * time.Minute), now.Add(-90 * time.Second), now.Add(-time.Second)}

	_, ok := c.Classify(context.Background(), "t", "c")
	require.True(t, ok)
	assert.Len(t, c.requests, 2, "one recent entry plus the new request")
}

func TestClassify_AdmissionPausesOnceWhenBudgetExceeded(t *testing.T) {
	cmp := &scriptedCompleter{responses: []completerResponse{{text: validResponse}}}
	c := newTestClassifier(t, cmp)
	c.tokensPerMinute = 2000 // estimated cost alone exceeds the budget

	// A single pause then one attempt; the check is not re-run after sleeping.
	result, ok := c.Classify(context.Background(), "t", "c")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryTerrorEvent, result.Category)
	assert.Equal(t, 1, cmp.calls)
}
