// Package newsapi fetches candidate articles from the Event Registry
// getArticles endpoint.
package newsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://eventregistry.org/api/v1/article/getArticles"
	defaultKeyword = "terror attack"
)

// Client fetches one page of articles sorted by social-relevance score.
// Outbound requests are throttled to stay inside the provider's
// requests-per-second policy.
type Client struct {
	apiKey      string
	keyword     string
	maxArticles int
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates an Event Registry client fetching up to maxArticles per
// call.
func NewClient(apiKey string, maxArticles int, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      apiKey,
		keyword:     defaultKeyword,
		maxArticles: maxArticles,
		baseURL:     defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}
}

type articlesRequest struct {
	Action            string   `json:"action"`
	Keyword           string   `json:"keyword"`
	ArticlesPage      int      `json:"articlesPage"`
	ArticlesCount     int      `json:"articlesCount"`
	ArticlesSortBy    string   `json:"articlesSortBy"`
	ArticlesSortByAsc bool     `json:"articlesSortByAsc"`
	DataType          []string `json:"dataType"`
	APIKey            string   `json:"apiKey"`
}

type articlesResponse struct {
	Articles struct {
		Results []domain.Article `json:"results"`
	} `json:"articles"`
}

// FetchArticles returns up to maxArticles candidate articles, most socially
// relevant first. Callers treat an error as "nothing to do this cycle".
func (c *Client) FetchArticles(ctx context.Context) ([]domain.Article, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqBody, err := json.Marshal(articlesRequest{
		Action:            "getArticles",
		Keyword:           c.keyword,
		ArticlesPage:      1,
		ArticlesCount:     c.maxArticles,
		ArticlesSortBy:    "socialScore",
		ArticlesSortByAsc: false,
		DataType:          []string{"news"},
		APIKey:            c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("news API error: status %d: %s", resp.StatusCode, body)
	}

	var payload articlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("fetched articles", "count", len(payload.Articles.Results))
	return payload.Articles.Results, nil
}
