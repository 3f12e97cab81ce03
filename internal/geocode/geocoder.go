// Package geocode wraps a geocoding provider with request throttling, retry,
// historical country-name correction, and a persisted cache.
package geocode

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/cache"
	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	"github.com/couchcryptid/terror-data-ingest/internal/observability"
	"github.com/jonboulle/clockwork"
)

const defaultRetries = 3

// Provider is a single blocking geocoding lookup. The bool reports whether
// the query resolved; errors are transient provider failures worth retrying.
type Provider interface {
	Geocode(ctx context.Context, query string) (domain.Coordinates, bool, error)
}

// countryCorrections maps historical country names in the datasets to the
// names the geocoding provider knows.
var countryCorrections = map[string]string{
	"USSR":                        "Russia",
	"Federal Republic of Germany": "Germany",
	"Sri Lanka (Ceylon)":          "Sri Lanka",
	"West Germany":                "Germany",
	"East Germany":                "Germany",
	"Yugoslavia":                  "Serbia",
}

// CorrectCountry resolves a historical country name to its present-day
// equivalent. Unmapped names pass through unchanged.
func CorrectCountry(name string) string {
	if corrected, ok := countryCorrections[name]; ok {
		return corrected
	}
	return name
}

// Geocoder serializes all callers behind one mutex: the provider is a single
// external quota domain, so at most one outbound request is in flight per
// process. Delay and backoff sleeps happen while holding the lock.
type Geocoder struct {
	provider Provider
	cache    *cache.Store[domain.Coordinates]
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	minDelay    time.Duration
	backoffUnit time.Duration
	retries     int

	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a Geocoder enforcing minDelay between outbound requests.
func New(provider Provider, store *cache.Store[domain.Coordinates], clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, minDelay time.Duration) *Geocoder {
	return &Geocoder{
		provider:    provider,
		cache:       store,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		minDelay:    minDelay,
		backoffUnit: 2 * time.Second,
		retries:     defaultRetries,
	}
}

// Geocode resolves a free-text query to coordinates. Returns false when the
// query could not be resolved within the retry budget; that is terminal for
// the unit of work, never fatal.
func (g *Geocoder) Geocode(ctx context.Context, query string) (domain.Coordinates, bool) {
	if coords, ok := g.cache.Get(query); ok {
		g.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return coords, true
	}
	g.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	g.mu.Lock()
	defer g.mu.Unlock()

	retries := g.retries
	stripped := false

	for attempt := 0; attempt < retries; attempt++ {
		g.padDelay()

		coords, found, err := g.provider.Geocode(ctx, query)
		g.lastRequest = g.clock.Now()

		if err != nil {
			if attempt == retries-1 || ctx.Err() != nil {
				g.metrics.GeocodeRequests.WithLabelValues("error").Inc()
				g.logger.Warn("geocoding failed", "query", query, "error", err)
				return domain.Coordinates{}, false
			}
			g.clock.Sleep(time.Duration(attempt+1) * g.backoffUnit)
			continue
		}

		if found {
			g.metrics.GeocodeRequests.WithLabelValues("success").Inc()
			g.cache.Put(query, coords)
			return coords, true
		}

		// Queries like "Srinagar (Kashmir)" often fail on the parenthetical
		// qualifier; retry once with it stripped, spending one retry.
		if !stripped {
			if i := strings.Index(query, "("); i >= 0 {
				query = strings.TrimSpace(query[:i])
				stripped = true
				retries--
				if coords, ok := g.cache.Get(query); ok {
					g.metrics.GeocodeCache.WithLabelValues("hit").Inc()
					return coords, true
				}
				attempt = -1
				continue
			}
		}

		g.metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		return domain.Coordinates{}, false
	}

	g.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	g.logger.Warn("geocoding retries exhausted", "query", query)
	return domain.Coordinates{}, false
}

// GetCoordinates composes a query from city and country, applying the
// historical country correction first. When the composed query fails and
// both parts were present, the city alone is tried as a fallback.
func (g *Geocoder) GetCoordinates(ctx context.Context, city, country string) (domain.Coordinates, bool) {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if city == "" && country == "" {
		return domain.Coordinates{}, false
	}

	country = CorrectCountry(country)

	var query string
	switch {
	case city != "" && country != "":
		query = city + ", " + country
	case city != "":
		query = city
	default:
		query = country
	}

	if coords, ok := g.Geocode(ctx, query); ok {
		return coords, true
	}

	if city != "" && country != "" {
		return g.Geocode(ctx, city)
	}

	return domain.Coordinates{}, false
}

// padDelay sleeps just long enough to keep minDelay between consecutive
// outbound requests. Callers hold g.mu.
func (g *Geocoder) padDelay() {
	if g.lastRequest.IsZero() {
		return
	}
	if wait := g.minDelay - g.clock.Since(g.lastRequest); wait > 0 {
		g.clock.Sleep(wait)
	}
}
