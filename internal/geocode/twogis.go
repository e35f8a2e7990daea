package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/routedesk/backend/internal/metrics"
)

// TwoGISGeocoder calls the 2GIS geocoder API. The ru_KZ locale pins
// disambiguation to Kazakhstan so street-level precision is not required.
// Calls are rate limited (MinInterval between requests) and cached per
// query for the life of the process.
type TwoGISGeocoder struct {
	BaseURL     string
	APIKey      string
	Locale      string
	MinInterval time.Duration
	Client      *http.Client

	mu        sync.Mutex
	lastReqAt time.Time
	cache     map[string]Coord
}

// NewTwoGISGeocoder builds a geocoder for the given API key. baseURL and
// minInterval fall back to sensible defaults when zero.
func NewTwoGISGeocoder(apiKey, baseURL string, minInterval time.Duration) *TwoGISGeocoder {
	return &TwoGISGeocoder{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		MinInterval: minInterval,
	}
}

type twogisResponse struct {
	Result struct {
		Items []twogisItem `json:"items"`
	} `json:"result"`
}

type twogisItem struct {
	Point struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"point"`
}

func (g *TwoGISGeocoder) Geocode(ctx context.Context, query string) (float64, float64, error) {
	if g.Client == nil {
		g.Client = &http.Client{Timeout: 8 * time.Second}
	}
	if g.BaseURL == "" {
		g.BaseURL = "https://catalog.api.2gis.com/3.0/items/geocode"
	}
	if g.Locale == "" {
		g.Locale = "ru_KZ"
	}
	if g.MinInterval <= 0 {
		g.MinInterval = 250 * time.Millisecond
	}

	g.mu.Lock()
	if g.cache == nil {
		g.cache = map[string]Coord{}
	}
	if cached, ok := g.cache[query]; ok {
		g.mu.Unlock()
		return cached.Lat, cached.Lon, nil
	}
	// Rate limit without holding the lock while sleeping.
	sleepFor := time.Until(g.lastReqAt.Add(g.MinInterval))
	if sleepFor > 0 {
		g.mu.Unlock()
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
		g.mu.Lock()
	}
	g.lastReqAt = time.Now()
	g.mu.Unlock()

	params := url.Values{}
	params.Set("key", g.APIKey)
	params.Set("q", query)
	params.Set("fields", "items.point,items.search_attributes")
	params.Set("locale", g.Locale)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}

	metrics.ProviderRequests.Inc()
	resp, err := g.Client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, 0, fmt.Errorf("2gis http error: %s", resp.Status)
	}

	var payload twogisResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, 0, err
	}
	coord, err := parseTwoGISItems(payload.Result.Items)
	if err != nil {
		return 0, 0, err
	}

	g.mu.Lock()
	g.cache[query] = coord
	g.mu.Unlock()

	return coord.Lat, coord.Lon, nil
}

func parseTwoGISItems(items []twogisItem) (Coord, error) {
	if len(items) == 0 {
		return Coord{}, ErrNotFound
	}
	point := items[0].Point
	if point.Lat == nil || point.Lon == nil {
		return Coord{}, ErrNotFound
	}
	return Coord{Lat: *point.Lat, Lon: *point.Lon}, nil
}
