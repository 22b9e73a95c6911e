package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"

var ErrMissingAPIKey = errors.New("places api key is not configured")
var ErrLookupFailed = errors.New("nearby search failed")

// Place is one point of interest near the searched location.
type Place struct {
	Name    string
	PlaceID string
}

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Limit    int
	Timeout  time.Duration
}

// Client queries the Google Places Nearby Search API, ranked by distance.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

type nearbyResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name    *string `json:"name"`
		PlaceID string  `json:"place_id"`
	} `json:"results"`
}

// Nearby returns up to the configured limit of named places around lat/lng,
// closest first.
func (c *Client) Nearby(ctx context.Context, lat, lng float64) ([]Place, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	q.Set("location", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("rankby", "distance")
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build nearby request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrLookupFailed, err)
	}

	out := make([]Place, 0, c.cfg.Limit)
	for _, r := range body.Results {
		if r.Name == nil {
			continue
		}
		out = append(out, Place{Name: *r.Name, PlaceID: r.PlaceID})
		if len(out) == c.cfg.Limit {
			break
		}
	}
	c.log.Debug("nearby search",
		zap.String("status", body.Status),
		zap.Int("results", len(out)),
	)
	return out, nil
}
