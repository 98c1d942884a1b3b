package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/transport"
	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/query"
)

const providerName = "mapbox"

// Fetcher performs the byte transport for the client.
type Fetcher interface {
	Fetch(ctx context.Context, r transport.Request) ([]byte, error)
}

// RequestRecorder counts remote lookups by outcome.
type RequestRecorder interface {
	ProviderRequest(provider string, err error)
}

// Client reverse geocodes coordinates to a town and postal code using the
// Mapbox Geocoding API.
type Client struct {
	token   string
	fetcher Fetcher
	baseURL string
	metrics RequestRecorder
	logger  *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, fetcher Fetcher, metrics RequestRecorder, logger *slog.Logger) *Client {
	return &Client{
		token:   token,
		fetcher: fetcher,
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// Provider exposes the client as a geocoding query provider. Queries run on
// their own goroutine and complete on exec.
func (c *Client) Provider(exec async.Executor) query.Provider[domain.Coordinate, domain.GeoResult] {
	return query.Blocking(exec, c.ReverseGeocode)
}

// ReverseGeocode resolves the postcode feature containing coord.
func (c *Client) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (domain.GeoResult, error) {
	// Mapbox uses lon,lat order.
	u := fmt.Sprintf("%s/%.6f,%.6f.json", c.baseURL, coord.Longitude, coord.Latitude)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"postcode"},
	}

	res, err := c.reverse(ctx, u+"?"+params.Encode())
	if c.metrics != nil {
		c.metrics.ProviderRequest(providerName, err)
	}
	if err != nil {
		c.logger.Warn("reverse geocode failed", "coordinate", coord.String(), "error", err)
		return domain.GeoResult{}, err
	}
	c.logger.Debug("reverse geocoded", "coordinate", coord.String(), "town", res.Town, "postal_code", res.PostalCode)
	return res, nil
}

func (c *Client) reverse(ctx context.Context, fullURL string) (domain.GeoResult, error) {
	body, err := c.fetcher.Fetch(ctx, transport.Request{URL: fullURL, Accept: "application/json"})
	if err != nil {
		return domain.GeoResult{}, fmt.Errorf("mapbox reverse geocode: %w", err)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.GeoResult{}, fmt.Errorf("%w: decode mapbox response: %v", domain.ErrMalformedData, err)
	}
	if len(resp.Features) == 0 {
		return domain.GeoResult{}, fmt.Errorf("%w: no postcode at this location", domain.ErrNotFound)
	}
	return resp.Features[0].geoResult()
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	PlaceName string        `json:"place_name"`
	Context   []contextItem `json:"context"`
}

type contextItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// geoResult reads the postal code from the postcode feature itself and the
// town from its enclosing "place" context.
func (f feature) geoResult() (domain.GeoResult, error) {
	postal, err := strconv.Atoi(strings.TrimSpace(f.Text))
	if err != nil {
		return domain.GeoResult{}, fmt.Errorf("%w: postcode %q is not numeric", domain.ErrMalformedData, f.Text)
	}

	for _, item := range f.Context {
		if strings.HasPrefix(item.ID, "place.") && item.Text != "" {
			return domain.GeoResult{Town: item.Text, PostalCode: postal}, nil
		}
	}
	return domain.GeoResult{}, fmt.Errorf("%w: no town for postcode %s", domain.ErrNotFound, f.Text)
}
