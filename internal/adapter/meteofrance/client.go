// Package meteofrance queries the Météo-France rain nowcast service: a
// postal code search that yields a forecast area, and the one-hour rain
// forecast of that area.
package meteofrance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/transport"
	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/query"
	"github.com/jonboulle/clockwork"
)

const (
	areaProvider     = "meteofrance_area"
	forecastProvider = "meteofrance_forecast"
)

// Fetcher performs the byte transport for the client.
type Fetcher interface {
	Fetch(ctx context.Context, r transport.Request) ([]byte, error)
}

// RequestRecorder counts remote lookups by outcome.
type RequestRecorder interface {
	ProviderRequest(provider string, err error)
}

// Client talks to the Météo-France RPC portlet.
type Client struct {
	baseURL  string
	location *time.Location
	fetcher  Fetcher
	clock    clockwork.Clock
	metrics  RequestRecorder
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClock stamps fetched forecasts using clock instead of the wall clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a client for the service at baseURL. Forecast window
// starts are interpreted in loc.
func NewClient(baseURL string, loc *time.Location, fetcher Fetcher, metrics RequestRecorder, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		location: loc,
		fetcher:  fetcher,
		clock:    clockwork.NewRealClock(),
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AreaCodeProvider exposes AreaCode as a query provider.
func (c *Client) AreaCodeProvider(exec async.Executor) query.Provider[int, domain.AreaCode] {
	return query.Blocking(exec, c.AreaCode)
}

// ForecastProvider exposes Forecast as a query provider.
func (c *Client) ForecastProvider(exec async.Executor) query.Provider[domain.AreaCode, domain.Forecast] {
	return query.Blocking(exec, c.Forecast)
}

// AreaCode looks up the forecast area of a postal code.
func (c *Client) AreaCode(ctx context.Context, postalCode int) (domain.AreaCode, error) {
	u := fmt.Sprintf("%s/mf3-rpc-portlet/rest/lieu/facet/pluie/search/%s", c.baseURL, domain.FormatPostalCode(postalCode))

	body, err := c.fetcher.Fetch(ctx, transport.Request{URL: u, Accept: "application/json"})
	var area domain.AreaCode
	if err == nil {
		area, err = DecodeAreaCode(body)
	}
	c.record(areaProvider, err)
	if err != nil {
		c.logger.Warn("area code lookup failed", "postal_code", postalCode, "error", err)
		return 0, fmt.Errorf("area code for %s: %w", domain.FormatPostalCode(postalCode), err)
	}
	c.logger.Debug("area code resolved", "postal_code", postalCode, "area_code", int(area))
	return area, nil
}

// Forecast fetches the current one-hour rain forecast of area.
func (c *Client) Forecast(ctx context.Context, area domain.AreaCode) (domain.Forecast, error) {
	u := fmt.Sprintf("%s/mf3-rpc-portlet/rest/pluie/%d", c.baseURL, int(area))

	body, err := c.fetcher.Fetch(ctx, transport.Request{URL: u, Accept: "application/json"})
	var forecast domain.Forecast
	if err == nil {
		forecast, err = DecodeForecast(body, c.location, c.clock.Now())
	}
	c.record(forecastProvider, err)
	if err != nil {
		c.logger.Warn("forecast fetch failed", "area_code", int(area), "error", err)
		return domain.Forecast{}, fmt.Errorf("forecast for area %d: %w", int(area), err)
	}
	c.logger.Debug("forecast fetched",
		"area_code", int(area),
		"window_start", forecast.WindowStart,
		"slots", len(forecast.Levels),
	)
	return forecast, nil
}

func (c *Client) record(provider string, err error) {
	if c.metrics != nil {
		c.metrics.ProviderRequest(provider, err)
	}
}
