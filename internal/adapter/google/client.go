// Package google reverse geocodes coordinates with the Google Maps
// Geocoding API.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/query"
	"github.com/jonboulle/clockwork"
	"github.com/kelvins/geocoder"
)

const providerName = "google"

// zeroResults is the error text geocoder returns for a ZERO_RESULTS status.
const zeroResults = "No results found."

// RequestRecorder counts remote lookups by outcome.
type RequestRecorder interface {
	ProviderRequest(provider string, err error)
}

// reverseFunc matches geocoder.GeocodingReverse.
type reverseFunc func(geocoder.Location) ([]geocoder.Address, error)

// Client wraps the geocoder package. The API key is process-wide, so only
// one key can be in use at a time.
type Client struct {
	reverse reverseFunc
	metrics RequestRecorder
	logger  *slog.Logger
}

// NewClient sets the API key and returns a client.
func NewClient(apiKey string, metrics RequestRecorder, logger *slog.Logger) *Client {
	geocoder.ApiKey = apiKey
	return &Client{reverse: geocoder.GeocodingReverse, metrics: metrics, logger: logger}
}

// Provider exposes the client as a geocoding query provider. The geocoder
// package has no request deadline, so each query fails with
// domain.ErrTimeout once timeout has elapsed on clock.
func (c *Client) Provider(exec async.Executor, clock clockwork.Clock, timeout time.Duration) query.Provider[domain.Coordinate, domain.GeoResult] {
	return query.WithTimeout(query.Blocking(exec, c.ReverseGeocode), clock, timeout)
}

// ReverseGeocode returns the town and postal code of the first address found
// at coord. The underlying call cannot be cancelled; a done ctx only stops
// the lookup from starting.
func (c *Client) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (domain.GeoResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.GeoResult{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	addresses, err := c.reverse(geocoder.Location{Latitude: coord.Latitude, Longitude: coord.Longitude})
	var res domain.GeoResult
	switch {
	case err != nil && err.Error() == zeroResults:
		err = fmt.Errorf("%w: no address at this location", domain.ErrNotFound)
	case err != nil:
		err = fmt.Errorf("%w: google reverse geocode: %v", domain.ErrTransport, err)
	default:
		res, err = firstResult(addresses)
	}
	if c.metrics != nil {
		c.metrics.ProviderRequest(providerName, err)
	}
	if err != nil {
		c.logger.Warn("reverse geocode failed", "coordinate", coord.String(), "error", err)
		return domain.GeoResult{}, err
	}
	return res, nil
}

// firstResult picks the first address carrying both a town and a numeric
// postal code.
func firstResult(addresses []geocoder.Address) (domain.GeoResult, error) {
	if len(addresses) == 0 {
		return domain.GeoResult{}, fmt.Errorf("%w: no address at this location", domain.ErrNotFound)
	}
	for _, a := range addresses {
		if a.City == "" || a.PostalCode == "" {
			continue
		}
		postal, err := strconv.Atoi(strings.TrimSpace(a.PostalCode))
		if err != nil {
			return domain.GeoResult{}, fmt.Errorf("%w: postal code %q is not numeric", domain.ErrMalformedData, a.PostalCode)
		}
		return domain.GeoResult{Town: a.City, PostalCode: postal}, nil
	}
	return domain.GeoResult{}, fmt.Errorf("%w: no address with a town and postal code", domain.ErrNotFound)
}
