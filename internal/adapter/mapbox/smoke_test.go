//go:build mapbox

package mapbox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/transport"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	metrics := observability.NewMetricsForTesting()
	return NewClient(token, transport.NewFetcher("mapbox-smoke", 10*time.Second, metrics, discardLogger()), metrics, discardLogger())
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ReverseGeocode(context.Background(), domain.Coordinate{Latitude: 48.8973, Longitude: 2.2522})
	require.NoError(t, err)

	assert.Equal(t, "Courbevoie", result.Town)
	assert.Equal(t, 92400, result.PostalCode)
}

func TestSmoke_ReverseGeocode_OpenSea(t *testing.T) {
	c := smokeClient(t)

	_, err := c.ReverseGeocode(context.Background(), domain.Coordinate{Latitude: 45.0, Longitude: -30.0})
	require.ErrorIs(t, err, domain.ErrNotFound)
}
