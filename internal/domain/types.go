package domain

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
)

// DefaultCoordinateTolerance is the per-axis tolerance, in degrees, under
// which two coordinates share a geocoding result (roughly 200 m).
const DefaultCoordinateTolerance = 0.002

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Near reports whether both axes differ by strictly less than tolerance.
// The relation is not transitive.
func (c Coordinate) Near(other Coordinate, tolerance float64) bool {
	return math.Abs(c.Latitude-other.Latitude) < tolerance &&
		math.Abs(c.Longitude-other.Longitude) < tolerance
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// GeoResult is the town and postal code a coordinate geocodes to.
type GeoResult struct {
	Town       string `json:"town"`
	PostalCode int    `json:"postal_code"`
}

// AreaCode identifies a forecast region.
type AreaCode int

// RainIndex is an ordinal rain intensity.
type RainIndex int

const (
	RainUnknown RainIndex = iota
	RainNone
	RainLight
	RainModerate
	RainHeavy
)

var rainIndexNames = [...]string{"unknown", "none", "light", "moderate", "heavy"}

// Valid reports whether r is one of the five defined levels.
func (r RainIndex) Valid() bool {
	return r >= RainUnknown && r <= RainHeavy
}

func (r RainIndex) String() string {
	if !r.Valid() {
		return fmt.Sprintf("RainIndex(%d)", int(r))
	}
	return rainIndexNames[r]
}

// MarshalText encodes the level by name.
func (r RainIndex) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rain index %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (r *RainIndex) UnmarshalText(b []byte) error {
	v, err := ParseRainIndex(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRainIndex parses a level name, case-insensitively. The names used by
// the mobile app settings ("no", "small", "middle", "strong") are accepted too.
func ParseRainIndex(s string) (RainIndex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unknown":
		return RainUnknown, nil
	case "none", "no":
		return RainNone, nil
	case "light", "small":
		return RainLight, nil
	case "moderate", "middle":
		return RainModerate, nil
	case "heavy", "strong":
		return RainHeavy, nil
	}
	return RainUnknown, fmt.Errorf("unknown rain level %q", s)
}

// Forecast is one fetched rain forecast. Levels are evenly spread over the
// hour starting at WindowStart.
type Forecast struct {
	Levels      []RainIndex `json:"levels"`
	WindowStart time.Time   `json:"window_start"`
	FetchedAt   time.Time   `json:"fetched_at"`
}

// NewForecast copies levels so the returned Forecast shares no state with the caller.
func NewForecast(levels []RainIndex, windowStart, fetchedAt time.Time) Forecast {
	return Forecast{
		Levels:      slices.Clone(levels),
		WindowStart: windowStart,
		FetchedAt:   fetchedAt,
	}
}

// SegmentMinutes is the length of one forecast slot.
func (f Forecast) SegmentMinutes() float64 {
	if len(f.Levels) == 0 {
		return 0
	}
	return 60 / float64(len(f.Levels))
}

// GeoProvider resolves a coordinate to a town and postal code.
type GeoProvider interface {
	Query(ctx context.Context, coord Coordinate) *async.Future[GeoResult]
}

// AreaCodeProvider resolves a postal code to a forecast area.
type AreaCodeProvider interface {
	Query(ctx context.Context, postalCode int) *async.Future[AreaCode]
}

// ForecastProvider fetches the rain forecast of an area.
type ForecastProvider interface {
	Query(ctx context.Context, area AreaCode) *async.Future[Forecast]
}
