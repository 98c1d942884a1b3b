package domain

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
)

var (
	// ErrTransport marks a failed byte fetch.
	ErrTransport = errors.New("transport error")
	// ErrMalformedData marks a payload that could not be decoded or is unusable.
	ErrMalformedData = errors.New("malformed data")
	// ErrForecastUnavailable is returned when the forecast service reports no data for an area.
	ErrForecastUnavailable = fmt.Errorf("%w: forecast unavailable", ErrMalformedData)
	// ErrNotFound marks a lookup that succeeded but returned nothing.
	ErrNotFound = errors.New("not found")

	// ErrPrerequisite marks a stage invoked without the upstream field it needs.
	ErrPrerequisite      = errors.New("missing prerequisite")
	ErrMissingCoordinate = fmt.Errorf("%w: coordinate", ErrPrerequisite)
	ErrMissingAreaCode   = fmt.Errorf("%w: area code", ErrPrerequisite)

	ErrTimeout = async.ErrTimeout

	// ErrInternal marks misuse or a broken invariant.
	ErrInternal      = errors.New("internal error")
	ErrUnimplemented = fmt.Errorf("%w: query not implemented", ErrInternal)
	ErrNoCoordinate  = fmt.Errorf("%w: no coordinate known", ErrInternal)
)

// ErrorKind classifies err for metrics labels and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrMalformedData):
		return "data"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPrerequisite):
		return "prerequisite"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInternal):
		return "internal"
	default:
		return "other"
	}
}
