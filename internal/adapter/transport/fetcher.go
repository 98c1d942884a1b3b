// Package transport fetches raw bytes over HTTP for the remote query providers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/sony/gobreaker"
)

// maxBodyBytes caps the payload read from an upstream service.
const maxBodyBytes = 4 << 20

// Request describes one GET.
type Request struct {
	URL    string
	Accept string
}

// DurationRecorder observes the duration of upstream requests.
type DurationRecorder interface {
	ObserveFetch(host string, d time.Duration)
}

// Fetcher performs GET requests behind a circuit breaker. Every failure it
// returns wraps domain.ErrTransport.
type Fetcher struct {
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
	recorder DurationRecorder
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher with the given per-request timeout.
func NewFetcher(name string, timeout time.Duration, recorder DurationRecorder, logger *slog.Logger) *Fetcher {
	return NewFetcherWithClient(name, &http.Client{Timeout: timeout}, recorder, logger)
}

// NewFetcherWithClient creates a Fetcher using client.
func NewFetcherWithClient(name string, client *http.Client, recorder DurationRecorder, logger *slog.Logger) *Fetcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Fetcher{client: client, circuit: cb, recorder: recorder, logger: logger}
}

// Fetch returns the body of a 2xx response.
func (f *Fetcher) Fetch(ctx context.Context, r Request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrTransport, err)
	}
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}

	start := time.Now()
	result, err := f.circuit.Execute(func() (interface{}, error) {
		return f.do(req)
	})
	if f.recorder != nil {
		f.recorder.ObserveFetch(req.URL.Host, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: circuit open: %v", domain.ErrTransport, req.URL.Host, err)
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", domain.ErrTransport)
	}
	return body, nil
}

func (f *Fetcher) do(req *http.Request) ([]byte, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", domain.ErrTransport, req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: GET %s: status %d: %s", domain.ErrTransport, req.URL.Host, resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrTransport, err)
	}
	return body, nil
}
