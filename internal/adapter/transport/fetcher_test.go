package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDurations struct {
	mu    sync.Mutex
	hosts []string
}

func (r *recordingDurations) ObserveFetch(host string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts = append(r.hosts, host)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := &recordingDurations{}
	f := NewFetcher("test", 5*time.Second, rec, discardLogger())

	body, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/x", Accept: "application/json"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Len(t, rec.hosts, 1)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	f := NewFetcher("test", 5*time.Second, nil, discardLogger())
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL})

	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher("test", time.Second, nil, discardLogger())
	_, err := f.Fetch(context.Background(), Request{URL: url})
	require.ErrorIs(t, err, domain.ErrTransport)
}

func TestFetch_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher("test", time.Second, nil, discardLogger())
	for range 5 {
		_, err := f.Fetch(context.Background(), Request{URL: srv.URL})
		require.ErrorIs(t, err, domain.ErrTransport)
	}

	_, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "circuit open")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, hits)
}

func TestFetch_InvalidURL(t *testing.T) {
	f := NewFetcher("test", time.Second, nil, discardLogger())
	_, err := f.Fetch(context.Background(), Request{URL: "://bad"})
	require.ErrorIs(t, err, domain.ErrTransport)
}
