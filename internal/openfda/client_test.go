package openfda

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, RatePerMinute: 6000}, testLogger())
	t.Cleanup(c.Close)
	return c
}

func TestSearch_BuildsExactPhraseQuery(t *testing.T) {
	var rawQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drug/label.json", r.URL.Path)
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{"results":[{"openfda":{"brand_name":["Tylenol"],"generic_name":["acetaminophen"]},"warnings":["Liver warning"]}]}`))
	})

	l, err := c.Search(context.Background(), "Tylenol", 1)
	require.NoError(t, err)
	assert.Equal(t, `search=openfda.brand_name:%22Tylenol%22+OR+openfda.generic_name:%22Tylenol%22&limit=1`, rawQuery)
	assert.Equal(t, "Tylenol", l.BrandName)
	assert.Equal(t, "acetaminophen", l.GenericName)
	assert.Equal(t, "Liver warning", l.Warnings)
	assert.Equal(t, "Tylenol", l.Query)
}

func TestSearch_APIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"results":[{"openfda":{"brand_name":["Advil"]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"}, testLogger())
	_, err := c.Search(context.Background(), "Advil", 0)
	require.NoError(t, err)
}

func TestSearch_NotFound(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"404", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"No matches found!"}}`))
		}},
		{"empty results", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results":[]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.h)
			_, err := c.Search(context.Background(), "xyzzy-not-a-drug", 1)
			assert.ErrorIs(t, err, label.ErrNotFound)
			assert.NotErrorIs(t, err, label.ErrUpstreamUnavailable)
		})
	}
}

func TestSearch_Unavailable(t *testing.T) {
	tests := []struct {
		name      string
		h         http.HandlerFunc
		retryable bool
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, true},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, true},
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}, false},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.h)
			_, err := c.Search(context.Background(), "Tylenol", 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
			assert.Equal(t, tt.retryable, retry.IsRetryable(err))
		})
	}
}

func TestSearch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, testLogger())
	_, err := c.Search(context.Background(), "Tylenol", 1)
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
}

func TestSearch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for range 5 {
		_, err := c.Search(context.Background(), "Tylenol", 1)
		require.ErrorIs(t, err, label.ErrUpstreamUnavailable)
	}
	_, err := c.Search(context.Background(), "Tylenol", 1)
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
	assert.Equal(t, int32(5), calls.Load(), "open breaker should not reach upstream")
}

func TestSearch_NotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	for range 8 {
		_, err := c.Search(context.Background(), "missing", 1)
		require.True(t, errors.Is(err, label.ErrNotFound))
	}
	assert.Equal(t, int32(8), calls.Load())
}

func TestSearch_EmptyName(t *testing.T) {
	c := NewClient(Config{}, testLogger())
	_, err := c.Search(context.Background(), "   ", 1)
	assert.ErrorIs(t, err, label.ErrNotFound)
}
