package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handy/catalog/internal/config"
	"handy/catalog/internal/endpoint"
)

func testConfig() config.SEOConfig {
	return config.SEOConfig{Enabled: true, Timeout: 2, MaxRetries: 0, MaxRequestsPerSecond: 1000, BreakerCooldown: 60}
}

func TestPrimaryTerm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, primaryTermPath, r.URL.Path)
		assert.Equal(t, "product-category", r.URL.Query().Get("taxonomy"))
		switch r.URL.Query().Get("post_id") {
		case "10":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"term_id": 42}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewSEOClient(testConfig(), endpoint.Static(srv.URL))

	id, ok, err := c.PrimaryTerm(context.Background(), 10, "product-category")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	_, ok, err = c.PrimaryTerm(context.Background(), 11, "product-category")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOverloadedOriginsOpenTheBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewSEOClient(testConfig(), endpoint.Static(srv.URL, srv.URL))

	_, _, err := c.PrimaryTerm(context.Background(), 10, "product-category")
	require.Error(t, err)
	assert.EqualValues(t, 2, calls.Load(), "each origin is tried once")

	_, _, err = c.PrimaryTerm(context.Background(), 10, "product-category")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRotatesPastOverloadedOrigin(t *testing.T) {
	busy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer busy.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"term_id": 7}`))
	}))
	defer ok.Close()

	c := NewSEOClient(testConfig(), endpoint.Static(busy.URL, ok.URL))
	id, found, err := c.PrimaryTerm(context.Background(), 1, "product-category")
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 7, id)
}

func TestNoOrigins(t *testing.T) {
	c := NewSEOClient(testConfig(), endpoint.Static())
	_, _, err := c.PrimaryTerm(context.Background(), 1, "product-category")
	assert.Error(t, err)
}
