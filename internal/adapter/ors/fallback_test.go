package ors_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/biogas-sitemap/internal/adapter/ors"
	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/isochrone"
	"github.com/couchcryptid/biogas-sitemap/internal/observability"
)

const relayBands = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"value":1800.0},"geometry":{"type":"Polygon","coordinates":[[[9.1,45.4],[9.2,45.4],[9.2,45.5],[9.1,45.4]]]}},
  {"type":"Feature","properties":{"value":3600.0},"geometry":{"type":"Polygon","coordinates":[[[9.0,45.3],[9.3,45.3],[9.3,45.6],[9.0,45.3]]]}}
]}`

// A refused direct connection falls back to the relay exactly once and the
// relay receives the provider URL with the key in its query string.
func TestFetcher_DirectRefusedServedByRelay(t *testing.T) {
	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := closed.URL
	closed.Close()

	var (
		relayCalls atomic.Int32
		forwarded  atomic.Value
	)
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relayCalls.Add(1)
		forwarded.Store(r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(relayBands))
	}))
	defer relay.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	direct := ors.NewClient("secret-key", baseURL, 2*time.Second, logger)
	proxy := ors.NewRelayClient("secret-key", baseURL, relay.URL+"/?url=", 2*time.Second, logger)
	fetcher := isochrone.NewFetcher(direct, proxy, nil, isochrone.DefaultMaxRange, logger, metrics)

	res, err := fetcher.Fetch(context.Background(), isochrone.Request{
		SiteID: "site-milan",
		Origin: domain.Geo{Lat: 45.46, Lon: 9.19},
		Ranges: []int{1800, 3600},
	})
	require.NoError(t, err)

	assert.Equal(t, isochrone.TierProxy, res.Tier)
	assert.Equal(t, []isochrone.Tier{isochrone.TierDirect, isochrone.TierProxy}, res.Attempts)
	require.Len(t, res.Polygons, 2)
	assert.Equal(t, 1800, res.Polygons[0].Range)
	assert.Equal(t, int32(1), relayCalls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.IsochroneFallbacks), 0)

	target, ok := forwarded.Load().(string)
	require.True(t, ok)
	u, err := url.Parse(target)
	require.NoError(t, err)
	directURL, err := url.Parse(baseURL)
	require.NoError(t, err)
	assert.Equal(t, directURL.Host, u.Host)
	assert.Equal(t, "/v2/isochrones/driving-hgv", u.Path)
	assert.Equal(t, "secret-key", u.Query().Get("api_key"))
}
