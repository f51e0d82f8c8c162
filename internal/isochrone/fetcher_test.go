package isochrone

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	calls    int
	requests []Request
	polygons []Polygon
	err      error
}

func (f *fakeTransport) Isochrones(_ context.Context, req Request) ([]Polygon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	return f.polygons, f.err
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func testPolygons() []Polygon {
	return []Polygon{
		{Range: 1800, Geometry: json.RawMessage(`{"type":"Polygon","coordinates":[[[2.3,48.8],[2.4,48.8],[2.4,48.9],[2.3,48.8]]]}`)},
		{Range: 3600, Geometry: json.RawMessage(`{"type":"Polygon","coordinates":[[[2.2,48.7],[2.5,48.7],[2.5,49.0],[2.2,48.7]]]}`)},
	}
}

func testRequest() Request {
	return Request{SiteID: "site-1", Origin: domain.Geo{Lat: 48.85, Lon: 2.35}, Ranges: []int{1800, 3600}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func networkErr() error {
	return &NetworkError{Err: syscall.ECONNREFUSED}
}

func TestFetch_DirectSuccessNeverUsesProxy(t *testing.T) {
	direct := &fakeTransport{polygons: testPolygons()}
	proxy := &fakeTransport{polygons: testPolygons()}
	m := observability.NewMetricsForTesting()
	f := NewFetcher(direct, proxy, nil, DefaultMaxRange, testLogger(), m)

	res, err := f.Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, TierDirect, res.Tier)
	assert.Equal(t, []Tier{TierDirect}, res.Attempts)
	assert.Len(t, res.Polygons, 2)
	assert.Equal(t, 1, direct.Calls())
	assert.Equal(t, 0, proxy.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IsochroneRequests.WithLabelValues("direct", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.IsochroneFallbacks))
}

func TestFetch_NetworkFailureFallsBackToProxy(t *testing.T) {
	direct := &fakeTransport{err: networkErr()}
	proxy := &fakeTransport{polygons: testPolygons()}
	m := observability.NewMetricsForTesting()
	f := NewFetcher(direct, proxy, nil, DefaultMaxRange, testLogger(), m)

	res, err := f.Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, TierProxy, res.Tier)
	assert.Equal(t, []Tier{TierDirect, TierProxy}, res.Attempts)
	assert.Equal(t, 1, direct.Calls())
	assert.Equal(t, 1, proxy.Calls())
	assert.Equal(t, testRequest(), proxy.requests[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IsochroneFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IsochroneRequests.WithLabelValues("direct", "network_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IsochroneRequests.WithLabelValues("proxy", "success")))
}

func TestFetch_BothTiersFail(t *testing.T) {
	direct := &fakeTransport{err: networkErr()}
	proxy := &fakeTransport{err: &ProviderError{Status: 403, Detail: "relay refused"}}
	f := NewFetcher(direct, proxy, nil, DefaultMaxRange, testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fetch(context.Background(), testRequest())
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, TierProxy, fe.Tier)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 403, pe.Status)
	assert.Equal(t, 1, proxy.Calls())
}

func TestFetch_ProxyTriedAtMostOnce(t *testing.T) {
	direct := &fakeTransport{err: networkErr()}
	proxy := &fakeTransport{err: networkErr()}
	f := NewFetcher(direct, proxy, nil, DefaultMaxRange, testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, 1, direct.Calls())
	assert.Equal(t, 1, proxy.Calls())
}

func TestFetch_ProviderErrorIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", &ProviderError{Status: 401, Detail: "invalid key"}},
		{"rate limited", &ProviderError{Status: 429, Detail: "quota exceeded"}},
		{"bad payload", &ProviderError{Status: 200, Detail: "decode response: unexpected EOF"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			direct := &fakeTransport{err: tt.err}
			proxy := &fakeTransport{polygons: testPolygons()}
			f := NewFetcher(direct, proxy, nil, DefaultMaxRange, testLogger(), observability.NewMetricsForTesting())

			_, err := f.Fetch(context.Background(), testRequest())
			require.Error(t, err)

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, TierDirect, fe.Tier)
			assert.False(t, IsNetwork(err))
			assert.Equal(t, 0, proxy.Calls())
		})
	}
}

func TestFetch_NoProxyConfigured(t *testing.T) {
	direct := &fakeTransport{err: networkErr()}
	f := NewFetcher(direct, nil, nil, DefaultMaxRange, testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fetch(context.Background(), testRequest())
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, TierDirect, fe.Tier)
}

func TestFetch_CancelledContextSkipsProxy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	direct := &fakeTransport{err: &NetworkError{Err: context.Canceled}}
	proxy := &fakeTransport{polygons: testPolygons()}
	f := NewFetcher(direct, proxy, nil, DefaultMaxRange, testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fetch(ctx, testRequest())
	require.Error(t, err)
	assert.Equal(t, 0, proxy.Calls())
}

func TestFetch_RejectsBeforeTransmission(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"range above maximum", Request{SiteID: "s", Origin: domain.Geo{Lat: 48.8, Lon: 2.3}, Ranges: []int{1800, 3600, 7200}}},
		{"zero range", Request{SiteID: "s", Origin: domain.Geo{Lat: 48.8, Lon: 2.3}, Ranges: []int{0}}},
		{"no ranges", Request{SiteID: "s", Origin: domain.Geo{Lat: 48.8, Lon: 2.3}}},
		{"no origin", Request{SiteID: "s", Ranges: []int{1800}}},
		{"latitude out of range", Request{SiteID: "s", Origin: domain.Geo{Lat: 95, Lon: 2.3}, Ranges: []int{1800}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			direct := &fakeTransport{polygons: testPolygons()}
			proxy := &fakeTransport{polygons: testPolygons()}
			m := observability.NewMetricsForTesting()
			f := NewFetcher(direct, proxy, nil, DefaultMaxRange, testLogger(), m)

			_, err := f.Fetch(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, 0, direct.Calls())
			assert.Equal(t, 0, proxy.Calls())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.IsochroneRejected))
		})
	}
}

func TestFetch_PublishesEvent(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	direct := &fakeTransport{err: networkErr()}
	proxy := &fakeTransport{polygons: testPolygons()}
	pub := &recordingPublisher{}
	m := observability.NewMetricsForTesting()
	f := NewFetcher(direct, proxy, pub, DefaultMaxRange, testLogger(), m)

	res, err := f.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, fake.Now(), res.FetchedAt)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, "site-1", e.SiteID)
	assert.Equal(t, "done", e.Outcome)
	assert.Equal(t, TierProxy, e.Tier)
	assert.Equal(t, []Tier{TierDirect, TierProxy}, e.Attempts)
	assert.Empty(t, e.Error)
	assert.Equal(t, fake.Now(), e.At)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TelemetryEvents.WithLabelValues("queued")))
}

func TestFetch_PublishFailureDoesNotFailFetch(t *testing.T) {
	direct := &fakeTransport{polygons: testPolygons()}
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := observability.NewMetricsForTesting()
	f := NewFetcher(direct, nil, pub, DefaultMaxRange, testLogger(), m)

	_, err := f.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TelemetryEvents.WithLabelValues("dropped")))
}

func TestFetch_FailureEventCarriesError(t *testing.T) {
	direct := &fakeTransport{err: &ProviderError{Status: 401, Detail: "invalid key"}}
	pub := &recordingPublisher{}
	f := NewFetcher(direct, nil, pub, DefaultMaxRange, testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fetch(context.Background(), testRequest())
	require.Error(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "failed", pub.events[0].Outcome)
	assert.Contains(t, pub.events[0].Error, "invalid key")
}

func TestResult_FeatureCollectionLargestFirst(t *testing.T) {
	res := Result{SiteID: "site-1", Polygons: testPolygons()}
	fc := res.FeatureCollection()

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 3600, fc.Features[0].Properties.Range)
	assert.Equal(t, 60, fc.Features[0].Properties.Minutes)
	assert.Equal(t, 1800, fc.Features[1].Properties.Range)
	assert.Equal(t, 30, fc.Features[1].Properties.Minutes)
	assert.Equal(t, "site-1", fc.Features[1].Properties.SiteID)
}

func TestNetworkError_Is(t *testing.T) {
	err := &FetchError{Tier: TierDirect, Err: networkErr()}
	assert.True(t, IsNetwork(err))
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.False(t, IsNetwork(&ProviderError{Status: 500}))
	assert.True(t, (&ProviderError{Status: 429}).RateLimited())
}
