//go:build ors

package ors

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/isochrone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real OpenRouteService API and require ORS_API_KEY.
// Run with: go test -tags=ors ./internal/adapter/ors/ -v -count=1

func smokeKey(t *testing.T) string {
	t.Helper()
	key := os.Getenv("ORS_API_KEY")
	if key == "" {
		t.Fatal("ORS_API_KEY must be set to run smoke tests")
	}
	return key
}

func TestSmoke_Isochrones(t *testing.T) {
	c := NewClient(smokeKey(t), DefaultBaseURL, 15*time.Second, discardLogger())

	// Central Lyon
	polygons, err := c.Isochrones(context.Background(), isochrone.Request{
		SiteID: "smoke",
		Origin: domain.Geo{Lat: 45.764, Lon: 4.8357},
		Ranges: []int{900, 1800},
	})
	require.NoError(t, err)

	require.Len(t, polygons, 2)
	assert.Equal(t, 900, polygons[0].Range)
	assert.Equal(t, 1800, polygons[1].Range)
	assert.NotEmpty(t, polygons[0].Geometry)
}

func TestSmoke_RangeAboveMaximumRejectedByProvider(t *testing.T) {
	c := NewClient(smokeKey(t), DefaultBaseURL, 15*time.Second, discardLogger())

	_, err := c.Isochrones(context.Background(), isochrone.Request{
		SiteID: "smoke",
		Origin: domain.Geo{Lat: 45.764, Lon: 4.8357},
		Ranges: []int{7200},
	})
	var pe *isochrone.ProviderError
	require.ErrorAs(t, err, &pe)
}
