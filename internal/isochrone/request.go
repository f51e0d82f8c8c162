// Package isochrone fetches drive-time polygons for a site, trying the
// provider directly first and falling back once to a CORS relay when the
// direct call fails at the network layer.
package isochrone

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
)

// DefaultMaxRange is the provider's largest accepted threshold, in seconds.
const DefaultMaxRange = 3600

// Tier identifies which transport produced (or last attempted) a request.
type Tier string

const (
	TierDirect Tier = "direct"
	TierProxy  Tier = "proxy"
)

// Request asks for one polygon per threshold around a site.
type Request struct {
	SiteID string     `json:"site_id"`
	Origin domain.Geo `json:"origin"`
	Ranges []int      `json:"ranges"` // seconds, in the order the provider should return them
}

// Validate rejects requests that must never reach the provider.
func (r Request) Validate(maxRange int) error {
	if !r.Origin.Usable() {
		return invalidf("no usable origin coordinate for site %q", r.SiteID)
	}
	if len(r.Ranges) == 0 {
		return invalidf("at least one range is required")
	}
	for _, s := range r.Ranges {
		if s <= 0 {
			return invalidf("range %ds must be positive", s)
		}
		if s > maxRange {
			return invalidf("range %ds exceeds provider maximum %ds", s, maxRange)
		}
	}
	return nil
}

// Polygon is the reachable area for one threshold, as a GeoJSON geometry.
type Polygon struct {
	Range    int             `json:"range"`
	Geometry json.RawMessage `json:"geometry"`
}

// Result is a successful fetch.
type Result struct {
	SiteID    string     `json:"site_id"`
	Origin    domain.Geo `json:"origin"`
	Polygons  []Polygon  `json:"polygons"`
	Tier      Tier       `json:"tier"`
	Attempts  []Tier     `json:"attempts"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// FeatureCollection renders the polygons as GeoJSON for map overlays, largest
// threshold first so smaller bands draw on top.
func (r Result) FeatureCollection() FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(r.Polygons))}
	for i := len(r.Polygons) - 1; i >= 0; i-- {
		p := r.Polygons[i]
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Properties: FeatureProperties{Range: p.Range, Minutes: p.Range / 60, SiteID: r.SiteID},
			Geometry:   p.Geometry,
		})
	}
	return fc
}

// FeatureCollection is a GeoJSON feature collection of isochrone bands.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one isochrone band.
type Feature struct {
	Type       string            `json:"type"`
	Properties FeatureProperties `json:"properties"`
	Geometry   json.RawMessage   `json:"geometry"`
}

// FeatureProperties labels an isochrone band.
type FeatureProperties struct {
	Range   int    `json:"range"`
	Minutes int    `json:"minutes"`
	SiteID  string `json:"site_id,omitempty"`
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
