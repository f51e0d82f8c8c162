package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// OperatorSentinel is displayed (and searchable) in place of a missing operator.
const OperatorSentinel = "N/A"

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is finite and inside WGS-84 bounds.
func (g Geo) Valid() bool {
	if math.IsNaN(g.Lat) || math.IsNaN(g.Lon) || math.IsInf(g.Lat, 0) || math.IsInf(g.Lon, 0) {
		return false
	}
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// Usable reports whether the coordinate can place a site. (0,0) is how the
// export writes a missing position, so it is rejected along with invalid pairs.
func (g Geo) Usable() bool {
	return g.Valid() && (g.Lat != 0 || g.Lon != 0)
}

// Site is one record of the dataset. Sites are immutable once loaded.
type Site struct {
	ID     string `json:"id"`
	Row    int    `json:"row"`
	Geo    Geo    `json:"geo"`
	Techno string `json:"techno"`
	Family Family `json:"family"`
	Status string `json:"status"`

	CapacityGWhYear *float64 `json:"capacity_gwh_year,omitempty"`
	CapacityKtYear  *float64 `json:"capacity_kt_per_year,omitempty"`
	CO2PotentialTPY *float64 `json:"co2_injection_potential_tpy,omitempty"`

	Operator          string `json:"operator,omitempty"`
	ProductionDemand  string `json:"production_demand,omitempty"`
	Investment        bool   `json:"eiffel"`
	InvestmentProject string `json:"eiffel_project_name,omitempty"`
	Municipality      string `json:"municipality,omitempty"`
	SiteInfo          string `json:"site_info,omitempty"`

	// Presentation fields derived at load time.
	Radius float64 `json:"radius"`
	Color  string  `json:"color"`
	// SizeMetricLabel names the metric Radius was scaled from; SizeMetricValue
	// is nil when the site has no value for it.
	SizeMetricLabel string   `json:"size_metric_label"`
	SizeMetricValue *float64 `json:"size_metric_value"`
}

// HasOperator reports whether the record names an operator.
func (s Site) HasOperator() bool {
	return strings.TrimSpace(s.Operator) != ""
}

// DisplayOperator returns the operator name, or OperatorSentinel when absent.
func (s Site) DisplayOperator() string {
	if !s.HasOperator() {
		return OperatorSentinel
	}
	return strings.TrimSpace(s.Operator)
}

// Capacity returns the capacity value and its unit for the site's family.
// Demand sectors have no capacity; ok is false for them and for missing values.
func (s Site) Capacity() (value float64, unit string, ok bool) {
	switch s.Family {
	case FamilyGas:
		if s.CapacityGWhYear != nil {
			return *s.CapacityGWhYear, "GWh/year", true
		}
	case FamilyEFuels:
		if s.CapacityKtYear != nil {
			return *s.CapacityKtYear, "kt/year", true
		}
	}
	return 0, "", false
}

// SiteID produces the deterministic identifier for a dataset row.
func SiteID(row int, g Geo) string {
	sum := xxhash.Sum64String(fmt.Sprintf("%d|%.6f|%.6f", row, g.Lat, g.Lon))
	return fmt.Sprintf("site-%016x", sum)
}

// Bounds is a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsOf returns the smallest box containing every site. ok is false for an
// empty slice, since no meaningful box exists.
func BoundsOf(sites []Site) (b Bounds, ok bool) {
	if len(sites) == 0 {
		return Bounds{}, false
	}
	b = Bounds{
		MinLat: sites[0].Geo.Lat, MaxLat: sites[0].Geo.Lat,
		MinLon: sites[0].Geo.Lon, MaxLon: sites[0].Geo.Lon,
	}
	for _, s := range sites[1:] {
		b.MinLat = math.Min(b.MinLat, s.Geo.Lat)
		b.MaxLat = math.Max(b.MaxLat, s.Geo.Lat)
		b.MinLon = math.Min(b.MinLon, s.Geo.Lon)
		b.MaxLon = math.Max(b.MaxLon, s.Geo.Lon)
	}
	return b, true
}

// Pad grows the box on every side by ratio times its height/width.
func (b Bounds) Pad(ratio float64) Bounds {
	dLat := math.Abs(b.MaxLat-b.MinLat) * ratio
	dLon := math.Abs(b.MaxLon-b.MinLon) * ratio
	return Bounds{
		MinLat: b.MinLat - dLat,
		MinLon: b.MinLon - dLon,
		MaxLat: b.MaxLat + dLat,
		MaxLon: b.MaxLon + dLon,
	}
}
