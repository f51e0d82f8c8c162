package domain

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestClassifyFamily(t *testing.T) {
	tests := []struct {
		techno   string
		expected Family
	}{
		{"Biomethane", FamilyGas},
		{"biogaz", FamilyGas},
		{"Bio-CO2", FamilyGas},
		{"eFuels", FamilyEFuels},
		{"e-Methanol", FamilyEFuels},
		{"eSAF", FamilyEFuels},
		{"Cement", FamilySector},
		{"Greenhouses", FamilySector},
		{"", FamilySector},
	}

	for _, tt := range tests {
		t.Run(tt.techno, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyFamily(tt.techno))
		})
	}
}

func TestLegendOrder_GasFirst(t *testing.T) {
	got := LegendOrder([]string{"Cement", "biogaz", "eFuels", "Biomethane", "Cement", ""})
	assert.Equal(t, []string{"Biomethane", "biogaz", "Cement", "eFuels"}, got)
}

func TestLegendOrder_NonGasSortedTogether(t *testing.T) {
	got := LegendOrder([]string{"eMethanol", "Steel", "Biogaz", "Cement", "eFuels"})
	// eFuels get no rank of their own; byte order puts "Steel" before "eFuels".
	assert.Equal(t, []string{"Biogaz", "Cement", "Steel", "eFuels", "eMethanol"}, got)

	colors := ColorMap(got)
	assert.Equal(t, palette[1], colors["Cement"])
	assert.Equal(t, palette[3], colors["eFuels"])
}

func TestColorMap_StableAndWraps(t *testing.T) {
	var technos []string
	for i := 0; i < len(palette)+2; i++ {
		technos = append(technos, "Sector "+string(rune('A'+i)))
	}
	colors := ColorMap(technos)

	assert.Equal(t, palette[0], colors["Sector A"])
	assert.Equal(t, palette[0], colors["Sector "+string(rune('A'+len(palette)))])
	assert.Len(t, colors, len(palette)+2)
}

func TestSite_DisplayOperator(t *testing.T) {
	assert.Equal(t, OperatorSentinel, Site{}.DisplayOperator())
	assert.Equal(t, OperatorSentinel, Site{Operator: "   "}.DisplayOperator())
	assert.Equal(t, "Shell Energy", Site{Operator: " Shell Energy "}.DisplayOperator())
}

func TestSite_Capacity(t *testing.T) {
	gas := Site{Family: FamilyGas, CapacityGWhYear: ptr(42)}
	v, unit, ok := gas.Capacity()
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
	assert.Equal(t, "GWh/year", unit)

	efuel := Site{Family: FamilyEFuels, CapacityKtYear: ptr(7), CapacityGWhYear: ptr(99)}
	v, unit, ok = efuel.Capacity()
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
	assert.Equal(t, "kt/year", unit)

	_, _, ok = Site{Family: FamilySector, CO2PotentialTPY: ptr(1000)}.Capacity()
	assert.False(t, ok)
}

func TestSiteID_Deterministic(t *testing.T) {
	g := Geo{Lat: 45.4642, Lon: 9.19}
	id1 := SiteID(3, g)
	id2 := SiteID(3, g)
	assert.Equal(t, id1, id2)
	assert.True(t, strings.HasPrefix(id1, "site-"))
	assert.Len(t, id1, len("site-")+16)

	assert.NotEqual(t, id1, SiteID(4, g), "row is part of the identity")
}

func TestGeo_Valid(t *testing.T) {
	assert.True(t, Geo{Lat: 45, Lon: 9}.Valid())
	assert.False(t, Geo{Lat: 91, Lon: 9}.Valid())
	assert.False(t, Geo{Lat: 45, Lon: -181}.Valid())
	assert.False(t, Geo{Lat: math.NaN(), Lon: 0}.Valid())
}

func TestGeo_Usable(t *testing.T) {
	assert.True(t, Geo{Lat: 45, Lon: 9}.Usable())
	assert.True(t, Geo{Lat: 0, Lon: 9}.Usable(), "on the equator")
	assert.False(t, Geo{}.Usable(), "(0,0) marks a missing position")
	assert.False(t, Geo{Lat: 91, Lon: 9}.Usable())
}

func TestBoundsOf(t *testing.T) {
	_, ok := BoundsOf(nil)
	assert.False(t, ok)

	b, ok := BoundsOf([]Site{
		{Geo: Geo{Lat: 45, Lon: 9}},
		{Geo: Geo{Lat: 44, Lon: 11}},
		{Geo: Geo{Lat: 46, Lon: 10}},
	})
	require.True(t, ok)
	assert.Equal(t, Bounds{MinLat: 44, MinLon: 9, MaxLat: 46, MaxLon: 11}, b)

	padded := b.Pad(0.1)
	assert.InDelta(t, 43.8, padded.MinLat, 1e-9)
	assert.InDelta(t, 46.2, padded.MaxLat, 1e-9)
	assert.InDelta(t, 8.8, padded.MinLon, 1e-9)
	assert.InDelta(t, 11.2, padded.MaxLon, 1e-9)
}

func TestScaler(t *testing.T) {
	values := make([]float64, 0, 101)
	for i := 0; i <= 100; i++ {
		values = append(values, float64(i))
	}
	sc := NewScaler(values, 5, 16)

	assert.InDelta(t, 5.0, sc.Radius(ptr(0)), 1e-9, "below p5 clamps to min")
	assert.InDelta(t, 16.0, sc.Radius(ptr(1000)), 1e-9, "above p95 clamps to max")
	assert.InDelta(t, 10.5, sc.Radius(ptr(50)), 1e-9)
	assert.InDelta(t, 10.5, sc.Radius(nil), 1e-9, "missing value gets midpoint")
	assert.InDelta(t, 10.5, sc.Radius(ptr(math.NaN())), 1e-9)
}

func TestScaler_DegenerateDomain(t *testing.T) {
	sc := NewScaler([]float64{7, 7, 7}, 5, 16)
	assert.InDelta(t, 5.0, sc.Radius(ptr(7)), 1e-9)

	empty := NewScaler(nil, 4, 8)
	assert.InDelta(t, 6.0, empty.Radius(ptr(3)), 1e-9)
}

func TestAssignRadii_SeparateScalersPerMetric(t *testing.T) {
	sites := []Site{
		{Family: FamilyGas, CapacityGWhYear: ptr(10)},
		{Family: FamilyGas, CapacityGWhYear: ptr(20)},
		{Family: FamilyEFuels, CapacityKtYear: ptr(1)},
		{Family: FamilySector, CO2PotentialTPY: ptr(5000)},
		{Family: FamilySector},
	}
	AssignRadii(sites, SizeByAuto, 5, 16)

	assert.InDelta(t, 5.0, sites[0].Radius, 1e-9)
	assert.InDelta(t, 16.0, sites[1].Radius, 1e-9)
	// Single-value metrics degenerate to the minimum radius.
	assert.InDelta(t, 5.0, sites[2].Radius, 1e-9)
	assert.InDelta(t, 5.0, sites[3].Radius, 1e-9)
	assert.InDelta(t, 10.5, sites[4].Radius, 1e-9)
}

func TestAssignRadii_SizeMetricFields(t *testing.T) {
	sites := []Site{
		{Family: FamilyGas, CapacityGWhYear: ptr(10), CO2PotentialTPY: ptr(900)},
		{Family: FamilyEFuels, CapacityKtYear: ptr(40)},
		{Family: FamilySector, CO2PotentialTPY: ptr(5000)},
		{Family: FamilySector},
	}
	AssignRadii(sites, SizeByAuto, 5, 16)

	assert.Equal(t, "Capacity (GWh/year)", sites[0].SizeMetricLabel)
	require.NotNil(t, sites[0].SizeMetricValue)
	assert.InDelta(t, 10.0, *sites[0].SizeMetricValue, 1e-9)
	assert.Equal(t, "Capacity (kt/year)", sites[1].SizeMetricLabel)
	assert.Equal(t, "bioCO₂ injection potential (t/y)", sites[2].SizeMetricLabel)
	assert.InDelta(t, 5000.0, *sites[2].SizeMetricValue, 1e-9)
	assert.Equal(t, "bioCO₂ injection potential (t/y)", sites[3].SizeMetricLabel)
	assert.Nil(t, sites[3].SizeMetricValue)

	AssignRadii(sites, SizeByCO2, 5, 16)
	assert.Equal(t, "bioCO₂ injection potential (t/y)", sites[0].SizeMetricLabel)
	assert.InDelta(t, 900.0, *sites[0].SizeMetricValue, 1e-9)
}

func TestParseSizeBy(t *testing.T) {
	by, err := ParseSizeBy("co2")
	require.NoError(t, err)
	assert.Equal(t, SizeByCO2, by)

	_, err = ParseSizeBy("volume")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volume")
}
