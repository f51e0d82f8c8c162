package domain

import (
	"fmt"
	"math"
	"sort"
)

// SizeBy selects the metric that drives marker radius.
type SizeBy string

const (
	// SizeByAuto sizes gas and eFuels sites by capacity and demand sectors by CO₂ potential.
	SizeByAuto     SizeBy = "auto"
	SizeByCapacity SizeBy = "capacity"
	SizeByCO2      SizeBy = "co2"
)

// ParseSizeBy validates a sizing mode name.
func ParseSizeBy(s string) (SizeBy, error) {
	switch SizeBy(s) {
	case SizeByAuto, SizeByCapacity, SizeByCO2:
		return SizeBy(s), nil
	default:
		return "", fmt.Errorf("unknown size-by mode %q (want auto, capacity or co2)", s)
	}
}

// Scaler maps metric values onto a radius range using the 5th–95th
// percentile of the observed values as the input domain.
type Scaler struct {
	lo, hi     float64
	rMin, rMax float64
	empty      bool
}

// NewScaler builds a scaler from the observed metric values. NaN and
// infinite values are ignored.
func NewScaler(values []float64, rMin, rMax float64) Scaler {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		clean = append(clean, v)
	}
	s := Scaler{rMin: rMin, rMax: rMax}
	if len(clean) == 0 {
		s.empty = true
		return s
	}
	sort.Float64s(clean)
	s.lo = quantile(clean, 0.05)
	s.hi = quantile(clean, 0.95)
	if s.hi <= s.lo {
		s.lo = clean[0]
		s.hi = clean[len(clean)-1]
		if s.hi <= s.lo {
			s.hi = s.lo + 1
		}
	}
	return s
}

// Radius returns the marker radius for v. A nil or NaN value gets the midpoint.
func (s Scaler) Radius(v *float64) float64 {
	mid := (s.rMin + s.rMax) / 2
	if s.empty || v == nil || math.IsNaN(*v) {
		return mid
	}
	x := math.Max(math.Min(*v, s.hi), s.lo)
	return s.rMin + (x-s.lo)*(s.rMax-s.rMin)/(s.hi-s.lo)
}

// quantile interpolates linearly between closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// metricLabels are the popup captions for each metric key.
var metricLabels = map[string]string{
	"capacity_gwh": "Capacity (GWh/year)",
	"capacity_kt":  "Capacity (kt/year)",
	"co2":          "bioCO₂ injection potential (t/y)",
}

// metric picks the value that sizes a site under the given mode.
func metric(s Site, by SizeBy) (*float64, string) {
	capacity := s.CapacityGWhYear
	capKey := "capacity_gwh"
	if s.Family == FamilyEFuels {
		capacity = s.CapacityKtYear
		capKey = "capacity_kt"
	}
	switch by {
	case SizeByCapacity:
		return capacity, capKey
	case SizeByCO2:
		return s.CO2PotentialTPY, "co2"
	default:
		if s.Family == FamilySector {
			return s.CO2PotentialTPY, "co2"
		}
		return capacity, capKey
	}
}

// AssignRadii sets Radius and the size metric fields on every site. Each
// metric gets its own scaler so units never mix.
func AssignRadii(sites []Site, by SizeBy, rMin, rMax float64) {
	observed := make(map[string][]float64)
	for _, s := range sites {
		if v, key := metric(s, by); v != nil {
			observed[key] = append(observed[key], *v)
		}
	}
	scalers := make(map[string]Scaler, len(observed))
	for key, values := range observed {
		scalers[key] = NewScaler(values, rMin, rMax)
	}
	for i := range sites {
		v, key := metric(sites[i], by)
		sc, ok := scalers[key]
		if !ok {
			sc = Scaler{rMin: rMin, rMax: rMax, empty: true}
		}
		sites[i].Radius = sc.Radius(v)
		sites[i].SizeMetricLabel = metricLabels[key]
		sites[i].SizeMetricValue = v
	}
}
