package domain

import (
	"sort"
	"strings"
)

// Family groups technologies by how they are drawn and sized.
type Family string

const (
	FamilyGas    Family = "gas"
	FamilyEFuels Family = "efuels"
	FamilySector Family = "sector"
)

var (
	gasKeys    = map[string]bool{"biomethane": true, "biogaz": true, "bioco2": true}
	eFuelsKeys = map[string]bool{"emethanol": true, "emethane": true, "esaf": true, "ekerosene": true, "eammonia": true}
)

// palette is assigned to technologies in legend order, wrapping when exhausted.
var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
	"#393b79", "#637939", "#8c6d31", "#843c39", "#7b4173",
	"#3182bd", "#e6550d", "#31a354", "#756bb1", "#636363",
}

// NormalizeKey lowercases s and drops everything but ASCII letters and digits,
// so "Bio-CO2" and "bioco2" compare equal.
func NormalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ClassifyFamily maps a technology label to its family.
func ClassifyFamily(techno string) Family {
	key := NormalizeKey(techno)
	switch {
	case gasKeys[key]:
		return FamilyGas
	case eFuelsKeys[key], strings.HasPrefix(key, "efuel"):
		return FamilyEFuels
	default:
		return FamilySector
	}
}

// LegendOrder returns the distinct technologies with the gas family first and
// every other technology after it, each group sorted by name.
func LegendOrder(technos []string) []string {
	seen := make(map[string]bool, len(technos))
	var out []string
	for _, t := range technos {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := ClassifyFamily(out[i]) == FamilyGas, ClassifyFamily(out[j]) == FamilyGas
		if gi != gj {
			return gi
		}
		return out[i] < out[j]
	})
	return out
}

// ColorMap assigns a palette colour to each technology in legend order.
func ColorMap(technos []string) map[string]string {
	ordered := LegendOrder(technos)
	colors := make(map[string]string, len(ordered))
	for i, t := range ordered {
		colors[t] = palette[i%len(palette)]
	}
	return colors
}
