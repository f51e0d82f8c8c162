// Package heat aggregates biogas and biomethane sites into H3 cells for the
// density layers.
package heat

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
)

// Layer names one density layer.
type Layer string

const (
	LayerBiogaz     Layer = "biogaz"
	LayerBiomethane Layer = "biomethane"
)

// Layers lists every supported layer.
var Layers = []Layer{LayerBiogaz, LayerBiomethane}

// ParseLayer validates a layer name.
func ParseLayer(s string) (Layer, error) {
	for _, l := range Layers {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown heat layer %q", s)
}

// Point is one weighted heat sample: [lat, lng, weight].
type Point [3]float64

// Cell is the aggregate for one H3 cell.
type Cell struct {
	Index  string
	Center domain.Geo
	Count  int
}

// Point returns the cell as a heat sample weighted by its site count.
func (c Cell) Point() Point {
	return Point{c.Center.Lat, c.Center.Lon, float64(c.Count)}
}

// Index holds the aggregated cells of every layer.
type Index struct {
	resolution int
	cells      map[Layer][]Cell
}

// Build aggregates sites at the given H3 resolution (0-15).
func Build(sites []domain.Site, resolution int) (*Index, error) {
	if resolution < 0 || resolution > 15 {
		return nil, fmt.Errorf("h3 resolution %d out of range 0-15", resolution)
	}

	counts := make(map[Layer]map[h3.Cell]int, len(Layers))
	for _, s := range sites {
		layer, ok := layerOf(s.Techno)
		if !ok {
			continue
		}
		cell, err := h3.LatLngToCell(h3.NewLatLng(s.Geo.Lat, s.Geo.Lon), resolution)
		if err != nil {
			return nil, fmt.Errorf("index site %s: %w", s.ID, err)
		}
		if counts[layer] == nil {
			counts[layer] = make(map[h3.Cell]int)
		}
		counts[layer][cell]++
	}

	idx := &Index{resolution: resolution, cells: make(map[Layer][]Cell, len(Layers))}
	for layer, byCell := range counts {
		cells := make([]Cell, 0, len(byCell))
		for c, n := range byCell {
			center, err := h3.CellToLatLng(c)
			if err != nil {
				return nil, fmt.Errorf("cell center %s: %w", c, err)
			}
			cells = append(cells, Cell{
				Index:  c.String(),
				Center: domain.Geo{Lat: center.Lat, Lon: center.Lng},
				Count:  n,
			})
		}
		sort.Slice(cells, func(i, j int) bool {
			if cells[i].Count != cells[j].Count {
				return cells[i].Count > cells[j].Count
			}
			return cells[i].Index < cells[j].Index
		})
		idx.cells[layer] = cells
	}
	return idx, nil
}

// Resolution returns the H3 resolution the index was built at.
func (x *Index) Resolution() int { return x.resolution }

// Cells returns the aggregated cells of a layer, densest first.
func (x *Index) Cells(layer Layer) []Cell {
	return x.cells[layer]
}

// Points returns the heat samples of a layer, densest first.
func (x *Index) Points(layer Layer) []Point {
	cells := x.cells[layer]
	out := make([]Point, len(cells))
	for i, c := range cells {
		out[i] = c.Point()
	}
	return out
}

func layerOf(techno string) (Layer, bool) {
	switch domain.NormalizeKey(techno) {
	case "biogaz":
		return LayerBiogaz, true
	case "biomethane":
		return LayerBiomethane, true
	default:
		return "", false
	}
}
