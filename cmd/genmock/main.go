// Command genmock writes a deterministic mock site dataset in the upstream
// export format, for local runs and manual testing of the map service. The
// output is loaded back through the real dataset package so the printed
// stats match what the service will serve.
//
// Usage:
//
//	go run ./cmd/genmock -out data/sites.json -n 400 -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/biogas-sitemap/internal/adapter/dataset"
	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/explorer"
	"github.com/couchcryptid/biogas-sitemap/internal/heat"
)

// region is a rough box sites are scattered in.
type region struct {
	name           string
	lat, lon       float64
	spreadLat      float64
	spreadLon      float64
	weight         int
	municipalities []string
}

var regions = []region{
	{name: "France", lat: 46.6, lon: 2.4, spreadLat: 3.5, spreadLon: 4.0, weight: 5, municipalities: []string{"Rennes", "Lille", "Lyon", "Nantes", "Reims", "Amiens"}},
	{name: "Germany", lat: 51.2, lon: 10.4, spreadLat: 2.5, spreadLon: 3.0, weight: 3, municipalities: []string{"Hannover", "Leipzig", "Kassel", "Bremen"}},
	{name: "Italy", lat: 45.3, lon: 10.5, spreadLat: 1.5, spreadLon: 2.5, weight: 2, municipalities: []string{"Cremona", "Brescia", "Verona", "Mantova"}},
	{name: "Netherlands", lat: 52.2, lon: 5.3, spreadLat: 0.8, spreadLon: 1.0, weight: 1, municipalities: []string{"Zwolle", "Groningen", "Eindhoven"}},
}

type techno struct {
	name   string
	weight int
	// field names the metric column; min and max bound its value.
	field    string
	min, max float64
}

var technos = []techno{
	{name: "Biogaz", weight: 8, field: "capacite_gwh_year", min: 2, max: 80},
	{name: "Biomethane", weight: 6, field: "capacite_gwh_year", min: 10, max: 250},
	{name: "eMethanol", weight: 1, field: "capacity_kt_per_year", min: 20, max: 300},
	{name: "eMethane", weight: 1, field: "capacity_kt_per_year", min: 10, max: 120},
	{name: "Cement", weight: 2, field: "co2_injection_potential_tpy", min: 150_000, max: 1_500_000},
	{name: "Steel", weight: 1, field: "co2_injection_potential_tpy", min: 500_000, max: 5_000_000},
}

var statuses = []string{"In operation", "In operation", "In operation", "Under construction", "Planned", "Planned", "Decommissioned"}

var operators = []string{
	"GreenGas SA", "Agricola Italiana", "AgriBio Corp", "Méthanisation du Nord", "Straßen Biogas GmbH",
	"Shell Energy", "BioNord Energie", "Weser Biogas", "Holland Methaan BV", "CarbonLoop",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the mock sites JSON")
	n := flag.Int("n", 400, "number of sites to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *out == "" || *n <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -n > 0")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x5eed))
	records := make([]map[string]any, 0, *n)
	for range *n {
		records = append(records, generate(rng))
	}

	if err := writeJSON(*out, records); err != nil {
		return fmt.Errorf("writing mock dataset: %w", err)
	}
	log.Printf("wrote mock dataset: %s (%d records)", *out, len(records))

	ds, err := dataset.LoadFile(*out, dataset.Options{SizeBy: domain.SizeByAuto, MinRadius: 5, MaxRadius: 16},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return fmt.Errorf("reloading mock dataset: %w", err)
	}
	return printStats(ds)
}

func generate(rng *rand.Rand) map[string]any {
	reg := pick(rng, regions, func(r region) int { return r.weight })
	tech := pick(rng, technos, func(t techno) int { return t.weight })

	rec := map[string]any{
		"latitude":           round(reg.lat+(rng.Float64()*2-1)*reg.spreadLat, 5),
		"longitude":          round(reg.lon+(rng.Float64()*2-1)*reg.spreadLon, 5),
		"techno":             tech.name,
		"operational_status": statuses[rng.IntN(len(statuses))],
		"municipality":       reg.municipalities[rng.IntN(len(reg.municipalities))],
		"eiffel":             rng.IntN(10) == 0,
		"production/demand":  "Production",
	}
	if domain.ClassifyFamily(tech.name) == domain.FamilySector {
		rec["production/demand"] = "Demand"
	}

	// Roughly one site in ten has no published metric, one in eight no operator.
	if rng.IntN(10) > 0 {
		rec[tech.field] = round(tech.min+rng.Float64()*(tech.max-tech.min), 1)
	}
	if rng.IntN(8) > 0 {
		rec["operator"] = operators[rng.IntN(len(operators))]
	}
	if rec["eiffel"] == true {
		rec["eiffel_project_name"] = fmt.Sprintf("%s %s", reg.name, tech.name)
	}
	return rec
}

func pick[T any](rng *rand.Rand, items []T, weight func(T) int) T {
	total := 0
	for _, it := range items {
		total += weight(it)
	}
	r := rng.IntN(total)
	for _, it := range items {
		r -= weight(it)
		if r < 0 {
			return it
		}
	}
	return items[len(items)-1]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type count struct {
	key string
	n   int
}

func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}

func printStats(ds *dataset.Dataset) error {
	byTechno := map[string]int{}
	byStatus := map[string]int{}
	byOperator := map[string]int{}
	var investment int
	for _, s := range ds.Sites {
		byTechno[s.Techno]++
		byStatus[s.Status]++
		byOperator[s.DisplayOperator()]++
		if s.Investment {
			investment++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Loaded: %d (skipped %d)\n", ds.Len(), ds.Skipped)
	fmt.Printf("Legend order: %v\n", ds.Technos)
	for _, c := range sortedCounts(byTechno) {
		fmt.Printf("  techno %s=%d (%s)\n", c.key, c.n, domain.ClassifyFamily(c.key))
	}
	for _, c := range sortedCounts(byStatus) {
		fmt.Printf("  status %s=%d\n", c.key, c.n)
	}
	fmt.Printf("Investment-flagged: %d\n", investment)

	fmt.Println("\nOperators:")
	for _, c := range sortedCounts(byOperator) {
		fmt.Printf("  %s=%d\n", c.key, c.n)
	}
	agri := explorer.Search(ds.Sites, "Agri")
	fmt.Printf("Search %q: %s\n", agri.Query, agri.Message.Text)

	hx, err := heat.Build(ds.Sites, 6)
	if err != nil {
		return fmt.Errorf("building heat index: %w", err)
	}
	for _, l := range heat.Layers {
		fmt.Printf("Heat %s: %d cells at res %d\n", l, len(hx.Cells(l)), hx.Resolution())
	}
	return nil
}
