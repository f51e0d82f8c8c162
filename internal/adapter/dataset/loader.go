// Package dataset loads site records from the JSON export and derives the
// presentation fields (family, colour, marker radius, stable ID).
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/explorer"
)

// Options controls the derived presentation fields.
type Options struct {
	SizeBy    domain.SizeBy
	MinRadius float64
	MaxRadius float64
}

// record is one row of the upstream export.
type record struct {
	Latitude          looseFloat  `json:"latitude"`
	Longitude         looseFloat  `json:"longitude"`
	Techno            looseString `json:"techno"`
	Status            looseString `json:"operational_status"`
	CapacityGWhYear   looseFloat  `json:"capacite_gwh_year"`
	CapacityKtYear    looseFloat  `json:"capacity_kt_per_year"`
	CO2PotentialTPY   looseFloat  `json:"co2_injection_potential_tpy"`
	Eiffel            looseBool   `json:"eiffel"`
	EiffelProjectName looseString `json:"eiffel_project_name"`
	Operator          looseString `json:"operator"`
	ProductionDemand  looseString `json:"production/demand"`
	Municipality      looseString `json:"municipality"`
	SiteInfo          looseString `json:"site_info"`
}

// Dataset is the immutable, fully derived site collection.
type Dataset struct {
	Sites    []domain.Site
	Technos  []string // legend order
	Statuses []string // first-seen order
	Colors   map[string]string
	Bounds   domain.Bounds
	Skipped  int

	hasBounds bool
	index     map[string]int
}

// Site returns the site with the given ID.
func (d *Dataset) Site(id string) (domain.Site, bool) {
	i, ok := d.index[id]
	if !ok {
		return domain.Site{}, false
	}
	return d.Sites[i], true
}

// HasBounds reports whether the dataset contains at least one site.
func (d *Dataset) HasBounds() bool { return d.hasBounds }

// Len returns the number of loaded sites.
func (d *Dataset) Len() int { return len(d.Sites) }

// LoadFile reads and decodes the dataset at path.
func LoadFile(path string, opts Options, logger *slog.Logger) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Decode(f, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Decode reads a JSON array of site records. Rows without a usable coordinate
// are skipped and counted; row positions are preserved in site IDs so that
// skipping never shifts the IDs of later rows.
func Decode(r io.Reader, opts Options, logger *slog.Logger) (*Dataset, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	ds := &Dataset{index: make(map[string]int, len(records))}
	sites := make([]domain.Site, 0, len(records))
	for row, rec := range records {
		site, ok := rec.site(row)
		if !ok {
			ds.Skipped++
			logger.Warn("skipping record without usable coordinates", "row", row)
			continue
		}
		ds.index[site.ID] = len(sites)
		sites = append(sites, site)
	}

	ds.Technos = explorer.Technos(sites)
	ds.Statuses = explorer.Statuses(sites)
	ds.Colors = domain.ColorMap(ds.Technos)

	for i := range sites {
		if c, ok := ds.Colors[sites[i].Techno]; ok {
			sites[i].Color = c
		} else {
			sites[i].Color = "#000000"
		}
	}
	domain.AssignRadii(sites, opts.SizeBy, opts.MinRadius, opts.MaxRadius)

	ds.Sites = sites
	ds.Bounds, ds.hasBounds = domain.BoundsOf(sites)

	logger.Info("dataset loaded",
		"sites", len(sites),
		"skipped", ds.Skipped,
		"technos", len(ds.Technos),
		"statuses", len(ds.Statuses),
	)
	return ds, nil
}

func (r record) site(row int) (domain.Site, bool) {
	if r.Latitude.v == nil || r.Longitude.v == nil {
		return domain.Site{}, false
	}
	g := domain.Geo{Lat: *r.Latitude.v, Lon: *r.Longitude.v}
	if !g.Usable() {
		return domain.Site{}, false
	}

	techno := string(r.Techno)
	return domain.Site{
		ID:                domain.SiteID(row, g),
		Row:               row,
		Geo:               g,
		Techno:            techno,
		Family:            domain.ClassifyFamily(techno),
		Status:            string(r.Status),
		CapacityGWhYear:   r.CapacityGWhYear.v,
		CapacityKtYear:    r.CapacityKtYear.v,
		CO2PotentialTPY:   r.CO2PotentialTPY.v,
		Operator:          string(r.Operator),
		ProductionDemand:  string(r.ProductionDemand),
		Investment:        bool(r.Eiffel),
		InvestmentProject: string(r.EiffelProjectName),
		Municipality:      string(r.Municipality),
		SiteInfo:          string(r.SiteInfo),
	}, true
}
