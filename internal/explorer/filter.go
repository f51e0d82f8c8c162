// Package explorer decides which site markers are visible on the map, either
// from the technology/status filter or from an operator-name search.
package explorer

import (
	"fmt"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
)

// VisibilityMode controls how the technology and status predicates combine.
type VisibilityMode string

const (
	ModeBoth   VisibilityMode = "both"   // techno AND status
	ModeTechno VisibilityMode = "techno" // techno only
	ModeStatus VisibilityMode = "status" // status only
	ModeEither VisibilityMode = "either" // techno OR status
)

// ParseVisibilityMode validates a mode name.
func ParseVisibilityMode(s string) (VisibilityMode, error) {
	switch VisibilityMode(s) {
	case ModeBoth, ModeTechno, ModeStatus, ModeEither:
		return VisibilityMode(s), nil
	default:
		return "", fmt.Errorf("unknown visibility mode %q (want both, techno, status or either)", s)
	}
}

// Combine applies the mode to the two predicate results.
func (m VisibilityMode) Combine(technoOk, statusOk bool) bool {
	switch m {
	case ModeTechno:
		return technoOk
	case ModeStatus:
		return statusOk
	case ModeEither:
		return technoOk || statusOk
	default:
		return technoOk && statusOk
	}
}

// Filter is the selected technologies and statuses. An empty selection
// matches nothing.
type Filter struct {
	Technos  []string       `json:"technos"`
	Statuses []string       `json:"statuses"`
	Mode     VisibilityMode `json:"mode"`
}

// Matches reports whether a single site passes the filter.
func (f Filter) Matches(s domain.Site) bool {
	return f.Mode.Combine(contains(f.Technos, s.Techno), contains(f.Statuses, s.Status))
}

// Visible returns the IDs of the sites that pass the filter, in dataset order.
func Visible(sites []domain.Site, f Filter) []string {
	techno := toSet(f.Technos)
	status := toSet(f.Statuses)
	ids := make([]string, 0, len(sites))
	for _, s := range sites {
		if f.Mode.Combine(techno[s.Techno], status[s.Status]) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Preselect builds the initial filter. The generator's defaults are all
// statuses selected and no technologies, so a fresh map starts empty.
func Preselect(sites []domain.Site, mode VisibilityMode, allTechnos, allStatuses bool) Filter {
	f := Filter{Mode: mode, Technos: []string{}, Statuses: []string{}}
	if allTechnos {
		f.Technos = Technos(sites)
	}
	if allStatuses {
		f.Statuses = Statuses(sites)
	}
	return f
}

// Technos lists the distinct technologies in legend order.
func Technos(sites []domain.Site) []string {
	technos := make([]string, 0, len(sites))
	for _, s := range sites {
		technos = append(technos, s.Techno)
	}
	return domain.LegendOrder(technos)
}

// Statuses lists the distinct non-empty statuses in first-seen order.
func Statuses(sites []domain.Site) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, s := range sites {
		if s.Status == "" || seen[s.Status] {
			continue
		}
		seen[s.Status] = true
		out = append(out, s.Status)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
