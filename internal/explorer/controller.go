package explorer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/biogas-sitemap/internal/debounce"
	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultDebounce is the quiet interval before a typed query is evaluated.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultFitPadding pads the search reframe by 10% of the match extent.
	DefaultFitPadding = 0.1
)

// Options configures a Controller. Zero values fall back to the defaults.
type Options struct {
	Debounce   time.Duration
	FitPadding float64
	Clock      clockwork.Clock
}

// State is a copy of the controller's filter and search state.
type State struct {
	Filter       Filter        `json:"filter"`
	SearchActive bool          `json:"search_active"`
	Query        string        `json:"query,omitempty"`
	PendingQuery *string       `json:"pending_query,omitempty"`
	Result       *SearchResult `json:"result,omitempty"`
}

// Controller owns the filter and search state of one map and is the only
// thing that mutates it. Visibility is driven by the filter unless a
// non-empty search is active, in which case the search decides and the
// filter's visible set is kept aside until the search is cleared.
type Controller struct {
	sites     []domain.Site
	view      MapView
	debouncer *debounce.Debouncer
	padding   float64
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu            sync.Mutex
	filter        Filter
	filterVisible []string
	search        *SearchResult
	pending       *string
	gen           uint64
	evaluations   int
}

// NewController creates a controller over a read-only site slice and
// immediately renders the initial filter.
func NewController(sites []domain.Site, initial Filter, view MapView, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.FitPadding <= 0 {
		opts.FitPadding = DefaultFitPadding
	}
	c := &Controller{
		sites:     sites,
		view:      view,
		debouncer: debounce.New(opts.Clock, opts.Debounce),
		padding:   opts.FitPadding,
		logger:    logger,
		metrics:   metrics,
	}
	c.SetFilter(initial)
	return c
}

// SetFilter replaces the filter. While a search is active the new filter
// visibility is computed but not shown.
func (c *Controller) SetFilter(f Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setFilterLocked(f)
}

// UpdateFilter replaces the selections and, when mode is non-nil, the
// visibility mode. A nil mode keeps the current one; the read and the write
// happen under one lock so concurrent updates cannot drop a mode change.
func (c *Controller) UpdateFilter(technos, statuses []string, mode *VisibilityMode) Filter {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := Filter{Technos: technos, Statuses: statuses, Mode: c.filter.Mode}
	if mode != nil {
		f.Mode = *mode
	}
	c.setFilterLocked(f)
	return c.filter
}

func (c *Controller) setFilterLocked(f Filter) {
	if f.Mode == "" {
		f.Mode = ModeBoth
	}
	c.filter = f
	c.filterVisible = Visible(c.sites, f)
	c.metrics.FilterApplications.Inc()
	if c.search == nil {
		c.view.SetVisible(c.filterVisible)
	}
}

// SetSearchQuery records a query edit. Evaluation is debounced: only the
// last edit before the quiet interval runs. A blank final query clears the
// search.
func (c *Controller) SetSearchQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	gen := c.gen
	pending := q
	c.pending = &pending
	c.debouncer.Trigger(func() { c.evaluate(gen, q) })
}

// ClearSearch drops any pending edit and restores filter visibility. It is
// a no-op when no search is active.
func (c *Controller) ClearSearch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.debouncer.Cancel()
	c.gen++
	c.pending = nil
	c.clearLocked()
}

// Close cancels any pending evaluation.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debouncer.Cancel()
	c.gen++
	c.pending = nil
}

// Evaluations returns how many debounced evaluations have run.
func (c *Controller) Evaluations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluations
}

// State returns a copy of the current filter and search state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{Filter: c.filter}
	if c.pending != nil {
		p := *c.pending
		st.PendingQuery = &p
	}
	if c.search != nil {
		r := *c.search
		st.SearchActive = true
		st.Query = r.Query
		st.Result = &r
	}
	return st
}

func (c *Controller) evaluate(gen uint64, q string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	c.pending = nil
	c.evaluations++

	if NormalizeQuery(q) == "" {
		c.clearLocked()
		return
	}

	res := Search(c.sites, q)
	c.search = &res
	c.view.SetVisible(res.IDs)
	if b, ok := domain.BoundsOf(res.Matches); ok {
		c.view.FitBounds(b.Pad(c.padding))
		c.view.Pulse(res.IDs)
	}
	c.view.Status(res.Message)

	outcome := "match"
	if res.Count == 0 {
		outcome = "no_match"
	}
	c.metrics.Searches.WithLabelValues(outcome).Inc()
	c.metrics.SearchMatches.Observe(float64(res.Count))
	c.logger.Debug("operator search evaluated",
		"query", res.Query,
		"matches", res.Count,
		"operators", res.OperatorCount,
	)
}

func (c *Controller) clearLocked() {
	if c.search == nil {
		return
	}
	c.search = nil
	c.view.SetVisible(c.filterVisible)
	c.view.Status(StatusMessage{})
}
