// Package session keeps per-viewer map state in memory: one explorer
// controller, its recorded view, and the isochrone overlay.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/explorer"
	"github.com/couchcryptid/biogas-sitemap/internal/isochrone"
	"github.com/couchcryptid/biogas-sitemap/internal/observability"
)

// ErrSuperseded is returned when an isochrone result arrives after another
// site was selected or the overlay was switched off.
var ErrSuperseded = errors.New("isochrone result superseded")

// Fetcher resolves isochrone requests.
type Fetcher interface {
	Fetch(ctx context.Context, req isochrone.Request) (isochrone.Result, error)
}

// Session is one viewer's map.
type Session struct {
	ID         string
	CreatedAt  time.Time
	Controller *explorer.Controller
	View       *explorer.Snapshot
	Overlay    *isochrone.Overlay

	metrics  *observability.Metrics
	deleting atomic.Bool
}

// State is the full serialisable state of a session.
type State struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Explorer  explorer.State         `json:"explorer"`
	View      explorer.ViewState     `json:"view"`
	Isochrone isochrone.OverlayState `json:"isochrone"`
}

// State returns a copy of the session state.
func (s *Session) State() State {
	return State{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Explorer:  s.Controller.State(),
		View:      s.View.State(),
		Isochrone: s.Overlay.State(),
	}
}

// FetchIsochrone selects req.SiteID on the overlay and fetches its polygons.
// Only the latest selection lands; an earlier fetch that completes later is
// discarded with ErrSuperseded.
func (s *Session) FetchIsochrone(ctx context.Context, f Fetcher, req isochrone.Request) (isochrone.Result, error) {
	ticket := s.Overlay.Select(req.SiteID)

	res, err := f.Fetch(ctx, req)
	if err != nil {
		if !s.Overlay.Fail(ticket, err) {
			s.metrics.IsochroneStale.Inc()
			return isochrone.Result{}, ErrSuperseded
		}
		return isochrone.Result{}, err
	}
	if !s.Overlay.Apply(ticket, res) {
		s.metrics.IsochroneStale.Inc()
		return isochrone.Result{}, ErrSuperseded
	}
	return res, nil
}

// OverlayOff hides the isochrone overlay and discards in-flight results.
func (s *Session) OverlayOff() {
	s.Overlay.Off()
}

// Close releases the session's timers.
func (s *Session) Close() {
	s.Controller.Close()
	s.Overlay.Off()
}

func newSession(id string, ctrl *explorer.Controller, view *explorer.Snapshot, metrics *observability.Metrics) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  domain.Now(),
		Controller: ctrl,
		View:       view,
		Overlay:    &isochrone.Overlay{},
		metrics:    metrics,
	}
}
