package http

import (
	"errors"
	"log/slog"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/biogas-sitemap/internal/adapter/dataset"
	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/explorer"
	"github.com/couchcryptid/biogas-sitemap/internal/heat"
	"github.com/couchcryptid/biogas-sitemap/internal/isochrone"
	"github.com/couchcryptid/biogas-sitemap/internal/session"
)

// API serves the site, heat, session and isochrone routes.
type API struct {
	dataset  *dataset.Dataset
	heat     *heat.Index
	sessions *session.Store
	fetcher  session.Fetcher
	ranges   []int
	logger   *slog.Logger
}

// NewAPI wires the handlers. A nil fetcher disables the isochrone routes,
// which then answer 503.
func NewAPI(ds *dataset.Dataset, hx *heat.Index, sessions *session.Store, fetcher session.Fetcher, ranges []int, logger *slog.Logger) *API {
	return &API{
		dataset:  ds,
		heat:     hx,
		sessions: sessions,
		fetcher:  fetcher,
		ranges:   ranges,
		logger:   logger,
	}
}

// Routes returns the router mounted under /api.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sites", a.listSites)
	r.Get("/heat/{layer}", a.heatLayer)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getSession)
			r.Delete("/", a.deleteSession)
			r.Put("/filter", a.setFilter)
			r.Put("/search", a.setSearch)
			r.Delete("/search", a.clearSearch)
			r.Post("/isochrones", a.fetchIsochrones)
			r.Delete("/isochrones", a.overlayOff)
		})
	})
	return r
}

type sitesResponse struct {
	Sites    []domain.Site     `json:"sites"`
	Technos  []string          `json:"technos"`
	Statuses []string          `json:"statuses"`
	Colors   map[string]string `json:"colors"`
	Bounds   *domain.Bounds    `json:"bounds,omitempty"`
	Skipped  int               `json:"skipped"`
}

func (a *API) listSites(w http.ResponseWriter, _ *http.Request) {
	resp := sitesResponse{
		Sites:    a.dataset.Sites,
		Technos:  a.dataset.Technos,
		Statuses: a.dataset.Statuses,
		Colors:   a.dataset.Colors,
		Skipped:  a.dataset.Skipped,
	}
	if resp.Sites == nil {
		resp.Sites = []domain.Site{}
	}
	if a.dataset.HasBounds() {
		b := a.dataset.Bounds
		resp.Bounds = &b
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

type heatResponse struct {
	Layer      heat.Layer   `json:"layer"`
	Resolution int          `json:"resolution"`
	Points     []heat.Point `json:"points"`
}

func (a *API) heatLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := heat.ParseLayer(chi.URLParam(r, "layer"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, heatResponse{
		Layer:      layer,
		Resolution: a.heat.Resolution(),
		Points:     a.heat.Points(layer),
	})
}

func (a *API) createSession(w http.ResponseWriter, _ *http.Request) {
	s := a.sessions.Create()
	w.Header().Set("Location", "/api/sessions/"+s.ID)
	sharedobs.WriteJSON(w, http.StatusCreated, s.State())
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.State())
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type filterRequest struct {
	Technos  []string `json:"technos"`
	Statuses []string `json:"statuses"`
	Mode     string   `json:"mode,omitempty"`
}

func (a *API) setFilter(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var mode *explorer.VisibilityMode
	if req.Mode != "" {
		m, err := explorer.ParseVisibilityMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = &m
	}
	s.Controller.UpdateFilter(req.Technos, req.Statuses, mode)
	sharedobs.WriteJSON(w, http.StatusOK, s.State())
}

type searchRequest struct {
	Query string `json:"query"`
}

// setSearch records the query; evaluation happens after the debounce
// interval, so the response reports the pending query.
func (a *API) setSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Controller.SetSearchQuery(req.Query)
	sharedobs.WriteJSON(w, http.StatusAccepted, s.State())
}

func (a *API) clearSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	s.Controller.ClearSearch()
	sharedobs.WriteJSON(w, http.StatusOK, s.State())
}

type isochroneRequest struct {
	SiteID string `json:"site_id"`
	Ranges []int  `json:"ranges,omitempty"`
}

type isochroneResponse struct {
	Result  isochrone.Result            `json:"result"`
	GeoJSON isochrone.FeatureCollection `json:"geojson"`
}

func (a *API) fetchIsochrones(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if a.fetcher == nil {
		writeError(w, http.StatusServiceUnavailable, "isochrones are not configured")
		return
	}
	var body isochroneRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	site, ok := a.dataset.Site(body.SiteID)
	if !ok {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	req := isochrone.Request{SiteID: site.ID, Origin: site.Geo, Ranges: body.Ranges}
	if len(req.Ranges) == 0 {
		req.Ranges = a.ranges
	}

	res, err := s.FetchIsochrone(r.Context(), a.fetcher, req)
	if err != nil {
		a.writeFetchError(w, s.ID, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, isochroneResponse{Result: res, GeoJSON: res.FeatureCollection()})
}

func (a *API) writeFetchError(w http.ResponseWriter, sessionID string, err error) {
	var fe *isochrone.FetchError
	switch {
	case errors.Is(err, isochrone.ErrInvalidRequest):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, session.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &fe):
		sharedobs.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": fe.Err.Error(),
			"tier":  string(fe.Tier),
		})
	default:
		a.logger.Error("isochrone fetch", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) overlayOff(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	s.OverlayOff()
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {id} parameter, writing 404 when it is unknown.
func (a *API) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := a.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return s, ok
}
