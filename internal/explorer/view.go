package explorer

import (
	"sync"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
)

// MapView is the rendering surface the controller drives. It owns the
// markers; the controller only says which ones are shown.
type MapView interface {
	// SetVisible replaces the set of shown markers. Markers not listed are
	// hidden, not destroyed.
	SetVisible(ids []string)
	// FitBounds reframes the viewport to the given (already padded) box.
	FitBounds(b domain.Bounds)
	// Pulse briefly highlights the given markers.
	Pulse(ids []string)
	// Status replaces the search status line.
	Status(msg StatusMessage)
}

// Snapshot is a MapView that records the latest state so it can be served
// to a front end. It is safe for concurrent use.
type Snapshot struct {
	mu      sync.RWMutex
	visible []string
	bounds  *domain.Bounds
	pulse   []string
	status  StatusMessage
	fits    int
}

// ViewState is a point-in-time copy of a Snapshot.
type ViewState struct {
	Visible      []string       `json:"visible"`
	VisibleCount int            `json:"visible_count"`
	Bounds       *domain.Bounds `json:"bounds,omitempty"`
	Pulse        []string       `json:"pulse,omitempty"`
	Status       StatusMessage  `json:"status"`
	Reframes     int            `json:"reframes"`
}

// SetVisible records the shown marker IDs and clears any pulse highlight.
func (v *Snapshot) SetVisible(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = append([]string(nil), ids...)
	v.pulse = nil
}

// FitBounds records the reframed viewport and counts the reframe.
func (v *Snapshot) FitBounds(b domain.Bounds) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bounds = &b
	v.fits++
}

// Pulse records the markers to highlight until the next SetVisible.
func (v *Snapshot) Pulse(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pulse = append([]string(nil), ids...)
}

// Status records the latest status line. A zero message clears it.
func (v *Snapshot) Status(msg StatusMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = msg
}

// State returns a copy of the recorded view.
func (v *Snapshot) State() ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()

	st := ViewState{
		Visible:      append([]string{}, v.visible...),
		VisibleCount: len(v.visible),
		Pulse:        append([]string(nil), v.pulse...),
		Status:       v.status,
		Reframes:     v.fits,
	}
	if v.bounds != nil {
		b := *v.bounds
		st.Bounds = &b
	}
	return st
}
