package isochrone

import "sync"

// Ticket identifies one selection. Results carrying an outdated ticket are
// discarded.
type Ticket struct {
	token  uint64
	SiteID string
}

// OverlayState is a copy of what the overlay currently shows.
type OverlayState struct {
	SiteID string  `json:"site_id,omitempty"`
	Active bool    `json:"active"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Overlay holds the isochrone bands of the currently selected site. Several
// fetches may be in flight; only the one for the latest selection lands.
type Overlay struct {
	mu     sync.Mutex
	token  uint64
	siteID string
	active bool
	result *Result
	errMsg string
}

// Select makes siteID the current selection and clears any shown result.
func (o *Overlay) Select(siteID string) Ticket {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.token++
	o.siteID = siteID
	o.active = true
	o.result = nil
	o.errMsg = ""
	return Ticket{token: o.token, SiteID: siteID}
}

// Apply shows r if t is still the current selection. It reports whether the
// result was applied.
func (o *Overlay) Apply(t Ticket, r Result) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(t) {
		return false
	}
	o.result = &r
	o.errMsg = ""
	return true
}

// Fail records a failure for t if it is still current.
func (o *Overlay) Fail(t Ticket, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(t) {
		return false
	}
	o.result = nil
	o.errMsg = err.Error()
	return true
}

// Off hides the overlay and invalidates every outstanding ticket.
func (o *Overlay) Off() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.token++
	o.siteID = ""
	o.active = false
	o.result = nil
	o.errMsg = ""
}

// State returns a copy of the overlay.
func (o *Overlay) State() OverlayState {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := OverlayState{SiteID: o.siteID, Active: o.active, Error: o.errMsg}
	if o.result != nil {
		r := *o.result
		st.Result = &r
	}
	return st
}

func (o *Overlay) currentLocked(t Ticket) bool {
	return o.active && t.token == o.token
}
