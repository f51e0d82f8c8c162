package session

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/biogas-sitemap/internal/explorer"
	"github.com/couchcryptid/biogas-sitemap/internal/observability"
)

// ControllerFactory builds the controller for a new session around its view.
type ControllerFactory func(view explorer.MapView) *explorer.Controller

// Store holds sessions in a bounded LRU. The least recently used session is
// closed and dropped when the store is full.
type Store struct {
	cache   *lru.Cache[string, *Session]
	factory ControllerFactory
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewStore creates a session store holding at most size sessions.
func NewStore(size int, factory ControllerFactory, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	st := &Store{factory: factory, logger: logger, metrics: metrics}
	cache, err := lru.NewWithEvict[string, *Session](size, st.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	st.cache = cache
	return st, nil
}

// Create starts a new session with the factory's initial filter applied.
func (st *Store) Create() *Session {
	view := &explorer.Snapshot{}
	s := newSession(uuid.NewString(), st.factory(view), view, st.metrics)
	st.cache.Add(s.ID, s)
	st.metrics.SessionsActive.Set(float64(st.cache.Len()))
	st.logger.Debug("session created", "session_id", s.ID)
	return s
}

// Get returns a session and marks it recently used.
func (st *Store) Get(id string) (*Session, bool) {
	return st.cache.Get(id)
}

// Delete closes and removes a session. It reports whether it existed.
func (st *Store) Delete(id string) bool {
	s, ok := st.cache.Peek(id)
	if !ok {
		return false
	}
	s.deleting.Store(true)
	st.cache.Remove(id)
	st.metrics.SessionsActive.Set(float64(st.cache.Len()))
	st.logger.Debug("session deleted", "session_id", id)
	return true
}

// Len returns the number of live sessions.
func (st *Store) Len() int { return st.cache.Len() }

// Close closes every session.
func (st *Store) Close() {
	for _, id := range st.cache.Keys() {
		if s, ok := st.cache.Peek(id); ok {
			s.deleting.Store(true)
		}
	}
	st.cache.Purge()
	st.metrics.SessionsActive.Set(0)
}

func (st *Store) onEvict(id string, s *Session) {
	s.Close()
	if s.deleting.Load() {
		return
	}
	st.metrics.SessionEvictions.Inc()
	st.logger.Info("session evicted", "session_id", id)
}
