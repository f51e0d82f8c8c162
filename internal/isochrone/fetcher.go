package isochrone

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"github.com/couchcryptid/biogas-sitemap/internal/observability"
)

// Transport performs one isochrone call. Implementations must return a
// *NetworkError when no HTTP response was received and a *ProviderError for
// any response that is not a usable polygon payload.
type Transport interface {
	Isochrones(ctx context.Context, req Request) ([]Polygon, error)
}

// Publisher receives one event per finished fetch.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Event describes a finished fetch for telemetry.
type Event struct {
	SiteID     string     `json:"site_id"`
	Origin     domain.Geo `json:"origin"`
	Ranges     []int      `json:"ranges"`
	Outcome    string     `json:"outcome"` // "done" or "failed"
	Tier       Tier       `json:"tier"`
	Attempts   []Tier     `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	At         time.Time  `json:"at"`
}

type state int

const (
	stateIdle state = iota
	stateDirect
	stateProxy
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateDirect:
		return "direct_attempt"
	case stateProxy:
		return "proxy_attempt"
	case stateDone:
		return "done"
	default:
		return "failed"
	}
}

// Fetcher runs the direct → relay state machine. The relay is a recovery
// path only: it is tried at most once, and only after a network-layer
// failure of the direct call.
type Fetcher struct {
	direct    Transport
	proxy     Transport
	publisher Publisher
	maxRange  int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewFetcher creates a Fetcher. Pass a nil proxy to disable the fallback and
// a nil publisher to disable telemetry.
func NewFetcher(direct, proxy Transport, publisher Publisher, maxRange int, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	if maxRange <= 0 {
		maxRange = DefaultMaxRange
	}
	return &Fetcher{
		direct:    direct,
		proxy:     proxy,
		publisher: publisher,
		maxRange:  maxRange,
		logger:    logger,
		metrics:   metrics,
	}
}

// MaxRange returns the largest threshold accepted before transmission.
func (f *Fetcher) MaxRange() int { return f.maxRange }

// Fetch validates the request and drives it to Done or Failed. Failures are
// returned as *FetchError, or wrap ErrInvalidRequest when nothing was sent.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(f.maxRange); err != nil {
		f.metrics.IsochroneRejected.Inc()
		f.logger.Warn("isochrone request rejected", "site_id", req.SiteID, "ranges", req.Ranges, "error", err)
		return Result{}, err
	}

	start := time.Now()
	var (
		polygons []Polygon
		lastErr  error
		tier     Tier
		attempts []Tier
	)

	st := stateDirect
	for st != stateDone && st != stateFailed {
		switch st {
		case stateDirect:
			tier = TierDirect
			polygons, lastErr = f.attempt(ctx, tier, f.direct, req)
		case stateProxy:
			tier = TierProxy
			f.metrics.IsochroneFallbacks.Inc()
			f.logger.Warn("direct isochrone call failed at network layer, retrying via relay",
				"site_id", req.SiteID,
				"error", lastErr,
			)
			polygons, lastErr = f.attempt(ctx, tier, f.proxy, req)
		}
		attempts = append(attempts, tier)
		st = f.next(ctx, st, lastErr)
	}

	event := Event{
		SiteID:     req.SiteID,
		Origin:     req.Origin,
		Ranges:     req.Ranges,
		Outcome:    st.String(),
		Tier:       tier,
		Attempts:   attempts,
		DurationMS: time.Since(start).Milliseconds(),
		At:         domain.Now(),
	}

	if st == stateFailed {
		err := &FetchError{Tier: tier, Err: lastErr}
		event.Error = lastErr.Error()
		f.logger.Error("isochrone request failed",
			"site_id", req.SiteID,
			"tier", tier,
			"attempts", len(attempts),
			"error", lastErr,
		)
		f.publish(ctx, event)
		return Result{}, err
	}

	if tier == TierProxy {
		f.logger.Info("isochrone served via relay", "site_id", req.SiteID, "polygons", len(polygons))
	}
	f.publish(ctx, event)
	return Result{
		SiteID:    req.SiteID,
		Origin:    req.Origin,
		Polygons:  polygons,
		Tier:      tier,
		Attempts:  attempts,
		FetchedAt: event.At,
	}, nil
}

// next is the transition function of the fetch state machine.
func (f *Fetcher) next(ctx context.Context, from state, err error) state {
	if err == nil {
		return stateDone
	}
	if from == stateDirect && f.proxy != nil && IsNetwork(err) && ctx.Err() == nil {
		return stateProxy
	}
	return stateFailed
}

func (f *Fetcher) attempt(ctx context.Context, tier Tier, t Transport, req Request) ([]Polygon, error) {
	start := time.Now()
	polygons, err := t.Isochrones(ctx, req)
	f.metrics.IsochroneDuration.WithLabelValues(string(tier)).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err == nil:
	case IsNetwork(err):
		outcome = "network_error"
	default:
		outcome = "provider_error"
	}
	f.metrics.IsochroneRequests.WithLabelValues(string(tier), outcome).Inc()
	return polygons, err
}

func (f *Fetcher) publish(ctx context.Context, event Event) {
	if f.publisher == nil {
		return
	}
	if err := f.publisher.Publish(ctx, event); err != nil {
		f.metrics.TelemetryEvents.WithLabelValues("dropped").Inc()
		f.logger.Warn("isochrone event dropped", "site_id", event.SiteID, "error", err)
		return
	}
	f.metrics.TelemetryEvents.WithLabelValues("queued").Inc()
}
