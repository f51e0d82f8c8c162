package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/biogas-sitemap/internal/config"
	"github.com/couchcryptid/biogas-sitemap/internal/isochrone"
	"github.com/couchcryptid/biogas-sitemap/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

// ErrQueueFull is returned by Publish when the outbound queue is saturated.
var ErrQueueFull = errors.New("telemetry queue full")

const (
	defaultQueueSize   = 256
	defaultMaxAttempts = 3
	initialBackoff     = 200 * time.Millisecond
	maxBackoff         = 2 * time.Second
	drainTimeout       = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends isochrone outcome events to a Kafka topic. Publish only
// enqueues; Run performs the writes so map requests never wait on the broker.
// It implements isochrone.Publisher.
type Publisher struct {
	writer      messageWriter
	events      chan isochrone.Event
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured telemetry topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.TelemetryTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, defaultQueueSize, logger, metrics)
}

func newPublisher(w messageWriter, queueSize int, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		writer:      w,
		events:      make(chan isochrone.Event, queueSize),
		maxAttempts: defaultMaxAttempts,
		backoff:     initialBackoff,
		logger:      logger,
		metrics:     metrics,
	}
}

// Publish enqueues an event without blocking.
func (p *Publisher) Publish(_ context.Context, event isochrone.Event) error {
	select {
	case p.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued events until ctx is cancelled, then flushes what is left
// with a short deadline.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case e := <-p.events:
			p.write(ctx, e)
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-p.events:
			p.write(ctx, e)
		default:
			return
		}
	}
}

// write sends one event, retrying with exponential backoff.
func (p *Publisher) write(ctx context.Context, event isochrone.Event) {
	msg, err := serializeToMessage(event)
	if err != nil {
		p.metrics.TelemetryEvents.WithLabelValues("failed").Inc()
		p.logger.Error("serialize isochrone event", "site_id", event.SiteID, "error", err)
		return
	}

	backoff := p.backoff
	for attempt := 1; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			p.metrics.TelemetryEvents.WithLabelValues("published").Inc()
			return
		}
		if attempt >= p.maxAttempts || !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	p.metrics.TelemetryEvents.WithLabelValues("failed").Inc()
	p.logger.Warn("publish isochrone event failed",
		"site_id", event.SiteID,
		"attempts", p.maxAttempts,
		"error", err,
	)
}

// Close flushes and closes the underlying Kafka writer. Call it after Run
// has returned.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an event into a Kafka message keyed by site ID.
func serializeToMessage(event isochrone.Event) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize isochrone event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SiteID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(event.Outcome)},
			{Key: "tier", Value: []byte(event.Tier)},
			{Key: "occurred_at", Value: []byte(event.At.Format(time.RFC3339))},
		},
	}, nil
}
