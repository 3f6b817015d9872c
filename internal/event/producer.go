// Package event publishes catalog filter-state changes to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/utafrali/shopcatalog/internal/domain"
	pkgkafka "github.com/utafrali/shopcatalog/pkg/kafka"
	"github.com/utafrali/shopcatalog/pkg/logger"
)

// TopicFilterChanged carries one event per committed filter-state change.
const TopicFilterChanged = "catalog.filter.changed"

// AggregateTypeFilterState is the aggregate type of filter-state events.
const AggregateTypeFilterState = "catalog_filter_state"

// SourceCatalogService identifies events originating from this service.
const SourceCatalogService = "catalog-service"

// DefaultQueueSize is the number of events buffered ahead of Kafka.
const DefaultQueueSize = 256

// EventPublisher writes an envelope to a topic. *pkgkafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// FilterChangedData is the payload of a catalog.filter.changed event.
type FilterChangedData struct {
	SessionID        string                `json:"session_id"`
	UserID           string                `json:"user_id,omitempty"`
	Criteria         domain.FilterCriteria `json:"criteria"`
	HasActiveFilters bool                  `json:"has_active_filters"`
}

type pending struct {
	ctx   context.Context
	event *pkgkafka.Event
}

// Producer turns filter-state notifications into Kafka events. Notifications
// are queued and published by Run, so a slow broker never holds up the
// store that raised them. When the queue is full the event is dropped.
type Producer struct {
	kafka   EventPublisher
	logger  *slog.Logger
	queue   chan pending
	timeout time.Duration

	mu      sync.Mutex
	dropped int
}

// NewProducer creates a Producer. queueSize <= 0 uses DefaultQueueSize.
func NewProducer(kafka EventPublisher, logger *slog.Logger, queueSize int) *Producer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Producer{
		kafka:   kafka,
		logger:  logger,
		queue:   make(chan pending, queueSize),
		timeout: 5 * time.Second,
	}
}

// FilterChanged builds the event for one session's new criteria and queues
// it. It has the shape of state.SessionSubscriber.
func (p *Producer) FilterChanged(ctx context.Context, sessionID string, criteria domain.FilterCriteria) error {
	data := FilterChangedData{
		SessionID:        sessionID,
		UserID:           logger.UserIDFromContext(ctx),
		Criteria:         criteria,
		HasActiveFilters: !criteria.IsEmpty(),
	}

	event, err := pkgkafka.NewEvent(TopicFilterChanged, sessionID, AggregateTypeFilterState, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create catalog.filter.changed event: %w", err)
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	event.WithMetadata("has_active_filters", strconv.FormatBool(data.HasActiveFilters))
	if data.UserID != "" {
		event.WithMetadata("user_id", data.UserID)
	}

	select {
	case p.queue <- pending{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		return fmt.Errorf("event queue full, dropped catalog.filter.changed for session %s", sessionID)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *Producer) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// still queued.
func (p *Producer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case item := <-p.queue:
			p.publish(item)
		}
	}
}

func (p *Producer) flush() {
	for {
		select {
		case item := <-p.queue:
			p.publish(item)
		default:
			return
		}
	}
}

func (p *Producer) publish(item pending) {
	ctx, cancel := context.WithTimeout(item.ctx, p.timeout)
	defer cancel()

	if err := p.kafka.Publish(ctx, TopicFilterChanged, item.event); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish catalog.filter.changed event",
			slog.String("session_id", item.event.AggregateID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.DebugContext(ctx, "published catalog.filter.changed event",
		slog.String("session_id", item.event.AggregateID),
	)
}
