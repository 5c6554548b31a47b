package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultServiceName is stamped into Event.Source when none is configured.
const DefaultServiceName = "scholar-aggregator"

// DefaultPublishTimeout bounds a background publish started by Dispatch.
const DefaultPublishTimeout = 5 * time.Second

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service.
	ServiceName string

	// Now returns the event timestamp. Defaults to time.Now.
	Now func() time.Time

	// PublishTimeout bounds each background publish. Defaults to DefaultPublishTimeout.
	PublishTimeout time.Duration

	// Logger receives background publish failures.
	Logger zerolog.Logger
}

// EmitParams contains the parameters for emitting an event.
type EmitParams struct {
	// AggregateID keys the event: the query for searches, the user for recommendations.
	AggregateID string
	// EventType is the type of event (e.g., "search.completed").
	EventType string
	// Payload is the event payload that will be JSON-serialized.
	Payload interface{}
	// CorrelationID for request tracing (optional).
	CorrelationID string
}

// Emitter builds events enriched with service context and hands them to a
// Publisher. A nil *Emitter drops every event.
type Emitter struct {
	config    EmitterConfig
	publisher Publisher
	inflight  sync.WaitGroup
}

// NewEmitter creates a new Emitter. A nil publisher is replaced by Noop.
func NewEmitter(config EmitterConfig, publisher Publisher) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultPublishTimeout
	}
	if publisher == nil {
		publisher = Noop{}
	}
	return &Emitter{config: config, publisher: publisher}
}

// Build creates an Event from the given parameters without publishing it.
func (e *Emitter) Build(params EmitParams) (Event, error) {
	if params.EventType == "" {
		return Event{}, fmt.Errorf("event_type is required")
	}

	payloadBytes, err := json.Marshal(params.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	return Event{
		EventID:       uuid.New().String(),
		EventType:     params.EventType,
		AggregateID:   params.AggregateID,
		Source:        e.config.ServiceName,
		OccurredAt:    e.config.Now().UTC(),
		CorrelationID: params.CorrelationID,
		Payload:       payloadBytes,
	}, nil
}

// Emit builds and publishes an event.
func (e *Emitter) Emit(ctx context.Context, params EmitParams) error {
	if e == nil {
		return nil
	}
	event, err := e.Build(params)
	if err != nil {
		return err
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	return nil
}

// Dispatch builds the event and publishes it in the background on a context
// detached from ctx, so a slow broker never delays or cancels the caller.
// Only build errors are returned; publish failures are logged.
func (e *Emitter) Dispatch(ctx context.Context, params EmitParams) error {
	if e == nil {
		return nil
	}
	event, err := e.Build(params)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.PublishTimeout)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer cancel()
		if err := e.publisher.Publish(pubCtx, event); err != nil {
			e.config.Logger.Warn().
				Err(err).
				Str("event_type", event.EventType).
				Str("event_id", event.EventID).
				Msg("failed to publish event")
		}
	}()
	return nil
}

// Wait blocks until every publish started by Dispatch has finished.
func (e *Emitter) Wait() {
	if e == nil {
		return
	}
	e.inflight.Wait()
}

// Close waits for in-flight publishes and closes the underlying publisher.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.inflight.Wait()
	return e.publisher.Close()
}
