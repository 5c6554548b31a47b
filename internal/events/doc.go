// Package events builds and publishes domain events emitted by the
// aggregator: search.completed after an orchestrator search and
// recommendations.generated after a recommendation batch.
//
// Events are published best-effort. Callers log publish failures and carry
// on; a broken broker never fails a search.
//
// Usage:
//
//	publisher := events.NewKafkaPublisher(events.KafkaConfig{
//	    Brokers: []string{"localhost:9092"},
//	    Topic:   "scholar.events",
//	}, logger)
//	emitter := events.NewEmitter(events.EmitterConfig{ServiceName: "scholar-aggregator"}, publisher)
//
//	err := emitter.Emit(ctx, events.EmitParams{
//	    AggregateID: query,
//	    EventType:   events.TypeSearchCompleted,
//	    Payload:     events.SearchCompleted{Query: query, ResultCount: len(papers)},
//	})
package events
