// Package events carries the observability stream: one record per state
// transition, published for external indexing. Emission is strictly
// best-effort; a publish failure must never fail the operation that
// produced the event.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fundlabs-io/vault-engine/internal/observability/metrics"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

type Sink interface {
	Publish(ctx context.Context, event types.Event) error
	Close() error
}

// Emit publishes and swallows failures, counting and logging them instead.
func Emit(ctx context.Context, sink Sink, event types.Event) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, event); err != nil {
		metrics.RecordEventPublishError()
		log.Ctx(ctx).Error().Err(err).
			Str("kind", event.Kind.String()).
			Str("subjectId", event.SubjectID).
			Msg("Failed to publish event")
	}
}

// MemorySink buffers events in memory. Used in tests and as the default
// sink when the AMQP publisher is disabled.
type MemorySink struct {
	mu     sync.Mutex
	events []types.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, event types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Events() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemorySink) Close() error {
	return nil
}
