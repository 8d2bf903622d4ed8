package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/mediagateway/gateway/observability"
)

// RecordingSink collects every gateway event.
type RecordingSink struct {
	mu     sync.Mutex
	events []observability.Event
}

// NewRecordingSink 创建 RecordingSink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Emit(_ context.Context, ev observability.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of the collected events.
func (s *RecordingSink) Events() []observability.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]observability.Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfKind filters collected events by kind.
func (s *RecordingSink) OfKind(kind observability.EventKind) []observability.Event {
	var out []observability.Event
	for _, ev := range s.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
