package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kitchen/inventory/internal/domain/shared"
)

// RecordingEventHandler collects the domain events it receives.
type RecordingEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewRecordingEventHandler subscribes to eventTypes, or to everything when
// none are given.
func NewRecordingEventHandler(eventTypes ...string) *RecordingEventHandler {
	return &RecordingEventHandler{eventTypes: eventTypes}
}

// EventTypes returns the event types this handler subscribes to.
func (h *RecordingEventHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle records the event and returns the configured error.
func (h *RecordingEventHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

// Handled returns a copy of the recorded events.
func (h *RecordingEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]shared.DomainEvent, len(h.handled))
	copy(result, h.handled)
	return result
}

// HandledOfType returns the recorded events of one type.
func (h *RecordingEventHandler) HandledOfType(eventType string) []shared.DomainEvent {
	var result []shared.DomainEvent
	for _, e := range h.Handled() {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// SetError makes Handle fail with err.
func (h *RecordingEventHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// WaitForEvents waits until at least count events of eventType arrived.
func WaitForEvents(t *testing.T, h *RecordingEventHandler, eventType string, count int, timeout time.Duration) {
	t.Helper()
	RequireEventually(t, func() bool {
		return len(h.HandledOfType(eventType)) >= count
	}, timeout, 10*time.Millisecond, "waiting for %d %s events", count, eventType)
}
