package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/notification"
)

// NotificationRecorder captures dispatched events synchronously for
// assertions; notifications are fire-and-forget so tests cannot wait on them.
type NotificationRecorder struct {
	mu     sync.Mutex
	events []notification.Event
}

func NewNotificationRecorder() *NotificationRecorder {
	return &NotificationRecorder{}
}

func (r *NotificationRecorder) Notify(_ context.Context, kind notification.EventKind, recipient uuid.UUID, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notification.Event{
		Kind:      kind,
		Recipient: recipient,
		Payload:   payload,
	})
}

// Events returns a snapshot of everything dispatched so far.
func (r *NotificationRecorder) Events() []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Event, len(r.events))
	copy(out, r.events)
	return out
}

// CountKind returns how many events of one kind were dispatched.
func (r *NotificationRecorder) CountKind(kind notification.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
