package notification

import (
	"context"

	"github.com/google/uuid"
)

// EventKind names the outbound notification intents the engine emits.
type EventKind string

const (
	EventBidPlaced        EventKind = "bid_placed"
	EventBidOutbid        EventKind = "bid_outbid"
	EventBidWon           EventKind = "bid_won"
	EventTokenReminder    EventKind = "token_reminder"
	EventAuctionApproved  EventKind = "auction_approved"
	EventAuctionScheduled EventKind = "auction_scheduled"
	EventAuctionRejected  EventKind = "auction_rejected"
)

// Dispatcher requests outbound notifications. Delivery is best-effort and
// never part of the consistency boundary: implementations must not block the
// caller on delivery, and failures must not propagate back into the state
// transition that triggered them.
type Dispatcher interface {
	Notify(ctx context.Context, kind EventKind, recipient uuid.UUID, payload map[string]any)
}

// Sink receives queued events for actual delivery (email/SMS adapters live
// outside this repository).
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Event is one queued notification intent.
type Event struct {
	Kind      EventKind
	Recipient uuid.UUID
	Payload   map[string]any
}
