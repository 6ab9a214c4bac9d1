package bid

import (
	"time"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
)

// Bid is one buyer's offer against an auction. Bids form an append-only
// ledger: a bid is never mutated after acceptance except for the void
// marking, and sequence numbers are never reassigned.
type Bid struct {
	ID        uuid.UUID    `json:"id"`
	AuctionID uuid.UUID    `json:"auction_id"`
	BuyerID   uuid.UUID    `json:"buyer_id"`
	Amount    values.Money `json:"amount"`

	// SequenceNumber is assigned at acceptance, monotonically increasing
	// per auction. Acceptance order, not submission-timestamp order.
	SequenceNumber int64 `json:"sequence_number"`

	Voided   bool       `json:"voided"`
	VoidedAt *time.Time `json:"voided_at,omitempty"`
	VoidedBy *uuid.UUID `json:"voided_by,omitempty"`

	PlacedAt  time.Time `json:"placed_at"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates an accepted Bid with its ledger position. Only the ledger's
// submit path calls this.
func New(auctionID, buyerID uuid.UUID, amount values.Money, seq int64, now time.Time) *Bid {
	return &Bid{
		ID:             uuid.New(),
		AuctionID:      auctionID,
		BuyerID:        buyerID,
		Amount:         amount,
		SequenceNumber: seq,
		PlacedAt:       now,
		CreatedAt:      now,
	}
}

// Void marks the bid logically deleted. Sequence numbers are not renumbered.
func (b *Bid) Void(by uuid.UUID, now time.Time) {
	b.Voided = true
	b.VoidedAt = &now
	b.VoidedBy = &by
}

// Unvoid reverts a void marking whose auction summary update never committed.
func (b *Bid) Unvoid() {
	b.Voided = false
	b.VoidedAt = nil
	b.VoidedBy = nil
}
