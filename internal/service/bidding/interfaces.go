package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/bid"
)

// AuctionRepository defines the auction storage the ledger needs.
type AuctionRepository interface {
	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	// Update persists an auction with an optimistic version check
	Update(ctx context.Context, a *auction.Auction) error
}

// BidRepository defines the interface for the append-only bid ledger.
type BidRepository interface {
	// Append stores a newly accepted bid
	Append(ctx context.Context, b *bid.Bid) error
	// GetByID retrieves a bid by ID
	GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error)
	// Update persists void markings; bids are otherwise immutable
	Update(ctx context.Context, b *bid.Bid) error
	// Delete removes a bid whose summary update never committed
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByAuction returns all bids for an auction ordered by sequence number
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
	// ListByBuyer returns all bids placed by a buyer
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*bid.Bid, error)
}

// MetricsCollector records bidding instrumentation.
type MetricsCollector interface {
	RecordBidPlaced(amountCents int64)
	RecordBidRejected(reason string)
	RecordAuctionClosed(outcome string)
	RecordTokenWindowExpired()
	RecordSweepDuration(d time.Duration)
}

// BidFeed pushes accepted bids to live subscribers (websocket hub).
type BidFeed interface {
	BroadcastBid(auctionID uuid.UUID, b *bid.Bid)
}
