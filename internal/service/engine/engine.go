package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/bid"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
	"github.com/renewcycle/materials-exchange-backend/internal/service/bidding"
	"github.com/renewcycle/materials-exchange-backend/internal/service/lifecycle"
	"github.com/renewcycle/materials-exchange-backend/internal/service/moderation"
	"github.com/renewcycle/materials-exchange-backend/internal/service/settlement"
)

// AuctionRepository defines the auction storage the facade queries directly.
type AuctionRepository interface {
	Create(ctx context.Context, a *auction.Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*auction.Auction, error)
}

// BidRepository defines the bid queries the facade serves.
type BidRepository interface {
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*bid.Bid, error)
}

// ListingCatalog supplies the material listing snapshot when an auction is
// created. Read-only; owned by the storefront catalog service.
type ListingCatalog interface {
	GetListing(ctx context.Context, materialID uuid.UUID) (*Listing, error)
}

// Listing is the catalog's view of a sellable material.
type Listing struct {
	MaterialID          uuid.UUID
	SellerID            uuid.UUID
	StartingPrice       values.Money
	ReservePrice        *values.Money
	TokenAmountRequired values.Money
}

// SnapshotCache is an optional read-through cache for hot auction lookups.
type SnapshotCache interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, bool)
	SetAuction(ctx context.Context, a *auction.Auction)
	Invalidate(ctx context.Context, id uuid.UUID)
}

// BidAnalytics summarizes bidding activity on one auction.
type BidAnalytics struct {
	AuctionID      uuid.UUID `json:"auction_id"`
	BidCount       int       `json:"bid_count"`
	DistinctBidder int       `json:"distinct_bidders"`
	// BidsPerHour is the acceptance rate over the span from the first bid
	// to the last (or to now while the auction is still active).
	BidsPerHour float64 `json:"bids_per_hour"`
}

// Engine is the facade the outer API layer consumes. It composes the bid
// ledger, lifecycle, moderation gate, and token payment enforcer; every
// mutating operation returns the updated entity or a typed error.
type Engine struct {
	auctions AuctionRepository
	bids     BidRepository
	catalog  ListingCatalog
	cache    SnapshotCache

	ledger     *bidding.Ledger
	lifecycle  *lifecycle.Service
	moderation *moderation.Gate
	settlement *settlement.Enforcer

	clock  clockwork.Clock
	logger *zap.Logger
}

// New creates the auction engine facade. cache may be nil.
func New(
	auctions AuctionRepository,
	bids BidRepository,
	catalog ListingCatalog,
	cache SnapshotCache,
	ledger *bidding.Ledger,
	lc *lifecycle.Service,
	gate *moderation.Gate,
	enforcer *settlement.Enforcer,
	clock clockwork.Clock,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		auctions:   auctions,
		bids:       bids,
		catalog:    catalog,
		cache:      cache,
		ledger:     ledger,
		lifecycle:  lc,
		moderation: gate,
		settlement: enforcer,
		clock:      clock,
		logger:     logger,
	}
}

// CreateAuction drafts an auction from the catalog's listing snapshot.
func (e *Engine) CreateAuction(ctx context.Context, materialID uuid.UUID) (*auction.Auction, error) {
	listing, err := e.catalog.GetListing(ctx, materialID)
	if err != nil {
		return nil, err
	}

	a, err := auction.New(listing.MaterialID, listing.SellerID, listing.StartingPrice,
		listing.ReservePrice, listing.TokenAmountRequired, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := e.auctions.Create(ctx, a); err != nil {
		return nil, errors.NewInternalError("failed to create auction").WithCause(err)
	}
	return a, nil
}

// PlaceBid submits a competitive bid through the ledger.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, buyerID uuid.UUID, amount values.Money) (*bid.Bid, error) {
	b, err := e.ledger.SubmitBid(ctx, auctionID, buyerID, amount)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return b, nil
}

// GetAuction returns the auction, served from the snapshot cache when warm.
func (e *Engine) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	if e.cache != nil {
		if a, ok := e.cache.GetAuction(ctx, auctionID); ok {
			return a, nil
		}
	}
	a, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.SetAuction(ctx, a)
	}
	return a, nil
}

// GetBidHistory returns the auction's ledger ordered by sequence number.
func (e *Engine) GetBidHistory(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	return e.ledger.GetBidHistory(ctx, auctionID)
}

// CloseAuctionIfDue ends the auction if its end time has passed. Idempotent.
func (e *Engine) CloseAuctionIfDue(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	a, err := e.lifecycle.CloseIfDue(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// AcceptWinningBid records the seller accepting the highest bid.
func (e *Engine) AcceptWinningBid(ctx context.Context, auctionID, sellerID uuid.UUID) (*auction.Auction, error) {
	a, err := e.lifecycle.AcceptWinningBid(ctx, auctionID, sellerID)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// RejectWinningBid records the seller or an admin declining the highest bid.
func (e *Engine) RejectWinningBid(ctx context.Context, auctionID, actorID uuid.UUID, isAdmin bool) (*auction.Auction, error) {
	a, err := e.lifecycle.RejectWinningBid(ctx, auctionID, actorID, isAdmin)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// VoidBid marks a bid void and recomputes the current highest bid.
func (e *Engine) VoidBid(ctx context.Context, auctionID, bidID, requestedBy uuid.UUID) (*auction.Auction, error) {
	a, err := e.ledger.VoidBid(ctx, auctionID, bidID, requestedBy)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// SubmitForReview queues a draft for moderation.
func (e *Engine) SubmitForReview(ctx context.Context, auctionID, sellerID uuid.UUID) (*auction.Auction, error) {
	a, err := e.moderation.SubmitForReview(ctx, auctionID, sellerID)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// ApproveAuction activates a pending auction.
func (e *Engine) ApproveAuction(ctx context.Context, auctionID, adminID uuid.UUID) (*auction.Auction, error) {
	a, err := e.moderation.Approve(ctx, auctionID, adminID)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// RejectAuction declines a pending auction with an audit reason.
func (e *Engine) RejectAuction(ctx context.Context, auctionID, adminID uuid.UUID, reason string) (*auction.Auction, error) {
	a, err := e.moderation.Reject(ctx, auctionID, adminID, reason)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// ScheduleAuction approves a pending auction with a future publish time.
func (e *Engine) ScheduleAuction(ctx context.Context, auctionID, adminID uuid.UUID, publishAt time.Time) (*auction.Auction, error) {
	a, err := e.moderation.Schedule(ctx, auctionID, adminID, publishAt)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// ConfirmTokenPayment marks the winner's token deposit paid.
func (e *Engine) ConfirmTokenPayment(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	a, err := e.settlement.ConfirmTokenPayment(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, auctionID)
	return a, nil
}

// GetMyBids returns every bid the buyer has placed.
func (e *Engine) GetMyBids(ctx context.Context, buyerID uuid.UUID) ([]*bid.Bid, error) {
	bids, err := e.bids.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list bids").WithCause(err)
	}
	return bids, nil
}

// GetSellerAuctions returns every auction owned by the seller.
func (e *Engine) GetSellerAuctions(ctx context.Context, sellerID uuid.UUID) ([]*auction.Auction, error) {
	auctions, err := e.auctions.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list auctions").WithCause(err)
	}
	return auctions, nil
}

// GetBidAnalytics summarizes ledger activity for one auction.
func (e *Engine) GetBidAnalytics(ctx context.Context, auctionID uuid.UUID) (*BidAnalytics, error) {
	a, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	history, err := e.bids.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list bids").WithCause(err)
	}

	analytics := &BidAnalytics{AuctionID: auctionID}
	bidders := make(map[uuid.UUID]struct{})
	var first, last time.Time
	for _, b := range history {
		if b.Voided {
			continue
		}
		analytics.BidCount++
		bidders[b.BuyerID] = struct{}{}
		if first.IsZero() || b.PlacedAt.Before(first) {
			first = b.PlacedAt
		}
		if b.PlacedAt.After(last) {
			last = b.PlacedAt
		}
	}
	analytics.DistinctBidder = len(bidders)

	if analytics.BidCount > 0 {
		end := last
		if a.Status == auction.StatusActive {
			end = e.clock.Now()
		}
		span := end.Sub(first)
		if span < time.Hour {
			span = time.Hour
		}
		analytics.BidsPerHour = float64(analytics.BidCount) / span.Hours()
	}
	return analytics, nil
}

// SweepDueAuctions runs one pass of every time-driven transition: publishes
// due scheduled auctions, closes due active ones, and sweeps token windows.
// Called by the scheduler; every step is idempotent.
func (e *Engine) SweepDueAuctions(ctx context.Context) {
	e.lifecycle.SweepDue(ctx)
	e.settlement.Sweep(ctx)
}

func (e *Engine) invalidate(ctx context.Context, auctionID uuid.UUID) {
	if e.cache != nil {
		e.cache.Invalidate(ctx, auctionID)
	}
}
