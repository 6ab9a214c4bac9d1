package bidding

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/bid"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/locks"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/notification"
)

const updateAttempts = 3

// Config carries the ledger's business parameters.
type Config struct {
	// MinIncrementBps is the minimum raise over the current highest bid in
	// basis points; 10200 means each bid must be at least 102% of the last.
	MinIncrementBps int64
	// BidRateLimit / BidRateBurst throttle submissions per buyer.
	BidRateLimit rate.Limit
	BidRateBurst int
}

// DefaultConfig returns the production defaults (2% increment, 5 bids/s).
func DefaultConfig() Config {
	return Config{
		MinIncrementBps: 10200,
		BidRateLimit:    rate.Limit(5),
		BidRateBurst:    10,
	}
}

// Ledger is the single source of truth for "what is the current winning
// bid" and the only place new bids are validated and appended. All
// read-validate-write cycles run under the per-auction lock.
type Ledger struct {
	auctions AuctionRepository
	bids     BidRepository
	locks    *locks.KeyedMutex
	notifier notification.Dispatcher
	metrics  MetricsCollector
	feed     BidFeed
	clock    clockwork.Clock
	logger   *zap.Logger
	cfg      Config

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

// NewLedger creates the bid ledger. feed may be nil when no live feed is
// attached (tests, batch tooling).
func NewLedger(
	auctions AuctionRepository,
	bids BidRepository,
	auctionLocks *locks.KeyedMutex,
	notifier notification.Dispatcher,
	metrics MetricsCollector,
	feed BidFeed,
	clock clockwork.Clock,
	logger *zap.Logger,
	cfg Config,
) *Ledger {
	if cfg.MinIncrementBps == 0 {
		cfg = DefaultConfig()
	}
	return &Ledger{
		auctions: auctions,
		bids:     bids,
		locks:    auctionLocks,
		notifier: notifier,
		metrics:  metrics,
		feed:     feed,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

// SubmitBid validates and appends a bid atomically with the auction summary
// update. Preconditions fail fast in order: auction exists, status active,
// before end time, not the seller, amount meets the minimum increment.
func (l *Ledger) SubmitBid(ctx context.Context, auctionID, buyerID uuid.UUID, amount values.Money) (*bid.Bid, error) {
	if auctionID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_AUCTION_ID", "auction ID is required")
	}
	if buyerID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_BUYER_ID", "buyer ID is required")
	}
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("INVALID_BID_AMOUNT", "bid amount must be positive")
	}

	if !l.buyerLimiter(buyerID).Allow() {
		l.metrics.RecordBidRejected("rate_limited")
		return nil, errors.NewRateLimitError("bid rate limit exceeded")
	}

	l.locks.Lock(auctionID)

	a, err := l.auctions.GetByID(ctx, auctionID)
	if err != nil {
		l.locks.Unlock(auctionID)
		return nil, err
	}

	now := l.clock.Now()

	if err := l.validateBid(a, buyerID, amount, now); err != nil {
		l.locks.Unlock(auctionID)
		return nil, err
	}

	prevBidder := a.CurrentHighestBidderID

	newBid := bid.New(auctionID, buyerID, amount, a.LastSequence+1, now)
	if err := l.bids.Append(ctx, newBid); err != nil {
		l.locks.Unlock(auctionID)
		return nil, errors.NewInternalError("failed to append bid").WithCause(err)
	}

	a.RecordBid(newBid.ID, buyerID, amount, newBid.SequenceNumber, now)
	if err := l.updateWithRetry(ctx, a); err != nil {
		// The bid is already durable; without compensation its sequence
		// number stays taken and every later bid collides on it.
		if delErr := l.bids.Delete(ctx, newBid.ID); delErr != nil {
			l.logger.Error("orphan bid left after failed summary update",
				zap.String("auction_id", auctionID.String()),
				zap.String("bid_id", newBid.ID.String()),
				zap.Error(delErr))
		}
		l.locks.Unlock(auctionID)
		return nil, err
	}

	l.locks.Unlock(auctionID)

	// Side effects only after the mutation committed and the lock is free.
	l.notifier.Notify(ctx, notification.EventBidPlaced, buyerID, map[string]any{
		"auction_id": auctionID.String(),
		"bid_id":     newBid.ID.String(),
		"amount":     amount.String(),
	})
	if prevBidder != nil && *prevBidder != buyerID {
		l.notifier.Notify(ctx, notification.EventBidOutbid, *prevBidder, map[string]any{
			"auction_id": auctionID.String(),
			"new_amount": amount.String(),
		})
	}
	l.metrics.RecordBidPlaced(amount.ToCents())
	if l.feed != nil {
		l.feed.BroadcastBid(auctionID, newBid)
	}

	return newBid, nil
}

// GetBidHistory returns all bids for an auction ordered by sequence number.
func (l *Ledger) GetBidHistory(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	history, err := l.bids.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list bids").WithCause(err)
	}
	return history, nil
}

// VoidBid marks a bid void (seller-initiated fraud correction) and
// recomputes the current highest bid from the remaining non-void ledger.
// Sequence numbers are never renumbered.
func (l *Ledger) VoidBid(ctx context.Context, auctionID, bidID, requestedBy uuid.UUID) (*auction.Auction, error) {
	l.locks.Lock(auctionID)
	defer l.locks.Unlock(auctionID)

	a, err := l.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if requestedBy != a.SellerID {
		return nil, errors.NewUnauthorizedError("only the seller may void bids")
	}

	target, err := l.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if target.AuctionID != auctionID {
		return nil, errors.ErrBidNotFound
	}
	if target.Voided {
		return a, nil
	}

	if a.Status == auction.StatusBidAccepted && a.WinningBidID != nil && *a.WinningBidID == bidID {
		return nil, errors.NewInvalidStateError("WINNING_BID_ACCEPTED",
			"cannot void the accepted winning bid of a closed auction")
	}

	now := l.clock.Now()
	target.Void(requestedBy, now)
	if err := l.bids.Update(ctx, target); err != nil {
		return nil, errors.NewInternalError("failed to void bid").WithCause(err)
	}

	history, err := l.bids.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list bids").WithCause(err)
	}

	var top *bid.Bid
	for _, b := range history {
		if b.Voided {
			continue
		}
		if top == nil || b.Amount.Compare(top.Amount) > 0 {
			top = b
		}
	}

	if top != nil {
		a.ResetHighest(&top.ID, &top.BuyerID, &top.Amount, now)
	} else {
		a.ResetHighest(nil, nil, nil, now)
	}

	if err := l.updateWithRetry(ctx, a); err != nil {
		// Same compensation as SubmitBid: the void marking is already
		// durable, so revert it rather than leave the summary stale.
		target.Unvoid()
		if revErr := l.bids.Update(ctx, target); revErr != nil {
			l.logger.Error("void marking left after failed summary update",
				zap.String("auction_id", auctionID.String()),
				zap.String("bid_id", target.ID.String()),
				zap.Error(revErr))
		}
		return nil, err
	}
	return a, nil
}

func (l *Ledger) validateBid(a *auction.Auction, buyerID uuid.UUID, amount values.Money, now time.Time) error {
	if a.Status != auction.StatusActive {
		l.metrics.RecordBidRejected("not_active")
		return errors.ErrAuctionNotActive
	}
	if a.EndsAt == nil || !now.Before(*a.EndsAt) {
		l.metrics.RecordBidRejected("ended")
		return errors.NewValidationError("AUCTION_ENDED", "auction end time has passed")
	}
	if buyerID == a.SellerID {
		l.metrics.RecordBidRejected("self_bid")
		return errors.NewValidationError("SELF_BID", "sellers cannot bid on their own listings")
	}

	minimum := a.MinimumNextBid(l.cfg.MinIncrementBps)
	if amount.Compare(minimum) < 0 {
		l.metrics.RecordBidRejected("below_minimum")
		details := map[string]interface{}{
			"minimum_next_bid": minimum.String(),
		}
		if a.CurrentHighestBid != nil {
			details["current_highest_bid"] = a.CurrentHighestBid.String()
		}
		return errors.NewValidationError("BID_BELOW_MINIMUM",
			"bid amount is below the minimum acceptable next bid").WithDetails(details)
	}
	return nil
}

// updateWithRetry persists the auction, retrying transient failures a
// bounded number of times. Exhaustion surfaces as a conflict, never as an
// accepted mutation.
func (l *Ledger) updateWithRetry(ctx context.Context, a *auction.Auction) error {
	var lastErr error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		lastErr = l.auctions.Update(ctx, a)
		if lastErr == nil {
			return nil
		}
		if !errors.IsRetryable(lastErr) {
			return lastErr
		}
		l.logger.Warn("auction update retry",
			zap.String("auction_id", a.ID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return errors.NewConflictError("auction update retries exhausted").WithCause(lastErr)
}

func (l *Ledger) buyerLimiter(buyerID uuid.UUID) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[buyerID]
	if !ok {
		lim = rate.NewLimiter(l.cfg.BidRateLimit, l.cfg.BidRateBurst)
		l.limiters[buyerID] = lim
	}
	return lim
}
