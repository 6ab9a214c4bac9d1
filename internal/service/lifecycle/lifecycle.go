package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/locks"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/notification"
)

// AuctionRepository defines the auction storage the lifecycle needs.
type AuctionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	Update(ctx context.Context, a *auction.Auction) error
	// ListDueForPublish returns scheduled auctions whose publish time has passed
	ListDueForPublish(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// ListDueForClose returns active auctions whose end time has passed
	ListDueForClose(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// WindowOpener starts the token payment countdown for an accepted win. The
// caller holds the auction lock; implementations must not lock again.
type WindowOpener interface {
	OpenWindow(ctx context.Context, a *auction.Auction) (*auction.TokenPaymentWindow, error)
}

// MetricsCollector records lifecycle instrumentation.
type MetricsCollector interface {
	RecordAuctionClosed(outcome string)
}

// Service drives auctions through their stages. Time-driven transitions
// (publish, close) are idempotent: duplicate timer fires and sweep overlap
// re-observe the already-transitioned state and do nothing.
type Service struct {
	auctions AuctionRepository
	locks    *locks.KeyedMutex
	notifier notification.Dispatcher
	metrics  MetricsCollector
	windows  WindowOpener
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewService creates the lifecycle service. windows may be nil when no token
// payment enforcement is configured.
func NewService(
	auctions AuctionRepository,
	auctionLocks *locks.KeyedMutex,
	notifier notification.Dispatcher,
	metrics MetricsCollector,
	windows WindowOpener,
	clock clockwork.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		auctions: auctions,
		locks:    auctionLocks,
		notifier: notifier,
		metrics:  metrics,
		windows:  windows,
		clock:    clock,
		logger:   logger,
	}
}

// PublishIfDue opens a scheduled auction once its publish time arrives.
// No-op when the auction has already moved on or is not yet due.
func (s *Service) PublishIfDue(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	s.locks.Lock(auctionID)
	defer s.locks.Unlock(auctionID)

	a, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if a.Status != auction.StatusScheduled {
		// already published (or further along); duplicate timer fire
		return a, nil
	}

	now := s.clock.Now()
	if a.PublishAt == nil || a.PublishAt.After(now) {
		return a, nil
	}

	if err := a.Publish(now); err != nil {
		return nil, err
	}
	if err := s.auctions.Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("auction published",
		zap.String("auction_id", a.ID.String()))
	return a, nil
}

// CloseIfDue ends an active auction once its end time arrives. Re-closing
// an already-ended auction is a no-op with no duplicate notifications.
func (s *Service) CloseIfDue(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	s.locks.Lock(auctionID)
	defer s.locks.Unlock(auctionID)

	a, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	switch a.Status {
	case auction.StatusEnded, auction.StatusBidAccepted, auction.StatusBidRejected,
		auction.StatusCancelled, auction.StatusCompleted:
		return a, nil
	case auction.StatusActive:
	default:
		return nil, errors.NewInvalidStateError("AUCTION_NOT_ACTIVE",
			"cannot close auction in status "+a.Status.String())
	}

	now := s.clock.Now()
	if a.EndsAt == nil || a.EndsAt.After(now) {
		return a, nil
	}

	outcome, err := a.Close(now)
	if err != nil {
		return nil, err
	}
	if err := s.auctions.Update(ctx, a); err != nil {
		return nil, err
	}

	switch outcome {
	case auction.CloseOutcomeAwaitingDecision:
		s.metrics.RecordAuctionClosed("awaiting_decision")
	case auction.CloseOutcomeNoSale:
		s.metrics.RecordAuctionClosed("no_sale")
	}

	s.logger.Info("auction closed",
		zap.String("auction_id", a.ID.String()),
		zap.String("status", a.Status.String()))
	return a, nil
}

// AcceptWinningBid records the seller accepting the highest bid. With a
// token amount configured the payment window opens; otherwise the auction
// completes immediately.
func (s *Service) AcceptWinningBid(ctx context.Context, auctionID, sellerID uuid.UUID) (*auction.Auction, error) {
	s.locks.Lock(auctionID)

	a, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		s.locks.Unlock(auctionID)
		return nil, err
	}
	if sellerID != a.SellerID {
		s.locks.Unlock(auctionID)
		return nil, errors.NewUnauthorizedError("only the seller may accept the winning bid")
	}

	now := s.clock.Now()
	if err := a.AcceptWinningBid(now); err != nil {
		s.locks.Unlock(auctionID)
		return nil, err
	}

	winner := *a.CurrentHighestBidderID
	payload := map[string]any{
		"auction_id": a.ID.String(),
		"amount":     a.CurrentHighestBid.String(),
	}

	var window *auction.TokenPaymentWindow
	if a.TokenAmountDue.IsPositive() && s.windows != nil {
		window, err = s.windows.OpenWindow(ctx, a)
		if err != nil {
			s.locks.Unlock(auctionID)
			return nil, err
		}
		payload["token_amount"] = window.AmountDue.String()
		payload["token_deadline"] = window.Deadline.Format(time.RFC3339)
	} else {
		// no deposit owed, nothing left to settle
		if err := a.ConfirmTokenPayment(now); err != nil {
			s.locks.Unlock(auctionID)
			return nil, err
		}
	}

	if err := s.auctions.Update(ctx, a); err != nil {
		s.locks.Unlock(auctionID)
		return nil, err
	}
	s.locks.Unlock(auctionID)

	s.notifier.Notify(ctx, notification.EventBidWon, winner, payload)
	return a, nil
}

// RejectWinningBid records the seller or an admin declining the highest bid.
func (s *Service) RejectWinningBid(ctx context.Context, auctionID, actorID uuid.UUID, isAdmin bool) (*auction.Auction, error) {
	s.locks.Lock(auctionID)
	defer s.locks.Unlock(auctionID)

	a, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && actorID != a.SellerID {
		return nil, errors.NewUnauthorizedError("only the seller or an admin may reject the winning bid")
	}

	if err := a.RejectWinningBid(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.auctions.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SweepDue publishes and closes every auction whose timestamp has passed.
// Safe to run concurrently with live traffic and with itself.
func (s *Service) SweepDue(ctx context.Context) {
	now := s.clock.Now()

	duePublish, err := s.auctions.ListDueForPublish(ctx, now)
	if err != nil {
		s.logger.Error("sweep: listing due publishes failed", zap.Error(err))
	}
	for _, id := range duePublish {
		if _, err := s.PublishIfDue(ctx, id); err != nil {
			s.logger.Error("sweep: publish failed",
				zap.String("auction_id", id.String()), zap.Error(err))
		}
	}

	dueClose, err := s.auctions.ListDueForClose(ctx, now)
	if err != nil {
		s.logger.Error("sweep: listing due closes failed", zap.Error(err))
		return
	}
	for _, id := range dueClose {
		if _, err := s.CloseIfDue(ctx, id); err != nil {
			s.logger.Error("sweep: close failed",
				zap.String("auction_id", id.String()), zap.Error(err))
		}
	}
}
