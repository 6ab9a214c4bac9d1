package moderation

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

// AuctionRepository defines the auction storage the gate needs.
type AuctionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	Update(ctx context.Context, a *auction.Auction) error
}

// Gate is the admin-facing approve/reject/schedule surface: a thin wrapper
// over lifecycle transitions that records approval metadata and emits the
// moderation notification intents.
type Gate struct {
	auctions AuctionRepository
	locks    *locks.KeyedMutex
	notifier notification.Dispatcher
	clock    clockwork.Clock
	logger   *zap.Logger

	// defaultDuration is how long an auction runs when approval does not
	// carry an explicit end time.
	defaultDuration time.Duration
}

// NewGate creates the moderation gate.
func NewGate(
	auctions AuctionRepository,
	auctionLocks *locks.KeyedMutex,
	notifier notification.Dispatcher,
	clock clockwork.Clock,
	logger *zap.Logger,
	defaultDuration time.Duration,
) *Gate {
	if defaultDuration <= 0 {
		defaultDuration = 7 * 24 * time.Hour
	}
	return &Gate{
		auctions:        auctions,
		locks:           auctionLocks,
		notifier:        notifier,
		clock:           clock,
		logger:          logger,
		defaultDuration: defaultDuration,
	}
}

// SubmitForReview moves a seller's complete draft into the moderation queue.
func (g *Gate) SubmitForReview(ctx context.Context, auctionID, sellerID uuid.UUID) (*auction.Auction, error) {
	g.locks.Lock(auctionID)
	defer g.locks.Unlock(auctionID)

	a, err := g.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if sellerID != a.SellerID {
		return nil, errors.NewUnauthorizedError("only the seller may submit the listing for review")
	}

	if err := a.SubmitForReview(g.clock.Now()); err != nil {
		return nil, err
	}
	if err := g.auctions.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Approve activates the auction immediately. When the listing carries no end
// time the configured default duration applies from now.
func (g *Gate) Approve(ctx context.Context, auctionID, adminID uuid.UUID) (*auction.Auction, error) {
	g.locks.Lock(auctionID)

	a, err := g.auctions.GetByID(ctx, auctionID)
	if err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}

	now := g.clock.Now()
	endsAt := now.Add(g.defaultDuration)
	if a.EndsAt != nil && a.EndsAt.After(now) {
		endsAt = *a.EndsAt
	}

	if err := a.Approve(adminID, endsAt, now); err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}
	if err := g.auctions.Update(ctx, a); err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}
	g.locks.Unlock(auctionID)

	g.notifier.Notify(ctx, notification.EventAuctionApproved, a.SellerID, map[string]any{
		"auction_id": a.ID.String(),
		"ends_at":    endsAt.Format(time.RFC3339),
	})
	return a, nil
}

// Schedule approves the auction with a future publish time.
func (g *Gate) Schedule(ctx context.Context, auctionID, adminID uuid.UUID, publishAt time.Time) (*auction.Auction, error) {
	g.locks.Lock(auctionID)

	a, err := g.auctions.GetByID(ctx, auctionID)
	if err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}

	now := g.clock.Now()
	endsAt := publishAt.Add(g.defaultDuration)
	if a.EndsAt != nil && a.EndsAt.After(publishAt) {
		endsAt = *a.EndsAt
	}

	if err := a.Schedule(adminID, publishAt, endsAt, now); err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}
	if err := g.auctions.Update(ctx, a); err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}
	g.locks.Unlock(auctionID)

	g.notifier.Notify(ctx, notification.EventAuctionScheduled, a.SellerID, map[string]any{
		"auction_id": a.ID.String(),
		"publish_at": publishAt.Format(time.RFC3339),
	})
	return a, nil
}

// Reject declines the listing with a human-readable reason, persisted on
// the auction for audit.
func (g *Gate) Reject(ctx context.Context, auctionID, adminID uuid.UUID, reason string) (*auction.Auction, error) {
	g.locks.Lock(auctionID)

	a, err := g.auctions.GetByID(ctx, auctionID)
	if err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}

	if err := a.RejectModeration(adminID, reason, g.clock.Now()); err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}
	if err := g.auctions.Update(ctx, a); err != nil {
		g.locks.Unlock(auctionID)
		return nil, err
	}
	g.locks.Unlock(auctionID)

	g.notifier.Notify(ctx, notification.EventAuctionRejected, a.SellerID, map[string]any{
		"auction_id": a.ID.String(),
		"reason":     reason,
	})
	g.logger.Info("auction rejected",
		zap.String("auction_id", a.ID.String()),
		zap.String("admin_id", adminID.String()))
	return a, nil
}
