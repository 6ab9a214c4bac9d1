package settlement

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

// AuctionRepository defines the auction storage the enforcer needs.
type AuctionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	Update(ctx context.Context, a *auction.Auction) error
}

// WindowRepository stores token payment windows.
type WindowRepository interface {
	Create(ctx context.Context, w *auction.TokenPaymentWindow) error
	GetByAuction(ctx context.Context, auctionID uuid.UUID) (*auction.TokenPaymentWindow, error)
	Update(ctx context.Context, w *auction.TokenPaymentWindow) error
	// ListOpen returns all windows that are neither paid nor expired
	ListOpen(ctx context.Context) ([]*auction.TokenPaymentWindow, error)
}

// MetricsCollector records settlement instrumentation.
type MetricsCollector interface {
	RecordTokenWindowExpired()
}

// Config carries the enforcer's business parameters. Both durations are
// deliberately configurable; the deadline was never a fixed constant in the
// live bidding configuration.
type Config struct {
	// GracePeriod is how long the winner has to pay the token amount.
	GracePeriod time.Duration
	// ReminderLead is how far before the deadline the one-off reminder fires.
	ReminderLead time.Duration
}

// DefaultConfig returns the observed production values: 2 days to pay,
// reminder 24h out.
func DefaultConfig() Config {
	return Config{
		GracePeriod:  48 * time.Hour,
		ReminderLead: 24 * time.Hour,
	}
}

// Enforcer owns the post-win countdown: it opens token payment windows,
// sends the single reminder, and expires windows whose deadline passed.
type Enforcer struct {
	auctions AuctionRepository
	windows  WindowRepository
	locks    *locks.KeyedMutex
	notifier notification.Dispatcher
	metrics  MetricsCollector
	clock    clockwork.Clock
	logger   *zap.Logger
	cfg      Config
}

// NewEnforcer creates the token payment enforcer.
func NewEnforcer(
	auctions AuctionRepository,
	windows WindowRepository,
	auctionLocks *locks.KeyedMutex,
	notifier notification.Dispatcher,
	metrics MetricsCollector,
	clock clockwork.Clock,
	logger *zap.Logger,
	cfg Config,
) *Enforcer {
	if cfg.GracePeriod <= 0 {
		cfg = DefaultConfig()
	}
	return &Enforcer{
		auctions: auctions,
		windows:  windows,
		locks:    auctionLocks,
		notifier: notifier,
		metrics:  metrics,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
	}
}

// OpenWindow starts the countdown for an accepted winning bid. The caller
// (lifecycle accept) holds the auction lock; this only touches storage.
func (e *Enforcer) OpenWindow(ctx context.Context, a *auction.Auction) (*auction.TokenPaymentWindow, error) {
	if !a.HasWinner() || a.WinningBidID == nil {
		return nil, errors.NewInvalidStateError("NO_WINNING_BID", "cannot open a token window without a winner")
	}

	now := e.clock.Now()
	deadline := now.Add(e.cfg.GracePeriod)
	w := auction.NewTokenPaymentWindow(a.ID, *a.WinningBidID, *a.CurrentHighestBidderID, a.TokenAmountDue, deadline, now)
	if err := e.windows.Create(ctx, w); err != nil {
		return nil, errors.NewInternalError("failed to create token payment window").WithCause(err)
	}
	a.SetTokenDeadline(deadline)
	return w, nil
}

// ConfirmTokenPayment marks the window paid and completes the auction.
// Idempotent when already paid; after expiry it fails with DeadlinePassed
// rather than silently succeeding.
func (e *Enforcer) ConfirmTokenPayment(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	e.locks.Lock(auctionID)
	defer e.locks.Unlock(auctionID)

	a, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	w, err := e.windows.GetByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	switch w.Outcome {
	case auction.WindowPaid:
		return a, nil
	case auction.WindowExpired:
		return nil, errors.NewDeadlinePassedError("token payment deadline has passed")
	}

	now := e.clock.Now()
	if now.After(w.Deadline) {
		return nil, errors.NewDeadlinePassedError("token payment deadline has passed")
	}

	if err := a.ConfirmTokenPayment(now); err != nil {
		return nil, err
	}
	w.MarkPaid(now)
	if err := e.windows.Update(ctx, w); err != nil {
		return nil, errors.NewInternalError("failed to update token payment window").WithCause(err)
	}
	if err := e.auctions.Update(ctx, a); err != nil {
		return nil, err
	}

	e.logger.Info("token payment confirmed",
		zap.String("auction_id", auctionID.String()))
	return a, nil
}

// Sweep walks every open window: sends the one-off reminder once the lead
// threshold is crossed, and expires windows whose deadline has passed,
// cancelling the auction. Driven by the scheduler; safe to run repeatedly.
func (e *Enforcer) Sweep(ctx context.Context) {
	open, err := e.windows.ListOpen(ctx)
	if err != nil {
		e.logger.Error("token sweep: listing open windows failed", zap.Error(err))
		return
	}

	now := e.clock.Now()
	for _, w := range open {
		if now.After(w.Deadline) || now.Equal(w.Deadline) {
			e.expire(ctx, w)
			continue
		}
		if !w.ReminderSent && w.Deadline.Sub(now) <= e.cfg.ReminderLead {
			e.remind(ctx, w, now)
		}
	}
}

func (e *Enforcer) remind(ctx context.Context, w *auction.TokenPaymentWindow, now time.Time) {
	e.locks.Lock(w.AuctionID)
	defer e.locks.Unlock(w.AuctionID)

	// re-check under the lock so overlapping sweeps send exactly one reminder
	current, err := e.windows.GetByAuction(ctx, w.AuctionID)
	if err != nil || current.ReminderSent || current.Outcome != auction.WindowOpen {
		return
	}

	current.MarkReminded(now)
	if err := e.windows.Update(ctx, current); err != nil {
		e.logger.Error("token sweep: persisting reminder flag failed",
			zap.String("auction_id", w.AuctionID.String()), zap.Error(err))
		return
	}

	e.notifier.Notify(ctx, notification.EventTokenReminder, current.BuyerID, map[string]any{
		"auction_id":      current.AuctionID.String(),
		"amount_due":      current.AmountDue.String(),
		"hours_remaining": current.HoursRemaining(now),
	})
}

func (e *Enforcer) expire(ctx context.Context, w *auction.TokenPaymentWindow) {
	e.locks.Lock(w.AuctionID)
	defer e.locks.Unlock(w.AuctionID)

	current, err := e.windows.GetByAuction(ctx, w.AuctionID)
	if err != nil || current.Outcome != auction.WindowOpen {
		return
	}

	a, err := e.auctions.GetByID(ctx, w.AuctionID)
	if err != nil {
		e.logger.Error("token sweep: loading auction failed",
			zap.String("auction_id", w.AuctionID.String()), zap.Error(err))
		return
	}

	now := e.clock.Now()
	current.MarkExpired(now)
	if err := e.windows.Update(ctx, current); err != nil {
		e.logger.Error("token sweep: persisting expiry failed",
			zap.String("auction_id", w.AuctionID.String()), zap.Error(err))
		return
	}

	if err := a.ExpireToken(now); err != nil {
		e.logger.Error("token sweep: cancelling auction failed",
			zap.String("auction_id", a.ID.String()), zap.Error(err))
		return
	}
	if err := e.auctions.Update(ctx, a); err != nil {
		e.logger.Error("token sweep: persisting cancellation failed",
			zap.String("auction_id", a.ID.String()), zap.Error(err))
		return
	}

	e.metrics.RecordTokenWindowExpired()
	e.logger.Info("token payment window expired",
		zap.String("auction_id", a.ID.String()))
}
