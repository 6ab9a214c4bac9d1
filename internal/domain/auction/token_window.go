package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
)

// WindowOutcome is the lifecycle of a token payment window.
type WindowOutcome int

const (
	WindowOpen WindowOutcome = iota
	WindowPaid
	WindowExpired
)

func (o WindowOutcome) String() string {
	switch o {
	case WindowOpen:
		return "open"
	case WindowPaid:
		return "paid"
	case WindowExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// TokenPaymentWindow is the countdown attached to the winning bid of an
// accepted auction: the winner must pay the token amount before Deadline or
// the sweep expires the window and cancels the auction.
type TokenPaymentWindow struct {
	ID           uuid.UUID     `json:"id"`
	AuctionID    uuid.UUID     `json:"auction_id"`
	WinningBidID uuid.UUID     `json:"winning_bid_id"`
	BuyerID      uuid.UUID     `json:"buyer_id"`
	AmountDue    values.Money  `json:"amount_due"`
	Deadline     time.Time     `json:"deadline"`
	ReminderSent bool          `json:"reminder_sent"`
	Outcome      WindowOutcome `json:"outcome"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewTokenPaymentWindow opens a window for the accepted winning bid.
func NewTokenPaymentWindow(auctionID, winningBidID, buyerID uuid.UUID, amount values.Money, deadline, now time.Time) *TokenPaymentWindow {
	return &TokenPaymentWindow{
		ID:           uuid.New(),
		AuctionID:    auctionID,
		WinningBidID: winningBidID,
		BuyerID:      buyerID,
		AmountDue:    amount,
		Deadline:     deadline,
		Outcome:      WindowOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkReminded records that the one-off reminder was dispatched.
func (w *TokenPaymentWindow) MarkReminded(now time.Time) {
	w.ReminderSent = true
	w.UpdatedAt = now
}

// MarkPaid finalizes the window on confirmed payment.
func (w *TokenPaymentWindow) MarkPaid(now time.Time) {
	w.Outcome = WindowPaid
	w.UpdatedAt = now
}

// MarkExpired finalizes the window after a missed deadline.
func (w *TokenPaymentWindow) MarkExpired(now time.Time) {
	w.Outcome = WindowExpired
	w.UpdatedAt = now
}

// HoursRemaining returns whole hours until the deadline, floored at zero.
func (w *TokenPaymentWindow) HoursRemaining(now time.Time) int {
	remaining := w.Deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Hour)
}
