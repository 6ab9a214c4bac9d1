package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
)

// Auction is one recyclable-material listing being sold competitively.
// Listing economics (seller, starting price, reserve, token amount) are
// snapshotted from the material catalog at creation time.
type Auction struct {
	ID         uuid.UUID `json:"id"`
	MaterialID uuid.UUID `json:"material_id"`
	SellerID   uuid.UUID `json:"seller_id"`

	StartingPrice values.Money  `json:"starting_price"`
	ReservePrice  *values.Money `json:"reserve_price,omitempty"`

	CurrentHighestBid      *values.Money `json:"current_highest_bid,omitempty"`
	CurrentHighestBidderID *uuid.UUID    `json:"current_highest_bidder_id,omitempty"`
	WinningBidID           *uuid.UUID    `json:"winning_bid_id,omitempty"`

	// LastSequence is the sequence number of the most recently accepted
	// bid; the next accepted bid gets LastSequence+1. Never decremented,
	// voiding does not renumber.
	LastSequence int64 `json:"last_sequence"`

	PublishAt *time.Time `json:"publish_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`

	Status Status `json:"status"`

	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	TokenAmountDue     values.Money       `json:"token_amount_due"`
	TokenDeadline      *time.Time         `json:"token_deadline,omitempty"`
	TokenPaymentStatus TokenPaymentStatus `json:"token_payment_status"`

	// Version supports optimistic concurrency in the repository layer.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a draft auction from a listing snapshot.
func New(materialID, sellerID uuid.UUID, startingPrice values.Money, reservePrice *values.Money, tokenAmount values.Money, now time.Time) (*Auction, error) {
	if !startingPrice.IsPositive() {
		return nil, errors.NewValidationError("INVALID_STARTING_PRICE", "starting price must be positive")
	}
	if reservePrice != nil && reservePrice.Compare(startingPrice) < 0 {
		return nil, errors.NewValidationError("INVALID_RESERVE_PRICE", "reserve price must be at least the starting price")
	}

	return &Auction{
		ID:                 uuid.New(),
		MaterialID:         materialID,
		SellerID:           sellerID,
		StartingPrice:      startingPrice,
		ReservePrice:       reservePrice,
		TokenAmountDue:     tokenAmount,
		TokenPaymentStatus: TokenNotRequired,
		Status:             StatusDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// HasWinner reports whether a highest bidder is recorded. An ended auction
// with a winner is awaiting the seller's accept/reject decision.
func (a *Auction) HasWinner() bool {
	return a.CurrentHighestBidderID != nil && a.CurrentHighestBid != nil
}

// ReserveMet reports whether the current highest bid satisfies the reserve
// price. True when no reserve is configured.
func (a *Auction) ReserveMet() bool {
	if a.ReservePrice == nil {
		return true
	}
	if a.CurrentHighestBid == nil {
		return false
	}
	return a.CurrentHighestBid.Compare(*a.ReservePrice) >= 0
}

// MinimumNextBid returns the lowest acceptable next bid given the minimum
// increment in basis points (10200 = +2%). The first bid only has to meet
// the starting price.
func (a *Auction) MinimumNextBid(incrementBps int64) values.Money {
	if a.CurrentHighestBid == nil {
		return a.StartingPrice
	}
	return a.CurrentHighestBid.MulBasisPoints(incrementBps).RoundUpToCent()
}

// RecordBid updates the auction summary for a freshly accepted bid. Caller
// holds the per-auction lock and has already validated the amount.
func (a *Auction) RecordBid(bidID, bidderID uuid.UUID, amount values.Money, seq int64, now time.Time) {
	a.CurrentHighestBid = &amount
	a.CurrentHighestBidderID = &bidderID
	a.WinningBidID = &bidID
	a.LastSequence = seq
	a.UpdatedAt = now
}

// ResetHighest replaces the auction summary after a void recomputation.
// Passing nils clears the highest bid entirely.
func (a *Auction) ResetHighest(bidID, bidderID *uuid.UUID, amount *values.Money, now time.Time) {
	a.WinningBidID = bidID
	a.CurrentHighestBidderID = bidderID
	a.CurrentHighestBid = amount
	a.UpdatedAt = now
}

// SubmitForReview moves a complete draft into the moderation queue.
func (a *Auction) SubmitForReview(now time.Time) error {
	if err := a.transition(StatusPendingApproval); err != nil {
		return err
	}
	if !a.StartingPrice.IsPositive() || a.MaterialID == uuid.Nil {
		return errors.NewValidationError("LISTING_INCOMPLETE", "listing must have a material and a positive starting price")
	}
	a.Status = StatusPendingApproval
	a.UpdatedAt = now
	return nil
}

// Approve activates the auction immediately. endsAt must be in the future.
func (a *Auction) Approve(adminID uuid.UUID, endsAt, now time.Time) error {
	if err := a.transition(StatusActive); err != nil {
		return err
	}
	if !endsAt.After(now) {
		return errors.NewValidationError("INVALID_END_TIME", "auction end time must be in the future")
	}
	a.Status = StatusActive
	a.ApprovedBy = &adminID
	a.EndsAt = &endsAt
	a.UpdatedAt = now
	return nil
}

// Schedule approves the auction with a future publish time.
func (a *Auction) Schedule(adminID uuid.UUID, publishAt, endsAt, now time.Time) error {
	if err := a.transition(StatusScheduled); err != nil {
		return err
	}
	if !publishAt.After(now) {
		return errors.NewValidationError("INVALID_PUBLISH_TIME", "publish time must be in the future")
	}
	if !endsAt.After(publishAt) {
		return errors.NewValidationError("INVALID_END_TIME", "auction end time must be after the publish time")
	}
	a.Status = StatusScheduled
	a.ApprovedBy = &adminID
	a.PublishAt = &publishAt
	a.EndsAt = &endsAt
	a.UpdatedAt = now
	return nil
}

// RejectModeration records an admin rejection with its audit reason.
func (a *Auction) RejectModeration(adminID uuid.UUID, reason string, now time.Time) error {
	if err := a.transition(StatusRejected); err != nil {
		return err
	}
	if reason == "" {
		return errors.NewValidationError("MISSING_REJECTION_REASON", "rejection reason is required")
	}
	a.Status = StatusRejected
	a.RejectionReason = reason
	a.UpdatedAt = now
	return nil
}

// Publish opens a scheduled auction for bidding once its publish time is due.
func (a *Auction) Publish(now time.Time) error {
	if err := a.transition(StatusActive); err != nil {
		return err
	}
	if a.ApprovedBy == nil {
		return errors.NewInvalidStateError("NOT_APPROVED", "scheduled auction is missing admin approval")
	}
	a.Status = StatusActive
	a.UpdatedAt = now
	return nil
}

// CloseOutcome describes what a close decided.
type CloseOutcome int

const (
	CloseOutcomeAwaitingDecision CloseOutcome = iota // winner, reserve met; seller decides next
	CloseOutcomeNoSale                               // no bids or reserve unmet; auction cancelled
)

// Close ends an active auction at its end time. With a winner whose bid
// meets the reserve the auction stays ended awaiting the seller decision;
// otherwise it is cancelled with no winner.
func (a *Auction) Close(now time.Time) (CloseOutcome, error) {
	if err := a.transition(StatusEnded); err != nil {
		return 0, err
	}
	if a.HasWinner() && a.ReserveMet() {
		a.Status = StatusEnded
		a.UpdatedAt = now
		return CloseOutcomeAwaitingDecision, nil
	}
	a.Status = StatusCancelled
	a.WinningBidID = nil
	a.CurrentHighestBidderID = nil
	a.CurrentHighestBid = nil
	a.UpdatedAt = now
	return CloseOutcomeNoSale, nil
}

// AcceptWinningBid records the seller accepting the highest bid. When a
// token amount is configured the payment clock starts; deadline is set by
// the settlement service.
func (a *Auction) AcceptWinningBid(now time.Time) error {
	if err := a.transition(StatusBidAccepted); err != nil {
		return err
	}
	if !a.HasWinner() {
		return errors.NewInvalidStateError("NO_WINNING_BID", "auction ended without a winning bid")
	}
	a.Status = StatusBidAccepted
	if a.TokenAmountDue.IsPositive() {
		a.TokenPaymentStatus = TokenPending
	}
	a.UpdatedAt = now
	return nil
}

// RejectWinningBid records the seller or an admin declining the highest bid.
func (a *Auction) RejectWinningBid(now time.Time) error {
	if err := a.transition(StatusBidRejected); err != nil {
		return err
	}
	a.Status = StatusBidRejected
	a.UpdatedAt = now
	return nil
}

// SetTokenDeadline stamps the absolute payment deadline on acceptance.
func (a *Auction) SetTokenDeadline(deadline time.Time) {
	a.TokenDeadline = &deadline
}

// ConfirmTokenPayment completes the auction when the token deposit arrives
// before the deadline.
func (a *Auction) ConfirmTokenPayment(now time.Time) error {
	if err := a.transition(StatusCompleted); err != nil {
		return err
	}
	if a.TokenDeadline != nil && now.After(*a.TokenDeadline) {
		return errors.NewDeadlinePassedError("token payment deadline has passed")
	}
	a.Status = StatusCompleted
	if a.TokenPaymentStatus == TokenPending {
		a.TokenPaymentStatus = TokenPaid
	}
	a.UpdatedAt = now
	return nil
}

// ExpireToken cancels the auction after a missed token deadline.
func (a *Auction) ExpireToken(now time.Time) error {
	if err := a.transition(StatusCancelled); err != nil {
		return err
	}
	a.Status = StatusCancelled
	a.TokenPaymentStatus = TokenExpired
	a.UpdatedAt = now
	return nil
}

// transitions is the closed table of allowed status changes. Anything not
// listed is rejected; there are no silent no-ops at this level.
var transitions = map[Status][]Status{
	StatusDraft:           {StatusPendingApproval},
	StatusPendingApproval: {StatusActive, StatusScheduled, StatusRejected},
	StatusScheduled:       {StatusActive},
	StatusActive:          {StatusEnded},
	StatusEnded:           {StatusBidAccepted, StatusBidRejected, StatusCancelled},
	StatusBidAccepted:     {StatusCompleted, StatusCancelled},
}

func (a *Auction) transition(to Status) error {
	for _, s := range transitions[a.Status] {
		if s == to {
			return nil
		}
	}
	return errors.NewInvalidStateError("INVALID_TRANSITION",
		"cannot transition auction from "+a.Status.String()+" to "+to.String())
}
