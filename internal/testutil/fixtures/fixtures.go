// Package fixtures builds domain entities for tests.
package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/bid"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
)

// USD returns cents as a USD Money value.
func USD(cents int64) values.Money {
	return values.MustNewMoneyFromCents(cents, "USD")
}

// USDPtr returns cents as a *Money for optional fields.
func USDPtr(cents int64) *values.Money {
	m := USD(cents)
	return &m
}

// AuctionOption mutates a fixture auction.
type AuctionOption func(*auction.Auction)

// WithReserve sets the reserve price.
func WithReserve(cents int64) AuctionOption {
	return func(a *auction.Auction) { a.ReservePrice = USDPtr(cents) }
}

// WithToken sets the token amount due on acceptance.
func WithToken(cents int64) AuctionOption {
	return func(a *auction.Auction) { a.TokenAmountDue = USD(cents) }
}

// WithSeller overrides the generated seller id.
func WithSeller(sellerID uuid.UUID) AuctionOption {
	return func(a *auction.Auction) { a.SellerID = sellerID }
}

// DraftAuction returns a draft with a $100.00 starting price.
func DraftAuction(now time.Time, opts ...AuctionOption) *auction.Auction {
	a, err := auction.New(uuid.New(), uuid.New(), USD(10000), nil, values.Zero("USD"), now)
	if err != nil {
		panic(err)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PendingAuction returns an auction awaiting moderation.
func PendingAuction(now time.Time, opts ...AuctionOption) *auction.Auction {
	a := DraftAuction(now, opts...)
	if err := a.SubmitForReview(now); err != nil {
		panic(err)
	}
	return a
}

// ActiveAuction returns an approved auction ending 24h from now.
func ActiveAuction(now time.Time, opts ...AuctionOption) *auction.Auction {
	a := PendingAuction(now, opts...)
	if err := a.Approve(uuid.New(), now.Add(24*time.Hour), now); err != nil {
		panic(err)
	}
	return a
}

// EndedAuction returns a closed auction with one winning bid of winCents.
func EndedAuction(now time.Time, winCents int64, opts ...AuctionOption) *auction.Auction {
	a := ActiveAuction(now, opts...)
	b := bid.New(a.ID, uuid.New(), USD(winCents), 1, now)
	a.RecordBid(b.ID, b.BuyerID, b.Amount, b.SequenceNumber, now)
	if _, err := a.Close(now.Add(25 * time.Hour)); err != nil {
		panic(err)
	}
	return a
}

// PlacedBid appends a bid entity consistent with the auction summary.
func PlacedBid(a *auction.Auction, buyerID uuid.UUID, cents int64, now time.Time) *bid.Bid {
	b := bid.New(a.ID, buyerID, USD(cents), a.LastSequence+1, now)
	a.RecordBid(b.ID, buyerID, b.Amount, b.SequenceNumber, now)
	return b
}
