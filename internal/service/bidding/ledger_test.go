package bidding_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/locks"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/notification"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/repository"
	"github.com/renewcycle/materials-exchange-backend/internal/metrics"
	"github.com/renewcycle/materials-exchange-backend/internal/service/bidding"
	"github.com/renewcycle/materials-exchange-backend/internal/testutil/fixtures"
	"github.com/renewcycle/materials-exchange-backend/internal/testutil/mocks"
)

type ledgerHarness struct {
	ledger   *bidding.Ledger
	store    *repository.MemoryStore
	notifier *mocks.NotificationRecorder
	clock    *clockwork.FakeClock
}

func newLedgerHarness(t *testing.T, cfg bidding.Config) *ledgerHarness {
	t.Helper()
	store := repository.NewMemoryStore()
	notifier := mocks.NewNotificationRecorder()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	return &ledgerHarness{
		ledger: bidding.NewLedger(store.Auctions(), store.Bids(), locks.NewKeyedMutex(),
			notifier, metrics.NoopCollector{}, nil, clock, zap.NewNop(), cfg),
		store:    store,
		notifier: notifier,
		clock:    clock,
	}
}

func (h *ledgerHarness) seedActive(t *testing.T, opts ...fixtures.AuctionOption) *auction.Auction {
	t.Helper()
	a := fixtures.ActiveAuction(h.clock.Now(), opts...)
	require.NoError(t, h.store.Auctions().Create(context.Background(), a))
	return a
}

func TestSubmitBidFirstBidMeetsStartingPrice(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)
	buyer := uuid.New()

	b, err := h.ledger.SubmitBid(context.Background(), a.ID, buyer, fixtures.USD(10000))
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.SequenceNumber)
	assert.Equal(t, buyer, b.BuyerID)

	stored, err := h.store.Auctions().GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentHighestBid)
	assert.Equal(t, int64(10000), stored.CurrentHighestBid.ToCents())
	assert.Equal(t, int64(1), stored.LastSequence)

	assert.Equal(t, 1, h.notifier.CountKind(notification.EventBidPlaced))
	assert.Equal(t, 0, h.notifier.CountKind(notification.EventBidOutbid))
}

func TestSubmitBidBelowMinimumReportsContext(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)

	_, err := h.ledger.SubmitBid(context.Background(), a.ID, uuid.New(), fixtures.USD(10000))
	require.NoError(t, err)

	// 2% over 100.00 is 102.00; 101.99 must be rejected
	_, err = h.ledger.SubmitBid(context.Background(), a.ID, uuid.New(), fixtures.USD(10199))
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "BID_BELOW_MINIMUM", appErr.Code)
	assert.Equal(t, "102.00 USD", appErr.Details["minimum_next_bid"])
	assert.Equal(t, "100.00 USD", appErr.Details["current_highest_bid"])

	// exactly the minimum is accepted
	b, err := h.ledger.SubmitBid(context.Background(), a.ID, uuid.New(), fixtures.USD(10200))
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.SequenceNumber)
}

func TestSubmitBidSelfBidRejected(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)

	_, err := h.ledger.SubmitBid(context.Background(), a.ID, a.SellerID, fixtures.USD(10000))
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "SELF_BID", appErr.Code)
}

func TestSubmitBidInactiveAuction(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := fixtures.PendingAuction(h.clock.Now())
	require.NoError(t, h.store.Auctions().Create(context.Background(), a))

	_, err := h.ledger.SubmitBid(context.Background(), a.ID, uuid.New(), fixtures.USD(10000))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))
}

func TestSubmitBidAfterEndTime(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)

	h.clock.Advance(25 * time.Hour)

	_, err := h.ledger.SubmitBid(context.Background(), a.ID, uuid.New(), fixtures.USD(10000))
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "AUCTION_ENDED", appErr.Code)
}

func TestSubmitBidUnknownAuction(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())

	_, err := h.ledger.SubmitBid(context.Background(), uuid.New(), uuid.New(), fixtures.USD(10000))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestSubmitBidOutbidNotification(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)
	first, second := uuid.New(), uuid.New()

	_, err := h.ledger.SubmitBid(context.Background(), a.ID, first, fixtures.USD(10000))
	require.NoError(t, err)
	_, err = h.ledger.SubmitBid(context.Background(), a.ID, second, fixtures.USD(10200))
	require.NoError(t, err)

	assert.Equal(t, 1, h.notifier.CountKind(notification.EventBidOutbid))
	var outbid notification.Event
	for _, ev := range h.notifier.Events() {
		if ev.Kind == notification.EventBidOutbid {
			outbid = ev
		}
	}
	assert.Equal(t, first, outbid.Recipient)
}

// Concurrent submissions on one auction must serialize: every accepted bid
// gets a unique consecutive sequence number and the final highest bid is the
// largest accepted amount.
func TestSubmitBidConcurrent(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)

	const n = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := fixtures.USD(10000 + int64(i)*1000)
			_, err := h.ledger.SubmitBid(context.Background(), a.ID, uuid.New(), amount)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			// losers must fail the increment check, nothing else
			appErr, ok := err.(*errors.AppError)
			if assert.True(t, ok) {
				assert.Equal(t, "BID_BELOW_MINIMUM", appErr.Code)
			}
		}(i)
	}
	wg.Wait()

	require.Greater(t, accepted, 0)

	history, err := h.ledger.GetBidHistory(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, history, accepted)

	seen := make(map[int64]bool)
	var maxCents int64
	for _, b := range history {
		assert.False(t, seen[b.SequenceNumber], "duplicate sequence number %d", b.SequenceNumber)
		seen[b.SequenceNumber] = true
		if b.Amount.ToCents() > maxCents {
			maxCents = b.Amount.ToCents()
		}
	}
	for i := int64(1); i <= int64(accepted); i++ {
		assert.True(t, seen[i], "sequence numbers must be consecutive from 1")
	}

	stored, err := h.store.Auctions().GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentHighestBid)
	assert.Equal(t, maxCents, stored.CurrentHighestBid.ToCents())
	assert.Equal(t, int64(accepted), stored.LastSequence)
}

func TestSubmitBidRateLimited(t *testing.T) {
	cfg := bidding.Config{MinIncrementBps: 10200, BidRateLimit: rate.Limit(0.001), BidRateBurst: 2}
	h := newLedgerHarness(t, cfg)
	a := h.seedActive(t)
	buyer := uuid.New()

	_, err := h.ledger.SubmitBid(context.Background(), a.ID, buyer, fixtures.USD(10000))
	require.NoError(t, err)
	_, err = h.ledger.SubmitBid(context.Background(), a.ID, buyer, fixtures.USD(10200))
	require.NoError(t, err)

	_, err = h.ledger.SubmitBid(context.Background(), a.ID, buyer, fixtures.USD(10404))
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", appErr.Code)
}

func TestVoidBidRecomputesHighest(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)
	ctx := context.Background()

	b1, err := h.ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10000))
	require.NoError(t, err)
	b2, err := h.ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10200))
	require.NoError(t, err)
	b3, err := h.ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10404))
	require.NoError(t, err)

	updated, err := h.ledger.VoidBid(ctx, a.ID, b3.ID, a.SellerID)
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentHighestBid)
	assert.Equal(t, int64(10200), updated.CurrentHighestBid.ToCents())
	assert.Equal(t, b2.ID, *updated.WinningBidID)
	// voiding never renumbers the ledger
	assert.Equal(t, int64(3), updated.LastSequence)

	updated, err = h.ledger.VoidBid(ctx, a.ID, b2.ID, a.SellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), updated.CurrentHighestBid.ToCents())

	updated, err = h.ledger.VoidBid(ctx, a.ID, b1.ID, a.SellerID)
	require.NoError(t, err)
	assert.Nil(t, updated.CurrentHighestBid)
	assert.Nil(t, updated.WinningBidID)
}

func TestVoidBidIdempotent(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)
	ctx := context.Background()

	b, err := h.ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10000))
	require.NoError(t, err)

	_, err = h.ledger.VoidBid(ctx, a.ID, b.ID, a.SellerID)
	require.NoError(t, err)
	_, err = h.ledger.VoidBid(ctx, a.ID, b.ID, a.SellerID)
	require.NoError(t, err)

	history, err := h.ledger.GetBidHistory(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Voided)
}

func TestVoidBidOnlySeller(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)
	ctx := context.Background()

	b, err := h.ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10000))
	require.NoError(t, err)

	_, err = h.ledger.VoidBid(ctx, a.ID, b.ID, uuid.New())
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized))
}

func TestVoidBidAcceptedWinnerBlocked(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)
	ctx := context.Background()

	b, err := h.ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10000))
	require.NoError(t, err)

	// close and accept through the domain directly
	stored, err := h.store.Auctions().GetByID(ctx, a.ID)
	require.NoError(t, err)
	_, err = stored.Close(h.clock.Now().Add(25 * time.Hour))
	require.NoError(t, err)
	require.NoError(t, stored.AcceptWinningBid(h.clock.Now().Add(26*time.Hour)))
	require.NoError(t, h.store.Auctions().Update(ctx, stored))

	_, err = h.ledger.VoidBid(ctx, a.ID, b.ID, a.SellerID)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "WINNING_BID_ACCEPTED", appErr.Code)
}

func TestVoidBidWrongAuction(t *testing.T) {
	h := newLedgerHarness(t, bidding.DefaultConfig())
	a := h.seedActive(t)
	other := h.seedActive(t)
	ctx := context.Background()

	b, err := h.ledger.SubmitBid(ctx, other.ID, uuid.New(), fixtures.USD(10000))
	require.NoError(t, err)

	_, err = h.ledger.VoidBid(ctx, a.ID, b.ID, a.SellerID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

// flakyAuctionRepo fails a fixed number of Update calls before delegating
// to the in-memory store, simulating a transient datastore outage.
type flakyAuctionRepo struct {
	*repository.MemoryAuctionRepository
	mu       sync.Mutex
	failures int
}

func (r *flakyAuctionRepo) Update(ctx context.Context, a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.NewConflictError("storage unavailable")
	}
	return r.MemoryAuctionRepository.Update(ctx, a)
}

func TestSubmitBidFailedSummaryUpdateLeavesNoOrphan(t *testing.T) {
	store := repository.NewMemoryStore()
	repo := &flakyAuctionRepo{MemoryAuctionRepository: store.Auctions(), failures: bidding.UpdateAttemptsForTest}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := bidding.NewLedger(repo, store.Bids(), locks.NewKeyedMutex(), mocks.NewNotificationRecorder(),
		metrics.NoopCollector{}, nil, clock, zap.NewNop(), bidding.DefaultConfig())
	ctx := context.Background()

	a := fixtures.ActiveAuction(clock.Now())
	require.NoError(t, store.Auctions().Create(ctx, a))

	_, err := ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10000))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	// the appended bid was compensated, so sequence 1 is free again
	history, err := store.Bids().ListByAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// outage over: bidding resumes instead of colliding on the sequence
	b, err := ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10000))
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.SequenceNumber)

	stored, err := store.Auctions().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentHighestBid)
	assert.Equal(t, int64(10000), stored.CurrentHighestBid.ToCents())
	assert.Equal(t, int64(1), stored.LastSequence)
}

func TestSubmitBidDeletesAppendedBidWhenUpdateFails(t *testing.T) {
	auctions := new(mocks.AuctionRepository)
	bids := new(mocks.BidRepository)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := fixtures.ActiveAuction(clock.Now())

	auctions.On("GetByID", mock.Anything, a.ID).Return(a, nil)
	auctions.On("Update", mock.Anything, mock.Anything).
		Return(errors.NewInternalError("datastore down")).Times(bidding.UpdateAttemptsForTest)
	bids.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
	bids.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()

	ledger := bidding.NewLedger(auctions, bids, locks.NewKeyedMutex(), mocks.NewNotificationRecorder(),
		metrics.NoopCollector{}, nil, clock, zap.NewNop(), bidding.DefaultConfig())

	_, err := ledger.SubmitBid(context.Background(), a.ID, uuid.New(), fixtures.USD(10000))
	require.Error(t, err)

	auctions.AssertExpectations(t)
	bids.AssertExpectations(t)
}

func TestVoidBidFailedSummaryUpdateRevertsMarking(t *testing.T) {
	store := repository.NewMemoryStore()
	repo := &flakyAuctionRepo{MemoryAuctionRepository: store.Auctions()}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := bidding.NewLedger(repo, store.Bids(), locks.NewKeyedMutex(), mocks.NewNotificationRecorder(),
		metrics.NoopCollector{}, nil, clock, zap.NewNop(), bidding.DefaultConfig())
	ctx := context.Background()

	a := fixtures.ActiveAuction(clock.Now())
	require.NoError(t, store.Auctions().Create(ctx, a))
	b, err := ledger.SubmitBid(ctx, a.ID, uuid.New(), fixtures.USD(10000))
	require.NoError(t, err)

	repo.mu.Lock()
	repo.failures = bidding.UpdateAttemptsForTest
	repo.mu.Unlock()

	_, err = ledger.VoidBid(ctx, a.ID, b.ID, a.SellerID)
	require.Error(t, err)

	// the marking was reverted, so the summary and ledger still agree
	stored, err := store.Bids().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, stored.Voided)

	current, err := store.Auctions().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, current.CurrentHighestBid)
	assert.Equal(t, int64(10000), current.CurrentHighestBid.ToCents())

	// a retry after the outage voids for real
	updated, err := ledger.VoidBid(ctx, a.ID, b.ID, a.SellerID)
	require.NoError(t, err)
	assert.Nil(t, updated.CurrentHighestBid)
}
