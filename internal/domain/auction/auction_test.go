package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
)

func usd(cents int64) values.Money {
	return values.MustNewMoneyFromCents(cents, "USD")
}

func usdPtr(cents int64) *values.Money {
	m := usd(cents)
	return &m
}

func newDraft(t *testing.T, now time.Time) *Auction {
	t.Helper()
	a, err := New(uuid.New(), uuid.New(), usd(10000), nil, values.Zero("USD"), now)
	require.NoError(t, err)
	return a
}

func newActive(t *testing.T, now time.Time) *Auction {
	t.Helper()
	a := newDraft(t, now)
	require.NoError(t, a.SubmitForReview(now))
	require.NoError(t, a.Approve(uuid.New(), now.Add(24*time.Hour), now))
	return a
}

func TestNewValidation(t *testing.T) {
	now := time.Now()

	_, err := New(uuid.New(), uuid.New(), values.Zero("USD"), nil, values.Zero("USD"), now)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = New(uuid.New(), uuid.New(), usd(10000), usdPtr(5000), values.Zero("USD"), now)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation),
		"reserve below starting price must be rejected")

	a, err := New(uuid.New(), uuid.New(), usd(10000), usdPtr(10000), values.Zero("USD"), now)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, a.Status)
	assert.Equal(t, TokenNotRequired, a.TokenPaymentStatus)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusPendingApproval, true},
		{StatusDraft, StatusActive, false},
		{StatusPendingApproval, StatusActive, true},
		{StatusPendingApproval, StatusScheduled, true},
		{StatusPendingApproval, StatusRejected, true},
		{StatusPendingApproval, StatusEnded, false},
		{StatusScheduled, StatusActive, true},
		{StatusScheduled, StatusEnded, false},
		{StatusActive, StatusEnded, true},
		{StatusActive, StatusCompleted, false},
		{StatusEnded, StatusBidAccepted, true},
		{StatusEnded, StatusBidRejected, true},
		{StatusEnded, StatusCancelled, true},
		{StatusEnded, StatusActive, false},
		{StatusBidAccepted, StatusCompleted, true},
		{StatusBidAccepted, StatusCancelled, true},
		{StatusBidAccepted, StatusEnded, false},
		{StatusCompleted, StatusActive, false},
		{StatusCancelled, StatusActive, false},
		{StatusRejected, StatusPendingApproval, false},
		{StatusBidRejected, StatusEnded, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"_to_"+tt.to.String(), func(t *testing.T) {
			a := &Auction{Status: tt.from}
			err := a.transition(tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))
			}
		})
	}
}

func TestMinimumNextBid(t *testing.T) {
	now := time.Now()
	a := newActive(t, now)

	// no bids yet: meeting the starting price is enough
	assert.Equal(t, int64(10000), a.MinimumNextBid(10200).ToCents())

	a.RecordBid(uuid.New(), uuid.New(), usd(10000), 1, now)
	assert.Equal(t, int64(10200), a.MinimumNextBid(10200).ToCents())

	// fractional cents round up, never down
	a.RecordBid(uuid.New(), uuid.New(), usd(10001), 2, now)
	assert.Equal(t, int64(10202), a.MinimumNextBid(10200).ToCents())
}

func TestApproveRequiresFutureEnd(t *testing.T) {
	now := time.Now()
	a := newDraft(t, now)
	require.NoError(t, a.SubmitForReview(now))

	err := a.Approve(uuid.New(), now.Add(-time.Minute), now)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, StatusPendingApproval, a.Status, "failed approve must not change status")
}

func TestScheduleValidation(t *testing.T) {
	now := time.Now()
	a := newDraft(t, now)
	require.NoError(t, a.SubmitForReview(now))

	err := a.Schedule(uuid.New(), now.Add(-time.Hour), now.Add(24*time.Hour), now)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	publishAt := now.Add(time.Hour)
	err = a.Schedule(uuid.New(), publishAt, publishAt.Add(-time.Minute), now)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	require.NoError(t, a.Schedule(uuid.New(), publishAt, publishAt.Add(24*time.Hour), now))
	assert.Equal(t, StatusScheduled, a.Status)
	require.NotNil(t, a.PublishAt)
	assert.True(t, a.PublishAt.Equal(publishAt))
}

func TestRejectModerationRequiresReason(t *testing.T) {
	now := time.Now()
	a := newDraft(t, now)
	require.NoError(t, a.SubmitForReview(now))

	err := a.RejectModeration(uuid.New(), "", now)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	require.NoError(t, a.RejectModeration(uuid.New(), "prohibited material category", now))
	assert.Equal(t, StatusRejected, a.Status)
	assert.Equal(t, "prohibited material category", a.RejectionReason)
	assert.True(t, a.Status.IsTerminal())
}

func TestPublishRequiresApproval(t *testing.T) {
	now := time.Now()
	a := &Auction{Status: StatusScheduled}

	err := a.Publish(now)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))

	adminID := uuid.New()
	a.ApprovedBy = &adminID
	require.NoError(t, a.Publish(now))
	assert.Equal(t, StatusActive, a.Status)
}

func TestCloseWithWinner(t *testing.T) {
	now := time.Now()
	a := newActive(t, now)
	bidID, bidderID := uuid.New(), uuid.New()
	a.RecordBid(bidID, bidderID, usd(12000), 1, now)

	outcome, err := a.Close(now.Add(25 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, CloseOutcomeAwaitingDecision, outcome)
	assert.Equal(t, StatusEnded, a.Status)
	assert.True(t, a.HasWinner())
}

func TestCloseNoBids(t *testing.T) {
	now := time.Now()
	a := newActive(t, now)

	outcome, err := a.Close(now.Add(25 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, CloseOutcomeNoSale, outcome)
	assert.Equal(t, StatusCancelled, a.Status)
	assert.False(t, a.HasWinner())
}

func TestCloseReserveUnmet(t *testing.T) {
	now := time.Now()
	a, err := New(uuid.New(), uuid.New(), usd(10000), usdPtr(20000), values.Zero("USD"), now)
	require.NoError(t, err)
	require.NoError(t, a.SubmitForReview(now))
	require.NoError(t, a.Approve(uuid.New(), now.Add(24*time.Hour), now))
	a.RecordBid(uuid.New(), uuid.New(), usd(15000), 1, now)

	outcome, err := a.Close(now.Add(25 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, CloseOutcomeNoSale, outcome)
	assert.Equal(t, StatusCancelled, a.Status)
	assert.Nil(t, a.CurrentHighestBid, "reserve-unmet close must clear the winner")
	assert.Nil(t, a.WinningBidID)
}

func TestAcceptWinningBid(t *testing.T) {
	now := time.Now()
	a := newActive(t, now)
	a.TokenAmountDue = usd(5000)
	a.RecordBid(uuid.New(), uuid.New(), usd(12000), 1, now)
	_, err := a.Close(now.Add(25 * time.Hour))
	require.NoError(t, err)

	require.NoError(t, a.AcceptWinningBid(now.Add(26*time.Hour)))
	assert.Equal(t, StatusBidAccepted, a.Status)
	assert.Equal(t, TokenPending, a.TokenPaymentStatus)
}

func TestConfirmTokenPaymentAfterDeadline(t *testing.T) {
	now := time.Now()
	a := newActive(t, now)
	a.TokenAmountDue = usd(5000)
	a.RecordBid(uuid.New(), uuid.New(), usd(12000), 1, now)
	_, err := a.Close(now.Add(25 * time.Hour))
	require.NoError(t, err)
	require.NoError(t, a.AcceptWinningBid(now.Add(26*time.Hour)))

	deadline := now.Add(26*time.Hour + 48*time.Hour)
	a.SetTokenDeadline(deadline)

	err = a.ConfirmTokenPayment(deadline.Add(time.Minute))
	assert.True(t, errors.IsType(err, errors.ErrorTypeDeadlinePassed))
	assert.Equal(t, StatusBidAccepted, a.Status)

	require.NoError(t, a.ConfirmTokenPayment(deadline.Add(-time.Minute)))
	assert.Equal(t, StatusCompleted, a.Status)
	assert.Equal(t, TokenPaid, a.TokenPaymentStatus)
}

func TestExpireToken(t *testing.T) {
	now := time.Now()
	a := newActive(t, now)
	a.TokenAmountDue = usd(5000)
	a.RecordBid(uuid.New(), uuid.New(), usd(12000), 1, now)
	_, err := a.Close(now.Add(25 * time.Hour))
	require.NoError(t, err)
	require.NoError(t, a.AcceptWinningBid(now.Add(26*time.Hour)))

	require.NoError(t, a.ExpireToken(now.Add(80*time.Hour)))
	assert.Equal(t, StatusCancelled, a.Status)
	assert.Equal(t, TokenExpired, a.TokenPaymentStatus)
}

func TestStatusStringRoundTrip(t *testing.T) {
	for _, s := range []Status{
		StatusDraft, StatusPendingApproval, StatusScheduled, StatusActive,
		StatusEnded, StatusBidAccepted, StatusBidRejected, StatusRejected,
		StatusCancelled, StatusCompleted,
	} {
		assert.Equal(t, s, ParseStatus(s.String()))
	}
}
