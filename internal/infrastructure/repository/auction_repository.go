package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
)

// auctionRepository implements the services' auction storage interfaces
// using PostgreSQL.
type auctionRepository struct {
	db *sql.DB
}

// NewAuctionRepository creates a Postgres-backed auction repository.
func NewAuctionRepository(db *sql.DB) *auctionRepository {
	return &auctionRepository{db: db}
}

const auctionColumns = `
	id, material_id, seller_id,
	starting_price_cents, currency, reserve_price_cents,
	current_bid_cents, current_bidder_id, winning_bid_id, last_sequence,
	publish_at, ends_at, status,
	approved_by, rejection_reason,
	token_amount_cents, token_deadline, token_payment_status,
	version, created_at, updated_at`

func (r *auctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.MaterialID, a.SellerID,
		a.StartingPrice.ToCents(), a.StartingPrice.Currency(), nullCents(a.ReservePrice),
		nullCents(a.CurrentHighestBid), nullUUID(a.CurrentHighestBidderID), nullUUID(a.WinningBidID), a.LastSequence,
		a.PublishAt, a.EndsAt, a.Status.String(),
		nullUUID(a.ApprovedBy), a.RejectionReason,
		a.TokenAmountDue.ToCents(), a.TokenDeadline, a.TokenPaymentStatus.String(),
		a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert auction").WithCause(err)
	}
	return nil
}

func (r *auctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	a, err := scanAuction(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrAuctionNotFound
		}
		return nil, errors.NewInternalError("failed to get auction").WithCause(err)
	}
	return a, nil
}

// Update persists the auction with an optimistic version check. A version
// mismatch surfaces as a retryable conflict, never as a silent overwrite.
func (r *auctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	query := `
		UPDATE auctions SET
			current_bid_cents = $1, current_bidder_id = $2, winning_bid_id = $3,
			last_sequence = $4, publish_at = $5, ends_at = $6, status = $7,
			approved_by = $8, rejection_reason = $9,
			token_deadline = $10, token_payment_status = $11,
			version = version + 1, updated_at = $12
		WHERE id = $13 AND version = $14
	`
	res, err := r.db.ExecContext(ctx, query,
		nullCents(a.CurrentHighestBid), nullUUID(a.CurrentHighestBidderID), nullUUID(a.WinningBidID),
		a.LastSequence, a.PublishAt, a.EndsAt, a.Status.String(),
		nullUUID(a.ApprovedBy), a.RejectionReason,
		a.TokenDeadline, a.TokenPaymentStatus.String(),
		a.UpdatedAt, a.ID, a.Version,
	)
	if err != nil {
		return errors.NewInternalError("failed to update auction").WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to read update result").WithCause(err)
	}
	if n == 0 {
		return errors.NewConflictError(fmt.Sprintf("auction %s version %d is stale", a.ID, a.Version))
	}
	a.Version++
	return nil
}

func (r *auctionRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE seller_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list auctions").WithCause(err)
	}
	defer rows.Close()

	var out []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan auction").WithCause(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *auctionRepository) ListDueForPublish(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.listIDs(ctx,
		`SELECT id FROM auctions WHERE status = 'scheduled' AND publish_at <= $1`, now)
}

func (r *auctionRepository) ListDueForClose(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.listIDs(ctx,
		`SELECT id FROM auctions WHERE status = 'active' AND ends_at <= $1`, now)
}

func (r *auctionRepository) listIDs(ctx context.Context, query string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to list due auctions").WithCause(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternalError("failed to scan auction id").WithCause(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var (
		a                                    auction.Auction
		startingCents, tokenCents            int64
		currency, statusStr, tokenStatusStr  string
		reserveCents, currentCents           sql.NullInt64
		currentBidder, winningBid, approvedBy sql.NullString
		publishAt, endsAt, tokenDeadline     sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.MaterialID, &a.SellerID,
		&startingCents, &currency, &reserveCents,
		&currentCents, &currentBidder, &winningBid, &a.LastSequence,
		&publishAt, &endsAt, &statusStr,
		&approvedBy, &a.RejectionReason,
		&tokenCents, &tokenDeadline, &tokenStatusStr,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.StartingPrice, err = values.NewMoneyFromCents(startingCents, currency)
	if err != nil {
		return nil, err
	}
	a.TokenAmountDue, err = values.NewMoneyFromCents(tokenCents, currency)
	if err != nil {
		return nil, err
	}
	if reserveCents.Valid {
		m, err := values.NewMoneyFromCents(reserveCents.Int64, currency)
		if err != nil {
			return nil, err
		}
		a.ReservePrice = &m
	}
	if currentCents.Valid {
		m, err := values.NewMoneyFromCents(currentCents.Int64, currency)
		if err != nil {
			return nil, err
		}
		a.CurrentHighestBid = &m
	}

	a.CurrentHighestBidderID = parseNullUUID(currentBidder)
	a.WinningBidID = parseNullUUID(winningBid)
	a.ApprovedBy = parseNullUUID(approvedBy)
	a.PublishAt = timePtr(publishAt)
	a.EndsAt = timePtr(endsAt)
	a.TokenDeadline = timePtr(tokenDeadline)
	a.Status = auction.ParseStatus(statusStr)
	a.TokenPaymentStatus = auction.ParseTokenPaymentStatus(tokenStatusStr)
	return &a, nil
}

func nullCents(m *values.Money) interface{} {
	if m == nil {
		return nil
	}
	return m.ToCents()
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func parseNullUUID(s sql.NullString) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
