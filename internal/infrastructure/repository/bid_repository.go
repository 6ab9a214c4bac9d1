package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/bid"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
)

// bidRepository implements the append-only bid ledger using PostgreSQL.
// The unique (auction_id, sequence_number) index backs the ledger ordering.
type bidRepository struct {
	db *sql.DB
}

// NewBidRepository creates a Postgres-backed bid repository.
func NewBidRepository(db *sql.DB) *bidRepository {
	return &bidRepository{db: db}
}

const bidColumns = `
	id, auction_id, buyer_id, amount_cents, currency, sequence_number,
	voided, voided_at, voided_by, placed_at, created_at`

func (r *bidRepository) Append(ctx context.Context, b *bid.Bid) error {
	query := `
		INSERT INTO bids (` + bidColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.AuctionID, b.BuyerID, b.Amount.ToCents(), b.Amount.Currency(), b.SequenceNumber,
		b.Voided, b.VoidedAt, nullUUID(b.VoidedBy), b.PlacedAt, b.CreatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to append bid").WithCause(err)
	}
	return nil
}

func (r *bidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`
	b, err := scanBid(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrBidNotFound
		}
		return nil, errors.NewInternalError("failed to get bid").WithCause(err)
	}
	return b, nil
}

// Update persists void markings; everything else about a bid is immutable.
func (r *bidRepository) Update(ctx context.Context, b *bid.Bid) error {
	query := `UPDATE bids SET voided = $1, voided_at = $2, voided_by = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, b.Voided, b.VoidedAt, nullUUID(b.VoidedBy), b.ID)
	if err != nil {
		return errors.NewInternalError("failed to update bid").WithCause(err)
	}
	return nil
}

// Delete removes a bid. The ledger only calls this to compensate an append
// whose auction summary update never committed.
func (r *bidRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bids WHERE id = $1`, id)
	if err != nil {
		return errors.NewInternalError("failed to delete bid").WithCause(err)
	}
	return nil
}

func (r *bidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 ORDER BY sequence_number ASC`
	return r.list(ctx, query, auctionID)
}

func (r *bidRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE buyer_id = $1 ORDER BY placed_at DESC`
	return r.list(ctx, query, buyerID)
}

func (r *bidRepository) list(ctx context.Context, query string, arg interface{}) ([]*bid.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errors.NewInternalError("failed to list bids").WithCause(err)
	}
	defer rows.Close()

	var out []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan bid").WithCause(err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBid(row rowScanner) (*bid.Bid, error) {
	var (
		b           bid.Bid
		amountCents int64
		currency    string
		voidedAt    sql.NullTime
		voidedBy    sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.AuctionID, &b.BuyerID, &amountCents, &currency, &b.SequenceNumber,
		&b.Voided, &voidedAt, &voidedBy, &b.PlacedAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Amount, err = values.NewMoneyFromCents(amountCents, currency)
	if err != nil {
		return nil, err
	}
	b.VoidedAt = timePtr(voidedAt)
	b.VoidedBy = parseNullUUID(voidedBy)
	return &b, nil
}
