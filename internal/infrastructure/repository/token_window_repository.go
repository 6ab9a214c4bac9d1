package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
)

// tokenWindowRepository stores token payment windows in PostgreSQL.
type tokenWindowRepository struct {
	db *sql.DB
}

// NewTokenWindowRepository creates a Postgres-backed window repository.
func NewTokenWindowRepository(db *sql.DB) *tokenWindowRepository {
	return &tokenWindowRepository{db: db}
}

const windowColumns = `
	id, auction_id, winning_bid_id, buyer_id, amount_cents, currency,
	deadline, reminder_sent, outcome, created_at, updated_at`

func (r *tokenWindowRepository) Create(ctx context.Context, w *auction.TokenPaymentWindow) error {
	query := `
		INSERT INTO token_payment_windows (` + windowColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := r.db.ExecContext(ctx, query,
		w.ID, w.AuctionID, w.WinningBidID, w.BuyerID, w.AmountDue.ToCents(), w.AmountDue.Currency(),
		w.Deadline, w.ReminderSent, w.Outcome.String(), w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert token payment window").WithCause(err)
	}
	return nil
}

func (r *tokenWindowRepository) GetByAuction(ctx context.Context, auctionID uuid.UUID) (*auction.TokenPaymentWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM token_payment_windows WHERE auction_id = $1`
	w, err := scanWindow(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("token payment window")
		}
		return nil, errors.NewInternalError("failed to get token payment window").WithCause(err)
	}
	return w, nil
}

func (r *tokenWindowRepository) Update(ctx context.Context, w *auction.TokenPaymentWindow) error {
	query := `
		UPDATE token_payment_windows
		SET reminder_sent = $1, outcome = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, w.ReminderSent, w.Outcome.String(), w.UpdatedAt, w.ID)
	if err != nil {
		return errors.NewInternalError("failed to update token payment window").WithCause(err)
	}
	return nil
}

func (r *tokenWindowRepository) ListOpen(ctx context.Context) ([]*auction.TokenPaymentWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM token_payment_windows WHERE outcome = 'open'`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternalError("failed to list open windows").WithCause(err)
	}
	defer rows.Close()

	var out []*auction.TokenPaymentWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan window").WithCause(err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWindow(row rowScanner) (*auction.TokenPaymentWindow, error) {
	var (
		w           auction.TokenPaymentWindow
		amountCents int64
		currency    string
		outcomeStr  string
	)
	err := row.Scan(
		&w.ID, &w.AuctionID, &w.WinningBidID, &w.BuyerID, &amountCents, &currency,
		&w.Deadline, &w.ReminderSent, &outcomeStr, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.AmountDue, err = values.NewMoneyFromCents(amountCents, currency)
	if err != nil {
		return nil, err
	}
	switch outcomeStr {
	case "paid":
		w.Outcome = auction.WindowPaid
	case "expired":
		w.Outcome = auction.WindowExpired
	default:
		w.Outcome = auction.WindowOpen
	}
	return &w, nil
}
