package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
	"github.com/renewcycle/materials-exchange-backend/internal/service/engine"
)

// listingCatalog reads material listings from the marketplace database. The
// catalog itself is owned by the storefront service; the engine only reads
// the economics snapshot when drafting an auction.
type listingCatalog struct {
	db *sql.DB
}

// NewListingCatalog creates a Postgres-backed listing catalog.
func NewListingCatalog(db *sql.DB) *listingCatalog {
	return &listingCatalog{db: db}
}

func (c *listingCatalog) GetListing(ctx context.Context, materialID uuid.UUID) (*engine.Listing, error) {
	query := `
		SELECT material_id, seller_id, starting_price_cents, currency,
			reserve_price_cents, token_amount_cents
		FROM listings WHERE material_id = $1
	`
	var (
		l                         engine.Listing
		startingCents, tokenCents int64
		currency                  string
		reserveCents              sql.NullInt64
	)
	err := c.db.QueryRowContext(ctx, query, materialID).Scan(
		&l.MaterialID, &l.SellerID, &startingCents, &currency, &reserveCents, &tokenCents,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrListingNotFound
		}
		return nil, errors.NewInternalError("failed to get listing").WithCause(err)
	}

	l.StartingPrice, err = values.NewMoneyFromCents(startingCents, currency)
	if err != nil {
		return nil, err
	}
	l.TokenAmountRequired, err = values.NewMoneyFromCents(tokenCents, currency)
	if err != nil {
		return nil, err
	}
	if reserveCents.Valid {
		m, err := values.NewMoneyFromCents(reserveCents.Int64, currency)
		if err != nil {
			return nil, err
		}
		l.ReservePrice = &m
	}
	return &l, nil
}

// MemoryCatalog is an in-memory listing catalog for tests and local dev.
type MemoryCatalog struct {
	mu       sync.RWMutex
	listings map[uuid.UUID]engine.Listing
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{listings: make(map[uuid.UUID]engine.Listing)}
}

// Put registers a listing.
func (c *MemoryCatalog) Put(l engine.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings[l.MaterialID] = l
}

func (c *MemoryCatalog) GetListing(_ context.Context, materialID uuid.UUID) (*engine.Listing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.listings[materialID]
	if !ok {
		return nil, errors.ErrListingNotFound
	}
	return &l, nil
}
