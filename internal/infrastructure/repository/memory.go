package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/bid"
	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
)

// MemoryStore holds auctions, bids and token payment windows in process
// memory with the same optimistic-versioning semantics as the Postgres
// implementation. Used by the unit suites and for local development without
// a database. The per-entity repositories are exposed through Auctions(),
// Bids() and Windows().
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]auction.Auction
	bids     map[uuid.UUID]bid.Bid
	windows  map[uuid.UUID]auction.TokenPaymentWindow // keyed by auction id
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[uuid.UUID]auction.Auction),
		bids:     make(map[uuid.UUID]bid.Bid),
		windows:  make(map[uuid.UUID]auction.TokenPaymentWindow),
	}
}

// Auctions returns the auction repository view of the store.
func (s *MemoryStore) Auctions() *MemoryAuctionRepository {
	return &MemoryAuctionRepository{store: s}
}

// Bids returns the bid repository view of the store.
func (s *MemoryStore) Bids() *MemoryBidRepository {
	return &MemoryBidRepository{store: s}
}

// Windows returns the token window repository view of the store.
func (s *MemoryStore) Windows() *MemoryWindowRepository {
	return &MemoryWindowRepository{store: s}
}

// MemoryAuctionRepository implements the services' auction storage interfaces.
type MemoryAuctionRepository struct {
	store *MemoryStore
}

func (r *MemoryAuctionRepository) Create(_ context.Context, a *auction.Auction) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.auctions[a.ID]; exists {
		return errors.NewConflictError("auction already exists")
	}
	s.auctions[a.ID] = *a
	return nil
}

func (r *MemoryAuctionRepository) GetByID(_ context.Context, id uuid.UUID) (*auction.Auction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, errors.ErrAuctionNotFound
	}
	copied := a
	return &copied, nil
}

func (r *MemoryAuctionRepository) Update(_ context.Context, a *auction.Auction) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.auctions[a.ID]
	if !ok {
		return errors.ErrAuctionNotFound
	}
	if stored.Version != a.Version {
		return errors.NewConflictError("auction version is stale")
	}
	a.Version++
	s.auctions[a.ID] = *a
	return nil
}

func (r *MemoryAuctionRepository) ListBySeller(_ context.Context, sellerID uuid.UUID) ([]*auction.Auction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*auction.Auction
	for _, a := range s.auctions {
		if a.SellerID == sellerID {
			copied := a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryAuctionRepository) ListDueForPublish(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uuid.UUID
	for _, a := range s.auctions {
		if a.Status == auction.StatusScheduled && a.PublishAt != nil && !a.PublishAt.After(now) {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (r *MemoryAuctionRepository) ListDueForClose(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uuid.UUID
	for _, a := range s.auctions {
		if a.Status == auction.StatusActive && a.EndsAt != nil && !a.EndsAt.After(now) {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

// MemoryBidRepository implements the append-only bid ledger in memory.
type MemoryBidRepository struct {
	store *MemoryStore
}

func (r *MemoryBidRepository) Append(_ context.Context, b *bid.Bid) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bids[b.ID]; exists {
		return errors.NewConflictError("bid already exists")
	}
	for _, existing := range s.bids {
		if existing.AuctionID == b.AuctionID && existing.SequenceNumber == b.SequenceNumber {
			return errors.NewConflictError("bid sequence number already taken")
		}
	}
	s.bids[b.ID] = *b
	return nil
}

func (r *MemoryBidRepository) GetByID(_ context.Context, id uuid.UUID) (*bid.Bid, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	if !ok {
		return nil, errors.ErrBidNotFound
	}
	copied := b
	return &copied, nil
}

func (r *MemoryBidRepository) Update(_ context.Context, b *bid.Bid) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bids[b.ID]; !ok {
		return errors.ErrBidNotFound
	}
	s.bids[b.ID] = *b
	return nil
}

func (r *MemoryBidRepository) Delete(_ context.Context, id uuid.UUID) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bids[id]; !ok {
		return errors.ErrBidNotFound
	}
	delete(s.bids, id)
	return nil
}

func (r *MemoryBidRepository) ListByAuction(_ context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*bid.Bid
	for _, b := range s.bids {
		if b.AuctionID == auctionID {
			copied := b
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (r *MemoryBidRepository) ListByBuyer(_ context.Context, buyerID uuid.UUID) ([]*bid.Bid, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*bid.Bid
	for _, b := range s.bids {
		if b.BuyerID == buyerID {
			copied := b
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out, nil
}

// MemoryWindowRepository implements token payment window storage in memory.
type MemoryWindowRepository struct {
	store *MemoryStore
}

func (r *MemoryWindowRepository) Create(_ context.Context, w *auction.TokenPaymentWindow) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.windows[w.AuctionID]; exists {
		return errors.NewConflictError("token payment window already exists")
	}
	s.windows[w.AuctionID] = *w
	return nil
}

func (r *MemoryWindowRepository) GetByAuction(_ context.Context, auctionID uuid.UUID) (*auction.TokenPaymentWindow, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[auctionID]
	if !ok {
		return nil, errors.NewNotFoundError("token payment window")
	}
	copied := w
	return &copied, nil
}

func (r *MemoryWindowRepository) Update(_ context.Context, w *auction.TokenPaymentWindow) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[w.AuctionID]; !ok {
		return errors.NewNotFoundError("token payment window")
	}
	s.windows[w.AuctionID] = *w
	return nil
}

func (r *MemoryWindowRepository) ListOpen(_ context.Context) ([]*auction.TokenPaymentWindow, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*auction.TokenPaymentWindow
	for _, w := range s.windows {
		if w.Outcome == auction.WindowOpen {
			copied := w
			out = append(out, &copied)
		}
	}
	return out, nil
}
