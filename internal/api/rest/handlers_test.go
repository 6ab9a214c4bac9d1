package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/locks"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/repository"
	"github.com/renewcycle/materials-exchange-backend/internal/metrics"
	"github.com/renewcycle/materials-exchange-backend/internal/service/bidding"
	"github.com/renewcycle/materials-exchange-backend/internal/service/engine"
	"github.com/renewcycle/materials-exchange-backend/internal/service/lifecycle"
	"github.com/renewcycle/materials-exchange-backend/internal/service/moderation"
	"github.com/renewcycle/materials-exchange-backend/internal/service/settlement"
	"github.com/renewcycle/materials-exchange-backend/internal/testutil/fixtures"
	"github.com/renewcycle/materials-exchange-backend/internal/testutil/mocks"
)

type apiHarness struct {
	mux     *http.ServeMux
	catalog *repository.MemoryCatalog
	store   *repository.MemoryStore
	clock   *clockwork.FakeClock
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	store := repository.NewMemoryStore()
	catalog := repository.NewMemoryCatalog()
	notifier := mocks.NewNotificationRecorder()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	km := locks.NewKeyedMutex()
	logger := zap.NewNop()
	collector := metrics.NoopCollector{}

	ledger := bidding.NewLedger(store.Auctions(), store.Bids(), km, notifier,
		collector, nil, clock, logger, bidding.DefaultConfig())
	enforcer := settlement.NewEnforcer(store.Auctions(), store.Windows(), km,
		notifier, collector, clock, logger, settlement.DefaultConfig())
	lc := lifecycle.NewService(store.Auctions(), km, notifier, collector, enforcer, clock, logger)
	gate := moderation.NewGate(store.Auctions(), km, notifier, clock, logger, 7*24*time.Hour)
	eng := engine.New(store.Auctions(), store.Bids(), catalog, nil,
		ledger, lc, gate, enforcer, clock, logger)

	mux := http.NewServeMux()
	NewHandler(eng, logger).Routes(mux)
	return &apiHarness{mux: mux, catalog: catalog, store: store, clock: clock}
}

func (h *apiHarness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthz(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetAuctionNotFound(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/auctions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RESOURCE_NOT_FOUND", decodeError(t, rec).Code)
}

func TestGetAuctionBadID(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/auctions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBidBelowMinimumSurfacesContext(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	a := fixtures.ActiveAuction(h.clock.Now())
	require.NoError(t, h.store.Auctions().Create(ctx, a))

	body := `{"buyer_id":"` + uuid.NewString() + `","amount":"100.00","currency":"USD"}`
	rec := h.do(t, http.MethodPost, "/api/v1/auctions/"+a.ID.String()+"/bids", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	body = `{"buyer_id":"` + uuid.NewString() + `","amount":"100.50","currency":"USD"}`
	rec = h.do(t, http.MethodPost, "/api/v1/auctions/"+a.ID.String()+"/bids", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeError(t, rec)
	assert.Equal(t, "BID_BELOW_MINIMUM", errBody.Code)
	assert.Equal(t, "102.00 USD", errBody.Details["minimum_next_bid"])
	assert.Equal(t, "100.00 USD", errBody.Details["current_highest_bid"])
}

func TestPlaceBidMalformedBody(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auctions/"+uuid.NewString()+"/bids", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBidMissingFields(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auctions/"+uuid.NewString()+"/bids", `{"amount":"100.00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Code)
}

func TestCreateAuctionEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	materialID := uuid.New()
	h.catalog.Put(engine.Listing{
		MaterialID:          materialID,
		SellerID:            uuid.New(),
		StartingPrice:       fixtures.USD(10000),
		TokenAmountRequired: fixtures.USD(0),
	})

	rec := h.do(t, http.MethodPost, "/api/v1/auctions", `{"material_id":"`+materialID.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var a struct {
		ID     uuid.UUID `json:"id"`
		Status int       `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.NotEqual(t, uuid.Nil, a.ID)
}

func TestRejectWinningBidAfterDeadlineStatus(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	a := fixtures.ActiveAuction(h.clock.Now(), fixtures.WithToken(5000))
	winner := uuid.New()
	fixtures.PlacedBid(a, winner, 12000, h.clock.Now())
	require.NoError(t, h.store.Auctions().Create(ctx, a))

	h.clock.Advance(25 * time.Hour)
	rec := h.do(t, http.MethodPost, "/api/v1/auctions/"+a.ID.String()+"/close", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/auctions/"+a.ID.String()+"/accept",
		`{"seller_id":"`+a.SellerID.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	h.clock.Advance(49 * time.Hour)
	rec = h.do(t, http.MethodPost, "/api/v1/auctions/"+a.ID.String()+"/token-payment", "")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "DEADLINE_PASSED", decodeError(t, rec).Code)
}
