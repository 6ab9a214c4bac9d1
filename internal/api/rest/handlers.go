package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/values"
	"github.com/renewcycle/materials-exchange-backend/internal/service/engine"
)

// Handler serves the auction engine's REST surface.
type Handler struct {
	engine   *engine.Engine
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates the REST handler.
func NewHandler(eng *engine.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		engine:   eng,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes registers every endpoint on the mux. The websocket feed and the
// metrics scrape endpoint are mounted by the caller.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auctions", h.createAuction)
	mux.HandleFunc("GET /api/v1/auctions/{id}", h.getAuction)
	mux.HandleFunc("GET /api/v1/auctions/{id}/bids", h.getBidHistory)
	mux.HandleFunc("GET /api/v1/auctions/{id}/analytics", h.getBidAnalytics)
	mux.HandleFunc("POST /api/v1/auctions/{id}/bids", h.placeBid)
	mux.HandleFunc("POST /api/v1/auctions/{id}/bids/{bidID}/void", h.voidBid)
	mux.HandleFunc("POST /api/v1/auctions/{id}/submit", h.submitForReview)
	mux.HandleFunc("POST /api/v1/auctions/{id}/approve", h.approveAuction)
	mux.HandleFunc("POST /api/v1/auctions/{id}/reject", h.rejectAuction)
	mux.HandleFunc("POST /api/v1/auctions/{id}/schedule", h.scheduleAuction)
	mux.HandleFunc("POST /api/v1/auctions/{id}/close", h.closeAuction)
	mux.HandleFunc("POST /api/v1/auctions/{id}/accept", h.acceptWinningBid)
	mux.HandleFunc("POST /api/v1/auctions/{id}/decline", h.rejectWinningBid)
	mux.HandleFunc("POST /api/v1/auctions/{id}/token-payment", h.confirmTokenPayment)
	mux.HandleFunc("GET /api/v1/buyers/{id}/bids", h.getMyBids)
	mux.HandleFunc("GET /api/v1/sellers/{id}/auctions", h.getSellerAuctions)
	mux.HandleFunc("GET /healthz", h.health)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeValidationError(w, h.logger, "malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, h.logger, err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeValidationError(w, h.logger, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

type createAuctionRequest struct {
	MaterialID string `json:"material_id" validate:"required,uuid"`
}

func (h *Handler) createAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if !h.decode(w, r, &req) {
		return
	}
	materialID, _ := uuid.Parse(req.MaterialID)

	a, err := h.engine.CreateAuction(r.Context(), materialID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) getAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.engine.GetAuction(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) getBidHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	bids, err := h.engine.GetBidHistory(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

func (h *Handler) getBidAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	analytics, err := h.engine.GetBidAnalytics(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

type placeBidRequest struct {
	BuyerID  string `json:"buyer_id" validate:"required,uuid"`
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req placeBidRequest
	if !h.decode(w, r, &req) {
		return
	}
	buyerID, _ := uuid.Parse(req.BuyerID)

	amount, err := values.NewMoneyFromString(req.Amount, req.Currency)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	b, err := h.engine.PlaceBid(r.Context(), auctionID, buyerID, amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

type voidBidRequest struct {
	RequestedBy string `json:"requested_by" validate:"required,uuid"`
}

func (h *Handler) voidBid(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	bidID, ok := h.pathID(w, r, "bidID")
	if !ok {
		return
	}
	var req voidBidRequest
	if !h.decode(w, r, &req) {
		return
	}
	requestedBy, _ := uuid.Parse(req.RequestedBy)

	a, err := h.engine.VoidBid(r.Context(), auctionID, bidID, requestedBy)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type sellerActionRequest struct {
	SellerID string `json:"seller_id" validate:"required,uuid"`
}

func (h *Handler) submitForReview(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req sellerActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	sellerID, _ := uuid.Parse(req.SellerID)

	a, err := h.engine.SubmitForReview(r.Context(), auctionID, sellerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type adminActionRequest struct {
	AdminID string `json:"admin_id" validate:"required,uuid"`
}

func (h *Handler) approveAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req adminActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	adminID, _ := uuid.Parse(req.AdminID)

	a, err := h.engine.ApproveAuction(r.Context(), auctionID, adminID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type rejectAuctionRequest struct {
	AdminID string `json:"admin_id" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"required"`
}

func (h *Handler) rejectAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req rejectAuctionRequest
	if !h.decode(w, r, &req) {
		return
	}
	adminID, _ := uuid.Parse(req.AdminID)

	a, err := h.engine.RejectAuction(r.Context(), auctionID, adminID, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type scheduleAuctionRequest struct {
	AdminID   string    `json:"admin_id" validate:"required,uuid"`
	PublishAt time.Time `json:"publish_at" validate:"required"`
}

func (h *Handler) scheduleAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req scheduleAuctionRequest
	if !h.decode(w, r, &req) {
		return
	}
	adminID, _ := uuid.Parse(req.AdminID)

	a, err := h.engine.ScheduleAuction(r.Context(), auctionID, adminID, req.PublishAt)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) closeAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.engine.CloseAuctionIfDue(r.Context(), auctionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) acceptWinningBid(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req sellerActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	sellerID, _ := uuid.Parse(req.SellerID)

	a, err := h.engine.AcceptWinningBid(r.Context(), auctionID, sellerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type rejectWinningBidRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
	IsAdmin bool   `json:"is_admin"`
}

func (h *Handler) rejectWinningBid(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req rejectWinningBidRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, _ := uuid.Parse(req.ActorID)

	a, err := h.engine.RejectWinningBid(r.Context(), auctionID, actorID, req.IsAdmin)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) confirmTokenPayment(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.engine.ConfirmTokenPayment(r.Context(), auctionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) getMyBids(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	bids, err := h.engine.GetMyBids(r.Context(), buyerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

func (h *Handler) getSellerAuctions(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	auctions, err := h.engine.GetSellerAuctions(r.Context(), sellerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, auctions)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
