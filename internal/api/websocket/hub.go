package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/bid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// BidEvent is the wire frame pushed to subscribers when a bid lands.
type BidEvent struct {
	Type           string    `json:"type"`
	AuctionID      uuid.UUID `json:"auction_id"`
	BidID          uuid.UUID `json:"bid_id"`
	Amount         string    `json:"amount"`
	SequenceNumber int64     `json:"sequence_number"`
	PlacedAt       time.Time `json:"placed_at"`
}

// Hub fans accepted bids out to websocket subscribers, one subscription set
// per auction. Implements the ledger's BidFeed interface.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*client]struct{}
	logger  *zap.Logger
}

type client struct {
	conn *websocket.Conn
	send chan BidEvent
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*client]struct{}),
		logger:  logger,
	}
}

// BroadcastBid pushes an accepted bid to every subscriber of its auction.
// Slow consumers are disconnected rather than allowed to stall the hub.
func (h *Hub) BroadcastBid(auctionID uuid.UUID, b *bid.Bid) {
	event := BidEvent{
		Type:           "bid_placed",
		AuctionID:      auctionID,
		BidID:          b.ID,
		Amount:         b.Amount.String(),
		SequenceNumber: b.SequenceNumber,
		PlacedAt:       b.PlacedAt,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[auctionID] {
		select {
		case c.send <- event:
		default:
			go c.conn.Close()
		}
	}
}

// ServeHTTP upgrades the request and subscribes it to one auction's feed.
// The auction id comes from the query string: /ws/auctions?id=<uuid>.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid auction id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan BidEvent, sendBuffer)}
	h.subscribe(auctionID, c)

	go h.writePump(c)
	go h.readPump(auctionID, c)
}

func (h *Hub) subscribe(auctionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[auctionID] == nil {
		h.clients[auctionID] = make(map[*client]struct{})
	}
	h.clients[auctionID][c] = struct{}{}
}

func (h *Hub) unsubscribe(auctionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[auctionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, auctionID)
		}
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to
// surface close frames and enforce the pong deadline.
func (h *Hub) readPump(auctionID uuid.UUID, c *client) {
	defer func() {
		h.unsubscribe(auctionID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
