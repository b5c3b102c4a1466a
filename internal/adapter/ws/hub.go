// Package ws pushes ledger and device activity to dashboards over websockets
// and answers their balance, history and product queries.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"
	"smartpay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
	requestTimeout = 5 * time.Second
)

// Hub tracks connected dashboards.
type Hub struct {
	upgrader websocket.Upgrader
	ledger   ports.LedgerService
	catalog  ports.CatalogService
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func NewHub(ledger ports.LedgerService, catalog ports.CatalogService, log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ledger:  ledger,
		catalog: catalog,
		log:     log,
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and serves the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast sends one event to every dashboard. A client whose buffer is
// full is disconnected.
func (h *Hub) Broadcast(eventType string, data any) {
	frame, err := encode(eventType, data)
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("encode broadcast")
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("socket_id", c.id).Msg("dropping slow websocket client")
		h.unregister(c)
	}
}

// Close disconnects every dashboard.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ClientCount is the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "websocket" }

// HandleEvent turns a committed ledger event into a dashboard notification.
func (h *Hub) HandleEvent(_ context.Context, event domain.LedgerEvent) error {
	switch {
	case event.Succeeded() && event.Type == domain.TransactionTypeTopup:
		h.Broadcast(EventTopupSuccess, noticeFrom(event))
	case event.Succeeded() && event.Type == domain.TransactionTypePayment:
		h.Broadcast(EventPaymentSuccess, noticeFrom(event))
	case event.Type == domain.TransactionTypePayment:
		h.Broadcast(EventPaymentDeclined, DeclineNotice{
			UID:           event.CardUID,
			Reason:        event.Reason,
			Required:      event.Amount,
			Available:     event.PreviousBalance,
			TransactionID: event.TransactionID,
			Timestamp:     event.Timestamp,
		})
	}
	return nil
}

func noticeFrom(event domain.LedgerEvent) MutationNotice {
	return MutationNotice{
		UID:             event.CardUID,
		Amount:          event.Amount,
		PreviousBalance: event.PreviousBalance,
		NewBalance:      event.NewBalance,
		Reason:          event.Reason,
		TransactionID:   event.TransactionID,
		Timestamp:       event.Timestamp,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Info().Str("socket_id", c.id).Msg("websocket client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		h.log.Info().Str("socket_id", c.id).Msg("websocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("socket_id", c.id).Msg("websocket closed unexpectedly")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(c, ErrorResponse, errorReply{Error: "Invalid message format"})
			continue
		}
		h.handleRequest(c, msg)
	}
}

// writePump is the only writer on c.conn.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

func (h *Hub) handleRequest(c *client, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch msg.Type {
	case RequestBalance:
		var req balanceRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.UID == "" {
			h.reply(c, BalanceResponse, balanceReply{Error: "uid required"})
			return
		}
		balance, err := h.ledger.GetBalance(ctx, req.UID)
		if err != nil {
			h.reply(c, BalanceResponse, balanceReply{UID: req.UID, Error: publicMessage(err)})
			return
		}
		h.reply(c, BalanceResponse, balanceReply{UID: req.UID, Balance: balance, Success: true})

	case RequestHistory:
		var req historyRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.UID == "" {
			h.reply(c, HistoryResponse, historyReply{Error: "uid required"})
			return
		}
		txns, err := h.ledger.GetHistory(ctx, req.UID, req.Limit)
		if err != nil {
			h.reply(c, HistoryResponse, historyReply{UID: req.UID, Error: publicMessage(err)})
			return
		}
		h.reply(c, HistoryResponse, historyReply{UID: req.UID, Transactions: txns, Success: true})

	case RequestProducts:
		products, err := h.catalog.ListProducts(ctx)
		if err != nil {
			h.reply(c, ProductsResponse, productsReply{Error: publicMessage(err)})
			return
		}
		h.reply(c, ProductsResponse, productsReply{Products: products, Success: true})

	default:
		h.log.Warn().Str("type", msg.Type).Str("socket_id", c.id).Msg("unknown websocket request")
		h.reply(c, ErrorResponse, errorReply{Error: "unknown message type " + msg.Type})
	}
}

func (h *Hub) reply(c *client, msgType string, data any) {
	frame, err := encode(msgType, data)
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("encode reply")
		return
	}

	// send under the read lock so unregister cannot close c.send meanwhile
	h.mu.RLock()
	_, live := h.clients[c.id]
	full := false
	if live {
		select {
		case c.send <- frame:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.unregister(c)
	}
}

func encode(msgType string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Data: payload})
}

// publicMessage hides wrapped infrastructure detail from dashboards.
func publicMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return apperror.InternalError(err).Message
}
