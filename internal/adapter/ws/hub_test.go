package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports/mocks"
	"smartpay/pkg/apperror"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type hubDeps struct {
	hub     *Hub
	ledger  *mocks.MockLedgerService
	catalog *mocks.MockCatalogService
	server  *httptest.Server
}

func setupHub(t *testing.T) *hubDeps {
	ctrl := gomock.NewController(t)
	d := &hubDeps{
		ledger:  mocks.NewMockLedgerService(ctrl),
		catalog: mocks.NewMockCatalogService(ctrl),
	}
	d.hub = NewHub(d.ledger, d.catalog, zerolog.New(io.Discard))
	d.server = httptest.NewServer(d.hub)
	t.Cleanup(func() {
		d.hub.Close()
		d.server.Close()
	})
	return d
}

func (d *hubDeps) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(d.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return d.hub.ClientCount() > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Type: msgType, Data: payload}))
}

func receive(t *testing.T, conn *websocket.Conn, out any) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	if out != nil {
		require.NoError(t, json.Unmarshal(msg.Data, out))
	}
	return msg.Type
}

func TestHub_RequestBalance(t *testing.T) {
	d := setupHub(t)
	conn := d.dial(t)

	d.ledger.EXPECT().GetBalance(gomock.Any(), "04A1").Return(int64(300), nil)

	send(t, conn, RequestBalance, map[string]string{"uid": "04A1"})

	var reply balanceReply
	assert.Equal(t, BalanceResponse, receive(t, conn, &reply))
	assert.True(t, reply.Success)
	assert.Equal(t, "04A1", reply.UID)
	assert.Equal(t, int64(300), reply.Balance)
}

func TestHub_RequestBalance_Errors(t *testing.T) {
	d := setupHub(t)
	conn := d.dial(t)

	send(t, conn, RequestBalance, map[string]string{})
	var reply balanceReply
	assert.Equal(t, BalanceResponse, receive(t, conn, &reply))
	assert.False(t, reply.Success)
	assert.Equal(t, "uid required", reply.Error)

	d.ledger.EXPECT().GetBalance(gomock.Any(), "GHOST").Return(int64(0), apperror.ErrWalletNotFound("GHOST"))
	send(t, conn, RequestBalance, map[string]string{"uid": "GHOST"})
	reply = balanceReply{}
	receive(t, conn, &reply)
	assert.False(t, reply.Success)
	assert.Equal(t, "wallet for card GHOST not found", reply.Error)

	d.ledger.EXPECT().GetBalance(gomock.Any(), "X").Return(int64(0), errors.New("pq: connection reset"))
	send(t, conn, RequestBalance, map[string]string{"uid": "X"})
	reply = balanceReply{}
	receive(t, conn, &reply)
	assert.Equal(t, "Internal server error", reply.Error)
}

func TestHub_RequestHistory(t *testing.T) {
	d := setupHub(t)
	conn := d.dial(t)

	d.ledger.EXPECT().GetHistory(gomock.Any(), "04A1", 5).Return([]domain.Transaction{
		{CardUID: "04A1", Type: domain.TransactionTypePayment, Amount: 200, Status: domain.TransactionStatusSuccess},
	}, nil)

	send(t, conn, RequestHistory, map[string]any{"uid": "04A1", "limit": 5})

	var reply historyReply
	assert.Equal(t, HistoryResponse, receive(t, conn, &reply))
	assert.True(t, reply.Success)
	require.Len(t, reply.Transactions, 1)
	assert.Equal(t, int64(200), reply.Transactions[0].Amount)
}

func TestHub_RequestProducts(t *testing.T) {
	d := setupHub(t)
	conn := d.dial(t)

	d.catalog.EXPECT().ListProducts(gomock.Any()).Return([]domain.Product{
		{Name: "Transport", Price: 200, Active: true},
		{Name: "Buy", Price: 100, Active: true},
	}, nil)

	send(t, conn, RequestProducts, nil)

	var reply productsReply
	assert.Equal(t, ProductsResponse, receive(t, conn, &reply))
	assert.True(t, reply.Success)
	assert.Len(t, reply.Products, 2)
}

func TestHub_InvalidAndUnknownMessages(t *testing.T) {
	d := setupHub(t)
	conn := d.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var reply errorReply
	assert.Equal(t, ErrorResponse, receive(t, conn, &reply))
	assert.Equal(t, "Invalid message format", reply.Error)

	send(t, conn, "launch-rockets", nil)
	reply = errorReply{}
	assert.Equal(t, ErrorResponse, receive(t, conn, &reply))
	assert.Contains(t, reply.Error, "launch-rockets")
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	d := setupHub(t)
	a := d.dial(t)
	b := d.dial(t)
	require.Eventually(t, func() bool { return d.hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	d.hub.Broadcast("card-scanned", map[string]string{"uid": "04A1"})

	for _, conn := range []*websocket.Conn{a, b} {
		var data map[string]string
		assert.Equal(t, "card-scanned", receive(t, conn, &data))
		assert.Equal(t, "04A1", data["uid"])
	}
}

func TestHub_HandleEvent(t *testing.T) {
	d := setupHub(t)
	conn := d.dial(t)
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, d.hub.HandleEvent(ctx, domain.LedgerEvent{
		CardUID: "04A1", Type: domain.TransactionTypeTopup, Amount: 500,
		PreviousBalance: 0, NewBalance: 500, Status: domain.TransactionStatusSuccess, Timestamp: ts,
	}))
	var topup MutationNotice
	assert.Equal(t, EventTopupSuccess, receive(t, conn, &topup))
	assert.Equal(t, int64(500), topup.NewBalance)

	require.NoError(t, d.hub.HandleEvent(ctx, domain.LedgerEvent{
		CardUID: "04A1", Type: domain.TransactionTypePayment, Amount: 200,
		PreviousBalance: 500, NewBalance: 300, Status: domain.TransactionStatusSuccess, Timestamp: ts,
	}))
	var paid MutationNotice
	assert.Equal(t, EventPaymentSuccess, receive(t, conn, &paid))
	assert.Equal(t, int64(300), paid.NewBalance)

	require.NoError(t, d.hub.HandleEvent(ctx, domain.LedgerEvent{
		CardUID: "04A1", Type: domain.TransactionTypePayment, Amount: 1000,
		PreviousBalance: 300, NewBalance: 300, Status: domain.TransactionStatusFailed,
		Reason: "Insufficient balance. Required: 1000, Available: 300", Timestamp: ts,
	}))
	var declined DeclineNotice
	assert.Equal(t, EventPaymentDeclined, receive(t, conn, &declined))
	assert.Equal(t, int64(1000), declined.Required)
	assert.Equal(t, int64(300), declined.Available)
	assert.Equal(t, "websocket", d.hub.Name())
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	d := setupHub(t)
	conn := d.dial(t)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return d.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	d := setupHub(t)
	conn := d.dial(t)

	d.hub.Close()
	assert.Equal(t, 0, d.hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived), "got %v", err)
}
