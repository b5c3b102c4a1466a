package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smartpay/internal/adapter/http/handler"
	"smartpay/internal/adapter/http/middleware"
	"smartpay/internal/adapter/storage/memory"
	redisStore "smartpay/internal/adapter/storage/redis"
	"smartpay/internal/adapter/ws"
	"smartpay/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	server     *httptest.Server
	hub        *ws.Hub
	dispatcher *service.EventDispatcher
}

// newTestApp wires the real services over the memory store.
func newTestApp(t *testing.T, opts ...func(*handler.RouterDeps)) *testApp {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()
	walletRepo := memory.NewWalletRepo(store)

	catalog := service.NewCatalogService(memory.NewProductRepo(store), log)
	require.NoError(t, catalog.SeedDefaults(context.Background()))

	dispatcher := service.NewEventDispatcher(1024, time.Second, log, service.NewAuditSubscriber(log))
	ledger := service.NewLedgerService(walletRepo, memory.NewTransactionRepo(store), memory.NewTransactor(store), dispatcher,
		service.LedgerLimits{MaxAmount: 1_000_000_000, LockTimeout: 3 * time.Second, HistoryDefaultLimit: 10, HistoryMaxLimit: 100}, log)
	provisioning := service.NewProvisioningService(memory.NewCardRepo(store), walletRepo, log)

	hub := ws.NewHub(ledger, catalog, log)
	dispatcher.Subscribe(hub)
	dispatcher.Start()

	deps := handler.RouterDeps{
		Ledger:       ledger,
		Provisioning: provisioning,
		Catalog:      catalog,
		Realtime:     hub,
		MaxBodyBytes: 1 << 20,
		Mode:         gin.TestMode,
		Logger:       log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router := handler.SetupRouter(deps)

	app := &testApp{server: httptest.NewServer(router), hub: hub, dispatcher: dispatcher}
	t.Cleanup(func() {
		hub.Close()
		app.server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Close(ctx)
	})
	return app
}

func (a *testApp) post(t *testing.T, path, body string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(a.server.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (a *testApp) get(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(a.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestIntegration_TopupPayDecline(t *testing.T) {
	app := newTestApp(t)

	code, _ := app.post(t, "/api/v1/topup", `{"uid":"X","amount":500}`)
	require.Equal(t, http.StatusCreated, code)

	code, out := app.post(t, "/api/v1/pay", `{"uid":"X","product_id":"Transport","quantity":1,"total_amount":200}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(300), out["data"].(map[string]interface{})["new_balance"])

	code, out = app.post(t, "/api/v1/pay", `{"uid":"X","product_id":"Buy","quantity":10,"total_amount":1000}`)
	require.Equal(t, http.StatusPaymentRequired, code)
	details := out["details"].(map[string]interface{})
	assert.Equal(t, float64(1000), details["required"])
	assert.Equal(t, float64(300), details["available"])

	code, out = app.get(t, "/api/v1/balance/X")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(300), out["data"].(map[string]interface{})["balance"])

	code, out = app.get(t, "/api/v1/transactions/X")
	require.Equal(t, http.StatusOK, code)
	items := out["data"].(map[string]interface{})["items"].([]interface{})
	require.Len(t, items, 3)
	newest := items[0].(map[string]interface{})
	assert.Equal(t, "FAILED", newest["status"])
	assert.Equal(t, newest["previous_balance"], newest["new_balance"])
}

func TestIntegration_UnknownCardGetsZeroBalance(t *testing.T) {
	app := newTestApp(t)

	code, out := app.get(t, "/api/v1/balance/NEWCARD01")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), out["data"].(map[string]interface{})["balance"])

	code, out = app.get(t, "/api/v1/products")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["data"].([]interface{}), 2)
}

// TestIntegration_ConcurrentPayments fires more payments than the balance
// covers and checks that exactly the affordable ones are approved.
func TestIntegration_ConcurrentPayments(t *testing.T) {
	app := newTestApp(t)

	code, _ := app.post(t, "/api/v1/topup", `{"uid":"C0FFEE","amount":1000}`)
	require.Equal(t, http.StatusCreated, code)

	const workers = 40
	var approved, declined, other int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"uid":"C0FFEE","product_id":"P%d","total_amount":100}`, i)
			resp, err := http.Post(app.server.URL+"/api/v1/pay", "application/json", strings.NewReader(body))
			if err != nil {
				atomic.AddInt64(&other, 1)
				return
			}
			resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusCreated:
				atomic.AddInt64(&approved, 1)
			case http.StatusPaymentRequired:
				atomic.AddInt64(&declined, 1)
			default:
				atomic.AddInt64(&other, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(10), approved)
	assert.Equal(t, int64(workers-10), declined)
	assert.Zero(t, other)

	_, out := app.get(t, "/api/v1/balance/C0FFEE")
	assert.Equal(t, float64(0), out["data"].(map[string]interface{})["balance"])
}

func TestIntegration_DashboardSeesCommittedTopup(t *testing.T) {
	app := newTestApp(t)

	url := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return app.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	code, _ := app.post(t, "/api/v1/topup", `{"uid":"D1","amount":75}`)
	require.Equal(t, http.StatusCreated, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.EventTopupSuccess, msg.Type)

	var notice ws.MutationNotice
	require.NoError(t, json.Unmarshal(msg.Data, &notice))
	assert.Equal(t, "D1", notice.UID)
	assert.Equal(t, int64(75), notice.NewBalance)
}

func TestIntegration_RetriedPaymentChargesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	app := newTestApp(t, func(d *handler.RouterDeps) {
		d.IdempotencyCache = redisStore.NewIdempotencyCache(client)
		d.IdempotencyTTL = time.Hour
	})

	code, _ := app.post(t, "/api/v1/topup", `{"uid":"R1","amount":1000}`)
	require.Equal(t, http.StatusCreated, code)

	const retries = 20
	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for i := 0; i < retries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/pay",
				strings.NewReader(`{"uid":"R1","product_id":"Buy","total_amount":100}`))
			if !assert.NoError(t, err) {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(middleware.HeaderIdempotencyKey, "pay-retry-1")
			resp, err := http.DefaultClient.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, created.Load(), int32(1))
	assert.Equal(t, int32(retries), created.Load()+conflicts.Load())

	_, balance := app.get(t, "/api/v1/balance/R1")
	assert.Equal(t, float64(900), balance["data"].(map[string]interface{})["balance"])

	_, history := app.get(t, "/api/v1/transactions/R1")
	items := history["data"].(map[string]interface{})["items"].([]interface{})
	assert.Len(t, items, 2, "one top-up and one payment")
}
