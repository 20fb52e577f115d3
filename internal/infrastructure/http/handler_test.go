package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appcart "github.com/orderstack/storefront/internal/application/cart"
	appcheckout "github.com/orderstack/storefront/internal/application/checkout"
	appordering "github.com/orderstack/storefront/internal/application/ordering"
	"github.com/orderstack/storefront/internal/infrastructure/id"
	"github.com/orderstack/storefront/internal/infrastructure/memory"
	"github.com/orderstack/storefront/internal/infrastructure/outbox"
	paymentworker "github.com/orderstack/storefront/internal/infrastructure/payment/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	srv    *httptest.Server
	orders *memory.OrderRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()

	carts := memory.NewCartRepository()
	catalog := memory.NewCatalogRepository()
	orders := memory.NewOrderRepository()

	bus := outbox.NewBus(nil)
	bus.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})

	cartSvc := appcart.NewService(carts, nil)
	checkoutUC := appcheckout.New(carts, catalog, orders, id.NewUUIDGenerator(), bus, nil)
	orderingSvc := appordering.NewService(orders, catalog, bus, nil)
	paymentworker.New(bus, orderingSvc, nil).Start()

	h := NewHandler(cartSvc, checkoutUC, orderingSvc, catalog, bus)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	return &env{srv: srv, orders: orders}
}

func (e *env) do(t *testing.T, method, path, userID string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *env) seedProduct(t *testing.T, productID string, price int64, stock int) {
	t.Helper()
	resp := e.do(t, http.MethodPut, "/admin/products/"+productID, "", map[string]any{
		"name": "Product " + productID, "unit_price": price, "stock": stock, "active": true,
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCartCheckoutCancelFlow(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "P1", 10000, 5)

	resp := e.do(t, http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": "P1", "quantity": 2})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/checkout", "u1", map[string]any{
		"shipping_address": "somewhere", "payment_method": "card",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decodeBody[orderResponse](t, resp)
	assert.Equal(t, int64(20000), placed.TotalAmount)
	assert.Equal(t, "pending", placed.Status)

	// Stock dropped; the cart is empty again.
	resp = e.do(t, http.MethodPost, "/admin/products/P1/stock", "", map[string]any{"delta": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stock := decodeBody[adjustStockResponse](t, resp)
	assert.Equal(t, 4, stock.Stock)

	resp = e.do(t, http.MethodGet, "/cart", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decodeBody[cartResponse](t, resp)
	assert.Empty(t, cart.Lines)

	resp = e.do(t, http.MethodGet, "/orders/"+placed.ID, "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/orders/"+placed.ID+"/cancel", "u1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/orders/"+placed.ID+"/cancel", "u1", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode, "second cancel is an invalid transition")
}

func TestCheckoutEmptyCartIsBadRequest(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPost, "/checkout", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutInsufficientStockIsConflict(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "P1", 10000, 1)

	resp := e.do(t, http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": "P1", "quantity": 3})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/checkout", "u1", map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMissingUserHeaderIsUnauthorized(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/cart", "/orders"} {
		resp := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestOrderAccessControl(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "P1", 10000, 5)

	resp := e.do(t, http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": "P1", "quantity": 1})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/checkout", "u1", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decodeBody[orderResponse](t, resp)

	resp = e.do(t, http.MethodGet, "/orders/"+placed.ID, "u2", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/orders/"+placed.ID+"/cancel", "u2", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/orders/missing", "u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminStatusAdvance(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "P1", 10000, 5)
	resp := e.do(t, http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": "P1", "quantity": 1})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/checkout", "u1", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decodeBody[orderResponse](t, resp)

	resp = e.do(t, http.MethodPost, "/admin/orders/"+placed.ID+"/status", "", map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/admin/orders/"+placed.ID+"/status", "", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "confirmed cannot jump straight to completed")

	resp = e.do(t, http.MethodPost, "/admin/orders/"+placed.ID+"/status", "", map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaymentWebhookSettlesAsynchronously(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "P1", 10000, 5)
	resp := e.do(t, http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": "P1", "quantity": 1})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/checkout", "u1", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decodeBody[orderResponse](t, resp)

	resp = e.do(t, http.MethodPost, "/webhooks/payment", "", map[string]any{
		"order_id": placed.ID, "status": "paid",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		o, err := e.orders.Get(context.Background(), placed.ID)
		return err == nil && o.PaymentStatus == "paid"
	}, 2*time.Second, 10*time.Millisecond)

	resp = e.do(t, http.MethodPost, "/webhooks/payment", "", map[string]any{
		"order_id": placed.ID, "status": "pending",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdjustStockRejectsOverdraw(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "P1", 10000, 2)

	resp := e.do(t, http.MethodPost, "/admin/products/P1/stock", "", map[string]any{"delta": -5})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/admin/products/P1/stock", "", map[string]any{"delta": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/admin/products/missing/stock", "", map[string]any{"delta": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
