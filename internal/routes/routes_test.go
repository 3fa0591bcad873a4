package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/flowerhaven/internal/cart"
	"github.com/example/flowerhaven/internal/checkout"
	"github.com/example/flowerhaven/internal/config"
	"github.com/example/flowerhaven/internal/handlers"
	"github.com/example/flowerhaven/internal/middleware"
	"github.com/example/flowerhaven/internal/orders"
	"github.com/example/flowerhaven/internal/paystack"
	"github.com/example/flowerhaven/internal/testutil"
)

const (
	webhookSecret = "sk_test_routes"
	adminPhone    = "+2348000000000"
	adminPassword = "roses-are-red"
)

// paystackStub answers initialize with a fixed reference and verify with status.
type paystackStub struct {
	mu     sync.Mutex
	status string
	amount int64
}

func (p *paystackStub) set(status string, amount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status, p.amount = status, amount
}

func (p *paystackStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/ac_9","access_code":"ac_9","reference":"ref_9"}}`))
	})
	mux.HandleFunc("GET /transaction/verify/{reference}", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		status, amount := p.status, p.amount
		p.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"reference": r.PathValue("reference"),
				"status":    status,
				"amount":    amount,
			},
		})
	})
	return mux
}

type testApp struct {
	app      *fiber.App
	stub     *paystackStub
	payments *paystack.Repository
	sessions *cart.Sessions
	cookie   string
	token    string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := &config.Config{
		AppEnv:            "development",
		JWTSecret:         "jwt-secret",
		TokenExpires:      time.Hour,
		CartTTL:           time.Hour,
		PaystackSecretKey: webhookSecret,
	}

	_, err := handlers.SeedAdmin(db, adminPhone, adminPassword)
	require.NoError(t, err)

	stub := &paystackStub{status: paystack.StatusPending}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	payments := paystack.NewRepository(db)
	client := paystack.NewClient(paystack.Config{SecretKey: webhookSecret, BaseURL: srv.URL})
	gateway := paystack.NewGateway(client, payments, 5*time.Millisecond, nil)
	ordersRepo := orders.NewRepository(db)

	storages := sync.Map{}
	sessions := cart.NewSessions(func(id string) cart.Storage {
		s, _ := storages.LoadOrStore(id, cart.NewMemoryStorage())
		return s.(*cart.MemoryStorage)
	}, nil, cart.WithCatalog(handlers.NewProductCatalog(db)))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	Register(app, Deps{
		Config:    cfg,
		DB:        db,
		Sessions:  sessions,
		Checkouts: checkout.NewRegistry(gateway, ordersRepo, nil),
		Orders:    ordersRepo,
		Payments:  payments,
		Gateway:   gateway,
	})

	return &testApp{app: app, stub: stub, payments: payments, sessions: sessions}
}

func (a *testApp) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.cookie != "" {
		req.Header.Set("Cookie", middleware.SessionCookie+"="+a.cookie)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			a.cookie = c.Value
		}
	}

	out := map[string]any{}
	if raw, _ := io.ReadAll(resp.Body); len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"phone":    adminPhone,
		"password": adminPassword,
	})
	require.Equal(t, http.StatusOK, status, body)
	a.token = body["token"].(string)
}

func (a *testApp) createProduct(t *testing.T, name, price string, stock int) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/products", map[string]any{
		"name":           name,
		"price":          price,
		"stock_quantity": stock,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["data"].(map[string]any)["id"].(string)
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func checkoutForm() map[string]any {
	return map[string]any{
		"full_name":     "Ada Obi",
		"phone_number":  "+2348012345678",
		"email":         "ada@example.com",
		"address":       "12 Marina Road",
		"location":      "Lagos",
		"delivery_date": time.Now().AddDate(0, 0, 3).Format(checkout.DateLayout),
		"time_slot":     "10:00",
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{"/api/orders", "/api/dashboard", "/api/paystack/payments", "/api/auth/me"} {
		status, body := a.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, false, body["success"])
	}

	status, _ := a.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Tulips", "price": "10"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCartFlow(t *testing.T) {
	a := newTestApp(t)
	a.login(t)
	roses := a.createProduct(t, "Red Roses", "12.50", 10)
	soldOut := a.createProduct(t, "Peonies", "30", 0)
	a.token = ""

	status, body := a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": roses, "quantity": 2})
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, a.cookie)
	assert.Equal(t, "25", data(body)["total"])

	status, _ = a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": soldOut})
	assert.Equal(t, http.StatusConflict, status)

	status, body = a.do(t, http.MethodPatch, "/api/cart/items/"+roses, map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "37.5", data(body)["total"])
	assert.EqualValues(t, 3, data(body)["item_count"])

	status, body = a.do(t, http.MethodDelete, "/api/cart/items/"+roses, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, data(body)["item_count"])
}

func TestCartPriceFollowsCatalog(t *testing.T) {
	a := newTestApp(t)
	a.login(t)
	roses := a.createProduct(t, "Red Roses", "12.50", 10)

	token := a.token
	a.token = ""
	_, _ = a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": roses, "quantity": 2})

	a.token = token
	status, _ := a.do(t, http.MethodPut, "/api/products/"+roses, map[string]any{
		"name":           "Red Roses",
		"price":          "15",
		"stock_quantity": 10,
	})
	require.Equal(t, http.StatusOK, status)

	a.token = ""
	_, body := a.do(t, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, "30", data(body)["total"])
}

func TestPrunedCartPicksUpNewPrice(t *testing.T) {
	a := newTestApp(t)
	a.login(t)
	roses := a.createProduct(t, "Red Roses", "12.50", 10)

	token := a.token
	a.token = ""
	_, _ = a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": roses, "quantity": 2})

	// the cart leaves memory before the price changes, so only storage holds the old price
	require.Equal(t, 1, a.sessions.Prune(0, nil))

	a.token = token
	status, _ := a.do(t, http.MethodPut, "/api/products/"+roses, map[string]any{
		"name":           "Garden Roses",
		"price":          "15",
		"stock_quantity": 10,
	})
	require.Equal(t, http.StatusOK, status)

	a.token = ""
	_, body := a.do(t, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, "30", data(body)["total"])

	items := data(body)["items"].([]any)
	require.Len(t, items, 1)
	product := items[0].(map[string]any)["product"].(map[string]any)
	assert.Equal(t, "Garden Roses", product["name"])
}

func TestStuckCheckoutRoutes(t *testing.T) {
	a := newTestApp(t)
	a.login(t)
	roses := a.createProduct(t, "Red Roses", "12.50", 10)
	token := a.token

	status, body := a.do(t, http.MethodGet, "/api/dashboard/checkouts", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, body["data"])

	status, _ = a.do(t, http.MethodPost, "/api/dashboard/checkouts/nobody/resolve", nil)
	assert.Equal(t, http.StatusNotFound, status)

	a.token = ""
	_, _ = a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": roses, "quantity": 1})
	status, _ = a.do(t, http.MethodPost, "/api/checkout", checkoutForm())
	require.Equal(t, http.StatusCreated, status)

	// an unpaid checkout is not a reconciliation and cannot be resolved
	a.token = token
	status, _ = a.do(t, http.MethodPost, "/api/dashboard/checkouts/"+a.cookie+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, status)

	a.token = ""
	status, _ = a.do(t, http.MethodPost, "/api/dashboard/checkouts/"+a.cookie+"/resolve", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCheckoutFlow(t *testing.T) {
	a := newTestApp(t)
	a.login(t)
	roses := a.createProduct(t, "Red Roses", "12.50", 10)
	token := a.token
	a.token = ""

	status, body := a.do(t, http.MethodPost, "/api/checkout", checkoutForm())
	assert.Equal(t, http.StatusBadRequest, status, "empty cart")
	assert.Equal(t, checkout.ErrEmptyCart.Error(), body["error"])

	_, _ = a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": roses, "quantity": 2})

	bad := checkoutForm()
	delete(bad, "email")
	status, body = a.do(t, http.MethodPost, "/api/checkout", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["fields"], "email")

	status, body = a.do(t, http.MethodPost, "/api/checkout", checkoutForm())
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "ref_9", data(body)["reference"])
	assert.Equal(t, "ac_9", data(body)["access_code"])

	// still pending at the provider
	status, body = a.do(t, http.MethodPost, "/api/checkout/confirm", map[string]string{"reference": "ref_9"})
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, string(checkout.StateAwaitingPaymentConfirmation), data(body)["state"])

	status, _ = a.do(t, http.MethodPost, "/api/checkout/confirm", map[string]string{"reference": "ref_other"})
	assert.Equal(t, http.StatusBadRequest, status)

	a.stub.set(paystack.StatusSuccess, 2500)
	status, body = a.do(t, http.MethodPost, "/api/checkout/confirm", map[string]string{"reference": "ref_9"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(checkout.StateCompleted), data(body)["state"])
	order := data(body)["order"].(map[string]any)
	assert.Equal(t, "25", order["total_amount"])

	_, body = a.do(t, http.MethodGet, "/api/cart", nil)
	assert.EqualValues(t, 0, data(body)["item_count"])

	payment, err := a.payments.GetPaymentByReference(t.Context(), "ref_9")
	require.NoError(t, err)
	assert.Equal(t, paystack.StatusSuccess, payment.Status)

	a.token = token
	status, body = a.do(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = a.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, data(body)["unreconciled_payments"])
}

func TestCheckoutDeclinedPayment(t *testing.T) {
	a := newTestApp(t)
	a.login(t)
	roses := a.createProduct(t, "Red Roses", "12.50", 10)
	a.token = ""

	_, _ = a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": roses})
	status, _ := a.do(t, http.MethodPost, "/api/checkout", checkoutForm())
	require.Equal(t, http.StatusCreated, status)

	a.stub.set(paystack.StatusFailed, 1250)
	status, body := a.do(t, http.MethodPost, "/api/checkout/confirm", map[string]string{"reference": "ref_9"})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, string(checkout.StateIdle), data(body)["state"])

	_, body = a.do(t, http.MethodGet, "/api/cart", nil)
	assert.EqualValues(t, 1, data(body)["item_count"])
}

func TestCheckoutAbandon(t *testing.T) {
	a := newTestApp(t)
	a.login(t)
	roses := a.createProduct(t, "Red Roses", "12.50", 10)
	a.token = ""

	_, _ = a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": roses})
	status, _ := a.do(t, http.MethodPost, "/api/checkout", checkoutForm())
	require.Equal(t, http.StatusCreated, status)

	status, body := a.do(t, http.MethodPost, "/api/checkout/abandon", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(checkout.StateIdle), data(body)["state"])

	status, _ = a.do(t, http.MethodPost, "/api/checkout/confirm", map[string]string{"reference": "ref_9"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = a.do(t, http.MethodPost, "/api/checkout/retry", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestTimeSlots(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, http.MethodGet, "/api/checkout/time-slots", nil)
	require.Equal(t, http.StatusOK, status)
	slots := body["data"].([]any)
	require.Len(t, slots, 9)
	assert.Equal(t, "9 AM - 10 AM", slots[0].(map[string]any)["label"])
}

func TestPaystackWebhook(t *testing.T) {
	a := newTestApp(t)
	payload := []byte(`{"event":"charge.success","data":{"reference":"ref_unknown"}}`)

	send := func(signature string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/paystack/webhook", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set(paystack.SignatureHeader, signature)
		}
		resp, err := a.app.Test(req, -1)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send(paystack.Sign("wrong", payload)))
	assert.Equal(t, http.StatusOK, send(paystack.Sign(webhookSecret, payload)))

	events, total, err := a.payments.ListEvents(t.Context(), paystack.EventChargeSuccess, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, events, 1)
}

func TestUnknownRouteIsJSON(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
}
