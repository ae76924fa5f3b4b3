package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/example/khanpan/pkg/auth"
	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/metrics"
	"github.com/example/khanpan/pkg/models"
	"github.com/example/khanpan/pkg/notify"
	"github.com/example/khanpan/pkg/recommend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type inbox struct {
	mu    sync.Mutex
	mails []notify.Mail
}

func (i *inbox) Send(_ context.Context, m notify.Mail) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.mails = append(i.mails, m)
	return nil
}

var otpPattern = regexp.MustCompile(`\d{6}`)

func (i *inbox) lastOTP(t *testing.T) string {
	t.Helper()
	i.mu.Lock()
	defer i.mu.Unlock()
	require.NotEmpty(t, i.mails)
	otp := otpPattern.FindString(i.mails[len(i.mails)-1].Body)
	require.NotEmpty(t, otp)
	return otp
}

type fakeRecommender struct {
	reply   string
	err     error
	text    string
	history []recommend.Message
}

func (f *fakeRecommender) Recommend(_ context.Context, text string, history []recommend.Message) (string, error) {
	f.text, f.history = text, history
	if f.err != nil {
		return recommend.FallbackText, f.err
	}
	return f.reply, nil
}

type fixedMenu []models.MenuItem

func (m fixedMenu) Menu(context.Context) ([]models.MenuItem, error) {
	return models.Indexed(m), nil
}

var houseMenu = fixedMenu{
	{Name: "Paneer Tikka", Description: "Grilled cottage cheese", Price: 8},
	{Name: "Dal Tadka", Description: "Yellow lentils", Price: 10},
	{Name: "Garlic Naan", Description: "Leavened bread", Price: 3},
}

type testEnv struct {
	handler     http.Handler
	ledger      *ledger.Service
	inbox       *inbox
	recommender *fakeRecommender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	svc := ledger.NewService(ledger.NewMemoryStore())
	mail := &inbox{}
	authSvc := auth.NewService(auth.NewMemoryUserStore(), mail, auth.NewTokenIssuer("test-secret", time.Hour), 10*time.Minute, logger)
	rec := &fakeRecommender{reply: "Try the Paneer Tikka."}

	cfg := &config.Config{Gateway: config.GatewayConfig{Version: "1.2.3"}}
	gw := NewGateway(cfg, logger, Deps{
		Ledger:      svc,
		Auth:        authSvc,
		Recommender: rec,
		Menu:        houseMenu,
		Metrics:     metrics.New(),
		Checks: map[string]HealthCheck{
			"ledger": func(context.Context) error { return nil },
		},
	})
	gw.SetupRoutes()

	return &testEnv{handler: gw.Handler(), ledger: svc, inbox: mail, recommender: rec}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var out map[string]any
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

// register runs signup, OTP verification and login, returning the token and
// the user id.
func (e *testEnv) register(t *testing.T, email string) (string, string) {
	t.Helper()

	w, _ := e.do(t, http.MethodPost, "/api/auth/signup", jsonBody{"name": "Asha", "email": email}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/auth/verify-otp", jsonBody{"email": email, "otp": e.inbox.lastOTP(t), "password": "s3cret"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/auth/login", jsonBody{"email": email, "password": "s3cret"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

type jsonBody = map[string]any

var dalTadka = []models.OrderItem{{Name: "Dal Tadka", Price: 10, Quantity: 2}}

func TestRootVersionHealth(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Use route /api/food-recommendation with POST method", body["message"])

	w, _ = env.do(t, http.MethodGet, "/version", nil, "")
	assert.Equal(t, "1.2.3", w.Body.String())

	w, body = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "khanpan_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodOptions, "/api/food-recommendation", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{name: "valid", body: jsonBody{"userId": "u1", "items": dalTadka, "total": 21}, wantCode: http.StatusCreated},
		{name: "missing user", body: jsonBody{"items": dalTadka, "total": 21}, wantCode: http.StatusBadRequest},
		{name: "missing total", body: jsonBody{"userId": "u1", "items": dalTadka}, wantCode: http.StatusBadRequest},
		{name: "total not a number", body: jsonBody{"userId": "u1", "items": dalTadka, "total": "21"}, wantCode: http.StatusBadRequest},
		{name: "items not an array", body: jsonBody{"userId": "u1", "items": "dal", "total": 21}, wantCode: http.StatusBadRequest},
		{name: "empty items", body: jsonBody{"userId": "u1", "items": []any{}, "total": 0}, wantCode: http.StatusBadRequest},
		{name: "malformed json", body: "{", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w, body := env.do(t, http.MethodPost, "/api/order", tt.body, "")
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusCreated {
				order := body["order"].(map[string]any)
				assert.Equal(t, "Order placed successfully", body["message"])
				assert.Equal(t, "In progress", order["status"])
				assert.Equal(t, "u1", order["user"])
				assert.NotEmpty(t, order["_id"])
				assert.NotEmpty(t, order["createdAt"])
			}
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodGet, "/api/orders/current/u1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "order")
	assert.Nil(t, body["order"])

	_, body = env.do(t, http.MethodPost, "/api/order", jsonBody{"userId": "u1", "items": dalTadka, "total": 21}, "")
	first := body["order"].(map[string]any)["_id"].(string)
	_, body = env.do(t, http.MethodPost, "/api/order", jsonBody{"userId": "u1", "items": dalTadka, "total": 21}, "")
	second := body["order"].(map[string]any)["_id"].(string)

	_, body = env.do(t, http.MethodGet, "/api/orders/u1", nil, "")
	orders := body["orders"].([]any)
	require.Len(t, orders, 2)
	assert.Equal(t, second, orders[0].(map[string]any)["_id"])

	_, body = env.do(t, http.MethodGet, "/api/orders/current/u1", nil, "")
	assert.Equal(t, second, body["order"].(map[string]any)["_id"])

	w, body = env.do(t, http.MethodPatch, "/api/order/"+second+"/deliver", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order marked as Delivered", body["message"])
	assert.Equal(t, "Delivered", body["order"].(map[string]any)["status"])

	w, _ = env.do(t, http.MethodPatch, "/api/order/"+second+"/deliver", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = env.do(t, http.MethodPatch, "/api/order/unknown/deliver", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", body["message"])

	w, body = env.do(t, http.MethodDelete, "/api/order/"+first, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order deleted", body["message"])

	w, _ = env.do(t, http.MethodDelete, "/api/order/"+first, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	_, body = env.do(t, http.MethodGet, "/api/orders/u1", nil, "")
	assert.Len(t, body["orders"].([]any), 1)
}

func TestListOrdersEmpty(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/api/orders/nobody", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":[]}`, w.Body.String())
}

func TestFoodRecommendation(t *testing.T) {
	tests := []struct {
		name        string
		body        any
		wantText    string
		wantHistory int
	}{
		{name: "array history", body: jsonBody{"text": " spicy? ", "history": []jsonBody{{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}}}, wantText: " spicy? ", wantHistory: 2},
		{name: "string history", body: jsonBody{"text": "veg", "history": `[{"role":"user","content":"hi"}]`}, wantText: "veg", wantHistory: 1},
		{name: "bad string history", body: jsonBody{"text": "veg", "history": "not json"}, wantText: "veg", wantHistory: 0},
		{name: "missing text", body: jsonBody{}, wantText: "Hi", wantHistory: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w, body := env.do(t, http.MethodPost, "/api/food-recommendation", tt.body, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "Try the Paneer Tikka.", body["text"])
			assert.Equal(t, tt.wantText, env.recommender.text)
			assert.Len(t, env.recommender.history, tt.wantHistory)
		})
	}
}

func TestFoodRecommendation_MenuListing(t *testing.T) {
	env := newTestEnv(t)
	env.recommender.reply = `[{"index":1,"name":"Dal Tadka","description":"Yellow lentils","price":10}]`

	_, body := env.do(t, http.MethodPost, "/api/food-recommendation", jsonBody{"text": "menu"}, "")
	menu := body["menu"].([]any)
	require.Len(t, menu, 1)
	assert.Equal(t, "Dal Tadka", menu[0].(map[string]any)["name"])
}

func TestFoodRecommendation_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.recommender.err = errors.New("upstream down")

	w, body := env.do(t, http.MethodPost, "/api/food-recommendation", jsonBody{"text": "hi"}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, recommend.FallbackText, body["text"])
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodPost, "/api/auth/signup", jsonBody{"name": "Asha"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Name and email required.", body["message"])

	w, body = env.do(t, http.MethodPost, "/api/auth/login", jsonBody{"email": "asha@example.com", "password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials or not verified.", body["message"])

	token, userID := env.register(t, "Asha@Example.com")
	assert.NotEmpty(t, userID)

	w, body = env.do(t, http.MethodPost, "/api/auth/signup", jsonBody{"name": "Asha", "email": "asha@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered.", body["message"])

	w, body = env.do(t, http.MethodPost, "/api/auth/verify-otp", jsonBody{"email": "asha@example.com", "otp": "000000"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Already verified.", body["message"])

	w, body = env.do(t, http.MethodPost, "/api/auth/login", jsonBody{"email": "asha@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials.", body["message"])

	w, body = env.do(t, http.MethodGet, "/api/auth/validate", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	user := body["user"].(map[string]any)
	assert.Equal(t, userID, user["id"])
	assert.Equal(t, "asha@example.com", user["email"])

	w, body = env.do(t, http.MethodGet, "/api/auth/validate", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No token provided", body["message"])

	w, body = env.do(t, http.MethodGet, "/api/auth/validate", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ravi@example.com")

	w, body := env.do(t, http.MethodPost, "/api/auth/forgot-password", jsonBody{"email": "nobody@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User not found.", body["message"])

	w, _ = env.do(t, http.MethodPost, "/api/auth/forgot-password", jsonBody{"email": "ravi@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	otp := env.inbox.lastOTP(t)

	w, body = env.do(t, http.MethodPost, "/api/auth/verify-reset-otp", jsonBody{"email": "ravi@example.com", "otp": "999999x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired OTP.", body["message"])

	w, _ = env.do(t, http.MethodPost, "/api/auth/verify-reset-otp", jsonBody{"email": "ravi@example.com", "otp": otp}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = env.do(t, http.MethodPost, "/api/auth/reset-password", jsonBody{"email": "ravi@example.com", "otp": otp, "newPassword": "n3w"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Password reset successful. You can now log in.", body["message"])

	w, _ = env.do(t, http.MethodPost, "/api/auth/login", jsonBody{"email": "ravi@example.com", "password": "n3w"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSession(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register(t, "meera@example.com")

	w, body := env.do(t, http.MethodGet, "/api/me/order", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = env.do(t, http.MethodGet, "/api/me/order", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no_active_order", body["state"])

	w, body = env.do(t, http.MethodPost, "/api/me/order", jsonBody{"items": dalTadka}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	order := body["order"].(map[string]any)
	assert.Equal(t, 21.0, order["total"])
	assert.Equal(t, userID, order["user"])

	w, body = env.do(t, http.MethodPost, "/api/me/order", jsonBody{"items": dalTadka}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "you already have an order in progress", body["message"])

	w, body = env.do(t, http.MethodPut, "/api/me/order", jsonBody{"items": []jsonBody{{"name": "Jeera Rice", "price": 6, "quantity": 1}}}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order["_id"], body["order"].(map[string]any)["_id"])
	assert.Equal(t, 6.3, body["order"].(map[string]any)["total"])

	w, body = env.do(t, http.MethodGet, "/api/me/order", nil, token)
	assert.Equal(t, "order_placed", body["state"])
	assert.Equal(t, 6.3, body["quote"].(map[string]any)["total"])

	w, body = env.do(t, http.MethodGet, "/api/me/orders?period=today&search=jeera", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["orders"].([]any), 1)

	w, _ = env.do(t, http.MethodDelete, "/api/me/order", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = env.do(t, http.MethodDelete, "/api/me/order?confirm=true", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order cancelled", body["message"])

	w, _ = env.do(t, http.MethodDelete, "/api/me/order?confirm=true", nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = env.do(t, http.MethodGet, "/api/me/orders", nil, token)
	assert.Empty(t, body["orders"].([]any))
}

func TestSession_OnlyOwnOrders(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "kabir@example.com")

	_, err := env.ledger.Create(context.Background(), "someone-else", dalTadka, 21)
	require.NoError(t, err)

	_, body := env.do(t, http.MethodGet, "/api/me/order", nil, token)
	assert.Equal(t, "no_active_order", body["state"])

	w, _ := env.do(t, http.MethodDelete, "/api/me/order?confirm=true", nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	orders, err := env.ledger.ListForUser(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestSession_PlaceItemQuantities(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "ira@example.com")

	w, body := env.do(t, http.MethodPost, "/api/me/order", jsonBody{"items": []jsonBody{{"name": "Dal Tadka", "price": 10, "quantity": -5}}}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["message"], "negative quantity")

	w, body = env.do(t, http.MethodPost, "/api/me/order", jsonBody{"items": []jsonBody{{"name": "Naan", "price": 3}}}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	order := body["order"].(map[string]any)
	item := order["items"].([]any)[0].(map[string]any)
	assert.Equal(t, 1.0, item["quantity"])
	assert.Equal(t, 3.15, order["total"])
}

func TestSession_PlaceFromMenuSelections(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "dev@example.com")

	w, body := env.do(t, http.MethodPost, "/api/me/order", jsonBody{"selections": jsonBody{"2": 2, "3": 1, "9": 4}}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	order := body["order"].(map[string]any)
	items := order["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Dal Tadka", items[0].(map[string]any)["name"])
	assert.Equal(t, 10.0, items[0].(map[string]any)["price"])
	assert.Equal(t, "Garlic Naan", items[1].(map[string]any)["name"])
	assert.Equal(t, 24.15, order["total"])
}

func TestSession_PlaceFromEmptySelection(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "sam@example.com")

	w, body := env.do(t, http.MethodPost, "/api/me/order", jsonBody{"selections": jsonBody{"1": 0}}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "order has no items", body["message"])
}

func TestFoodRecommendation_NumberedList(t *testing.T) {
	env := newTestEnv(t)
	env.recommender.reply = "Here are my picks:\n1. Paneer Tikka\n2. Dal Tadka"

	_, body := env.do(t, http.MethodPost, "/api/food-recommendation", jsonBody{"text": "suggest"}, "")
	assert.Equal(t, true, body["recommendations"])
	assert.NotContains(t, body, "menu")

	env.recommender.reply = "Try the Paneer Tikka."
	_, body = env.do(t, http.MethodPost, "/api/food-recommendation", jsonBody{"text": "suggest"}, "")
	assert.NotContains(t, body, "recommendations")
}
