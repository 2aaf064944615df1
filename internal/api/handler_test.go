package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gardenshop-tracker/config"
	"gardenshop-tracker/internal/db"
	"gardenshop-tracker/internal/model"
	"gardenshop-tracker/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestStore(t *testing.T) store.Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return store.NewGormStore(gormDB)
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		RateLimitPerSec: 100,
		RateLimitBurst:  100,
		CacheTTLSeconds: 1,
		AllowedOrigins:  []string{"*"},
	}
}

func doRequest(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetShop(t *testing.T) {
	s := newTestStore(t)
	router := NewRouter(testServerConfig(), s, nil)

	w := doRequest(router, http.MethodGet, "/api/shops/bakery", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/shops/seed", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	now := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.SaveShops(context.Background(), []model.TrackedShop{{
		Key:         model.ShopSeed,
		Items:       []model.Item{{Emoji: "🥕", Name: "Carrot", Quantity: 12}},
		Remaining:   4*time.Minute + 20*time.Second,
		RestockedAt: now,
		ObservedAt:  now,
	}}))

	w = doRequest(router, http.MethodGet, "/api/shops/seed", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got shopResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "seed", got.Key)
	assert.Equal(t, "Seed Shop", got.Name)
	assert.Equal(t, []model.Item{{Emoji: "🥕", Name: "Carrot", Quantity: 12}}, got.Items)
	assert.Equal(t, int64(260), got.RemainingSeconds)
	assert.Equal(t, "00h 04m 20s", got.Countdown)
	require.NotNil(t, got.ObservedAt)
	assert.True(t, now.Equal(*got.ObservedAt))
}

func TestGetShops(t *testing.T) {
	s := newTestStore(t)
	router := NewRouter(testServerConfig(), s, nil)

	w := doRequest(router, http.MethodGet, "/api/shops", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	now := time.Now().UTC()
	require.NoError(t, s.SaveShops(context.Background(), []model.TrackedShop{
		{Key: model.ShopGear, Remaining: time.Minute, RestockedAt: now, ObservedAt: now},
		{Key: model.ShopEgg, Remaining: 2 * time.Minute, RestockedAt: now, ObservedAt: now},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/shops", nil)
	req.Header.Set("Cache-Control", "no-cache")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got []shopResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "egg", got[0].Key)
	assert.Equal(t, "gear", got[1].Key)
	assert.Equal(t, []model.Item{}, got[1].Items)
}

func TestSubscriptionLifecycle(t *testing.T) {
	router := NewRouter(testServerConfig(), newTestStore(t), nil)
	const endpoint = "https://push.example.com/send/abc"

	w := doRequest(router, http.MethodGet, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := `{"endpoint":"` + endpoint + `","p256dh":"key","auth":"secret","subscribed_shops":["seed","gear"]}`
	w = doRequest(router, http.MethodPut, "/api/subscriptions", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		SubscribedShops []string `json:"subscribed_shops"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.ElementsMatch(t, []string{"seed", "gear"}, got.SubscribedShops)

	body = `{"endpoint":"` + endpoint + `","p256dh":"key","auth":"secret","subscribed_shops":[]}`
	w = doRequest(router, http.MethodPut, "/api/subscriptions", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_shops":[]}`, w.Body.String())

	w = doRequest(router, http.MethodDelete, "/api/subscriptions", `{"endpoint":"`+endpoint+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutSubscription_Invalid(t *testing.T) {
	router := NewRouter(testServerConfig(), newTestStore(t), nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "missing keys", body: `{"endpoint":"https://push.example.com/x"}`},
		{name: "unknown shop", body: `{"endpoint":"https://push.example.com/x","p256dh":"k","auth":"a","subscribed_shops":["bakery"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPut, "/api/subscriptions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetVAPIDPublicKey(t *testing.T) {
	s := newTestStore(t)

	w := doRequest(NewRouter(testServerConfig(), s, nil), http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	router := NewRouter(testServerConfig(), s, &webpush.Options{VAPIDPublicKey: "BPub"})
	w = doRequest(router, http.MethodGet, "/api/vapid_public_key", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPub"}`, w.Body.String())
}

func TestNewHandlerWithCORS(t *testing.T) {
	cfg := testServerConfig()
	cfg.AllowedOrigins = []string{"https://garden.example.com"}
	h := NewHandlerWithCORS(cfg, NewRouter(cfg, newTestStore(t), nil))

	req := httptest.NewRequest(http.MethodGet, "/api/shops", nil)
	req.Header.Set("Origin", "https://garden.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://garden.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
