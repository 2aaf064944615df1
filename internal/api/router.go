package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"gardenshop-tracker/config"
	"gardenshop-tracker/internal/mw"
	"gardenshop-tracker/internal/store"
)

// NewRouter creates and configures the gin router for the status API.
func NewRouter(cfg config.ServerConfig, s store.Store, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	handler := NewHandler(s, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 10*ttl), ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/shops", caching, handler.GetShops)
		api.GET("/shops/:key", caching, handler.GetShop)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

// NewHandlerWithCORS wraps the router so browser clients on other origins
// can register push subscriptions.
func NewHandlerWithCORS(cfg config.ServerConfig, router http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}
