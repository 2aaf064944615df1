package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"gardenshop-tracker/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler. webpushOptions may be nil when push
// notifications are disabled.
func NewHandler(s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		webpush: webpushOptions,
	}
}
