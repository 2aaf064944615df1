package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gardenshop-tracker/internal/model"
	"gardenshop-tracker/internal/parse"
	"gardenshop-tracker/internal/store"
)

// shopResponse is the API view of a shop's mirrored state.
type shopResponse struct {
	Key              string       `json:"key"`
	Name             string       `json:"name"`
	Items            []model.Item `json:"items"`
	RemainingSeconds int64        `json:"remainingSeconds"`
	Countdown        string       `json:"countdown"`
	RestockedAt      *time.Time   `json:"restockedAt"`
	ObservedAt       *time.Time   `json:"observedAt"`
}

func toShopResponse(shop model.Shop) (shopResponse, error) {
	items, err := shop.ItemList()
	if err != nil {
		return shopResponse{}, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return shopResponse{
		Key:              shop.Key,
		Name:             shop.DisplayName,
		Items:            items,
		RemainingSeconds: shop.RemainingSeconds,
		Countdown:        parse.FormatCountdown(time.Duration(shop.RemainingSeconds) * time.Second),
		RestockedAt:      shop.RestockedAt,
		ObservedAt:       shop.ObservedAt,
	}, nil
}

// GetShops handles the GET /api/shops request.
func (h *Handler) GetShops(c *gin.Context) {
	shops, err := h.store.ListShops(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve shops"})
		return
	}

	responses := make([]shopResponse, 0, len(shops))
	for _, shop := range shops {
		resp, err := toShopResponse(shop)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode shop items"})
			return
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}

// GetShop handles the GET /api/shops/{key} request.
func (h *Handler) GetShop(c *gin.Context) {
	key := model.ShopKey(c.Param("key"))
	if !key.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Unknown shop"})
		return
	}

	shop, err := h.store.GetShop(c.Request.Context(), key)
	if errors.Is(err, store.ErrNotFound) || (err == nil && shop.ObservedAt == nil) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Shop has not been observed yet"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve shop"})
		return
	}

	resp, err := toShopResponse(shop)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode shop items"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
