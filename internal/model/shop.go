package model

import (
	"fmt"
	"slices"
	"time"
)

// ShopKey identifies one of the tracked in-game shops.
type ShopKey string

const (
	ShopEgg               ShopKey = "egg"
	ShopSeed              ShopKey = "seed"
	ShopGear              ShopKey = "gear"
	ShopTravelingMerchant ShopKey = "travelingmerchant"
)

// TrackedShops lists every tracked shop in display order.
var TrackedShops = []ShopKey{ShopEgg, ShopSeed, ShopGear, ShopTravelingMerchant}

var displayNames = map[ShopKey]string{
	ShopEgg:               "Egg Shop",
	ShopSeed:              "Seed Shop",
	ShopGear:              "Gear Shop",
	ShopTravelingMerchant: "Traveling Merchant",
}

// DisplayName returns the human-readable shop name used in reports and alerts.
func (k ShopKey) DisplayName() string {
	if name, ok := displayNames[k]; ok {
		return name
	}
	return string(k)
}

// Valid reports whether k is one of the tracked shops.
func (k ShopKey) Valid() bool {
	_, ok := displayNames[k]
	return ok
}

// Item is a single listing in a shop.
type Item struct {
	Emoji    string `json:"emoji"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func (i Item) String() string {
	return fmt.Sprintf("%s %s x%d", i.Emoji, i.Name, i.Quantity)
}

// SameItems reports whether two listings are identical, order included.
// A nil listing equals an empty one.
func SameItems(a, b []Item) bool {
	return slices.Equal(a, b)
}

// ShopSection is one shop's entry in an upstream payload.
type ShopSection struct {
	Items     []Item `json:"items"`
	Countdown string `json:"countdown"`
	AppearIn  string `json:"appearIn"`
}

// CountdownText returns "countdown", falling back to "appearIn".
func (s ShopSection) CountdownText() string {
	if s.Countdown != "" {
		return s.Countdown
	}
	return s.AppearIn
}

// TrackedShop is the locally tracked state of one shop.
type TrackedShop struct {
	Key         ShopKey
	Items       []Item
	Remaining   time.Duration
	RestockedAt time.Time
	ObservedAt  time.Time
}
