package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Shop is the persisted mirror of a tracked shop's latest state.
type Shop struct {
	Key              string    `gorm:"primaryKey;size:32"`
	DisplayName      string    `gorm:"size:64;not null"`
	Items            string    `gorm:"type:text;not null"` // JSON-encoded []Item
	RemainingSeconds int64     `gorm:"not null"`
	RestockedAt      *time.Time
	ObservedAt       *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// ItemList decodes the stored item listing.
func (s Shop) ItemList() ([]Item, error) {
	var items []Item
	if s.Items == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(s.Items), &items); err != nil {
		return nil, fmt.Errorf("failed to decode items for shop %s: %w", s.Key, err)
	}
	return items, nil
}
