package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gardenshop-tracker/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	SaveShops(ctx context.Context, shops []model.TrackedShop) error
	ListShops(ctx context.Context) ([]model.Shop, error)
	GetShop(ctx context.Context, key model.ShopKey) (model.Shop, error)

	PutSubscription(ctx context.Context, sub model.PushSubscription, keys []model.ShopKey) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscribersFor(ctx context.Context, key model.ShopKey) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// SaveShops overwrites the mirror rows of the given shops in one transaction.
func (s *gormStore) SaveShops(ctx context.Context, shops []model.TrackedShop) error {
	if len(shops) == 0 {
		return nil
	}

	rows := make([]model.Shop, 0, len(shops))
	for _, shop := range shops {
		row, err := toRow(shop)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "items", "remaining_seconds", "restocked_at", "observed_at", "updated_at"}),
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("batch upsert shops failed: %w", err)
		}
		return nil
	})
}

// ListShops returns every shop that has been observed, in display order.
func (s *gormStore) ListShops(ctx context.Context) ([]model.Shop, error) {
	var shops []model.Shop
	if err := s.db.WithContext(ctx).Where("observed_at IS NOT NULL").Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	slices.SortFunc(shops, func(a, b model.Shop) int {
		return displayIndex(a.Key) - displayIndex(b.Key)
	})
	return shops, nil
}

func (s *gormStore) GetShop(ctx context.Context, key model.ShopKey) (model.Shop, error) {
	var shop model.Shop
	err := s.db.WithContext(ctx).Where(&model.Shop{Key: string(key)}).First(&shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Shop{}, ErrNotFound
	}
	if err != nil {
		return model.Shop{}, fmt.Errorf("failed to get shop %s: %w", key, err)
	}
	return shop, nil
}

// PutSubscription creates or replaces a subscription and its shop set.
func (s *gormStore) PutSubscription(ctx context.Context, sub model.PushSubscription, keys []model.ShopKey) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Shops").Create(&sub).Error; err != nil {
			return err
		}

		var shops []model.Shop
		if len(keys) > 0 {
			names := make([]string, len(keys))
			for i, k := range keys {
				names[i] = string(k)
			}
			if err := tx.Where(map[string]any{"key": names}).Find(&shops).Error; err != nil {
				return err
			}
		}

		association := tx.Model(&sub).Association("Shops")
		if len(shops) == 0 {
			return association.Clear()
		}
		return association.Replace(&shops)
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Shops").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PushSubscription{}, ErrNotFound
	}
	if err != nil {
		return model.PushSubscription{}, err
	}
	return sub, nil
}

// DeleteSubscription removes a subscription together with its shop mappings.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Select("Shops").Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

func (s *gormStore) SubscribersFor(ctx context.Context, key model.ShopKey) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_shop_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.shop_key = ?", string(key)).
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscribers for shop %s: %w", key, err)
	}
	return subscriptions, nil
}

func toRow(shop model.TrackedShop) (model.Shop, error) {
	items := shop.Items
	if items == nil {
		items = []model.Item{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return model.Shop{}, fmt.Errorf("failed to encode items for shop %s: %w", shop.Key, err)
	}

	remaining := int64(shop.Remaining / time.Second)
	if remaining < 0 {
		remaining = 0
	}

	restockedAt, observedAt := shop.RestockedAt, shop.ObservedAt
	return model.Shop{
		Key:              string(shop.Key),
		DisplayName:      shop.Key.DisplayName(),
		Items:            string(encoded),
		RemainingSeconds: remaining,
		RestockedAt:      &restockedAt,
		ObservedAt:       &observedAt,
	}, nil
}

func displayIndex(key string) int {
	if i := slices.Index(model.TrackedShops, model.ShopKey(key)); i >= 0 {
		return i
	}
	return len(model.TrackedShops)
}
