package repository

import (
	"context"

	"github.com/scenekit/builder-backend/internal/domain"
	"gorm.io/gorm"
)

// ItemRepository item data access
type ItemRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Item, error)
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Item, error)
	// FindDCLByCollectionID returns the factory items of a collection, skipping third-party ones
	FindDCLByCollectionID(ctx context.Context, collectionID string) ([]*domain.Item, error)
	UpdateLocalContentHash(ctx context.Context, id, hash string) error
	Create(ctx context.Context, item *domain.Item) error
}

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new ItemRepository
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) FindByID(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Item, error) {
	if len(ids) == 0 {
		return []*domain.Item{}, nil
	}
	var items []*domain.Item
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}

func (r *itemRepository) FindDCLByCollectionID(ctx context.Context, collectionID string) ([]*domain.Item, error) {
	var items []*domain.Item
	err := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Where("urn_suffix IS NULL OR urn_suffix = ''").
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *itemRepository) UpdateLocalContentHash(ctx context.Context, id, hash string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ?", id).
		UpdateColumn("local_content_hash", hash).Error
}

func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}
