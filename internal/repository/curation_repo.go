package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scenekit/builder-backend/internal/domain"
	"gorm.io/gorm"
)

// CurationStore is the per-kind persistence of curation history rows.
// "Latest" is the row with the greatest created_at per foreign entity, ties broken by greatest id.
type CurationStore[T any] interface {
	GetLatest(ctx context.Context) ([]*T, error)
	GetLatestByIDs(ctx context.Context, ids []string) ([]*T, error)
	GetLatestByID(ctx context.Context, id string) (*T, error)
	FindByID(ctx context.Context, curationID string) (*T, error)
	Create(ctx context.Context, curation *T) error
	UpdateByID(ctx context.Context, curationID string, updates map[string]any) error
	// UpdatePendingByID writes updates only while the row is pending and reports whether it did
	UpdatePendingByID(ctx context.Context, curationID string, updates map[string]any) (bool, error)
}

type curationStore[T any] struct {
	db         *gorm.DB
	table      string
	foreignKey string
}

func (s *curationStore[T]) latest(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table(s.table+" AS c").
		Select("c.*").
		Where(fmt.Sprintf(
			"NOT EXISTS (SELECT 1 FROM %[1]s n WHERE n.%[2]s = c.%[2]s AND (n.created_at > c.created_at OR (n.created_at = c.created_at AND n.id > c.id)))",
			s.table, s.foreignKey,
		))
}

func (s *curationStore[T]) GetLatest(ctx context.Context) ([]*T, error) {
	var rows []*T
	err := s.latest(ctx).Order("c.created_at DESC").Find(&rows).Error
	return rows, err
}

func (s *curationStore[T]) GetLatestByIDs(ctx context.Context, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	var rows []*T
	err := s.latest(ctx).
		Where("c."+s.foreignKey+" IN ?", ids).
		Order("c.created_at DESC").
		Find(&rows).Error
	return rows, err
}

// GetLatestByID returns nil without error when the entity was never curated
func (s *curationStore[T]) GetLatestByID(ctx context.Context, id string) (*T, error) {
	var row T
	err := s.db.WithContext(ctx).
		Where(s.foreignKey+" = ?", id).
		Order("created_at DESC").
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *curationStore[T]) FindByID(ctx context.Context, curationID string) (*T, error) {
	var row T
	if err := s.db.WithContext(ctx).Where("id = ?", curationID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *curationStore[T]) Create(ctx context.Context, curation *T) error {
	return s.db.WithContext(ctx).Create(curation).Error
}

func (s *curationStore[T]) UpdateByID(ctx context.Context, curationID string, updates map[string]any) error {
	return s.db.WithContext(ctx).Model(new(T)).Where("id = ?", curationID).Updates(updates).Error
}

func (s *curationStore[T]) UpdatePendingByID(ctx context.Context, curationID string, updates map[string]any) (bool, error) {
	result := s.db.WithContext(ctx).Model(new(T)).
		Where("id = ? AND status = ?", curationID, domain.CurationStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CollectionCurationRepository collection curation data access
type CollectionCurationRepository interface {
	CurationStore[domain.CollectionCuration]
	// TouchLatestByItemID bumps updated_at on the latest curation of the item's collection
	TouchLatestByItemID(ctx context.Context, itemID string, at time.Time) error
	WithTx(tx *gorm.DB) CollectionCurationRepository
}

type collectionCurationRepository struct {
	curationStore[domain.CollectionCuration]
}

// NewCollectionCurationRepository creates a new CollectionCurationRepository
func NewCollectionCurationRepository(db *gorm.DB) CollectionCurationRepository {
	return &collectionCurationRepository{
		curationStore: curationStore[domain.CollectionCuration]{
			db:         db,
			table:      domain.CollectionCuration{}.TableName(),
			foreignKey: "collection_id",
		},
	}
}

func (r *collectionCurationRepository) WithTx(tx *gorm.DB) CollectionCurationRepository {
	return NewCollectionCurationRepository(tx)
}

// TouchLatestByItemID resolves the parent curation through the items table and then
// updates it by id, since MySQL rejects a self-referencing subquery in UPDATE.
// Items without a curated collection are a no-op.
func (r *collectionCurationRepository) TouchLatestByItemID(ctx context.Context, itemID string, at time.Time) error {
	var target domain.CollectionCuration
	err := r.db.WithContext(ctx).
		Table(r.table+" AS cc").
		Select("cc.*").
		Joins("JOIN items i ON i.collection_id = cc.collection_id").
		Where("i.id = ?", itemID).
		Order("cc.created_at DESC").
		Order("cc.id DESC").
		Take(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find parent curation of item %s: %w", itemID, err)
	}

	return r.db.WithContext(ctx).
		Model(&domain.CollectionCuration{}).
		Where("id = ?", target.ID).
		UpdateColumn("updated_at", at).Error
}

// ItemCurationRepository item curation data access
type ItemCurationRepository interface {
	CurationStore[domain.ItemCuration]
	// FindLatestByCollectionID returns the latest curation of each curated item in the collection,
	// optionally restricted to itemIDs
	FindLatestByCollectionID(ctx context.Context, collectionID string, itemIDs []string) ([]*domain.ItemCuration, error)
	WithTx(tx *gorm.DB) ItemCurationRepository
}

type itemCurationRepository struct {
	curationStore[domain.ItemCuration]
}

// NewItemCurationRepository creates a new ItemCurationRepository
func NewItemCurationRepository(db *gorm.DB) ItemCurationRepository {
	return &itemCurationRepository{
		curationStore: curationStore[domain.ItemCuration]{
			db:         db,
			table:      domain.ItemCuration{}.TableName(),
			foreignKey: "item_id",
		},
	}
}

func (r *itemCurationRepository) WithTx(tx *gorm.DB) ItemCurationRepository {
	return NewItemCurationRepository(tx)
}

func (r *itemCurationRepository) FindLatestByCollectionID(ctx context.Context, collectionID string, itemIDs []string) ([]*domain.ItemCuration, error) {
	query := r.latest(ctx).
		Joins("JOIN items i ON i.id = c.item_id").
		Where("i.collection_id = ?", collectionID)
	if len(itemIDs) > 0 {
		query = query.Where("c.item_id IN ?", itemIDs)
	}

	var rows []*domain.ItemCuration
	err := query.Order("c.created_at DESC").Find(&rows).Error
	return rows, err
}
