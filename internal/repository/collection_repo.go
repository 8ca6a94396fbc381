package repository

import (
	"context"
	"strings"

	"github.com/scenekit/builder-backend/internal/domain"
	"gorm.io/gorm"
)

// CollectionRepository collection data access
type CollectionRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Collection, error)
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Collection, error)
	// FindVisibleIDs returns ids of collections owned or managed by address, or deployed
	// at one of contracts, or linked to one of thirdPartyIDs
	FindVisibleIDs(ctx context.Context, address string, contracts, thirdPartyIDs []string) ([]string, error)
	Create(ctx context.Context, collection *domain.Collection) error
}

type collectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository creates a new CollectionRepository
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) FindByID(ctx context.Context, id string) (*domain.Collection, error) {
	var collection domain.Collection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&collection).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

func (r *collectionRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Collection, error) {
	if len(ids) == 0 {
		return []*domain.Collection{}, nil
	}
	var collections []*domain.Collection
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&collections).Error
	return collections, err
}

func (r *collectionRepository) FindVisibleIDs(ctx context.Context, address string, contracts, thirdPartyIDs []string) ([]string, error) {
	query := r.db.WithContext(ctx).Model(&domain.Collection{}).
		Where("eth_address = ?", address).
		Or(managersColumn(r.db)+" LIKE ?", `%"`+address+`"%`)
	if len(contracts) > 0 {
		lowered := make([]string, len(contracts))
		for i, c := range contracts {
			lowered[i] = strings.ToLower(c)
		}
		query = query.Or("LOWER(contract_address) IN ?", lowered)
	}
	if len(thirdPartyIDs) > 0 {
		query = query.Or("third_party_id IN ?", thirdPartyIDs)
	}

	var ids []string
	err := query.Pluck("id", &ids).Error
	return ids, err
}

func (r *collectionRepository) Create(ctx context.Context, collection *domain.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

// managersColumn renders the managers JSON array as text; postgres stores it as jsonb
func managersColumn(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "managers::text"
	}
	return "managers"
}
