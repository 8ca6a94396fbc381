package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/scenekit/builder-backend/internal/common"
	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/internal/repository"
	"gorm.io/gorm"
)

// EntityResolver loads local collections and items overlaid with their on-chain state
type EntityResolver struct {
	collectionRepo repository.CollectionRepository
	itemRepo       repository.ItemRepository
	chain          ChainReader
}

// NewEntityResolver creates a new EntityResolver
func NewEntityResolver(collectionRepo repository.CollectionRepository, itemRepo repository.ItemRepository, chain ChainReader) *EntityResolver {
	return &EntityResolver{collectionRepo: collectionRepo, itemRepo: itemRepo, chain: chain}
}

// Collection returns the merged collection, or a NotFoundError / UnpublishedError
func (r *EntityResolver) Collection(ctx context.Context, id string) (*domain.Collection, error) {
	local, err := r.collectionRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &common.NotFoundError{Kind: string(domain.CurationKindCollection), ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", id, err)
	}
	return r.mergeCollection(ctx, local)
}

func (r *EntityResolver) mergeCollection(ctx context.Context, local *domain.Collection) (*domain.Collection, error) {
	unpublished := &common.UnpublishedError{Kind: string(domain.CurationKindCollection), ID: local.ID}

	if local.IsThirdParty() {
		tp, err := r.chain.FetchThirdParty(ctx, *local.ThirdPartyID)
		if err != nil {
			return nil, fmt.Errorf("fetch third party %s: %w", *local.ThirdPartyID, err)
		}
		if tp == nil {
			return nil, unpublished
		}
		merged := domain.MergeThirdParty(*local, tp)
		return &merged, nil
	}

	if local.ContractAddress == nil || *local.ContractAddress == "" {
		return nil, unpublished
	}
	remote, err := r.chain.FetchCollection(ctx, *local.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("fetch collection %s: %w", local.ID, err)
	}
	if remote == nil {
		return nil, unpublished
	}
	merged := domain.MergeRemoteCollection(*local, remote)
	return &merged, nil
}

// Item returns the merged item and its merged collection (nil for standalone items)
func (r *EntityResolver) Item(ctx context.Context, id string) (*domain.Item, *domain.Collection, error) {
	local, err := r.itemRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, &common.NotFoundError{Kind: string(domain.CurationKindItem), ID: id}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load item %s: %w", id, err)
	}

	unpublished := &common.UnpublishedError{Kind: string(domain.CurationKindItem), ID: id}

	if local.CollectionID == nil {
		if !local.IsPublished {
			return nil, nil, unpublished
		}
		return local, nil, nil
	}

	collection, err := r.Collection(ctx, *local.CollectionID)
	if err != nil {
		return nil, nil, err
	}

	if collection.IsThirdParty() {
		if local.IsDCL() {
			return nil, nil, unpublished
		}
		merged := *local
		merged.IsPublished = true
		return &merged, collection, nil
	}

	if local.BlockchainItemID == nil || *local.BlockchainItemID == "" {
		return nil, nil, unpublished
	}
	remote, err := r.chain.FetchItem(ctx, *collection.ContractAddress, *local.BlockchainItemID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch item %s: %w", id, err)
	}
	if remote == nil {
		return nil, nil, unpublished
	}
	merged := domain.MergeRemoteItem(*local, remote)
	return &merged, collection, nil
}
