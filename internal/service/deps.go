package service

import (
	"context"

	"github.com/scenekit/builder-backend/internal/domain"
)

// ChainReader is the read-only view of on-chain state
type ChainReader interface {
	FetchCollection(ctx context.Context, contractAddress string) (*domain.RemoteCollection, error)
	FetchItem(ctx context.Context, contractAddress, blockchainItemID string) (*domain.RemoteItem, error)
	FetchThirdParty(ctx context.Context, thirdPartyID string) (*domain.ThirdParty, error)
	FetchCollectionsByAuthorizedUser(ctx context.Context, address string) ([]*domain.RemoteCollection, error)
	FetchThirdPartiesByManager(ctx context.Context, address string) ([]*domain.ThirdParty, error)
}

// CommitteeChecker answers curation committee membership
type CommitteeChecker interface {
	IsCommitteeMember(ctx context.Context, address string) (bool, error)
}

// ContentHasher computes the content-addressing digest of an item
type ContentHasher interface {
	Hash(ctx context.Context, item *domain.Item) (string, error)
}

// BlobStore is the object storage used for item content manifests
type BlobStore interface {
	UploadJSON(ctx context.Context, key string, value any) error
	GetCDNURL(key string) string
}
