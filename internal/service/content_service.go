package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/internal/repository"
	"github.com/scenekit/builder-backend/pkg/logger"
	"github.com/scenekit/builder-backend/pkg/storage"
	"github.com/sourcegraph/conc/pool"
)

// SHA256Hasher hashes the sorted file -> content hash map of an item
type SHA256Hasher struct{}

// Hash returns the hex digest, stable for equal content maps
func (SHA256Hasher) Hash(_ context.Context, item *domain.Item) (string, error) {
	files := item.ContentFiles()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(files[name]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ContentManifest is the published description of an item's content
type ContentManifest struct {
	ID           string            `json:"id"`
	CollectionID string            `json:"collection_id"`
	ContentHash  string            `json:"content_hash"`
	Files        map[string]string `json:"files"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ContentService refreshes item content when a collection is approved
type ContentService struct {
	itemRepo    repository.ItemRepository
	hasher      ContentHasher
	blobs       BlobStore
	concurrency int
	now         func() time.Time
}

// NewContentService creates a new ContentService. blobs may be nil, in which case
// manifests are not published.
func NewContentService(itemRepo repository.ItemRepository, hasher ContentHasher, blobs BlobStore, concurrency int) *ContentService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ContentService{
		itemRepo:    itemRepo,
		hasher:      hasher,
		blobs:       blobs,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Snapshot returns the item's current content hash and mapping completeness
func (s *ContentService) Snapshot(ctx context.Context, item *domain.Item) (string, bool, error) {
	hash, err := s.hasher.Hash(ctx, item)
	if err != nil {
		return "", false, fmt.Errorf("hash item %s: %w", item.ID, err)
	}
	return hash, item.HasMappings(), nil
}

// ReconcileCollection walks the DCL items of the collection and refreshes their
// stored hash and published manifest. The first failure cancels the remaining items.
func (s *ContentService) ReconcileCollection(ctx context.Context, collectionID string) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		reconciliationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	items, err := s.itemRepo.FindDCLByCollectionID(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("load items of collection %s: %w", collectionID, err)
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(s.concurrency)
	for _, item := range items {
		p.Go(func(ctx context.Context) error {
			return s.reconcileItem(ctx, collectionID, item)
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	logger.GetLogger().Info().
		Str("collection_id", collectionID).
		Int("items", len(items)).
		Msg("collection content reconciled")
	return nil
}

func (s *ContentService) reconcileItem(ctx context.Context, collectionID string, item *domain.Item) error {
	hash, err := s.hasher.Hash(ctx, item)
	if err != nil {
		return fmt.Errorf("hash item %s: %w", item.ID, err)
	}
	if err := s.itemRepo.UpdateLocalContentHash(ctx, item.ID, hash); err != nil {
		return fmt.Errorf("store hash of item %s: %w", item.ID, err)
	}

	if s.blobs == nil {
		return nil
	}

	files := make(map[string]string, len(item.ContentFiles()))
	for name, contentHash := range item.ContentFiles() {
		files[name] = s.blobs.GetCDNURL(storage.ContentKey(contentHash))
	}
	manifest := ContentManifest{
		ID:           item.ID,
		CollectionID: collectionID,
		ContentHash:  hash,
		Files:        files,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.blobs.UploadJSON(ctx, storage.ItemManifestKey(item.ID), manifest); err != nil {
		return fmt.Errorf("publish manifest of item %s: %w", item.ID, err)
	}
	return nil
}
