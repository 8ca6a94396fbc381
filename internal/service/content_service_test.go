package service

import (
	"context"
	"errors"
	"testing"

	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256Hasher_Hash(t *testing.T) {
	ctx := context.Background()
	a := &domain.Item{Contents: contents(map[string]string{"a.glb": "Qm1", "b.png": "Qm2"})}
	b := &domain.Item{Contents: contents(map[string]string{"b.png": "Qm2", "a.glb": "Qm1"})}
	c := &domain.Item{Contents: contents(map[string]string{"a.glb": "Qm1", "b.png": "Qm3"})}
	// moving a byte between name and value must not collide
	d := &domain.Item{Contents: contents(map[string]string{"a.glbQ": "m1", "b.png": "Qm2"})}

	ha, err := SHA256Hasher{}.Hash(ctx, a)
	require.NoError(t, err)
	hb, _ := SHA256Hasher{}.Hash(ctx, b)
	hc, _ := SHA256Hasher{}.Hash(ctx, c)
	hd, _ := SHA256Hasher{}.Hash(ctx, d)

	assert.Len(t, ha, 64)
	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
	assert.NotEqual(t, ha, hd)

	empty, err := SHA256Hasher{}.Hash(ctx, &domain.Item{})
	require.NoError(t, err)
	assert.Len(t, empty, 64)
}

func TestContentService_Snapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tp, err := h.items.FindByID(ctx, tpItemID)
	require.NoError(t, err)
	hash, complete, err := h.content.Snapshot(ctx, tp)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.True(t, complete)

	dcl, err := h.items.FindByID(ctx, dclItemID)
	require.NoError(t, err)
	_, complete, err = h.content.Snapshot(ctx, dcl)
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestContentService_ReconcileCollection_PublishesManifests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.content.ReconcileCollection(ctx, dclCollectionID))

	h.blobs.mu.Lock()
	raw := h.blobs.uploads[storage.ItemManifestKey(dclItemID)]
	h.blobs.mu.Unlock()
	manifest, ok := raw.(ContentManifest)
	require.True(t, ok)
	assert.Equal(t, dclItemID, manifest.ID)
	assert.Equal(t, dclCollectionID, manifest.CollectionID)
	assert.Equal(t, "https://cdn.test/"+storage.ContentKey("Qm"+dclItemID), manifest.Files["model.glb"])

	item, err := h.items.FindByID(ctx, dclItemID)
	require.NoError(t, err)
	require.NotNil(t, item.LocalContentHash)
	assert.Equal(t, manifest.ContentHash, *item.LocalContentHash)
}

func TestContentService_ReconcileCollection_WithoutBlobStore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	content := NewContentService(h.items, SHA256Hasher{}, nil, 0)

	require.NoError(t, content.ReconcileCollection(ctx, dclCollectionID))
	assert.Empty(t, h.blobs.keys())

	item, err := h.items.FindByID(ctx, dclItemID2)
	require.NoError(t, err)
	assert.NotNil(t, item.LocalContentHash)

	// unknown collections have nothing to reconcile
	assert.NoError(t, content.ReconcileCollection(ctx, "missing"))
}

type failingHasher struct{}

func (failingHasher) Hash(context.Context, *domain.Item) (string, error) {
	return "", errors.New("boom")
}

func TestContentService_ReconcileCollection_HashFailure(t *testing.T) {
	h := newHarness(t)
	content := NewContentService(h.items, failingHasher{}, h.blobs, 1)

	err := content.ReconcileCollection(context.Background(), dclCollectionID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Empty(t, h.blobs.keys())
}
