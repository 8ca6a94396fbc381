package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.Collection{},
		&domain.Item{},
		&domain.CollectionCuration{},
		&domain.ItemCuration{},
	))
	return db
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func collectionCuration(id, collectionID string, status domain.CurationStatus, at time.Time) *domain.CollectionCuration {
	return &domain.CollectionCuration{ID: id, CollectionID: collectionID, Status: status, CreatedAt: at, UpdatedAt: at}
}

func TestCurationStore_GetLatestByID_AfterNInserts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionCurationRepository(db)
	ctx := context.Background()

	// inserted out of order so the result cannot depend on insertion order
	offsets := []int{3, 0, 5, 1, 4, 2}
	for i, off := range offsets {
		row := collectionCuration(fmt.Sprintf("id-%d", i), "col-1", domain.CurationStatusRejected, base.Add(time.Duration(off)*time.Minute))
		require.NoError(t, repo.Create(ctx, row))
	}
	require.NoError(t, repo.Create(ctx, collectionCuration("other", "col-2", domain.CurationStatusApproved, base.Add(time.Hour))))

	latest, err := repo.GetLatestByID(ctx, "col-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "id-2", latest.ID)
	assert.True(t, latest.CreatedAt.Equal(base.Add(5*time.Minute)))
}

func TestCurationStore_GetLatestByID_None(t *testing.T) {
	repo := NewCollectionCurationRepository(setupTestDB(t))
	latest, err := repo.GetLatestByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestCurationStore_TieBreakByGreatestID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionCurationRepository(db)
	ctx := context.Background()

	for _, id := range []string{"b", "c", "a"} {
		require.NoError(t, repo.Create(ctx, collectionCuration(id, "col-1", domain.CurationStatusRejected, base)))
	}

	latest, err := repo.GetLatestByID(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)

	all, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "c", all[0].ID)
}

func TestCurationStore_GetLatestAndByIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionCurationRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, collectionCuration("a1", "a", domain.CurationStatusRejected, base)))
	require.NoError(t, repo.Create(ctx, collectionCuration("a2", "a", domain.CurationStatusPending, base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, collectionCuration("b1", "b", domain.CurationStatusApproved, base.Add(2*time.Minute))))
	require.NoError(t, repo.Create(ctx, collectionCuration("c1", "c", domain.CurationStatusPending, base.Add(3*time.Minute))))

	all, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"a2", "b1", "c1"}, ids)

	subset, err := repo.GetLatestByIDs(ctx, []string{"a", "c"})
	require.NoError(t, err)
	require.Len(t, subset, 2)
	assert.Equal(t, "c1", subset[0].ID)
	assert.Equal(t, "a2", subset[1].ID)

	empty, err := repo.GetLatestByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCurationStore_UpdateByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewItemCurationRepository(db)
	ctx := context.Background()

	row := &domain.ItemCuration{ID: "ic", ItemID: "i", Status: domain.CurationStatusPending, ContentHash: "old", CreatedAt: base, UpdatedAt: base}
	require.NoError(t, repo.Create(ctx, row))

	later := base.Add(time.Hour)
	require.NoError(t, repo.UpdateByID(ctx, "ic", map[string]any{
		"status":              domain.CurationStatusApproved,
		"content_hash":        "new",
		"is_mapping_complete": true,
		"updated_at":          later,
	}))

	got, err := repo.FindByID(ctx, "ic")
	require.NoError(t, err)
	assert.Equal(t, domain.CurationStatusApproved, got.Status)
	assert.Equal(t, "new", got.ContentHash)
	assert.True(t, got.IsMappingComplete)
	assert.True(t, got.UpdatedAt.Equal(later))
}

func TestCurationStore_UpdatePendingByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionCurationRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, collectionCuration("open", "col-1", domain.CurationStatusPending, base)))
	require.NoError(t, repo.Create(ctx, collectionCuration("closed", "col-2", domain.CurationStatusRejected, base)))

	updated, err := repo.UpdatePendingByID(ctx, "open", map[string]any{"status": domain.CurationStatusApproved})
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.UpdatePendingByID(ctx, "closed", map[string]any{"status": domain.CurationStatusApproved})
	require.NoError(t, err)
	assert.False(t, updated)

	got, err := repo.FindByID(ctx, "closed")
	require.NoError(t, err)
	assert.Equal(t, domain.CurationStatusRejected, got.Status)
}

func TestCollectionCurationRepository_TouchLatestByItemID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewCollectionCurationRepository(db)

	colID := "col-1"
	require.NoError(t, NewItemRepository(db).Create(ctx, &domain.Item{ID: "item-1", Name: "hat", CollectionID: &colID, EthAddress: "0xowner"}))
	require.NoError(t, repo.Create(ctx, collectionCuration("old", colID, domain.CurationStatusApproved, base)))
	require.NoError(t, repo.Create(ctx, collectionCuration("new", colID, domain.CurationStatusPending, base.Add(time.Minute))))

	touched := base.Add(time.Hour)
	require.NoError(t, repo.TouchLatestByItemID(ctx, "item-1", touched))

	newRow, err := repo.FindByID(ctx, "new")
	require.NoError(t, err)
	assert.True(t, newRow.UpdatedAt.Equal(touched))

	oldRow, err := repo.FindByID(ctx, "old")
	require.NoError(t, err)
	assert.True(t, oldRow.UpdatedAt.Equal(base))

	// standalone item: nothing to touch
	require.NoError(t, NewItemRepository(db).Create(ctx, &domain.Item{ID: "lonely", Name: "x", EthAddress: "0xowner"}))
	assert.NoError(t, repo.TouchLatestByItemID(ctx, "lonely", touched))
}

func TestItemCurationRepository_FindLatestByCollectionID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	items := NewItemRepository(db)
	repo := NewItemCurationRepository(db)

	colA, colB := "a", "b"
	require.NoError(t, items.Create(ctx, &domain.Item{ID: "i1", Name: "1", CollectionID: &colA, EthAddress: "0x"}))
	require.NoError(t, items.Create(ctx, &domain.Item{ID: "i2", Name: "2", CollectionID: &colA, EthAddress: "0x"}))
	require.NoError(t, items.Create(ctx, &domain.Item{ID: "i3", Name: "3", CollectionID: &colB, EthAddress: "0x"}))

	for i, itemID := range []string{"i1", "i1", "i2", "i3"} {
		require.NoError(t, repo.Create(ctx, &domain.ItemCuration{
			ID: fmt.Sprintf("ic%d", i), ItemID: itemID, Status: domain.CurationStatusRejected,
			CreatedAt: base.Add(time.Duration(i) * time.Minute), UpdatedAt: base,
		}))
	}

	rows, err := repo.FindLatestByCollectionID(ctx, colA, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ic2", rows[0].ID)
	assert.Equal(t, "ic1", rows[1].ID)

	filtered, err := repo.FindLatestByCollectionID(ctx, colA, []string{"i1"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ic1", filtered[0].ID)
}

func TestItemRepository_FindDCLByCollectionID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewItemRepository(db)

	colID := "col"
	suffix := "urn-1"
	empty := ""
	require.NoError(t, repo.Create(ctx, &domain.Item{ID: "dcl", Name: "a", CollectionID: &colID, EthAddress: "0x"}))
	require.NoError(t, repo.Create(ctx, &domain.Item{ID: "dcl-empty", Name: "b", CollectionID: &colID, EthAddress: "0x", URNSuffix: &empty}))
	require.NoError(t, repo.Create(ctx, &domain.Item{ID: "tp", Name: "c", CollectionID: &colID, EthAddress: "0x", URNSuffix: &suffix}))

	rows, err := repo.FindDCLByCollectionID(ctx, colID)
	require.NoError(t, err)
	ids := []string{}
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"dcl", "dcl-empty"}, ids)

	require.NoError(t, repo.UpdateLocalContentHash(ctx, "dcl", "abc"))
	got, err := repo.FindByID(ctx, "dcl")
	require.NoError(t, err)
	require.NotNil(t, got.LocalContentHash)
	assert.Equal(t, "abc", *got.LocalContentHash)
}

func TestCollectionRepository_FindVisibleIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewCollectionRepository(db)

	contract := "0xC0ntract"
	tp := "urn:tp:1"
	require.NoError(t, repo.Create(ctx, &domain.Collection{ID: "owned", Name: "o", EthAddress: "0xme"}))
	require.NoError(t, repo.Create(ctx, &domain.Collection{ID: "managed", Name: "m", EthAddress: "0xother", Managers: []string{"0xme"}}))
	require.NoError(t, repo.Create(ctx, &domain.Collection{ID: "remote", Name: "r", EthAddress: "0xother", ContractAddress: &contract}))
	require.NoError(t, repo.Create(ctx, &domain.Collection{ID: "linked", Name: "l", EthAddress: "0xother", ThirdPartyID: &tp}))
	require.NoError(t, repo.Create(ctx, &domain.Collection{ID: "hidden", Name: "h", EthAddress: "0xother", Managers: []string{"0xmeme"}}))

	// subgraph ids are lowercase while the local address may be checksummed
	ids, err := repo.FindVisibleIDs(ctx, "0xme", []string{"0xc0ntract"}, []string{tp})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owned", "managed", "remote", "linked"}, ids)
}
