package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/internal/migration"
	"github.com/scenekit/builder-backend/internal/repository"
	"github.com/scenekit/builder-backend/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	committeeAddr = "0x1111111111111111111111111111111111111111"
	ownerAddr     = "0x2222222222222222222222222222222222222222"
	managerAddr   = "0x3333333333333333333333333333333333333333"
	strangerAddr  = "0x4444444444444444444444444444444444444444"
	reviewerAddr  = "0x5555555555555555555555555555555555555555"

	dclCollectionID = "dcl-collection"
	tpCollectionID  = "tp-collection"
	dclItemID       = "dcl-item"
	dclItemID2      = "dcl-item-2"
	linkedItemID    = "linked-item"
	tpItemID        = "tp-item"
	standaloneID    = "standalone-item"
	contractAddr    = "0xc0ffee0000000000000000000000000000000001"
	thirdPartyID    = "urn:decentraland:amoy:collections-thirdparty:acme"
)

var errBlobDown = errors.New("blob store down")

type fakeChain struct {
	collections  map[string]*domain.RemoteCollection
	items        map[string]*domain.RemoteItem
	thirdParties map[string]*domain.ThirdParty
	authorized   map[string][]*domain.RemoteCollection
	tpByManager  map[string][]*domain.ThirdParty
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		collections:  map[string]*domain.RemoteCollection{},
		items:        map[string]*domain.RemoteItem{},
		thirdParties: map[string]*domain.ThirdParty{},
		authorized:   map[string][]*domain.RemoteCollection{},
		tpByManager:  map[string][]*domain.ThirdParty{},
	}
}

func (f *fakeChain) FetchCollection(_ context.Context, contract string) (*domain.RemoteCollection, error) {
	return f.collections[contract], nil
}

func (f *fakeChain) FetchItem(_ context.Context, contract, blockchainID string) (*domain.RemoteItem, error) {
	return f.items[contract+"-"+blockchainID], nil
}

func (f *fakeChain) FetchThirdParty(_ context.Context, id string) (*domain.ThirdParty, error) {
	return f.thirdParties[id], nil
}

func (f *fakeChain) FetchCollectionsByAuthorizedUser(_ context.Context, address string) ([]*domain.RemoteCollection, error) {
	return f.authorized[address], nil
}

func (f *fakeChain) FetchThirdPartiesByManager(_ context.Context, address string) ([]*domain.ThirdParty, error) {
	return f.tpByManager[address], nil
}

type fakeCommittee map[string]bool

func (f fakeCommittee) IsCommitteeMember(_ context.Context, address string) (bool, error) {
	return f[address], nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	uploads map[string]any
	fail    bool
	// beforeFirst runs once, ahead of the first upload
	beforeFirst func()
	once        sync.Once
}

func (f *fakeBlobs) UploadJSON(_ context.Context, key string, value any) error {
	if f.beforeFirst != nil {
		f.once.Do(f.beforeFirst)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errBlobDown
	}
	if f.uploads == nil {
		f.uploads = map[string]any{}
	}
	f.uploads[key] = value
	return nil
}

func (f *fakeBlobs) GetCDNURL(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeBlobs) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.uploads))
	for k := range f.uploads {
		out = append(out, k)
	}
	return out
}

type harness struct {
	t         *testing.T
	db        *gorm.DB
	chain     *fakeChain
	committee fakeCommittee
	blobs     *fakeBlobs
	clock     time.Time

	collections         repository.CollectionRepository
	items               repository.ItemRepository
	collectionCurations repository.CollectionCurationRepository
	itemCurations       repository.ItemCurationRepository

	resolver *EntityResolver
	access   *AccessService
	content  *ContentService
	curation *CurationService
}

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
	require.NoError(t, migration.Run(db))
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger.Disable()

	h := &harness{
		t:         t,
		db:        setupTestDB(t),
		chain:     newFakeChain(),
		committee: fakeCommittee{committeeAddr: true, reviewerAddr: true},
		blobs:     &fakeBlobs{},
		clock:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	h.collections = repository.NewCollectionRepository(h.db)
	h.items = repository.NewItemRepository(h.db)
	h.collectionCurations = repository.NewCollectionCurationRepository(h.db)
	h.itemCurations = repository.NewItemCurationRepository(h.db)

	h.resolver = NewEntityResolver(h.collections, h.items, h.chain)
	h.access = NewAccessService(h.resolver, h.committee)
	h.content = NewContentService(h.items, SHA256Hasher{}, h.blobs, 2)
	h.curation = NewCurationService(h.db, h.access, h.content, h.chain,
		h.collections, h.items, h.collectionCurations, h.itemCurations)
	h.curation.now = h.tick

	h.seed()
	return h
}

// tick advances the clock by one second per call so created_at is strictly increasing
func (h *harness) tick() time.Time {
	h.clock = h.clock.Add(time.Second)
	return h.clock
}

func strPtr(s string) *string { return &s }

func contents(files map[string]string) datatypes.JSONType[map[string]string] {
	return datatypes.NewJSONType(files)
}

// seed creates a published DCL collection with two DCL items and one linked item,
// a published third-party collection with one item, and a published standalone item
func (h *harness) seed() {
	ctx := context.Background()
	t := h.t

	require.NoError(t, h.collections.Create(ctx, &domain.Collection{
		ID: dclCollectionID, Name: "Hats", EthAddress: ownerAddr, ContractAddress: strPtr(contractAddr),
	}))
	h.chain.collections[contractAddr] = &domain.RemoteCollection{
		ID: contractAddr, Creator: ownerAddr, Managers: []string{managerAddr},
	}

	for i, id := range []string{dclItemID, dclItemID2} {
		require.NoError(t, h.items.Create(ctx, &domain.Item{
			ID: id, Name: id, CollectionID: strPtr(dclCollectionID), EthAddress: ownerAddr,
			BlockchainItemID: strPtr(string(rune('0' + i))),
			Contents:         contents(map[string]string{"model.glb": "Qm" + id, "thumbnail.png": "QmThumb"}),
		}))
		h.chain.items[contractAddr+"-"+string(rune('0'+i))] = &domain.RemoteItem{ID: id, ContentHash: "remote-" + id}
	}
	// a urn-suffixed item inside a DCL collection is never reconciled
	require.NoError(t, h.items.Create(ctx, &domain.Item{
		ID: linkedItemID, Name: "linked", CollectionID: strPtr(dclCollectionID), EthAddress: ownerAddr,
		URNSuffix: strPtr("linked-1"), Contents: contents(map[string]string{"model.glb": "QmLinked"}),
	}))

	require.NoError(t, h.collections.Create(ctx, &domain.Collection{
		ID: tpCollectionID, Name: "Acme", EthAddress: ownerAddr, ThirdPartyID: strPtr(thirdPartyID), URNSuffix: strPtr("acme"),
	}))
	h.chain.thirdParties[thirdPartyID] = &domain.ThirdParty{ID: thirdPartyID, Managers: []string{managerAddr}}
	require.NoError(t, h.items.Create(ctx, &domain.Item{
		ID: tpItemID, Name: "tp", CollectionID: strPtr(tpCollectionID), EthAddress: ownerAddr,
		URNSuffix: strPtr("tp-1"), Contents: contents(map[string]string{"model.glb": "QmTp"}),
		Mappings: datatypes.JSON(`{"amoy":{"0x1":[{"type":"single","id":"1"}]}}`),
	}))

	require.NoError(t, h.items.Create(ctx, &domain.Item{
		ID: standaloneID, Name: "legacy", EthAddress: ownerAddr, IsPublished: true,
	}))
}

func (h *harness) seedCollectionCuration(collectionID string, status domain.CurationStatus) *domain.CollectionCuration {
	now := h.tick()
	row := &domain.CollectionCuration{ID: "cc-" + now.Format("150405"), CollectionID: collectionID, Status: status, CreatedAt: now, UpdatedAt: now}
	require.NoError(h.t, h.collectionCurations.Create(context.Background(), row))
	return row
}

func (h *harness) seedItemCuration(itemID string, status domain.CurationStatus, hash string) *domain.ItemCuration {
	now := h.tick()
	row := &domain.ItemCuration{ID: "ic-" + now.Format("150405"), ItemID: itemID, Status: status, ContentHash: hash, CreatedAt: now, UpdatedAt: now}
	require.NoError(h.t, h.itemCurations.Create(context.Background(), row))
	return row
}
