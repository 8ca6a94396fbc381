package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scenekit/builder-backend/internal/common"
	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/internal/repository"
	"github.com/scenekit/builder-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrItemNotCuratedBefore = errors.New("item curations can't be created for items that weren't curated before")
	ErrThirdPartyCollection = errors.New("third party collections are curated per item")
	ErrAssigneeNotCommittee = errors.New("the assignee must be a committee member")
)

// curationKind binds one curation table to the generic insert/update flow
type curationKind[T any, P interface {
	*T
	domain.Curation
}] struct {
	kind  domain.CurationKind
	store func(tx *gorm.DB) repository.CurationStore[T]
}

// CurationService is the review state machine over collection and item curations.
// A review opens as pending and moves once to approved or rejected; a new cycle
// needs a new row.
type CurationService struct {
	db                  *gorm.DB
	access              *AccessService
	content             *ContentService
	chain               ChainReader
	collectionRepo      repository.CollectionRepository
	itemRepo            repository.ItemRepository
	collectionCurations repository.CollectionCurationRepository
	itemCurations       repository.ItemCurationRepository

	collectionKind curationKind[domain.CollectionCuration, *domain.CollectionCuration]
	itemKind       curationKind[domain.ItemCuration, *domain.ItemCuration]

	now   func() time.Time
	newID func() string
}

// NewCurationService creates a new CurationService
func NewCurationService(
	db *gorm.DB,
	access *AccessService,
	content *ContentService,
	chain ChainReader,
	collectionRepo repository.CollectionRepository,
	itemRepo repository.ItemRepository,
	collectionCurations repository.CollectionCurationRepository,
	itemCurations repository.ItemCurationRepository,
) *CurationService {
	return &CurationService{
		db:                  db,
		access:              access,
		content:             content,
		chain:               chain,
		collectionRepo:      collectionRepo,
		itemRepo:            itemRepo,
		collectionCurations: collectionCurations,
		itemCurations:       itemCurations,
		collectionKind: curationKind[domain.CollectionCuration, *domain.CollectionCuration]{
			kind: domain.CurationKindCollection,
			store: func(tx *gorm.DB) repository.CurationStore[domain.CollectionCuration] {
				return collectionCurations.WithTx(tx)
			},
		},
		itemKind: curationKind[domain.ItemCuration, *domain.ItemCuration]{
			kind: domain.CurationKindItem,
			store: func(tx *gorm.DB) repository.CurationStore[domain.ItemCuration] {
				return itemCurations.WithTx(tx)
			},
		},
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// --- collections ---

// GetCollectionCuration returns the latest curation of a collection
func (s *CurationService) GetCollectionCuration(ctx context.Context, collectionID, caller string) (*domain.CollectionCuration, error) {
	collection, err := s.access.AuthorizeCollection(ctx, collectionID, caller)
	if err != nil {
		return nil, err
	}
	latest, err := s.collectionCurations.GetLatestByID(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get latest curation of collection %s: %w", collectionID, err)
	}
	if latest != nil && collection.IsThirdParty() {
		latest.Status = domain.CurationStatusPending
	}
	return latest, nil
}

// InsertCollectionCuration opens a new review cycle for a collection
func (s *CurationService) InsertCollectionCuration(ctx context.Context, collectionID, caller string, req *domain.InsertCurationRequest) (*domain.CollectionCuration, error) {
	collection, err := s.access.AuthorizeCollection(ctx, collectionID, caller)
	if err != nil {
		return nil, err
	}
	if collection.IsThirdParty() {
		return nil, &common.ValidationError{ID: collectionID, Message: "cannot open a collection review", Err: ErrThirdPartyCollection}
	}
	assignee, err := s.checkAssignee(ctx, caller, insertAssignee(req))
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &domain.CollectionCuration{
		ID:           s.newID(),
		CollectionID: collectionID,
		Status:       domain.CurationStatusPending,
		Assignee:     assignee,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return insertCuration(ctx, s, s.collectionKind, collectionID, false, record)
}

// UpdateCollectionCuration progresses the pending review of a collection.
// Approval reconciles the collection content before the row is written.
func (s *CurationService) UpdateCollectionCuration(ctx context.Context, collectionID, caller string, req *domain.UpdateCurationRequest) (*domain.CollectionCuration, error) {
	collection, err := s.access.AuthorizeCollection(ctx, collectionID, caller)
	if err != nil {
		return nil, err
	}
	if collection.IsThirdParty() && req.Status != domain.CurationStatusPending {
		return nil, &common.ValidationError{ID: collectionID, Message: "cannot change the status of a collection review", Err: ErrThirdPartyCollection}
	}

	updated, err := updateCuration(ctx, s, s.collectionKind, collectionID, caller, req,
		func(ctx context.Context, _ *domain.CollectionCuration, updates map[string]any) error {
			if req.Status != domain.CurationStatusApproved {
				return nil
			}
			return s.content.ReconcileCollection(ctx, collectionID)
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	if collection.IsThirdParty() {
		updated.Status = domain.CurationStatusPending
	}
	return updated, nil
}

// --- items ---

// GetItemCuration returns the latest curation of an item
func (s *CurationService) GetItemCuration(ctx context.Context, itemID, caller string) (*domain.ItemCuration, error) {
	if _, _, err := s.access.AuthorizeItem(ctx, itemID, caller); err != nil {
		return nil, err
	}
	latest, err := s.itemCurations.GetLatestByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get latest curation of item %s: %w", itemID, err)
	}
	return latest, nil
}

// InsertItemCuration opens a new review cycle for an item that was curated before
func (s *CurationService) InsertItemCuration(ctx context.Context, itemID, caller string, req *domain.InsertCurationRequest) (*domain.ItemCuration, error) {
	item, _, err := s.access.AuthorizeItem(ctx, itemID, caller)
	if err != nil {
		return nil, err
	}
	assignee, err := s.checkAssignee(ctx, caller, insertAssignee(req))
	if err != nil {
		return nil, err
	}
	record, err := s.newItemCuration(ctx, item, assignee)
	if err != nil {
		return nil, err
	}
	return insertCuration(ctx, s, s.itemKind, itemID, true, record)
}

// UpdateItemCuration progresses the pending review of an item. The content snapshot is
// refreshed on every update and the parent collection curation is touched.
func (s *CurationService) UpdateItemCuration(ctx context.Context, itemID, caller string, req *domain.UpdateCurationRequest) (*domain.ItemCuration, error) {
	item, _, err := s.access.AuthorizeItem(ctx, itemID, caller)
	if err != nil {
		return nil, err
	}

	return updateCuration(ctx, s, s.itemKind, itemID, caller, req,
		func(ctx context.Context, _ *domain.ItemCuration, updates map[string]any) error {
			hash, complete, err := s.content.Snapshot(ctx, item)
			if err != nil {
				return err
			}
			updates["content_hash"] = hash
			updates["is_mapping_complete"] = complete
			return nil
		},
		func(ctx context.Context, tx *gorm.DB, at time.Time) error {
			return s.collectionCurations.WithTx(tx).TouchLatestByItemID(ctx, itemID, at)
		},
	)
}

// ListItemCurations returns the latest item curations of a collection, optionally filtered
func (s *CurationService) ListItemCurations(ctx context.Context, collectionID, caller string, itemIDs []string) ([]*domain.ItemCuration, error) {
	if _, err := s.access.AuthorizeCollection(ctx, collectionID, caller); err != nil {
		return nil, err
	}
	rows, err := s.itemCurations.FindLatestByCollectionID(ctx, collectionID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("list item curations of collection %s: %w", collectionID, err)
	}
	return rows, nil
}

// OpenThirdPartyItemReviews puts items of a third-party collection under review. The
// collection-level curation is created on first use and each listed item without a
// pending review gets a new pending row.
func (s *CurationService) OpenThirdPartyItemReviews(ctx context.Context, collectionID, caller string, req *domain.OpenItemReviewsRequest) ([]*domain.ItemCuration, error) {
	collection, err := s.access.AuthorizeCollection(ctx, collectionID, caller)
	if err != nil {
		return nil, err
	}
	if !collection.IsThirdParty() {
		return nil, &common.ValidationError{ID: collectionID, Message: "item reviews can only be opened for third party collections"}
	}

	items, err := s.itemRepo.FindByIDs(ctx, req.ItemIDs)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	byID := make(map[string]*domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	records := make([]*domain.ItemCuration, 0, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		item, ok := byID[id]
		if !ok {
			return nil, &common.NotFoundError{Kind: string(domain.CurationKindItem), ID: id}
		}
		if item.CollectionID == nil || *item.CollectionID != collectionID || item.IsDCL() {
			return nil, &common.ValidationError{ID: id, Message: fmt.Sprintf("item %s is not a third party item of collection %s", id, collectionID)}
		}
		record, err := s.newItemCuration(ctx, item, nil)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	now := s.now()
	var opened int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		collectionStore := s.collectionCurations.WithTx(tx)
		parent, err := collectionStore.GetLatestByID(ctx, collectionID)
		if err != nil {
			return err
		}
		if parent == nil {
			parent = &domain.CollectionCuration{
				ID:           s.newID(),
				CollectionID: collectionID,
				Status:       domain.CurationStatusPending,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := collectionStore.Create(ctx, parent); err != nil {
				return err
			}
			curationsCreatedTotal.WithLabelValues(string(domain.CurationKindCollection)).Inc()
		}

		itemStore := s.itemCurations.WithTx(tx)
		for _, record := range records {
			latest, err := itemStore.GetLatestByID(ctx, record.ItemID)
			if err != nil {
				return err
			}
			if latest != nil && latest.Status == domain.CurationStatusPending {
				continue
			}
			if err := itemStore.Create(ctx, record); err != nil {
				return err
			}
			opened++
		}
		return collectionStore.UpdateByID(ctx, parent.ID, map[string]any{"updated_at": now})
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, &common.ConflictError{Kind: string(domain.CurationKindItem), ID: collectionID, Err: common.ErrOngoingReview}
	}
	if err != nil {
		return nil, fmt.Errorf("open item reviews for collection %s: %w", collectionID, err)
	}
	curationsCreatedTotal.WithLabelValues(string(domain.CurationKindItem)).Add(float64(opened))

	return s.itemCurations.GetLatestByIDs(ctx, req.ItemIDs)
}

// --- listing ---

// ListCurations returns the latest collection curations visible to caller:
// every collection for committee members, owned or managed collections otherwise.
func (s *CurationService) ListCurations(ctx context.Context, caller string) ([]*domain.CollectionCuration, error) {
	isCommittee, err := s.access.IsCommitteeMember(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("check committee membership: %w", err)
	}

	var rows []*domain.CollectionCuration
	if isCommittee {
		rows, err = s.collectionCurations.GetLatest(ctx)
	} else {
		var ids []string
		ids, err = s.visibleCollectionIDs(ctx, caller)
		if err == nil {
			rows, err = s.collectionCurations.GetLatestByIDs(ctx, ids)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("list curations: %w", err)
	}

	if err := s.pinThirdPartyStatus(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CurationService) visibleCollectionIDs(ctx context.Context, caller string) ([]string, error) {
	var (
		remote       []*domain.RemoteCollection
		thirdParties []*domain.ThirdParty
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		remote, err = s.chain.FetchCollectionsByAuthorizedUser(gctx, caller)
		return err
	})
	g.Go(func() error {
		var err error
		thirdParties, err = s.chain.FetchThirdPartiesByManager(gctx, caller)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch authorized collections: %w", err)
	}

	contracts := make([]string, 0, len(remote))
	for _, c := range remote {
		contracts = append(contracts, c.ID)
	}
	tpIDs := make([]string, 0, len(thirdParties))
	for _, tp := range thirdParties {
		tpIDs = append(tpIDs, tp.ID)
	}
	return s.collectionRepo.FindVisibleIDs(ctx, caller, contracts, tpIDs)
}

func (s *CurationService) pinThirdPartyStatus(ctx context.Context, rows []*domain.CollectionCuration) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.CollectionID)
	}
	collections, err := s.collectionRepo.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load curated collections: %w", err)
	}
	thirdParty := make(map[string]bool, len(collections))
	for _, c := range collections {
		thirdParty[c.ID] = c.IsThirdParty()
	}
	for _, r := range rows {
		if thirdParty[r.CollectionID] {
			r.Status = domain.CurationStatusPending
		}
	}
	return nil
}

// --- shared flow ---

func (s *CurationService) newItemCuration(ctx context.Context, item *domain.Item, assignee *string) (*domain.ItemCuration, error) {
	hash, complete, err := s.content.Snapshot(ctx, item)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &domain.ItemCuration{
		ID:                s.newID(),
		ItemID:            item.ID,
		Status:            domain.CurationStatusPending,
		ContentHash:       hash,
		IsMappingComplete: complete,
		Assignee:          assignee,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// checkAssignee returns the normalized assignee. Only committee members may assign,
// and only to committee members.
func (s *CurationService) checkAssignee(ctx context.Context, caller string, assignee *string) (*string, error) {
	if assignee == nil {
		return nil, nil
	}
	if err := s.access.RequireCommittee(ctx, caller); err != nil {
		return nil, err
	}

	normalized, ok := domain.NormalizeAddress(*assignee)
	if !ok {
		return nil, &common.ValidationError{Message: fmt.Sprintf("invalid assignee address %q", *assignee)}
	}
	isCommittee, err := s.access.IsCommitteeMember(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("check assignee membership: %w", err)
	}
	if !isCommittee {
		return nil, &common.ValidationError{ID: normalized, Message: "invalid assignee", Err: ErrAssigneeNotCommittee}
	}
	return &normalized, nil
}

func insertAssignee(req *domain.InsertCurationRequest) *string {
	if req == nil {
		return nil
	}
	return req.Assignee
}

// insertCuration checks and writes inside one transaction. The pending partial index
// turns a lost race into ErrDuplicatedKey, reported as an ongoing review.
func insertCuration[T any, P interface {
	*T
	domain.Curation
}](ctx context.Context, s *CurationService, k curationKind[T, P], foreignID string, requireHistory bool, record P) (P, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := k.store(tx)
		latest, err := store.GetLatestByID(ctx, foreignID)
		if err != nil {
			return err
		}
		if latest == nil && requireHistory {
			return &common.ValidationError{ID: foreignID, Message: "invalid item curation", Err: ErrItemNotCuratedBefore}
		}
		if latest != nil && !P(latest).GetStatus().IsTerminal() {
			return &common.ConflictError{Kind: string(k.kind), ID: foreignID, Err: common.ErrOngoingReview}
		}
		return store.Create(ctx, (*T)(record))
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, &common.ConflictError{Kind: string(k.kind), ID: foreignID, Err: common.ErrOngoingReview}
	}
	if err != nil {
		return nil, err
	}

	curationsCreatedTotal.WithLabelValues(string(k.kind)).Inc()
	logger.GetLogger().Info().
		Str("kind", string(k.kind)).
		Str("id", foreignID).
		Str("curation_id", record.GetID()).
		Msg("curation review opened")
	return record, nil
}

// updateCuration applies req to the latest pending row of foreignID. prepare may add
// kind-specific columns and runs before the write; after runs inside the write transaction.
func updateCuration[T any, P interface {
	*T
	domain.Curation
}](
	ctx context.Context,
	s *CurationService,
	k curationKind[T, P],
	foreignID, caller string,
	req *domain.UpdateCurationRequest,
	prepare func(ctx context.Context, latest P, updates map[string]any) error,
	after func(ctx context.Context, tx *gorm.DB, at time.Time) error,
) (P, error) {
	if err := req.Validate(); err != nil {
		return nil, &common.ValidationError{ID: foreignID, Message: "invalid curation", Err: err}
	}

	latestRow, err := k.store(s.db).GetLatestByID(ctx, foreignID)
	if err != nil {
		return nil, fmt.Errorf("get latest %s curation %s: %w", k.kind, foreignID, err)
	}
	if latestRow == nil {
		return nil, &common.NotFoundError{Kind: string(k.kind) + " curation", ID: foreignID}
	}
	latest := P(latestRow)
	if latest.GetStatus() != domain.CurationStatusPending {
		return nil, &common.ConflictError{Kind: string(k.kind), ID: foreignID, Err: common.ErrNotPending}
	}

	assignee, err := s.checkAssignee(ctx, caller, req.Assignee)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updates := map[string]any{
		"status":     req.Status,
		"updated_at": now,
	}
	if assignee != nil {
		updates["assignee"] = *assignee
	}
	if prepare != nil {
		if err := prepare(ctx, latest, updates); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the row may have left pending while prepare ran
		updated, err := k.store(tx).UpdatePendingByID(ctx, latest.GetID(), updates)
		if err != nil {
			return err
		}
		if !updated {
			return &common.ConflictError{Kind: string(k.kind), ID: foreignID, Err: common.ErrNotPending}
		}
		if after != nil {
			return after(ctx, tx, now)
		}
		return nil
	})
	var conflict *common.ConflictError
	if errors.As(err, &conflict) {
		return nil, conflict
	}
	if err != nil {
		return nil, fmt.Errorf("update %s curation %s: %w", k.kind, latest.GetID(), err)
	}

	curationStatusUpdatesTotal.WithLabelValues(string(k.kind), string(req.Status)).Inc()

	reloaded, err := k.store(s.db).FindByID(ctx, latest.GetID())
	if err != nil {
		return nil, fmt.Errorf("reload %s curation %s: %w", k.kind, latest.GetID(), err)
	}
	return P(reloaded), nil
}
