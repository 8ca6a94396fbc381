package service

import (
	"context"
	"fmt"

	"github.com/scenekit/builder-backend/internal/common"
	"github.com/scenekit/builder-backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// AccessService decides whether a caller may view or modify a curatable entity.
// Access is granted to committee members, owners and collection managers.
type AccessService struct {
	resolver  *EntityResolver
	committee CommitteeChecker
}

// NewAccessService creates a new AccessService
func NewAccessService(resolver *EntityResolver, committee CommitteeChecker) *AccessService {
	return &AccessService{resolver: resolver, committee: committee}
}

// HasAccess reports whether caller may curate the entity. Resolution failures are
// returned as NotFoundError / UnpublishedError, never as false.
func (s *AccessService) HasAccess(ctx context.Context, kind domain.CurationKind, id, caller string) (bool, error) {
	var (
		granted bool
		err     error
	)
	switch kind {
	case domain.CurationKindCollection:
		_, granted, err = s.collection(ctx, id, caller)
	case domain.CurationKindItem:
		_, _, granted, err = s.item(ctx, id, caller)
	default:
		return false, &common.ValidationError{Message: fmt.Sprintf("unknown curation kind %q", kind)}
	}
	return granted, err
}

// AuthorizeCollection returns the merged collection when caller has access
func (s *AccessService) AuthorizeCollection(ctx context.Context, id, caller string) (*domain.Collection, error) {
	collection, granted, err := s.collection(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, &common.UnauthorizedError{Address: caller, Kind: string(domain.CurationKindCollection), ID: id}
	}
	return collection, nil
}

// AuthorizeItem returns the merged item and its merged collection when caller has access
func (s *AccessService) AuthorizeItem(ctx context.Context, id, caller string) (*domain.Item, *domain.Collection, error) {
	item, collection, granted, err := s.item(ctx, id, caller)
	if err != nil {
		return nil, nil, err
	}
	if !granted {
		return nil, nil, &common.UnauthorizedError{Address: caller, Kind: string(domain.CurationKindItem), ID: id}
	}
	return item, collection, nil
}

// RequireCommittee fails with UnauthorizedError unless caller is a committee member
func (s *AccessService) RequireCommittee(ctx context.Context, caller string) error {
	ok, err := s.committee.IsCommitteeMember(ctx, caller)
	if err != nil {
		return fmt.Errorf("check committee membership: %w", err)
	}
	if !ok {
		return &common.UnauthorizedError{Address: caller, Reason: fmt.Sprintf("unauthorized user %s: only committee members can perform this action", caller)}
	}
	return nil
}

// IsCommitteeMember reports committee membership of address
func (s *AccessService) IsCommitteeMember(ctx context.Context, address string) (bool, error) {
	return s.committee.IsCommitteeMember(ctx, address)
}

func (s *AccessService) collection(ctx context.Context, id, caller string) (*domain.Collection, bool, error) {
	var collection *domain.Collection
	isCommittee, err := s.withCommittee(ctx, caller, func(gctx context.Context) error {
		var err error
		collection, err = s.resolver.Collection(gctx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return collection, grant(isCommittee, collection.EthAddress == caller, collection.HasManager(caller)), nil
}

func (s *AccessService) item(ctx context.Context, id, caller string) (*domain.Item, *domain.Collection, bool, error) {
	var (
		item       *domain.Item
		collection *domain.Collection
	)
	isCommittee, err := s.withCommittee(ctx, caller, func(gctx context.Context) error {
		var err error
		item, collection, err = s.resolver.Item(gctx, id)
		return err
	})
	if err != nil {
		return nil, nil, false, err
	}

	if collection != nil {
		return item, collection, grant(isCommittee, collection.EthAddress == caller, collection.HasManager(caller)), nil
	}
	return item, nil, grant(isCommittee, item.EthAddress == caller, false), nil
}

// withCommittee runs resolve and the committee lookup concurrently
func (s *AccessService) withCommittee(ctx context.Context, caller string, resolve func(context.Context) error) (bool, error) {
	var isCommittee bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return resolve(gctx)
	})
	g.Go(func() error {
		ok, err := s.committee.IsCommitteeMember(gctx, caller)
		if err != nil {
			return fmt.Errorf("check committee membership: %w", err)
		}
		isCommittee = ok
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	return isCommittee, nil
}

func grant(isCommittee, isOwner, isManager bool) bool {
	return isCommittee || isOwner || isManager
}
