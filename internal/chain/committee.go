package chain

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/scenekit/builder-backend/pkg/cache"
	"github.com/scenekit/builder-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const committeeCacheKey = cache.PrefixCommittee + "members"

// CommitteeFetcher loads the current committee addresses
type CommitteeFetcher interface {
	FetchCommitteeMembers(ctx context.Context) ([]string, error)
}

// CommitteeClient answers committee membership from a cached copy of the registry
type CommitteeClient struct {
	fetcher CommitteeFetcher
	cache   cache.Service
	ttl     time.Duration
	group   singleflight.Group
}

// NewCommitteeClient creates a new CommitteeClient. cache may be backed by a nil redis client.
func NewCommitteeClient(fetcher CommitteeFetcher, cacheSvc cache.Service, ttl time.Duration) *CommitteeClient {
	if ttl <= 0 {
		ttl = cache.TTLCommittee
	}
	return &CommitteeClient{fetcher: fetcher, cache: cacheSvc, ttl: ttl}
}

// Members returns the committee addresses
func (c *CommitteeClient) Members(ctx context.Context) ([]string, error) {
	var members []string
	err := c.cache.Get(ctx, committeeCacheKey, &members)
	if err == nil {
		return members, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.GetLogger().Warn().Err(err).Msg("committee cache read failed")
	}

	// shared by every waiting caller
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(committeeCacheKey, func() (interface{}, error) {
		fetched, err := c.fetcher.FetchCommitteeMembers(fetchCtx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(fetchCtx, committeeCacheKey, fetched, c.ttl); err != nil {
			logger.GetLogger().Warn().Err(err).Msg("committee cache write failed")
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// IsCommitteeMember reports whether address belongs to the committee
func (c *CommitteeClient) IsCommitteeMember(ctx context.Context, address string) (bool, error) {
	members, err := c.Members(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(members, strings.ToLower(address)), nil
}
