package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/scenekit/builder-backend/internal/common"
	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/internal/forum"
	"github.com/scenekit/builder-backend/internal/repository"
	"github.com/scenekit/builder-backend/pkg/logger"
)

// ForumPoster publishes a forum topic and returns its URL
type ForumPoster interface {
	CreatePost(ctx context.Context, post forum.Post) (string, error)
}

// ForumService posts the assignee notification of a collection review
type ForumService struct {
	access              *AccessService
	collectionCurations repository.CollectionCurationRepository
	poster              ForumPoster
	builderURL          string
}

// NewForumService creates a new ForumService
func NewForumService(access *AccessService, collectionCurations repository.CollectionCurationRepository, poster ForumPoster, builderURL string) *ForumService {
	return &ForumService{
		access:              access,
		collectionCurations: collectionCurations,
		poster:              poster,
		builderURL:          builderURL,
	}
}

// PostAssigneeNotification announces the assignee of the collection's current review.
// Delivery is best effort: duplicates and forum failures are counted and reported in
// the result, not returned as errors.
func (s *ForumService) PostAssigneeNotification(ctx context.Context, collectionID, caller string) (*domain.ForumPostResult, error) {
	if err := s.access.RequireCommittee(ctx, caller); err != nil {
		return nil, err
	}
	collection, err := s.access.AuthorizeCollection(ctx, collectionID, caller)
	if err != nil {
		return nil, err
	}

	latest, err := s.collectionCurations.GetLatestByID(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get latest curation of collection %s: %w", collectionID, err)
	}
	if latest == nil {
		return nil, &common.NotFoundError{Kind: "collection curation", ID: collectionID}
	}
	if latest.Assignee == nil || *latest.Assignee == "" {
		return nil, &common.ValidationError{ID: collectionID, Message: "the collection curation has no assignee"}
	}

	result := &domain.ForumPostResult{CollectionID: collectionID, Assignee: *latest.Assignee}
	topicURL, err := s.poster.CreatePost(ctx, forum.Post{
		Title: fmt.Sprintf("Collection %s review assigned to %s", collection.Name, *latest.Assignee),
		Raw: fmt.Sprintf("The review of collection **%s** (%s) has been assigned to %s.\n\n%s/collections/%s",
			collection.Name, collectionID, *latest.Assignee, s.builderURL, collectionID),
	})

	switch {
	case err == nil:
		result.Status = domain.ForumPostCreated
		result.TopicURL = topicURL
	case errors.Is(err, forum.ErrDuplicatePost):
		result.Status = domain.ForumPostDuplicate
	default:
		result.Status = domain.ForumPostFailed
		log := logger.WithAddress(caller)
		log.Warn().Err(err).
			Str("collection_id", collectionID).
			Msg("assignee notification post failed")
	}
	forumPostsTotal.WithLabelValues(result.Status).Inc()
	return result, nil
}
