package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scenekit/builder-backend/internal/common"
	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/internal/forum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPoster struct {
	mock.Mock
}

func (m *mockPoster) CreatePost(ctx context.Context, post forum.Post) (string, error) {
	args := m.Called(ctx, post)
	return args.String(0), args.Error(1)
}

func newForumFixture(t *testing.T, assignee *string) (*harness, *mockPoster, *ForumService) {
	h := newHarness(t)
	row := h.seedCollectionCuration(dclCollectionID, domain.CurationStatusPending)
	if assignee != nil {
		require.NoError(t, h.collectionCurations.UpdateByID(context.Background(), row.ID, map[string]any{"assignee": *assignee}))
	}
	poster := &mockPoster{}
	return h, poster, NewForumService(h.access, h.collectionCurations, poster, "https://builder.test")
}

func TestForumService_PostAssigneeNotification(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		postErr    error
		wantStatus string
		wantURL    string
	}{
		{"created", "https://forum.test/t/1", nil, domain.ForumPostCreated, "https://forum.test/t/1"},
		{"duplicate", "", forum.ErrDuplicatePost, domain.ForumPostDuplicate, ""},
		{"failed", "", errors.New("forum down"), domain.ForumPostFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, poster, svc := newForumFixture(t, strPtr(reviewerAddr))
			poster.On("CreatePost", mock.Anything, mock.MatchedBy(func(p forum.Post) bool {
				return p.Title != "" &&
					containsAll(p.Raw, "Hats", reviewerAddr, "https://builder.test/collections/"+dclCollectionID)
			})).Return(tt.url, tt.postErr).Once()

			result, err := svc.PostAssigneeNotification(context.Background(), dclCollectionID, committeeAddr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantURL, result.TopicURL)
			assert.Equal(t, reviewerAddr, result.Assignee)
			assert.Equal(t, dclCollectionID, result.CollectionID)
			poster.AssertExpectations(t)
		})
	}
}

func TestForumService_PostAssigneeNotification_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("caller outside committee", func(t *testing.T) {
		_, poster, svc := newForumFixture(t, strPtr(reviewerAddr))
		_, err := svc.PostAssigneeNotification(ctx, dclCollectionID, ownerAddr)
		assert.ErrorIs(t, err, common.ErrUnauthorized)
		poster.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
	})

	t.Run("no assignee", func(t *testing.T) {
		_, poster, svc := newForumFixture(t, nil)
		_, err := svc.PostAssigneeNotification(ctx, dclCollectionID, committeeAddr)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
		poster.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
	})

	t.Run("no curation", func(t *testing.T) {
		h := newHarness(t)
		svc := NewForumService(h.access, h.collectionCurations, &mockPoster{}, "https://builder.test")
		_, err := svc.PostAssigneeNotification(ctx, dclCollectionID, committeeAddr)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
