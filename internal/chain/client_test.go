package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scenekit/builder-backend/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func graphServer(t *testing.T, handler func(query string, vars map[string]any) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(body.Query, body.Variables)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchCollection(t *testing.T) {
	srv := graphServer(t, func(query string, vars map[string]any) string {
		assert.Equal(t, "0xcontract", vars["id"])
		return `{"data":{"collections":[{"id":"0xcontract","creator":"0xCREATOR","managers":["0xM1"],"minters":[],"isApproved":true}]}}`
	})
	client := NewClient(srv.URL, srv.URL, time.Second)

	col, err := client.FetchCollection(context.Background(), "0xCONTRACT")
	require.NoError(t, err)
	require.NotNil(t, col)
	assert.Equal(t, "0xcreator", col.Creator)
	assert.Equal(t, []string{"0xm1"}, col.Managers)
	assert.True(t, col.IsApproved)
}

func TestClient_FetchCollection_NotIndexed(t *testing.T) {
	srv := graphServer(t, func(string, map[string]any) string {
		return `{"data":{"collections":[]}}`
	})
	col, err := NewClient(srv.URL, srv.URL, time.Second).FetchCollection(context.Background(), "0x1")
	require.NoError(t, err)
	assert.Nil(t, col)
}

func TestClient_GraphErrors(t *testing.T) {
	srv := graphServer(t, func(string, map[string]any) string {
		return `{"errors":[{"message":"boom"}]}`
	})
	_, err := NewClient(srv.URL, srv.URL, time.Second).FetchThirdParty(context.Background(), "tp")
	assert.ErrorIs(t, err, ErrGraphQuery)
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_FetchItem(t *testing.T) {
	srv := graphServer(t, func(_ string, vars map[string]any) string {
		assert.Equal(t, "0xcontract-3", vars["id"])
		return `{"data":{"items":[{"id":"0xcontract-3","blockchainId":"3","contentHash":"bafy","isApproved":false}]}}`
	})
	item, err := NewClient(srv.URL, srv.URL, time.Second).FetchItem(context.Background(), "0xContract", "3")
	require.NoError(t, err)
	assert.Equal(t, "bafy", item.ContentHash)
}

func TestClient_FetchCollectionsByAuthorizedUser_Dedupes(t *testing.T) {
	srv := graphServer(t, func(query string, _ map[string]any) string {
		assert.True(t, strings.Contains(query, "managers_contains"))
		return `{"data":{
			"creator":[{"id":"0xa","creator":"0xu","managers":[],"minters":[],"isApproved":false}],
			"managers":[{"id":"0xa","creator":"0xu","managers":["0xu"],"minters":[],"isApproved":false},
			            {"id":"0xb","creator":"0xz","managers":["0xu"],"minters":[],"isApproved":true}]}}`
	})
	cols, err := NewClient(srv.URL, srv.URL, time.Second).FetchCollectionsByAuthorizedUser(context.Background(), "0xU")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "0xa", cols[0].ID)
	assert.Equal(t, "0xb", cols[1].ID)
}

func TestClient_FetchCommitteeMembers(t *testing.T) {
	srv := graphServer(t, func(string, map[string]any) string {
		return `{"data":{"accounts":[{"address":"0xAA"},{"address":"0xbb"}]}}`
	})
	members, err := NewClient(srv.URL, srv.URL, time.Second).FetchCommitteeMembers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xbb"}, members)
}

func TestClient_MissingURL(t *testing.T) {
	_, err := NewClient("", "", time.Second).FetchCommitteeMembers(context.Background())
	assert.ErrorIs(t, err, ErrGraphQuery)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchCommitteeMembers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCommitteeClient_IsCommitteeMember(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("FetchCommitteeMembers", mock.Anything).Return([]string{"0xaa"}, nil)
	client := NewCommitteeClient(fetcher, cache.NewService(nil), time.Minute)

	ok, err := client.IsCommitteeMember(context.Background(), "0xAA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.IsCommitteeMember(context.Background(), "0xbb")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommitteeClient_PropagatesFetchError(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("FetchCommitteeMembers", mock.Anything).Return(nil, errors.New("down"))
	client := NewCommitteeClient(fetcher, cache.NewService(nil), time.Minute)

	_, err := client.IsCommitteeMember(context.Background(), "0xaa")
	assert.EqualError(t, err, "down")
}

func TestCommitteeClient_FetchOutlivesCallerCancellation(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("FetchCommitteeMembers", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	})).Return([]string{"0xaa"}, nil)
	client := NewCommitteeClient(fetcher, cache.NewService(nil), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := client.IsCommitteeMember(ctx, "0xaa")
	require.NoError(t, err)
	assert.True(t, ok)
	fetcher.AssertExpectations(t)
}
