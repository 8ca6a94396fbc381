package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/tidwall/gjson"
)

// ErrGraphQuery is returned when the subgraph answers with an errors array
var ErrGraphQuery = errors.New("subgraph query failed")

const collectionFields = `id creator managers minters isApproved`

const (
	collectionQuery = `query collection($id: String!) {
  collections(where: { id: $id }) { ` + collectionFields + ` }
}`
	itemQuery = `query item($id: String!) {
  items(where: { id: $id }) { id blockchainId contentHash isApproved }
}`
	authorizedCollectionsQuery = `query authorizedCollections($user: String!, $users: [String!]) {
  creator: collections(first: 1000, where: { creator: $user }) { ` + collectionFields + ` }
  managers: collections(first: 1000, where: { managers_contains: $users }) { ` + collectionFields + ` }
}`
	committeeQuery = `query committee {
  accounts(first: 1000, where: { isCommitteeMember: true }) { address }
}`
	thirdPartyQuery = `query thirdParty($id: String!) {
  thirdParties(where: { id: $id }) { id managers isApproved }
}`
	thirdPartiesByManagerQuery = `query thirdPartiesByManager($managers: [String!]) {
  thirdParties(first: 1000, where: { managers_contains: $managers }) { id managers isApproved }
}`
)

// Client reads collection, item, third party and committee state from the subgraphs
type Client struct {
	httpClient     *http.Client
	collectionsURL string
	thirdPartyURL  string
}

// NewClient creates a new subgraph client
func NewClient(collectionsURL, thirdPartyURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		collectionsURL: collectionsURL,
		thirdPartyURL:  thirdPartyURL,
	}
}

// FetchCollection returns nil without error when the contract is not indexed
func (c *Client) FetchCollection(ctx context.Context, contractAddress string) (*domain.RemoteCollection, error) {
	data, err := c.query(ctx, c.collectionsURL, collectionQuery, map[string]any{"id": strings.ToLower(contractAddress)})
	if err != nil {
		return nil, err
	}
	rows := data.Get("collections").Array()
	if len(rows) == 0 {
		return nil, nil
	}
	return parseCollection(rows[0]), nil
}

// FetchItem returns nil without error when the item is not indexed
func (c *Client) FetchItem(ctx context.Context, contractAddress, blockchainItemID string) (*domain.RemoteItem, error) {
	id := strings.ToLower(contractAddress) + "-" + blockchainItemID
	data, err := c.query(ctx, c.collectionsURL, itemQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	rows := data.Get("items").Array()
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &domain.RemoteItem{
		ID:           row.Get("id").String(),
		BlockchainID: row.Get("blockchainId").String(),
		ContentHash:  row.Get("contentHash").String(),
		IsApproved:   row.Get("isApproved").Bool(),
	}, nil
}

// FetchThirdParty returns nil without error when the third party is not registered
func (c *Client) FetchThirdParty(ctx context.Context, thirdPartyID string) (*domain.ThirdParty, error) {
	data, err := c.query(ctx, c.thirdPartyURL, thirdPartyQuery, map[string]any{"id": thirdPartyID})
	if err != nil {
		return nil, err
	}
	rows := data.Get("thirdParties").Array()
	if len(rows) == 0 {
		return nil, nil
	}
	return parseThirdParty(rows[0]), nil
}

// FetchCollectionsByAuthorizedUser returns the collections address created or manages
func (c *Client) FetchCollectionsByAuthorizedUser(ctx context.Context, address string) ([]*domain.RemoteCollection, error) {
	address = strings.ToLower(address)
	data, err := c.query(ctx, c.collectionsURL, authorizedCollectionsQuery, map[string]any{
		"user":  address,
		"users": []string{address},
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*domain.RemoteCollection
	for _, group := range []string{"creator", "managers"} {
		for _, row := range data.Get(group).Array() {
			col := parseCollection(row)
			if seen[col.ID] {
				continue
			}
			seen[col.ID] = true
			out = append(out, col)
		}
	}
	return out, nil
}

// FetchThirdPartiesByManager returns the third parties address manages
func (c *Client) FetchThirdPartiesByManager(ctx context.Context, address string) ([]*domain.ThirdParty, error) {
	data, err := c.query(ctx, c.thirdPartyURL, thirdPartiesByManagerQuery, map[string]any{
		"managers": []string{strings.ToLower(address)},
	})
	if err != nil {
		return nil, err
	}
	var out []*domain.ThirdParty
	for _, row := range data.Get("thirdParties").Array() {
		out = append(out, parseThirdParty(row))
	}
	return out, nil
}

// FetchCommitteeMembers returns the lowercase addresses of the curation committee
func (c *Client) FetchCommitteeMembers(ctx context.Context) ([]string, error) {
	data, err := c.query(ctx, c.collectionsURL, committeeQuery, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, row := range data.Get("accounts").Array() {
		out = append(out, strings.ToLower(row.Get("address").String()))
	}
	return out, nil
}

func (c *Client) query(ctx context.Context, endpoint, query string, variables map[string]any) (gjson.Result, error) {
	if endpoint == "" {
		return gjson.Result{}, fmt.Errorf("%w: subgraph url not configured", ErrGraphQuery)
	}

	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("subgraph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read subgraph response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%w: status %d", ErrGraphQuery, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: invalid json", ErrGraphQuery)
	}

	result := gjson.ParseBytes(body)
	if errs := result.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrGraphQuery, errs.Get("0.message").String())
	}
	return result.Get("data"), nil
}

func parseCollection(row gjson.Result) *domain.RemoteCollection {
	return &domain.RemoteCollection{
		ID:         row.Get("id").String(),
		Creator:    strings.ToLower(row.Get("creator").String()),
		Managers:   lowerStrings(row.Get("managers")),
		Minters:    lowerStrings(row.Get("minters")),
		IsApproved: row.Get("isApproved").Bool(),
	}
}

func parseThirdParty(row gjson.Result) *domain.ThirdParty {
	return &domain.ThirdParty{
		ID:         row.Get("id").String(),
		Managers:   lowerStrings(row.Get("managers")),
		IsApproved: row.Get("isApproved").Bool(),
	}
}

func lowerStrings(arr gjson.Result) []string {
	out := []string{}
	for _, v := range arr.Array() {
		out = append(out, strings.ToLower(v.String()))
	}
	return out
}
