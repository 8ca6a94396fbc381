package forum

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

	"github.com/tidwall/gjson"
)

var (
	// ErrDuplicatePost is returned when the forum already holds a post with the same title
	ErrDuplicatePost = errors.New("forum post already exists")
	ErrNotConfigured = errors.New("forum client not configured")
)

// Post is a new forum topic
type Post struct {
	Title string
	Raw   string
}

// Client posts topics to a Discourse-compatible forum
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	user       string
	category   int
}

// NewClient creates a new forum client
func NewClient(baseURL, apiKey, user string, category int, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		user:       user,
		category:   category,
	}
}

// CreatePost publishes post and returns the topic URL
func (c *Client) CreatePost(ctx context.Context, post Post) (string, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(map[string]any{
		"title":    post.Title,
		"raw":      post.Raw,
		"category": c.category,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/posts.json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Api-Username", c.user)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("forum request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read forum response: %w", err)
	}

	result := gjson.ParseBytes(body)
	if resp.StatusCode == http.StatusUnprocessableEntity {
		for _, e := range result.Get("errors").Array() {
			if strings.Contains(strings.ToLower(e.String()), "already been used") {
				return "", ErrDuplicatePost
			}
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("forum responded %d: %s", resp.StatusCode, result.Get("errors.0").String())
	}

	return fmt.Sprintf("%s/t/%s/%d", c.baseURL, result.Get("topic_slug").String(), result.Get("topic_id").Int()), nil
}
