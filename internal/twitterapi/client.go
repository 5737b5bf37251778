// Package twitterapi fetches recent posts from the twitterapi.io search API.
package twitterapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

const (
	searchPath    = "/twitter/tweet/advanced_search"
	searchTimeout = 30 * time.Second
	maxBodyBytes  = 8 << 20
)

// Client is an HTTP client for the advanced search endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: searchTimeout,
		},
	}
}

// searchResponse holds the two list fields the API has used for results.
type searchResponse struct {
	Tweets json.RawMessage `json:"tweets"`
	Data   json.RawMessage `json:"data"`
}

// LatestPosts returns up to limit of the account's most recent posts, newest
// first as the API returns them. Failures are logged and yield an empty list.
func (c *Client) LatestPosts(ctx context.Context, account string, limit int) []models.RawPost {
	posts, err := c.search(ctx, account, limit)
	if err != nil {
		slog.Error("twitterapi: fetch failed", "account", account, "err", err)
		return []models.RawPost{}
	}
	slog.Info("twitterapi: fetched", "account", account, "count", len(posts))
	return posts
}

func (c *Client) search(ctx context.Context, account string, limit int) ([]models.RawPost, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("query", "from:"+account)
	q.Set("queryType", "Latest")
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+searchPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("twitterapi search: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitterapi search: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("twitterapi search: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&result); err != nil {
		return nil, fmt.Errorf("twitterapi search: decode response: %w", err)
	}

	posts := decodePosts(result.Tweets)
	if len(posts) == 0 {
		posts = decodePosts(result.Data)
	}
	if len(posts) == 0 {
		return []models.RawPost{}, nil
	}
	if len(posts) > limit && limit > 0 {
		posts = posts[:limit]
	}
	return posts, nil
}

// decodePosts decodes a JSON array of post objects, keeping numbers exact.
// Anything that is not an array of objects yields nil.
func decodePosts(raw json.RawMessage) []models.RawPost {
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var posts []models.RawPost
	if err := dec.Decode(&posts); err != nil {
		return nil
	}
	out := posts[:0]
	for _, p := range posts {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
