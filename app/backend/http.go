package backend

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
)

const DefaultEndpoint = "/test/save_news"

type saveNewsRequest struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Source      string   `json:"source"`
	HashTags    []string `json:"hash_tags"`
	PublishedAt string   `json:"published_at"`
	URL         string   `json:"url"`
}

type saveNewsResponse struct {
	Created bool `json:"created"`
}

// HTTPClient forwards items to the downstream news backend.
type HTTPClient struct {
	httpClient *http.Client
	url        string
}

var _ Sink = (*HTTPClient)(nil)

func NewHTTPClient(httpClient *http.Client, baseURL, endpoint string) *HTTPClient {
	return &HTTPClient{
		httpClient: httpClient,
		url:        strings.TrimRight(baseURL, "/") + cmp.Or(endpoint, DefaultEndpoint),
	}
}

// Save posts the item. Any transport, status or decoding failure yields
// created=false together with the error.
func (c *HTTPClient) Save(ctx context.Context, item feed.Item) (bool, error) {
	hashtags := item.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	payload, err := json.Marshal(saveNewsRequest{
		Title:       item.Header,
		Body:        item.Text,
		Source:      item.SourceName,
		HashTags:    hashtags,
		PublishedAt: item.PublishedAt.UTC().Format(time.RFC3339),
		URL:         item.URL,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode save_news payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Backend request failed", "url", c.url, "error", err)
		return false, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		slog.Warn("Backend returned unexpected status", "url", c.url, "status", resp.StatusCode)
		return false, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var parsed saveNewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		slog.Warn("Backend response decode failed", "url", c.url, "error", err)
		return false, fmt.Errorf("failed to decode backend response: %w", err)
	}

	return parsed.Created, nil
}
