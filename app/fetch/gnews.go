package fetch

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
)

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

// GNewsFetcher reads the GNews top-headlines API.
type GNewsFetcher struct {
	httpClient *http.Client
	userAgent  string
	policy     Policy
	maxBytes   int64
}

func NewGNewsFetcher(httpClient *http.Client, userAgent string, policy Policy) *GNewsFetcher {
	return &GNewsFetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		policy:     policy,
		maxBytes:   MaxPayloadBytes,
	}
}

func (f *GNewsFetcher) Fetch(ctx context.Context, src feed.SourceConfig, timeout time.Duration, maxRetries int) ([]feed.RawEntry, error) {
	token := src.Token()
	if token == "" {
		return nil, &ConfigurationError{Source: src.Name, Reason: "api credential is missing"}
	}

	endpoint, err := f.buildURL(src, token)
	if err != nil {
		return nil, &ConfigurationError{Source: src.Name, Reason: err.Error()}
	}

	var articles []gnewsArticle
	err = f.policy.WithAttempts(maxRetries).Do(ctx, src.Name, func(ctx context.Context, attempt int) error {
		result, err := f.fetchOnce(ctx, endpoint, timeout)
		if err != nil {
			return err
		}
		articles = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	topic := src.Param("topic")
	entries := make([]feed.RawEntry, 0, len(articles))
	for _, article := range articles {
		entries = append(entries, article.toRawEntry(topic))
	}

	return entries, nil
}

func (f *GNewsFetcher) buildURL(src feed.SourceConfig, token string) (string, error) {
	base, err := url.Parse(cmp.Or(src.Endpoint, feed.DefaultGNewsEndpoint))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	query := base.Query()
	query.Set("token", token)
	query.Set("lang", cmp.Or(src.Param("lang"), "en"))
	query.Set("max", cmp.Or(src.Param("max"), "50"))
	if topic := src.Param("topic"); topic != "" {
		query.Set("topic", topic)
	}
	if q := src.Param("q"); q != "" {
		query.Set("q", q)
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}

func (f *GNewsFetcher) fetchOnce(ctx context.Context, endpoint string, timeout time.Duration) ([]gnewsArticle, error) {
	timeoutCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call news API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	data, err := readCapped(resp, f.maxBytes)
	if err != nil {
		return nil, err
	}

	var parsed gnewsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode news API response: %w", err)
	}

	return parsed.Articles, nil
}

func (a gnewsArticle) toRawEntry(topic string) feed.RawEntry {
	entry := feed.RawEntry{
		Title:     a.Title,
		Link:      a.URL,
		Published: a.PublishedAt,
		ImageURL:  a.Image,
	}

	if a.Description != "" {
		entry.Summary = feed.Scalar(a.Description)
		entry.Description = feed.Scalar(a.Description)
	}
	entry.Content = feed.Wrapped(a.Content)

	var tags []string
	if topic != "" {
		tags = append(tags, topic)
	}
	if a.Source.Name != "" {
		tags = append(tags, a.Source.Name)
	}
	entry.Tags = feed.PlainTags(tags...)

	return entry
}
