package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	maxPageBytes   = 5 * 1024 * 1024
	maxRobotsBytes = 512 * 1024

	DefaultEnrichTimeout = 15 * time.Second
)

// ContentExtractor backfills missing text and image of an item from its
// article page. It is best-effort: callers ignore its errors.
type ContentExtractor struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	limiter    *rate.Limiter

	robotsMu sync.Mutex
	robots   map[string]*robotstxt.Group
}

// NewContentExtractor builds an extractor whose Enrich calls, robots.txt
// lookup included, never run longer than timeout (DefaultEnrichTimeout when
// timeout is not positive).
func NewContentExtractor(httpClient *http.Client, userAgent string, requestsPerSecond float64, timeout time.Duration) *ContentExtractor {
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &ContentExtractor{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		limiter:    rate.NewLimiter(limit, 1),
		robots:     make(map[string]*robotstxt.Group),
	}
}

// Run extracts the readable article HTML from a page.
func (e *ContentExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"content_length", len(article.Content))

	return article.Content, nil
}

// FindImage returns the page's lead image (og:image, twitter:image or the
// first article image) resolved against base.
func (e *ContentExtractor) FindImage(data []byte, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	selectors := []struct {
		query string
		attr  string
	}{
		{`meta[property="og:image"]`, "content"},
		{`meta[name="twitter:image"]`, "content"},
		{`article img`, "src"},
	}

	for _, s := range selectors {
		value, ok := doc.Find(s.query).First().Attr(s.attr)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		ref, err := url.Parse(value)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		return ref.String()
	}

	return ""
}

// Enrich fills item.Text and item.ImageURL when they are empty.
func (e *ContentExtractor) Enrich(ctx context.Context, item *Item) error {
	if item.URL == "" || (item.Text != "" && item.ImageURL != "") {
		return nil
	}

	pageURL, err := url.Parse(item.URL)
	if err != nil || pageURL.Host == "" {
		return fmt.Errorf("invalid item URL %q", item.URL)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if !e.allowed(ctx, pageURL) {
		slog.Debug("Enrichment disallowed by robots.txt", "url", item.URL)
		return nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := e.fetchPage(ctx, pageURL)
	if err != nil {
		return err
	}

	if item.Text == "" {
		content, err := e.Run(data)
		if err != nil {
			slog.Debug("Content extraction failed", "url", item.URL, "error", err)
		} else {
			item.Text = NormalizeText(content)
		}
	}

	if item.ImageURL == "" {
		item.ImageURL = e.FindImage(data, pageURL)
	}

	return nil
}

func (e *ContentExtractor) fetchPage(ctx context.Context, pageURL *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	return data, nil
}

// allowed consults the host's robots.txt once per host. Unreachable or
// broken robots files allow everything.
func (e *ContentExtractor) allowed(ctx context.Context, pageURL *url.URL) bool {
	host := pageURL.Scheme + "://" + pageURL.Host

	e.robotsMu.Lock()
	group, cached := e.robots[host]
	e.robotsMu.Unlock()

	if !cached {
		group = e.loadRobots(ctx, host)
		e.robotsMu.Lock()
		e.robots[host] = group
		e.robotsMu.Unlock()
	}

	if group == nil {
		return true
	}
	return group.Test(pageURL.EscapedPath())
}

func (e *ContentExtractor) loadRobots(ctx context.Context, host string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		slog.Debug("Failed to load robots.txt", "host", host, "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		slog.Debug("Failed to read robots.txt", "host", host, "error", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		slog.Debug("Failed to parse robots.txt", "host", host, "error", err)
		return nil
	}

	return data.FindGroup(e.userAgent)
}
