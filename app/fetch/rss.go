package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const MaxPayloadBytes int64 = 5 * 1024 * 1024

type RSSFetcher struct {
	httpClient *http.Client
	userAgent  string
	policy     Policy
	maxBytes   int64
}

func NewRSSFetcher(httpClient *http.Client, userAgent string, policy Policy) *RSSFetcher {
	return &RSSFetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		policy:     policy,
		maxBytes:   MaxPayloadBytes,
	}
}

// Fetch downloads a feed with up to maxRetries attempts in total.
func (f *RSSFetcher) Fetch(ctx context.Context, endpoint string, timeout time.Duration, maxRetries int) ([]byte, error) {
	var data []byte

	err := f.policy.WithAttempts(maxRetries).Do(ctx, endpoint, func(ctx context.Context, attempt int) error {
		body, err := f.fetchOnce(ctx, endpoint, timeout)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (f *RSSFetcher) fetchOnce(ctx context.Context, endpoint string, timeout time.Duration) ([]byte, error) {
	timeoutCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	return readCapped(resp, f.maxBytes)
}

// readCapped reads the body, failing as soon as more than limit bytes have
// been streamed. A declared Content-Length above the limit fails up front.
func readCapped(resp *http.Response, limit int64) ([]byte, error) {
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrPayloadTooLarge, resp.ContentLength)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w: more than %d bytes streamed", ErrPayloadTooLarge, limit)
	}

	return buf.Bytes(), nil
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
