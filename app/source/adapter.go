package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/fetch"
)

type FeedFetcher interface {
	Fetch(ctx context.Context, endpoint string, timeout time.Duration, maxRetries int) ([]byte, error)
}

type APIFetcher interface {
	Fetch(ctx context.Context, src feed.SourceConfig, timeout time.Duration, maxRetries int) ([]feed.RawEntry, error)
}

type FeedParser interface {
	Run(data []byte) ([]feed.RawEntry, error)
}

// RawRecorder receives every raw entry before normalization.
type RawRecorder interface {
	RecordRaw(source string, entries []feed.RawEntry)
}

// Adapter turns a source configuration into normalized items. It holds no
// retry logic of its own; the fetchers own the attempt budget.
type Adapter struct {
	rss        FeedFetcher
	api        APIFetcher
	parser     FeedParser
	normalizer *feed.Normalizer
	recorder   RawRecorder
}

func NewAdapter(rss FeedFetcher, api APIFetcher, parser FeedParser, normalizer *feed.Normalizer) *Adapter {
	return &Adapter{
		rss:        rss,
		api:        api,
		parser:     parser,
		normalizer: normalizer,
	}
}

// WithRecorder attaches an audit recorder for raw entries.
func (a *Adapter) WithRecorder(recorder RawRecorder) *Adapter {
	a.recorder = recorder
	return a
}

func (a *Adapter) FetchItems(ctx context.Context, src feed.SourceConfig, timeout time.Duration, maxRetries int) ([]feed.Item, error) {
	if err := src.Validate(); err != nil {
		return nil, &fetch.ConfigurationError{Source: src.Name, Reason: err.Error()}
	}

	entries, err := a.fetchEntries(ctx, src, timeout, maxRetries)
	if err != nil {
		return nil, err
	}

	if a.recorder != nil && len(entries) > 0 {
		a.recorder.RecordRaw(src.Name, entries)
	}

	items := make([]feed.Item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, a.normalizer.Run(entry, src.Name))
	}

	slog.Debug("Source fetched", "source", src.Name, "kind", string(src.Kind), "items", len(items))

	return items, nil
}

func (a *Adapter) fetchEntries(ctx context.Context, src feed.SourceConfig, timeout time.Duration, maxRetries int) ([]feed.RawEntry, error) {
	switch src.Kind {
	case feed.SourceKindRSS:
		data, err := a.rss.Fetch(ctx, src.Endpoint, timeout, maxRetries)
		if err != nil {
			return nil, err
		}
		entries, err := a.parser.Run(data)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		return entries, nil

	case feed.SourceKindAPI:
		return a.api.Fetch(ctx, src, timeout, maxRetries)

	default:
		return nil, &fetch.ConfigurationError{Source: src.Name, Reason: fmt.Sprintf("unknown source kind %q", src.Kind)}
	}
}
