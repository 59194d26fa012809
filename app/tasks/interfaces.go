package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/news-comb/app/audit"
	"github.com/lysyi3m/news-comb/app/feed"
)

// ItemFetcher yields the normalized items of one source.
type ItemFetcher interface {
	FetchItems(ctx context.Context, src feed.SourceConfig, timeout time.Duration, maxRetries int) ([]feed.Item, error)
}

// Enricher fills in missing text or image of an item. Failures leave the
// item as it was.
type Enricher interface {
	Enrich(ctx context.Context, item *feed.Item) error
}

type ProcessedRecorder interface {
	RecordProcessed(status audit.Status, item feed.Item)
}

type CycleRunner interface {
	RunCycle(ctx context.Context, sources []feed.SourceConfig) []PollOutcome
}

type SourceCatalog interface {
	Reload() (feed.Catalog, error)
	Current() feed.Catalog
}

// SchedulerInterface is what the entry point and the status API need from
// the scheduler loop.
//
//	scheduler := NewScheduler(catalog, coordinator, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.Trigger()
type SchedulerInterface interface {
	Start()
	Stop()
	Trigger() error
	State() State
	LastCycle() CycleSummary
}
