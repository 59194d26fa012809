package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lysyi3m/news-comb/app/audit"
	"github.com/lysyi3m/news-comb/app/backend"
	"github.com/lysyi3m/news-comb/app/feed"
)

type PollSourceTask struct {
	Task
	Source     feed.SourceConfig
	fetcher    ItemFetcher
	oracle     backend.ExistenceOracle
	sink       backend.Sink
	enricher   Enricher
	recorder   ProcessedRecorder
	timeout    time.Duration
	maxRetries int

	forwarded []feed.Item
	reason    StopReason
	err       error
}

var _ TaskInterface = (*PollSourceTask)(nil)

func NewPollSourceTask(src feed.SourceConfig, fetcher ItemFetcher, oracle backend.ExistenceOracle, sink backend.Sink, timeout time.Duration, maxRetries int) *PollSourceTask {
	return &PollSourceTask{
		Task:       NewTask(TaskTypePollSource, src.Name),
		Source:     src,
		fetcher:    fetcher,
		oracle:     oracle,
		sink:       sink,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// Execute fetches the source and forwards its items newest first until one
// is already known, the sink declines one, or the items run out.
func (t *PollSourceTask) Execute(ctx context.Context) error {
	items, err := t.fetcher.FetchItems(ctx, t.Source, t.timeout, t.maxRetries)
	if err != nil {
		slog.Warn("Source fetch failed", "source", t.SourceName, "error", err)
		return t.stop(ReasonFetchError, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	for _, item := range items {
		exists, err := t.oracle.Exists(ctx, item.Header, item.SourceName)
		if err != nil {
			t.record(audit.StatusError, item)
			return t.stop(ReasonSaveRejected, fmt.Errorf("existence check failed: %w", err))
		}
		if exists {
			t.record(audit.StatusDuplicate, item)
			slog.Debug("Known item reached, stopping source", "source", t.SourceName, "header", item.Header)
			return t.stop(ReasonDuplicate, nil)
		}

		t.enrich(ctx, &item)

		created, err := t.sink.Save(ctx, item)
		if err != nil {
			t.record(audit.StatusError, item)
			return t.stop(ReasonSaveRejected, fmt.Errorf("save failed: %w", err))
		}
		if !created {
			t.record(audit.StatusDuplicate, item)
			slog.Debug("Sink reported item as not created, stopping source", "source", t.SourceName, "header", item.Header)
			return t.stop(ReasonSaveRejected, nil)
		}

		t.record(audit.StatusStored, item)
		t.forwarded = append(t.forwarded, item)
	}

	return t.stop(ReasonExhausted, nil)
}

func (t *PollSourceTask) enrich(ctx context.Context, item *feed.Item) {
	if t.enricher == nil || (item.Text != "" && item.ImageURL != "") {
		return
	}
	if err := t.enricher.Enrich(ctx, item); err != nil {
		slog.Debug("Enrichment failed", "source", t.SourceName, "url", item.URL, "error", err)
	}
}

func (t *PollSourceTask) record(status audit.Status, item feed.Item) {
	if t.recorder != nil {
		t.recorder.RecordProcessed(status, item)
	}
}

func (t *PollSourceTask) stop(reason StopReason, err error) error {
	t.reason = reason
	t.err = err

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"source", t.GetSourceName(),
		"id", t.GetID(),
		"reason", string(reason),
		"forwarded", len(t.forwarded),
		"duration", t.GetDuration())

	return err
}

// Outcome reports what the task did; valid once Execute has returned.
func (t *PollSourceTask) Outcome() PollOutcome {
	return PollOutcome{
		Source:    t.GetSourceName(),
		TaskID:    t.GetID(),
		Forwarded: t.forwarded,
		Reason:    t.reason,
		Err:       t.err,
		StartedAt: t.GetStartedAt(),
		Duration:  t.GetDuration(),
	}
}
