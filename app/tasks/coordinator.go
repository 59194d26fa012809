package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/news-comb/app/backend"
	"github.com/lysyi3m/news-comb/app/feed"
)

var _ CycleRunner = (*Coordinator)(nil)

// Coordinator runs one poll task per enabled source. Sources are
// independent: a failure or panic in one never affects another.
type Coordinator struct {
	fetcher       ItemFetcher
	oracle        backend.ExistenceOracle
	sink          backend.Sink
	enricher      Enricher
	recorder      ProcessedRecorder
	timeout       time.Duration
	maxRetries    int
	maxConcurrent int
}

func NewCoordinator(fetcher ItemFetcher, oracle backend.ExistenceOracle, sink backend.Sink, timeout time.Duration, maxRetries int) *Coordinator {
	return &Coordinator{
		fetcher:    fetcher,
		oracle:     oracle,
		sink:       sink,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

func (c *Coordinator) WithEnricher(enricher Enricher) *Coordinator {
	c.enricher = enricher
	return c
}

func (c *Coordinator) WithRecorder(recorder ProcessedRecorder) *Coordinator {
	c.recorder = recorder
	return c
}

// WithConcurrencyLimit caps the number of sources polled at once; 0 means
// no cap.
func (c *Coordinator) WithConcurrencyLimit(limit int) *Coordinator {
	c.maxConcurrent = limit
	return c
}

func (c *Coordinator) newTask(src feed.SourceConfig) TaskInterface {
	task := NewPollSourceTask(src, c.fetcher, c.oracle, c.sink, c.timeout, c.maxRetries)
	task.enricher = c.enricher
	task.recorder = c.recorder
	return task
}

func (c *Coordinator) ProcessSource(ctx context.Context, src feed.SourceConfig) (outcome PollOutcome) {
	task := c.newTask(src)
	task.Start()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Task panicked", "type", string(task.GetType()), "source", task.GetSourceName(), "id", task.GetID(), "panic", r, "stack", string(debug.Stack()))
			outcome = task.Outcome()
			outcome.Reason = ReasonTaskFailed
			outcome.Err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	task.Execute(ctx)

	return task.Outcome()
}

// RunCycle polls every enabled source concurrently and returns their
// outcomes in input order.
func (c *Coordinator) RunCycle(ctx context.Context, sources []feed.SourceConfig) []PollOutcome {
	enabled := make([]feed.SourceConfig, 0, len(sources))
	for _, src := range sources {
		if !src.Enabled {
			slog.Debug("Source disabled, skipping", "source", src.Name)
			continue
		}
		enabled = append(enabled, src)
	}

	outcomes := make([]PollOutcome, len(enabled))

	var g errgroup.Group
	if c.maxConcurrent > 0 {
		g.SetLimit(c.maxConcurrent)
	}

	for i, src := range enabled {
		g.Go(func() error {
			outcomes[i] = c.ProcessSource(ctx, src)
			return nil
		})
	}
	g.Wait()

	return outcomes
}
