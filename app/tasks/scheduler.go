package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

var ErrCycleQueued = errors.New("a poll cycle is already queued")

var _ SchedulerInterface = (*Scheduler)(nil)

// Scheduler runs a cycle right away, then one per poll interval. Trigger
// wakes it early.
type Scheduler struct {
	catalog  SourceCatalog
	runner   CycleRunner
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	trigger  chan struct{}

	mu    sync.RWMutex
	state State
	last  CycleSummary
}

// NewScheduler builds a scheduler; interval 0 defers to the catalog's poll
// interval.
func NewScheduler(catalog SourceCatalog, runner CycleRunner, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		catalog:  catalog,
		runner:   runner,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		trigger:  make(chan struct{}, 1),
		state:    StateIdle,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			// The cycle outlives Stop; Stop waits for it instead.
			s.RunOnce(context.WithoutCancel(s.ctx))

			timer := time.NewTimer(s.pollInterval())
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-s.trigger:
				timer.Stop()
				slog.Debug("Poll cycle triggered")
			case <-timer.C:
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Trigger asks for a cycle as soon as the loop is free.
func (s *Scheduler) Trigger() error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return ErrCycleQueued
	}
}

func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) LastCycle() CycleSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// RunOnce reloads the catalog and runs one cycle over its enabled sources.
func (s *Scheduler) RunOnce(ctx context.Context) CycleSummary {
	startedAt := time.Now().UTC()
	s.setState(StateRunning)
	defer s.setState(StateIdle)

	catalog, err := s.catalog.Reload()
	if err != nil {
		slog.Warn("Failed to reload source catalog, using previous", "error", err)
		catalog = s.catalog.Current()
	}

	sources := catalog.EnabledSources()
	if len(sources) == 0 {
		slog.Debug("No enabled sources found")
	}

	outcomes := s.runner.RunCycle(ctx, sources)

	s.mu.Lock()
	s.last = CycleSummary{
		Number:     s.last.Number + 1,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Outcomes:   outcomes,
	}
	summary := s.last
	s.mu.Unlock()

	slog.Info("Poll cycle completed",
		"cycle", summary.Number,
		"sources", len(outcomes),
		"forwarded", summary.Forwarded(),
		"duration", summary.FinishedAt.Sub(startedAt))

	return summary
}

func (s *Scheduler) pollInterval() time.Duration {
	if s.interval > 0 {
		return s.interval
	}
	if interval := s.catalog.Current().PollInterval; interval > 0 {
		return interval
	}
	return feed.DefaultPollInterval
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
