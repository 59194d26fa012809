package tasks

import (
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
)

// StopReason records why a source stopped being processed in a cycle.
type StopReason string

const (
	ReasonExhausted    StopReason = "exhausted"
	ReasonDuplicate    StopReason = "duplicate-encountered"
	ReasonFetchError   StopReason = "fetch-error"
	ReasonSaveRejected StopReason = "save-rejected"
	ReasonTaskFailed   StopReason = "task-failed"
)

type PollOutcome struct {
	Source    string
	TaskID    string
	Forwarded []feed.Item
	Reason    StopReason
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// CycleSummary describes the most recent completed cycle.
type CycleSummary struct {
	Number     int
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []PollOutcome
}

func (c CycleSummary) Forwarded() int {
	total := 0
	for _, o := range c.Outcomes {
		total += len(o.Forwarded)
	}
	return total
}
