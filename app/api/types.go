package api

import (
	"context"

	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, items []feed.Item) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type CatalogInterface interface {
	Current() feed.Catalog
}

// ItemLedger is implemented by stores that can list what was forwarded.
type ItemLedger interface {
	GetItemCount(ctx context.Context) (int, error)
	GetRecentItems(ctx context.Context, source string, limit int) ([]feed.Item, error)
}

type Handler struct {
	catalog   CatalogInterface
	scheduler tasks.SchedulerInterface
	ledger    ItemLedger
	generator GeneratorInterface
	baseURL   string
	version   string
}

type outcomeResponse struct {
	Source    string `json:"source"`
	TaskID    string `json:"task_id"`
	Reason    string `json:"reason"`
	Forwarded int    `json:"forwarded"`
	Error     string `json:"error,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	Duration  string `json:"duration"`
}

type sourceResponse struct {
	Name     string          `json:"name"`
	Kind     feed.SourceKind `json:"kind"`
	Endpoint string          `json:"endpoint,omitempty"`
	Enabled  bool            `json:"enabled"`
	Valid    bool            `json:"valid"`
	Problem  string          `json:"problem,omitempty"`
}
