package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/tasks"
)

const (
	defaultItemsLimit = 50
	maxItemsLimit     = 500
)

// NewHandler wires the status handlers. ledger may be nil when the
// configured store cannot list items.
func NewHandler(catalog CatalogInterface, scheduler tasks.SchedulerInterface, ledger ItemLedger, baseURL, version string) *Handler {
	return &Handler{
		catalog:   catalog,
		scheduler: scheduler,
		ledger:    ledger,
		generator: feed.NewGenerator(),
		baseURL:   strings.TrimRight(baseURL, "/"),
		version:   version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"state":     string(h.scheduler.State()),
		"sources":   len(h.catalog.Current().Sources),
		"version":   h.version,
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	cycle := h.scheduler.LastCycle()

	outcomes := make([]outcomeResponse, 0, len(cycle.Outcomes))
	for _, o := range cycle.Outcomes {
		resp := outcomeResponse{
			Source:    o.Source,
			TaskID:    o.TaskID,
			Reason:    string(o.Reason),
			Forwarded: len(o.Forwarded),
			Duration:  o.Duration.String(),
		}
		if o.Err != nil {
			resp.Error = o.Err.Error()
		}
		if !o.StartedAt.IsZero() {
			resp.StartedAt = o.StartedAt.UTC().Format(time.RFC3339)
		}
		outcomes = append(outcomes, resp)
	}

	stats := map[string]any{
		"state":     string(h.scheduler.State()),
		"cycles":    cycle.Number,
		"forwarded": cycle.Forwarded(),
		"outcomes":  outcomes,
	}
	if cycle.Number > 0 {
		stats["last_cycle_started_at"] = cycle.StartedAt.Format(time.RFC3339)
		stats["last_cycle_finished_at"] = cycle.FinishedAt.Format(time.RFC3339)
	}

	if h.ledger != nil {
		if count, err := h.ledger.GetItemCount(c.Request.Context()); err == nil {
			stats["stored_items"] = count
		} else {
			slog.Error("Database error", "operation", "count_items", "error", err)
		}
	}

	c.JSON(http.StatusOK, stats)
}

// GetFeed republishes the forwarded items of one source as RSS.
func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	src, ok := h.findSource(name)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	if h.ledger == nil {
		c.Status(http.StatusNotImplemented)
		return
	}

	items, err := h.ledger.GetRecentItems(c.Request.Context(), name, defaultItemsLimit)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(feed.Channel{
		SourceName: src.Name,
		Endpoint:   src.Endpoint,
		SelfURL:    h.selfURL(name),
		Generator:  "News-Comb/" + h.version,
	}, items)
	if err != nil {
		slog.Error("RSS generation error", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Name", name)

	c.String(http.StatusOK, rss)
}

func (h *Handler) APIListSources(c *gin.Context) {
	catalog := h.catalog.Current()

	sources := make([]sourceResponse, 0, len(catalog.Sources))
	for _, src := range catalog.Sources {
		resp := sourceResponse{
			Name:     src.Name,
			Kind:     src.Kind,
			Endpoint: src.Endpoint,
			Enabled:  src.Enabled,
			Valid:    true,
		}
		if err := src.Validate(); err != nil {
			resp.Valid = false
			resp.Problem = err.Error()
		}
		sources = append(sources, resp)
	}

	c.JSON(http.StatusOK, map[string]any{
		"sources":       sources,
		"total":         len(sources),
		"poll_interval": catalog.PollInterval.String(),
	})
}

func (h *Handler) APIGetSourceItems(c *gin.Context) {
	name := c.Param("name")

	if _, ok := h.findSource(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	if h.ledger == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Configured store does not list items"})
		return
	}

	limit := defaultItemsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxItemsLimit)
	}

	items, err := h.ledger.GetRecentItems(c.Request.Context(), name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if items == nil {
		items = []feed.Item{}
	}

	c.JSON(http.StatusOK, map[string]any{
		"source": name,
		"items":  items,
		"total":  len(items),
	})
}

func (h *Handler) APITriggerPoll(c *gin.Context) {
	err := h.scheduler.Trigger()
	if errors.Is(err, tasks.ErrCycleQueued) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("Error triggering poll cycle", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Scheduler is not running",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Poll cycle queued",
		"state":   string(h.scheduler.State()),
	})
}

func (h *Handler) findSource(name string) (feed.SourceConfig, bool) {
	for _, src := range h.catalog.Current().Sources {
		if src.Name == name {
			return src, true
		}
	}
	return feed.SourceConfig{}, false
}

func (h *Handler) selfURL(name string) string {
	if h.baseURL == "" {
		return ""
	}
	return h.baseURL + "/feeds/" + name
}
