package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lysyi3m/news-comb/app/api"
	"github.com/lysyi3m/news-comb/app/audit"
	"github.com/lysyi3m/news-comb/app/backend"
	"github.com/lysyi3m/news-comb/app/cfg"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/fetch"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/tasks"
)

// ledger bundles the existence oracle with whatever it needs on shutdown.
type ledger struct {
	store backend.Store
	items api.ItemLedger
	close func(ctx context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting News Comb", "version", appCfg.Version, "store", appCfg.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openLedger(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to open ledger", "store", appCfg.Store, "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.close(closeCtx); err != nil {
			slog.Warn("Failed to close ledger", "error", err)
		}
	}()

	sink, closeSink := buildSink(appCfg, store.store)
	defer closeSink()

	httpClient := &http.Client{}
	policy := fetch.DefaultPolicy()

	adapter := source.NewAdapter(
		fetch.NewRSSFetcher(httpClient, appCfg.UserAgent, policy),
		fetch.NewGNewsFetcher(httpClient, appCfg.UserAgent, policy),
		feed.NewParser(),
		feed.NewNormalizer(),
	)

	coordinator := tasks.NewCoordinator(adapter, store.store, sink, appCfg.RequestTimeout, appCfg.MaxRetries).
		WithConcurrencyLimit(appCfg.MaxConcurrentSources)

	if appCfg.AuditDir != "" {
		writer, err := audit.NewWriter(appCfg.AuditDir)
		if err != nil {
			slog.Error("Failed to initialize audit log", "dir", appCfg.AuditDir, "error", err)
			os.Exit(1)
		}
		adapter.WithRecorder(writer)
		coordinator.WithRecorder(writer)
		slog.Info("Audit log enabled", "dir", appCfg.AuditDir)
	}

	if appCfg.ExtractContent {
		coordinator.WithEnricher(feed.NewContentExtractor(httpClient, appCfg.UserAgent, appCfg.EnrichRPS, appCfg.RequestTimeout))
		slog.Info("Content extraction enabled", "rps", appCfg.EnrichRPS)
	}

	catalog := feed.NewSourceCatalog(appCfg.SourcesFile)
	if _, err := catalog.Reload(); err != nil {
		slog.Error("Failed to load sources", "path", appCfg.SourcesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Sources loaded", "count", len(catalog.Current().Sources), "enabled", len(catalog.Current().EnabledSources()))

	scheduler := tasks.NewScheduler(catalog, coordinator, appCfg.PollInterval)

	if appCfg.Once {
		summary := scheduler.RunOnce(ctx)
		slog.Info("Single cycle finished", "sources", len(summary.Outcomes), "forwarded", summary.Forwarded())
		return
	}

	scheduler.Start()

	apiHandler := api.NewHandler(catalog, scheduler, store.items, appCfg.BaseUrl, appCfg.Version)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	slog.Info("News Comb started, press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Waits for an in-flight cycle to finish.
	scheduler.Stop()

	slog.Info("News Comb shutdown complete")
}

func openLedger(ctx context.Context, appCfg *cfg.Cfg) (*ledger, error) {
	noop := func(context.Context) error { return nil }

	switch appCfg.Store {
	case cfg.StoreMongo:
		store, err := backend.NewMongoStore(ctx, appCfg.MongoURI, appCfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return &ledger{store: store, close: store.Close}, nil

	case cfg.StoreElasticsearch:
		store, err := backend.NewElasticStore(appCfg.ElasticsearchAddr, appCfg.ElasticsearchIndex)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		return &ledger{store: store, close: noop}, nil

	case cfg.StoreMemory:
		slog.Warn("Using in-memory ledger, deduplication resets on restart")
		return &ledger{store: backend.NewMemoryStore(0, 0), close: noop}, nil

	default:
		db, err := database.NewConnection(appCfg.DBPath)
		if err != nil {
			return nil, err
		}
		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("Ledger ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

		store := database.NewNewsStore(db)
		return &ledger{
			store: store,
			items: store,
			close: func(context.Context) error { return db.Close() },
		}, nil
	}
}

// buildSink forwards to the HTTP backend when one is configured and keeps
// the ledger in step with what the backend accepted. Without a backend the
// ledger itself is the sink.
func buildSink(appCfg *cfg.Cfg, store backend.Store) (backend.Sink, func()) {
	var primary backend.Sink = store
	var mirrors []backend.Sink

	if appCfg.BackendURL != "" {
		httpClient := &http.Client{Timeout: appCfg.RequestTimeout}
		primary = backend.NewHTTPClient(httpClient, appCfg.BackendURL, appCfg.BackendEndpoint)
		mirrors = append(mirrors, store)
		slog.Info("Forwarding to backend", "url", appCfg.BackendURL, "endpoint", appCfg.BackendEndpoint)
	}

	closeSink := func() {}
	if len(appCfg.KafkaBrokers) > 0 {
		publisher := backend.NewKafkaPublisher(appCfg.KafkaBrokers, appCfg.KafkaTopic)
		mirrors = append(mirrors, publisher)
		closeSink = func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("Failed to close Kafka publisher", "error", err)
			}
		}
		slog.Info("Publishing forwarded items to Kafka", "brokers", appCfg.KafkaBrokers, "topic", appCfg.KafkaTopic)
	}

	if len(mirrors) == 0 {
		return primary, closeSink
	}
	return backend.NewChain(primary, mirrors...), closeSink
}
