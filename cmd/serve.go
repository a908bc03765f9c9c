package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crawlkit/fetchd/internal/api"
	"github.com/crawlkit/fetchd/internal/clock/system"
	"github.com/crawlkit/fetchd/internal/config"
	"github.com/crawlkit/fetchd/internal/dispatcher"
	"github.com/crawlkit/fetchd/internal/fetch"
	"github.com/crawlkit/fetchd/internal/fetcher/collyfetch"
	"github.com/crawlkit/fetchd/internal/id/uuid"
	"github.com/crawlkit/fetchd/internal/logging"
	"github.com/crawlkit/fetchd/internal/metrics"
	"github.com/crawlkit/fetchd/internal/outcome"
	"github.com/crawlkit/fetchd/internal/pool"
	"github.com/crawlkit/fetchd/internal/results/archive"
	"github.com/crawlkit/fetchd/internal/results/fanout"
	"github.com/crawlkit/fetchd/internal/results/logsink"
	resultmemory "github.com/crawlkit/fetchd/internal/results/memory"
	resultpostgres "github.com/crawlkit/fetchd/internal/results/postgres"
	resultpubsub "github.com/crawlkit/fetchd/internal/results/pubsub"
	storagegcs "github.com/crawlkit/fetchd/internal/storage/gcs"
	storagelocal "github.com/crawlkit/fetchd/internal/storage/local"
	storagememory "github.com/crawlkit/fetchd/internal/storage/memory"
)

// newServeCmd creates the 'serve' subcommand: it runs the dispatcher, seeds
// it from config and serves the ops/ingest API until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the fetch dispatcher service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers, err := pool.New(ctx, cfg.Dispatcher.Workers)
	if err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	defer workers.Close()

	registry := prometheus.NewRegistry()
	exporter, err := metrics.NewExporter(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sink, closeSinks, err := buildSink(ctx, cfg, exporter, logger)
	if err != nil {
		return fmt.Errorf("build result sinks: %w", err)
	}
	defer closeSinks()

	fetcher := collyfetch.New(collyfetch.Config{
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxBodySize: cfg.Fetch.MaxBodyBytes,
	})
	clock := system.New()

	disp, err := dispatcher.New(workers, fetcher, outcome.New(), sink, clock, dispatcher.Config{
		WindowSeconds: cfg.Dispatcher.WindowSeconds,
		FetchTimeout:  cfg.FetchTimeout(),
	}, logger)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	go disp.Run(ctx)

	if err := metrics.RegisterDispatcherGauges(registry, disp); err != nil {
		return fmt.Errorf("register dispatcher gauges: %w", err)
	}

	server := api.NewServer(disp, uuid.New(), metrics.Handler(registry), cfg.DefaultCrawlDelay(), logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving", zap.Int("port", cfg.Server.Port))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(serveErr))
			stop()
		}
	}()

	seedRequests(ctx, cfg, disp, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// seedRequests dispatches the configured seed URLs once at startup.
func seedRequests(ctx context.Context, cfg config.Config, disp *dispatcher.Dispatcher, logger *zap.Logger) {
	idGen := uuid.New()
	for _, rawURL := range cfg.Seeds {
		id, err := idGen.NewID()
		if err != nil {
			logger.Error("seed id generation failed", zap.Error(err))
			continue
		}
		req, err := fetch.NewRequest(id, rawURL, cfg.DefaultCrawlDelay())
		if err != nil {
			logger.Warn("skipping invalid seed", zap.String("url", rawURL), zap.Error(err))
			continue
		}
		disp.Dispatch(ctx, req)
	}
}

// buildSink assembles the configured sink fan-out, wrapped by the archive
// decorator when payload archiving is enabled.
func buildSink(ctx context.Context, cfg config.Config, exporter *metrics.Exporter, logger *zap.Logger) (fetch.Sink, func(), error) {
	sinks := []fetch.Sink{exporter}
	var closers []func()

	for _, name := range cfg.Results.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, logsink.New(logger))
		case "memory":
			sinks = append(sinks, resultmemory.New())
		case "pubsub":
			ps, err := resultpubsub.New(ctx, resultpubsub.Config{
				ProjectID: cfg.Results.PubSub.ProjectID,
				TopicID:   cfg.Results.PubSub.TopicID,
			})
			if err != nil {
				return nil, nil, err
			}
			sinks = append(sinks, ps)
			closers = append(closers, func() { _ = ps.Close() })
		case "postgres":
			store, err := resultpostgres.New(ctx, resultpostgres.Config{
				DSN:      cfg.Results.Postgres.DSN,
				Table:    cfg.Results.Postgres.Table,
				MaxConns: cfg.Results.Postgres.MaxConns,
			})
			if err != nil {
				return nil, nil, err
			}
			sinks = append(sinks, store)
			closers = append(closers, store.Close)
		default:
			return nil, nil, fmt.Errorf("unknown result sink %q", name)
		}
	}

	var sink fetch.Sink = fanout.New(sinks...)

	if cfg.Archive.Enabled {
		store, err := buildBlobStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		sink, err = archive.New(sink, store, cfg.Archive.Prefix)
		if err != nil {
			return nil, nil, err
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return sink, closeAll, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (fetch.BlobStore, error) {
	switch cfg.Archive.Store {
	case "memory":
		return storagememory.New(), nil
	case "local":
		return storagelocal.New(cfg.Archive.LocalDir)
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return storagegcs.New(client, cfg.Archive.GCSBucket)
	default:
		return nil, fmt.Errorf("unknown archive store %q", cfg.Archive.Store)
	}
}
