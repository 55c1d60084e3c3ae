// The processor polls for submitted client registrations, checks them for
// duplicates against the legacy registry, records approve/review decisions,
// and completes approved registrations into the registry.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/bcgov/nr-forest-client-sub003/internal/decision"
	decisionmetrics "github.com/bcgov/nr-forest-client-sub003/internal/decision/metrics"
	"github.com/bcgov/nr-forest-client-sub003/internal/legacy"
	legacycache "github.com/bcgov/nr-forest-client-sub003/internal/legacy/cache"
	legacystore "github.com/bcgov/nr-forest-client-sub003/internal/legacy/store"
	"github.com/bcgov/nr-forest-client-sub003/internal/matching"
	matchingmetrics "github.com/bcgov/nr-forest-client-sub003/internal/matching/metrics"
	"github.com/bcgov/nr-forest-client-sub003/internal/notify"
	"github.com/bcgov/nr-forest-client-sub003/internal/ops"
	"github.com/bcgov/nr-forest-client-sub003/internal/platform/config"
	"github.com/bcgov/nr-forest-client-sub003/internal/platform/httpserver"
	"github.com/bcgov/nr-forest-client-sub003/internal/platform/logger"
	platformredis "github.com/bcgov/nr-forest-client-sub003/internal/platform/redis"
	"github.com/bcgov/nr-forest-client-sub003/internal/processor"
	processormetrics "github.com/bcgov/nr-forest-client-sub003/internal/processor/metrics"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("processor exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	submissionDB, err := openDB(ctx, cfg.SubmissionDSN)
	if err != nil {
		return fmt.Errorf("submission store: %w", err)
	}
	defer submissionDB.Close()

	legacyDB, err := openDB(ctx, cfg.LegacyDSN)
	if err != nil {
		return fmt.Errorf("legacy registry: %w", err)
	}
	defer legacyDB.Close()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	submissions := store.NewPostgres(submissionDB)
	legacyStore := legacystore.NewPostgres(legacyDB)

	var registry legacy.Registry = legacyStore
	if redisClient != nil {
		registry = legacycache.New(registry, redisClient.Client, cfg.CacheTTL, log)
		log.Info("legacy lookup cache enabled", "ttl", cfg.CacheTTL)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.NotificationEndpoint != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotificationEndpoint, nil)
	}

	procMetrics := processormetrics.New()
	engine := decision.NewEngine()
	decisions := decision.NewService(submissions,
		decision.WithLogger(log),
		decision.WithMetrics(decisionmetrics.New()),
	)
	aggregator := matching.NewAggregator(matching.DefaultRegistry(registry),
		matching.WithTimeout(cfg.MatcherTimeout),
		matching.WithLogger(log),
		matching.WithMetrics(matchingmetrics.New()),
	)
	pipeline := processor.NewPipeline(
		processor.NewLoader(submissions),
		submissions,
		aggregator,
		engine,
		decisions,
		notifier,
		processor.WithLockTTL(cfg.LockTTL),
		processor.WithMaxAttempts(cfg.MaxMatchingAttempts),
		processor.WithPipelineLogger(log),
		processor.WithPipelineMetrics(procMetrics),
	)
	completer := processor.NewCompleter(submissions, submissions, legacyStore, notifier, log)

	matchingPoller := processor.NewPoller(
		processor.LoopMatching,
		cfg.MatchingInterval, 0,
		cfg.BatchLimit, cfg.ProcessorID,
		submissions.ListSubmitted, pipeline.Process,
		log, procMetrics,
	)
	completionPoller := processor.NewPoller(
		processor.LoopCompletion,
		cfg.CompletionInterval, cfg.CompletionOffset,
		cfg.BatchLimit, cfg.ProcessorID,
		submissions.ListDecidedUnprocessed, completer.Complete,
		log, procMetrics,
	)

	checkers := []ops.Checker{
		ops.CheckerFunc{CheckName: "submission-db", Check: submissionDB.PingContext},
		ops.CheckerFunc{CheckName: "legacy-db", Check: legacyDB.PingContext},
	}
	if redisClient != nil {
		checkers = append(checkers, ops.CheckerFunc{CheckName: "redis", Check: redisClient.Health})
	}
	srv := httpserver.New(cfg.OpsAddr, ops.NewHandler(log, checkers...).Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return matchingPoller.Run(gctx) })
	g.Go(func() error { return completionPoller.Run(gctx) })
	g.Go(func() error {
		log.Info("ops server listening", "addr", cfg.OpsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("processor started",
		"matching_interval", cfg.MatchingInterval,
		"completion_interval", cfg.CompletionInterval,
		"batch_limit", cfg.BatchLimit)

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Info("processor stopped")
	return nil
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
