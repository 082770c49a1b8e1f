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

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/collision-data-api/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/collision-data-api/internal/adapter/kafka"
	"github.com/couchcryptid/collision-data-api/internal/artifact"
	"github.com/couchcryptid/collision-data-api/internal/config"
	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/observability"
	"github.com/couchcryptid/collision-data-api/internal/predict"
	"github.com/couchcryptid/collision-data-api/internal/store"
	"github.com/couchcryptid/collision-data-api/internal/tabular"
)

// readiness is ready when every checker is.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, observability.NewMetrics()); err != nil {
		slog.Error("api exited", "error", err)
		stop()
		os.Exit(1)
	}
}

// run wires the service and serves until ctx is cancelled or the server fails.
// Everything opened here is closed before it returns.
func run(ctx context.Context, metrics *observability.Metrics) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	logger.Info("database opened", "dialect", st.Dialect())

	catalog, err := domain.LoadCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	model, err := predict.LoadModel(cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}
	logger.Info("model loaded", "path", cfg.ModelPath, "version", model.Version)

	cache, err := artifact.NewCache(cfg.DataDir, artifact.Options{MaxAge: cfg.ArtifactMaxAge}, logger, metrics)
	if err != nil {
		return fmt.Errorf("prepare artifact directory %s: %w", cfg.DataDir, err)
	}

	svc := tabular.New(st, cfg.MaxPageSize, logger, metrics)
	predictor := predict.NewAdapter(model, logger, metrics)

	// Audit publishing is feature-flagged via KAFKA_BROKERS.
	var audit httpadapter.AuditPublisher
	if cfg.AuditEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger, metrics)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		audit = writer
		logger.Info("kafka audit enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAuditTopic)
	} else {
		logger.Info("kafka audit disabled")
	}

	if cfg.ArtifactWatchDatabase {
		if st.Dialect() != store.DialectSQLite {
			logger.Warn("database watch requires sqlite, ignoring ARTIFACT_WATCH_DATABASE")
		} else {
			watcher, err := artifact.NewWatcher(cache, st.Path(), logger, svc.ResetCounts)
			if err != nil {
				return fmt.Errorf("watch database: %w", err)
			}
			go func() {
				if err := watcher.Run(ctx); err != nil {
					logger.Error("database watcher error", "error", err)
				}
			}()
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Tabular:   svc,
		Artifacts: tabular.NewMaterializer(svc, cache),
		Predictor: predictor,
		Catalog:   catalog,
		Audit:     audit,
		Ready:     readiness{st, predictor},
	}, logger)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	logger.Info("shutdown complete")
	return nil
}
