// Command approvio runs the approval orchestration service: the HTTP API,
// the bus consumers, and the escalation scheduler in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/approvio/approvio/internal/api"
	"github.com/approvio/approvio/internal/bus"
	"github.com/approvio/approvio/internal/config"
	"github.com/approvio/approvio/internal/db"
	"github.com/approvio/approvio/internal/db/migrations"
	"github.com/approvio/approvio/internal/dbpool"
	"github.com/approvio/approvio/internal/service"
	"github.com/approvio/approvio/internal/store"
)

// version is set via ldflags at build time.
var version = "0.1.0-dev"

// dedupPurgeInterval is how often expired idempotency keys are swept.
const dedupPurgeInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "approvio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	log.WithFields(logrus.Fields{
		"version": version,
		"addr":    cfg.Addr(),
	}).Info("starting approvio")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	conn, err := bus.Connect(cfg.NATSURL, log)
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	base := store.Base{Pool: pool, Log: log}
	items := store.NewItemStore(base)
	settings := store.NewSettingsStore(base)
	audits := store.NewAuditStore(base)
	dedup := store.NewDedupStore(base)
	quarantine := store.NewQuarantineStore(base)
	tenants := store.NewTenantStore(pool)

	auditWorker := service.NewAuditWorker(audits, log, cfg.AuditQueueSize)
	publisher := bus.NewPublisher(conn.JetStream(), log)
	lifecycle := service.NewLifecycleService(items, settings, audits, publisher, auditWorker, log, cfg.DedupTTL)
	bulk := service.NewBulkService(lifecycle, log)
	escalator := service.NewEscalator(items, settings, tenants, publisher, log, cfg.EscalationInterval, cfg.EscalationBatchSize)

	consumer := bus.NewConsumer(conn.JetStream(), lifecycle, quarantine, log, cfg.MaxEventDeliveries)
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("starting bus consumer: %w", err)
	}
	defer consumer.Stop()

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:          log,
		Pool:         pool,
		Approvals:    lifecycle,
		Bulk:         bulk,
		Audit:        audits,
		Quarantine:   quarantine,
		Bus:          conn,
		TenantLookup: tenants,
		CORSOrigins:  cfg.CORSOrigins,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		auditWorker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		escalator.Run(gctx)
		return nil
	})

	g.Go(func() error {
		runDedupPurge(gctx, dedup, log)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("approvio stopped")
	return nil
}

// runDedupPurge periodically deletes expired idempotency keys.
func runDedupPurge(ctx context.Context, dedup *store.DedupStore, log *logrus.Logger) {
	ticker := time.NewTicker(dedupPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := dedup.PurgeExpired(ctx)
			if err != nil {
				log.WithError(err).Error("dedup purge failed")
			} else if deleted > 0 {
				log.WithField("deleted", deleted).Info("dedup purge complete")
			}
		}
	}
}
