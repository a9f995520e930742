// Package main is the entry point for the CyberClinic game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
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

	"github.com/gin-gonic/gin"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/engine"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
	"github.com/MRamiBalles/CyberClinic/server/internal/infra/cache"
	"github.com/MRamiBalles/CyberClinic/server/internal/infra/storage"
	"github.com/MRamiBalles/CyberClinic/server/internal/network"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/config"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/logger"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/metrics"
)

// meteredPersister times every ledger write.
type meteredPersister struct {
	next    events.EventPersister
	metrics *metrics.Collector
}

func (p *meteredPersister) Append(event events.GameEvent) error {
	start := time.Now()
	err := p.next.Append(event)
	p.metrics.RecordEventWrite(time.Since(start), err)
	return err
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "clinic-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	appLogger := logger.New(os.Stdout, logger.Format(cfg.LogFormat), logger.ParseLevel(cfg.LogLevel))
	appLogger.Info("Initializing CyberClinic server", "addr", cfg.Addr, "profile", cfg.Profile)

	tables, err := content.Load(cfg.ContentFile)
	if err != nil {
		return err
	}
	appLogger.Info("Content tables loaded", "version", tables.Version, "diagnoses", len(tables.Diagnoses))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()

	var (
		ledger    *storage.SQLLedger
		persister events.EventPersister
		runStore  network.RunStore
	)
	if cfg.LedgerDriver != config.LedgerNone {
		appLogger.Info("Opening run ledger", "driver", cfg.LedgerDriver)
		ledger, err = storage.Open(ctx, cfg.LedgerDriver, cfg.LedgerDSN)
		if err != nil {
			return err
		}
		defer ledger.Close()
		ledger.SetPool(cfg.Tuning.DBMaxOpenConns, cfg.Tuning.DBMaxIdleConns)
		persister = &meteredPersister{next: ledger, metrics: collector}
		runStore = ledger
	}

	eventLog := events.NewEventLog(persister,
		events.WithQueueSize(cfg.Tuning.EventQueue),
		events.WithPersistErrorHandler(func(e events.GameEvent, err error) {
			if errors.Is(err, events.ErrQueueFull) {
				collector.RecordEventDropped()
				appLogger.Warn("Ledger queue full, event kept in memory only", "event_id", e.ID, "type", string(e.Type))
				return
			}
			appLogger.Error("Failed to persist event", "event_id", e.ID, "type", string(e.Type), "err", err)
		}),
	)

	onRunFinished := func(r engine.RunSummary) {
		if ledger == nil {
			return
		}
		saveCtx, cancel := context.WithTimeout(context.Background(), storage.DefaultWriteTimeout)
		defer cancel()
		if err := ledger.SaveRun(saveCtx, r); err != nil {
			appLogger.Error("Failed to save run summary", "run_id", r.RunID, "err", err)
		}
	}

	gameEngine := engine.NewEngine(tables, eventLog, appLogger, engine.Options{
		Metrics:       collector,
		Resolution:    cfg.Tuning.TickResolution,
		OnRunFinished: onRunFinished,
	})
	gameEngine.Start(ctx)

	if cfg.RedisEnabled {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Tuning.RedisPoolSize)
		if err != nil {
			appLogger.Warn("Redis unavailable, snapshot publishing disabled", "err", err)
		} else {
			defer rdb.Close()
			snapshots := cache.NewSnapshotCache(rdb, cfg.SnapshotKey, cfg.SnapshotTTL)
			go snapshots.RunPublisher(ctx, cfg.SnapshotInterval,
				func() (string, clinic.GameState) { return gameEngine.RunID(), gameEngine.Snapshot() },
				func(err error) { appLogger.Warn("Snapshot publish failed", "err", err) },
			)
			appLogger.Info("Publishing snapshots to Redis", "addr", cfg.RedisAddr, "key", snapshots.Key())
		}
	}

	appLogger.Info("Bootstrapping WebSocket hub")
	hub := network.NewHub(gameEngine, eventLog, appLogger, collector, cfg.Tuning)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx)

	gin.SetMode(cfg.GinMode)
	api := network.NewAPI(gameEngine, eventLog, runStore, hub, collector, appLogger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP API & WS server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			gameEngine.Shutdown()
			eventLog.Close()
			return fmt.Errorf("http server: %w", err)
		}
	}

	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP shutdown incomplete", "err", err)
	}
	gameEngine.Shutdown()
	eventLog.Close()
	appLogger.Info("Server stopped", "events", eventLog.Len())
	return nil
}
