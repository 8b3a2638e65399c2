package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	agreementmetrics "github.com/bassrehab/oconsent/internal/agreement/metrics"
	"github.com/bassrehab/oconsent/internal/agreement/service"
	"github.com/bassrehab/oconsent/internal/agreement/store"
	"github.com/bassrehab/oconsent/internal/audit"
	"github.com/bassrehab/oconsent/internal/batch"
	"github.com/bassrehab/oconsent/internal/platform/config"
	"github.com/bassrehab/oconsent/internal/platform/database"
	"github.com/bassrehab/oconsent/internal/platform/health"
	"github.com/bassrehab/oconsent/internal/platform/httpserver"
	"github.com/bassrehab/oconsent/internal/platform/logger"
	httptransport "github.com/bassrehab/oconsent/internal/transport/http"
	"github.com/bassrehab/oconsent/internal/verification"
	verifymetrics "github.com/bassrehab/oconsent/internal/verification/metrics"
	"github.com/bassrehab/oconsent/internal/verification/tracer"
	"github.com/bassrehab/oconsent/migrations"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing oconsent registry",
		"addr", cfg.Addr,
		"store", cfg.StoreBackend,
	)

	healthHandler := health.New(os.Getenv("OCONSENT_ENV"))

	var registryStore service.Store
	var verifyStore verification.Store
	switch cfg.StoreBackend {
	case config.StorePostgres:
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		pool, err := database.New(dbCfg)
		if err != nil || pool == nil {
			log.Error("postgres store selected but database is unavailable", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := migrations.Apply(migrateCtx, pool.DB()); err != nil {
			cancel()
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		cancel()
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
		pg := store.NewPostgres(pool.DB())
		registryStore, verifyStore = pg, pg
	default:
		mem := store.New()
		registryStore, verifyStore = mem, mem
	}

	auditOpts := []audit.PublisherOption{audit.WithPublisherLogger(log)}
	if cfg.AuditBufferSize > 0 {
		auditOpts = append(auditOpts, audit.WithAsyncBuffer(cfg.AuditBufferSize))
	}
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), auditOpts...)
	defer auditor.Close()

	registry := service.NewService(registryStore, auditor, log, cfg.Operator,
		service.WithMetrics(agreementmetrics.New()),
	)

	engine := verification.NewEngine(verifyStore, log,
		verification.WithTracer(tracer.NewOTel()),
		verification.WithMetrics(verifymetrics.New()),
	)

	executorOpts := []batch.Option{}
	if cfg.VerifyConcurrency > 0 {
		executorOpts = append(executorOpts, batch.WithVerifyConcurrency(cfg.VerifyConcurrency))
	}
	executor := batch.NewExecutor(registry, engine, log, executorOpts...)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Agreements: httptransport.NewAgreementHandler(registry, log),
		Verify:     httptransport.NewVerifyHandler(engine, executor, log),
		Batch:      httptransport.NewBatchHandler(executor, log),
		Health:     healthHandler,
	}, log)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
