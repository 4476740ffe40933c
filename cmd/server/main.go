package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"

	"skillchain/internal/audit"
	"skillchain/internal/certificate/completion"
	"skillchain/internal/certificate/contentstore"
	"skillchain/internal/certificate/handler"
	"skillchain/internal/certificate/ledger"
	"skillchain/internal/certificate/metrics"
	"skillchain/internal/certificate/render"
	"skillchain/internal/certificate/service"
	"skillchain/internal/certificate/store"
	"skillchain/internal/certificate/tracer"
	"skillchain/internal/course"
	"skillchain/internal/platform/config"
	"skillchain/internal/platform/database"
	"skillchain/internal/platform/health"
	"skillchain/internal/platform/httpserver"
	"skillchain/internal/platform/kafka/producer"
	"skillchain/internal/platform/logger"
	"skillchain/internal/progress"
	httptransport "skillchain/internal/transport/http"
	"skillchain/migrations"
	"skillchain/pkg/platform/retry"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing skillchain",
		"addr", cfg.Addr,
		"simulation_mode", cfg.SimulationMode,
	)

	healthHandler := health.New(cfg.Environment)

	// Stores: postgres when configured, in-memory otherwise.
	var (
		records       store.Store
		progressStore progress.Store
	)
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		pool, err := database.New(dbCfg)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pool.MigrateUp(migrateCtx, migrations.FS); err != nil {
			cancelMigrate()
			log.Error("database migration failed", "error", err)
			os.Exit(1)
		}
		cancelMigrate()
		records = store.NewPostgres(pool.DB())
		progressStore = progress.NewPostgres(pool.DB())
		healthHandler.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	} else {
		log.Warn("no database configured, using in-memory stores")
		records = store.NewInMemoryStore()
		progressStore = progress.NewInMemoryStore()
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		records = store.NewCached(records, redisClient, time.Hour, log)
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		})
	}

	// Audit trail: kafka when configured, in-memory otherwise.
	var auditSink audit.Store = audit.NewInMemoryStore()
	if cfg.KafkaBrokers != "" {
		kafkaProducer, err := producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			Retries:         cfg.Retry.MaxAttempts,
			DeliveryTimeout: cfg.DeliveryTimeout,
		}, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		auditSink = audit.NewKafkaStore(kafkaProducer, cfg.AuditTopic)
	}
	auditPublisher := audit.NewPublisher(auditSink,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer auditPublisher.Close()

	// The ledger variant is fixed here for the process lifetime.
	var ledgerClient ledger.Client
	if cfg.SimulationMode {
		ledgerClient = ledger.NewSimulated(ledger.WithSimulatedLogger(log))
	} else {
		evm, err := ledger.NewEVM(ledger.EVMConfig{
			RPCURL:          cfg.LedgerRPCURL,
			ChainID:         cfg.LedgerChainID,
			SigningKeyHex:   cfg.SigningKeyHex,
			ContractAddress: cfg.ContractAddress,
			ConfirmTimeout:  cfg.ConfirmTimeout,
		}, log)
		if err != nil {
			log.Error("ledger client init failed", "error", err)
			os.Exit(1)
		}
		ledgerClient = evm
	}

	catalog := course.NewInMemoryCatalog()
	if cfg.SimulationMode {
		seedDemoCatalog(catalog)
	}

	content := contentstore.New(contentstore.Config{
		BaseURL:        cfg.PinningBaseURL,
		JWT:            cfg.PinningJWT,
		GatewayBaseURL: cfg.GatewayBaseURL,
	}, contentstore.WithLogger(log))

	certMetrics := metrics.New()
	svc := service.New(service.Deps{
		Records:  records,
		Catalog:  catalog,
		Gate:     completion.NewGate(catalog, progressStore),
		Renderer: render.NewSVGRenderer(),
		Content:  content,
		Ledger:   ledgerClient,
		Audit:    auditPublisher,
		Metrics:  certMetrics,
		Tracer:   tracer.NewOTel(),
		Retry: retry.New(retry.Policy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
		},
			retry.WithLogger(log),
			retry.WithRetryHook(certMetrics.IncrementRetry),
		),
		Logger: log,
		Issuer: cfg.IssuerName,
	})

	router := httptransport.NewRouter(httptransport.Deps{
		Certificates:   handler.New(svc, log),
		Health:         healthHandler,
		Logger:         log,
		RequestTimeout: cfg.ConfirmTimeout + 30*time.Second,
	})

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

// seedDemoCatalog provides a small fixed catalog so simulation mode works
// end to end without an external course system.
func seedDemoCatalog(catalog *course.InMemoryCatalog) {
	catalog.Put(course.Course{
		ID:        "course-distributed-systems",
		Title:     "Distributed Systems",
		LessonIDs: []string{"lesson-1", "lesson-2", "lesson-3"},
	})
	catalog.Put(course.Course{
		ID:        "course-go-fundamentals",
		Title:     "Go Fundamentals",
		LessonIDs: []string{"lesson-1", "lesson-2", "lesson-3", "lesson-4"},
	})
}
