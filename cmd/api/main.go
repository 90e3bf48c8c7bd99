package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"example.com/dashboard/internal/api"
	"example.com/dashboard/internal/auth"
	"example.com/dashboard/internal/config"
	"example.com/dashboard/internal/dashboard"
	"example.com/dashboard/internal/domain"
	"example.com/dashboard/internal/logging"
	"example.com/dashboard/internal/outbox"
	"example.com/dashboard/internal/persistence/memory"
	persistence "example.com/dashboard/internal/persistence/postgres"
	httptransport "example.com/dashboard/internal/transport/http"
)

func main() {
	cfg := config.Load()
	flush := logging.Setup(logging.Params{
		LogFileName:   cfg.LogFile,
		LogToStdout:   true,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
		Environment:   cfg.Environment,
		SentryDSN:     cfg.SentryDSN,
		ServerName:    "dashboard-api",
	})
	defer flush()

	log := logrus.WithField("component", "api")
	loc := cfg.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repo       domain.CollectionRepository
		dispatcher *outbox.Dispatcher
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		log.Warn("using in-memory storage, collections are lost on restart")
		repo = memory.NewRepository()
	case config.StorageDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()

		if err := persistence.Migrate(ctx, pool); err != nil {
			log.WithError(err).Fatal("failed to apply migrations")
		}
		repo = persistence.NewRepository(pool, persistence.WithLocation(loc))

		var producerOpts []outbox.ProducerOption
		if cfg.Environment == "development" {
			producerOpts = append(producerOpts, outbox.WithAutoTopicCreation())
		}
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, producerOpts...)
		defer producer.Close()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	default:
		log.Fatalf("unknown storage driver %q", cfg.StorageDriver)
	}

	service := dashboard.NewService(repo, dashboard.WithLocation(loc))

	handler := api.NewHandler(service, api.WithMaxImportBytes(cfg.MaxImportBytes))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, mux,
		httptransport.CORS(cfg.CORSOrigin),
		httptransport.RequestLogger(logrus.WithField("component", "http")),
		authMiddleware.Wrap,
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithFields(logrus.Fields{"address": cfg.HTTPAddress, "storage": cfg.StorageDriver, "timezone": loc.String()}).Info("dashboard-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-shutdownCh
	log.Info("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
