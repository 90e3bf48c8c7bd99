package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"example.com/dashboard/internal/config"
	"example.com/dashboard/internal/consumer"
	"example.com/dashboard/internal/dashboard"
	"example.com/dashboard/internal/logging"
	persistence "example.com/dashboard/internal/persistence/postgres"
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
		ServerName:    "dashboard-consumer",
	})
	defer flush()

	log := logrus.WithField("component", "consumer")
	loc := cfg.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	if err := persistence.Migrate(ctx, pool); err != nil {
		log.WithError(err).Fatal("failed to apply migrations")
	}

	service := dashboard.NewService(persistence.NewRepository(pool, persistence.WithLocation(loc)), dashboard.WithLocation(loc))
	handler := consumer.NewImportHandler(service, log)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.WithField("address", cfg.MetricsAddress).Info("consumer metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server error")
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for _, topic := range cfg.ExportTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        int(cfg.MaxImportBytes) + 1<<20,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		topicLog := log.WithField("topic", topic)
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(topicLog))

		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			topicLog.WithField("group", cfg.ConsumerGroupID).Info("consumer started")
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				topicLog.WithError(err).Error("consumer stopped with error")
			}
		}(reader)
	}

	<-stop
	log.Info("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("metrics server shutdown error")
	}

	wg.Wait()
}
