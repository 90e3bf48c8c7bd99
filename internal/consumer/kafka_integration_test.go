//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/dashboard/internal/dashboard"
	"example.com/dashboard/internal/events"
	"example.com/dashboard/internal/outbox"
	"example.com/dashboard/internal/persistence/memory"
)

func TestKafkaExportIsImported(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	const topic = "activity_exports"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))

	svc := dashboard.NewService(memory.NewRepository(), dashboard.WithLocation(time.UTC))
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "dashboard-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = NewProcessor(reader, NewImportHandler(svc, nil)).Run(consumerCtx)
	}()

	payload, err := json.Marshal(events.ExportUploaded{UserID: "user-1", Source: "kafka", Content: englishExport})
	require.NoError(t, err)

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()
	require.NoError(t, producer.WriteMessages(ctx, topic, kafka.Message{
		Key:   []byte("tenant-1:user-1"),
		Value: framed(1, payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.ExportUploadedEventType)},
			{Key: "tenant_id", Value: []byte("tenant-1")},
		},
	}))

	require.Eventually(t, func() bool {
		batch, err := svc.LatestImport(ctx, "tenant-1", "user-1")
		return err == nil && batch.Imported() == 2
	}, 60*time.Second, 500*time.Millisecond)

	activities, err := svc.Activities(ctx, dashboard.Query{TenantID: "tenant-1", UserID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, "Tempo", activities[0].Title)
}
