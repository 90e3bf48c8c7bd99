package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	require.Equal(t, []string{"activity_exports"}, cfg.ExportTopics)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, int64(10<<20), cfg.MaxImportBytes)
	require.False(t, cfg.LogFormatJSON)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("LOG_FORMAT_JSON", "true")
	t.Setenv("MAX_IMPORT_BYTES", "2048")

	cfg := Load()
	require.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.True(t, cfg.LogFormatJSON)
	require.Equal(t, int64(2048), cfg.MaxImportBytes)
}

func TestLocation(t *testing.T) {
	require.Equal(t, time.Local, Config{Timezone: "Local"}.Location())
	require.Equal(t, time.UTC, Config{Timezone: "UTC"}.Location())
	require.Equal(t, time.Local, Config{Timezone: "Mars/Olympus_Mons"}.Location())
}
