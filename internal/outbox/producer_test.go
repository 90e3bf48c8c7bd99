package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestKafkaProducerReusesWritersPerTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, WithBatchTimeout(5*time.Millisecond), WithAutoTopicCreation())

	first, err := p.writer("activity_imports")
	require.NoError(t, err)
	again, err := p.writer("activity_imports")
	require.NoError(t, err)
	other, err := p.writer("activity_imports_dev")
	require.NoError(t, err)

	require.Same(t, first, again)
	require.NotSame(t, first, other)
	require.Equal(t, 5*time.Millisecond, first.BatchTimeout)
	require.True(t, first.AllowAutoTopicCreation)
	require.IsType(t, &kafka.Hash{}, first.Balancer)
}

func TestKafkaProducerRejectsWritesAfterClose(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"})
	_, err := p.writer("activity_imports")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.ErrorIs(t, p.WriteMessages(context.Background(), "activity_imports", kafka.Message{Value: []byte("x")}), ErrProducerClosed)
}
