package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrProducerClosed is returned by WriteMessages after Close.
var ErrProducerClosed = errors.New("kafka producer closed")

// ProducerOption tunes the writers created by a KafkaProducer.
type ProducerOption func(*kafka.Writer)

// WithBatchTimeout bounds how long a writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(w *kafka.Writer) {
		if d > 0 {
			w.BatchTimeout = d
		}
	}
}

// WithAutoTopicCreation lets writers create missing topics, for local brokers.
func WithAutoTopicCreation() ProducerOption {
	return func(w *kafka.Writer) {
		w.AllowAutoTopicCreation = true
	}
}

// KafkaProducer keeps one writer per topic. Messages sharing a key land on the
// same partition, so the events of one user stay ordered.
type KafkaProducer struct {
	brokers []string
	opts    []ProducerOption

	mu      sync.Mutex
	closed  bool
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		opts:    opts,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes msgs to topic synchronously, waiting for all in-sync replicas.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer, err := p.writer(topic)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writer(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProducerClosed
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
	}
	for _, opt := range p.opts {
		opt(w)
	}
	p.writers[topic] = w
	return w, nil
}

// Close flushes and releases every writer.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.writers, topic)
	}
	return errors.Join(errs...)
}
