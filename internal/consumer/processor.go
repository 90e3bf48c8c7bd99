// Package consumer reads activity exports published by other services and imports them.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded form of a Confluent framed Kafka record.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	TenantID      string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *logrus.Entry) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetryBackOff sets the policy used to retry a failing handler.
func WithRetryBackOff(newBackOff func() backoff.BackOff) Option {
	return func(p *Processor) {
		if newBackOff != nil {
			p.newBackOff = newBackOff
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader     Reader
	handler    Handler
	logger     *logrus.Entry
	newBackOff func() backoff.BackOff
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:     reader,
		handler:    handler,
		logger:     logrus.WithField("component", "consumer"),
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until the context is cancelled. Undecodable records are
// committed and skipped. A failing handler is retried with backoff on the same
// record, so a later commit never skips it; the record stays uncommitted only
// when the context ends first.
func (p *Processor) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		record, err := p.reader.FetchMessage(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			p.logger.WithError(err).Warn("fetch failed")
			continue
		}
		p.process(ctx, record)
	}
	return ctx.Err()
}

func (p *Processor) process(ctx context.Context, record kafka.Message) {
	log := p.logger.WithFields(logrus.Fields{
		"topic":     record.Topic,
		"partition": record.Partition,
		"offset":    record.Offset,
	})

	msg, err := decodeMessage(record)
	if err != nil {
		log.WithError(err).Warn("dropping undecodable message")
		recordDecodeError(record.Topic)
		p.commit(ctx, log, record)
		return
	}

	log = log.WithFields(logrus.Fields{"event_type": msg.EventType, "tenant_id": msg.TenantID})
	err = backoff.RetryNotify(
		func() error { return p.handler.Handle(ctx, msg) },
		backoff.WithContext(p.newBackOff(), ctx),
		func(err error, wait time.Duration) {
			log.WithError(err).WithField("retry_in", wait).Error("handler failed")
			recordHandlerError(msg)
		},
	)
	if err != nil {
		log.WithError(err).Warn("giving up on message")
		return
	}
	if p.commit(ctx, log, record) {
		recordProcessed(msg)
	}
}

func (p *Processor) commit(ctx context.Context, log *logrus.Entry, record kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, record); err != nil {
		log.WithError(err).Error("commit failed")
		return false
	}
	return true
}

var (
	errShortFrame       = errors.New("record shorter than the wire header")
	errMissingEventType = errors.New("missing event_type header")
)

const wireHeaderLen = 5

func decodeMessage(record kafka.Message) (Message, error) {
	if len(record.Value) < wireHeaderLen {
		return Message{}, fmt.Errorf("%w: %d bytes", errShortFrame, len(record.Value))
	}
	if magic := record.Value[0]; magic != 0 {
		return Message{}, fmt.Errorf("unknown magic byte: %d", magic)
	}

	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	eventType, ok := headers["event_type"]
	if !ok {
		return Message{}, errMissingEventType
	}

	return Message{
		Topic:         record.Topic,
		Partition:     record.Partition,
		Offset:        record.Offset,
		Timestamp:     record.Time,
		EventType:     eventType,
		TenantID:      headers["tenant_id"],
		SchemaSubject: headers["schema_subject"],
		SchemaID:      int(binary.BigEndian.Uint32(record.Value[1:wireHeaderLen])),
		Payload:       json.RawMessage(append([]byte(nil), record.Value[wireHeaderLen:]...)),
	}, nil
}
