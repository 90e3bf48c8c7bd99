package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func framed(schemaID int, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func exportMessage(offset int64, value []byte) kafka.Message {
	return kafka.Message{
		Topic:  "activity_exports",
		Offset: offset,
		Time:   time.Now().UTC(),
		Value:  value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("activity_export.uploaded")},
			{Key: "tenant_id", Value: []byte("tenant-1")},
			{Key: "schema_subject", Value: []byte("activity_exports-value")},
		},
	}
}

func nullLogger() (*logrus.Entry, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	return logrus.NewEntry(logger), hook
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"user_id":"u1","content":"x"}`)
	reader := &stubReader{messages: []kafka.Message{exportMessage(10, framed(42, payload))}}
	handler := &stubHandler{}
	logger, _ := nullLogger()

	before := testutil.ToFloat64(processedCounter.WithLabelValues("activity_exports", "activity_export.uploaded"))

	err := NewProcessor(reader, handler, WithLogger(logger)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "activity_export.uploaded", handler.last.EventType)
	require.Equal(t, "tenant-1", handler.last.TenantID)
	require.Equal(t, "activity_exports-value", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues("activity_exports", "activity_export.uploaded")), 0.0001)
}

func noWait() backoff.BackOff { return &backoff.ZeroBackOff{} }

func TestProcessorRetriesHandlerBeforeCommitting(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		exportMessage(20, framed(99, []byte(`{}`))),
		exportMessage(21, framed(99, []byte(`{}`))),
	}}
	handler := &stubHandler{err: errors.New("boom"), failures: 2}
	logger, hook := nullLogger()

	before := testutil.ToFloat64(handlerErrorCounter.WithLabelValues("activity_exports", "activity_export.uploaded"))

	err := NewProcessor(reader, handler, WithLogger(logger), WithRetryBackOff(noWait)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 4, handler.calls)
	require.Equal(t, []int64{20, 21}, reader.committed)
	require.Len(t, hook.AllEntries(), 2)
	require.Equal(t, "handler failed", hook.AllEntries()[0].Message)
	require.InDelta(t, before+2, testutil.ToFloat64(handlerErrorCounter.WithLabelValues("activity_exports", "activity_export.uploaded")), 0.0001)
}

func TestProcessorLeavesFailingRecordUncommittedOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{messages: []kafka.Message{
		exportMessage(30, framed(99, []byte(`{}`))),
		exportMessage(31, framed(99, []byte(`{}`))),
	}}
	handler := &stubHandler{err: errors.New("boom"), failures: -1, onCall: func(calls int) {
		if calls == 3 {
			cancel()
		}
	}}
	logger, hook := nullLogger()

	err := NewProcessor(reader, handler, WithLogger(logger), WithRetryBackOff(noWait)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Empty(t, reader.committed)
	require.Equal(t, 1, reader.index, "the next record must not be fetched past a failing one")
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	noHeader := exportMessage(3, framed(1, []byte(`{}`)))
	noHeader.Headers = nil
	badMagic := exportMessage(4, framed(1, []byte(`{}`)))
	badMagic.Value[0] = 7

	reader := &stubReader{messages: []kafka.Message{
		exportMessage(1, []byte{0, 1}),
		noHeader,
		badMagic,
	}}
	handler := &stubHandler{}
	logger, hook := nullLogger()

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_exports"))

	err := NewProcessor(reader, handler, WithLogger(logger)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
	require.Len(t, hook.AllEntries(), 3)
	require.InDelta(t, before+3, testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_exports")), 0.0001)
}

func TestProcessorStopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &stubReader{messages: []kafka.Message{exportMessage(1, framed(1, []byte(`{}`)))}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	committed   []int64
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls++
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

// stubHandler returns err for the first failures calls, or for every call
// when failures is negative.
type stubHandler struct {
	calls    int
	err      error
	failures int
	onCall   func(calls int)
	last     Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.onCall != nil {
		h.onCall(h.calls)
	}
	if h.failures < 0 || h.calls <= h.failures {
		return h.err
	}
	return nil
}

func TestDecodeMessageRejectsMalformedRecords(t *testing.T) {
	_, err := decodeMessage(exportMessage(1, []byte{0, 0, 1}))
	require.ErrorIs(t, err, errShortFrame)

	_, err = decodeMessage(exportMessage(2, append([]byte{1}, framed(7, []byte("{}"))[1:]...)))
	require.ErrorContains(t, err, "unknown magic byte: 1")

	record := exportMessage(3, framed(7, []byte("{}")))
	record.Headers = record.Headers[1:]
	_, err = decodeMessage(record)
	require.ErrorIs(t, err, errMissingEventType)
}
