package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard_service",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Kafka messages handled and committed.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard_service",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Handler failures grouped by topic and event type.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard_service",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Messages dropped because their framing or headers were invalid.",
	}, []string{"topic"})

	skippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard_service",
		Subsystem: "consumer",
		Name:      "messages_skipped_total",
		Help:      "Decoded messages the import handler ignored, by reason.",
	}, []string{"topic", "reason"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dashboard_service",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent processed message per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, skippedCounter, lastMessageGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordSkipped(msg Message, reason string) {
	skippedCounter.WithLabelValues(msg.Topic, reason).Inc()
}
