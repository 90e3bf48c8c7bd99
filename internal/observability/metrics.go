package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Import outcomes used as the outcome label of imports_total.
const (
	OutcomeImported = "imported"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
)

var (
	importsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard_service",
		Subsystem: "imports",
		Name:      "imports_total",
		Help:      "Number of export imports grouped by source and outcome.",
	}, []string{"source", "outcome"})

	rowsParsedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dashboard_service",
		Subsystem: "imports",
		Name:      "rows_parsed_total",
		Help:      "Number of non-blank data rows read from imported exports.",
	})

	rowsDroppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dashboard_service",
		Subsystem: "imports",
		Name:      "rows_dropped_total",
		Help:      "Number of data rows dropped because their date could not be parsed.",
	})

	lastImportGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dashboard_service",
		Subsystem: "persistence",
		Name:      "last_import_timestamp_seconds",
		Help:      "Unix timestamp of the most recent collection replacement.",
	})
)

func init() {
	prometheus.MustRegister(importsCounter, rowsParsedCounter, rowsDroppedCounter, lastImportGauge)
}

// RecordImport counts one import attempt and its parsed and dropped rows.
func RecordImport(source, outcome string, rows, dropped int) {
	if source == "" {
		source = "unknown"
	}
	importsCounter.WithLabelValues(source, outcome).Inc()
	rowsParsedCounter.Add(float64(rows))
	rowsDroppedCounter.Add(float64(dropped))
}

// RecordImportPersisted updates the persistence watermark gauge.
func RecordImportPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastImportGauge.Set(float64(ts.Unix()))
}
