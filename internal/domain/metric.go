package domain

import (
	"fmt"
	"math"
	"strings"
)

// Metric selects which activity measurement is summed, sorted or charted.
type Metric string

const (
	MetricDistance Metric = "Distance"
	MetricDuration Metric = "Duration"
	MetricCalories Metric = "Calories"
	MetricAscent   Metric = "Ascent"
)

// Metrics lists the metric values in display order.
var Metrics = []Metric{MetricDistance, MetricDuration, MetricCalories, MetricAscent}

// ParseMetric resolves a metric case-insensitively. An empty value is MetricDistance.
func ParseMetric(raw string) (Metric, error) {
	if strings.TrimSpace(raw) == "" {
		return MetricDistance, nil
	}
	for _, m := range Metrics {
		if strings.EqualFold(string(m), strings.TrimSpace(raw)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidFilter, raw)
}

// Value returns the raw field backing the metric, in its native unit
// (kilometres, seconds, kilocalories, metres).
func (m Metric) Value(a Activity) float64 {
	switch m {
	case MetricDistance:
		return a.Distance
	case MetricDuration:
		return float64(a.Duration)
	case MetricCalories:
		return a.Calories
	case MetricAscent:
		return a.TotalAscent
	default:
		return 0
	}
}

// Display converts a summed native value to its charted unit: distance with two
// decimals, duration in hours with two decimals, calories and ascent as integers.
func (m Metric) Display(value float64) float64 {
	switch m {
	case MetricDistance:
		return RoundTo(value, 2)
	case MetricDuration:
		return RoundTo(value/3600, 2)
	case MetricCalories, MetricAscent:
		return math.Round(value)
	default:
		return value
	}
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
