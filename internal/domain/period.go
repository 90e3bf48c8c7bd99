package domain

import (
	"fmt"
	"strings"
)

// Period restricts activities to a calendar window around the current moment.
type Period string

const (
	PeriodAll          Period = "All"
	PeriodCurrentYear  Period = "Current year"
	PeriodCurrentMonth Period = "Current month"
	PeriodCurrentWeek  Period = "Current week"
)

// Periods lists the period filter values in display order.
var Periods = []Period{PeriodAll, PeriodCurrentYear, PeriodCurrentMonth, PeriodCurrentWeek}

// ParsePeriod accepts the display label ("Current week") or its snake form
// ("current_week"). An empty value is PeriodAll.
func ParsePeriod(raw string) (Period, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "_", " ")
	if normalized == "" {
		return PeriodAll, nil
	}
	for _, p := range Periods {
		if strings.EqualFold(string(p), normalized) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown period %q", ErrInvalidFilter, raw)
}

// Granularity is the calendar unit used to bucket a time series.
type Granularity string

const (
	// GranularityNone charts every activity as its own point.
	GranularityNone  Granularity = "None"
	GranularityDay   Granularity = "Day"
	GranularityWeek  Granularity = "Week"
	GranularityMonth Granularity = "Month"
	GranularityYear  Granularity = "Year"
)

// Granularities lists the bucket sizes in display order.
var Granularities = []Granularity{GranularityNone, GranularityDay, GranularityWeek, GranularityMonth, GranularityYear}

// ParseGranularity resolves a granularity case-insensitively. An empty value is GranularityNone.
func ParseGranularity(raw string) (Granularity, error) {
	if strings.TrimSpace(raw) == "" {
		return GranularityNone, nil
	}
	for _, g := range Granularities {
		if strings.EqualFold(string(g), strings.TrimSpace(raw)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: unknown granularity %q", ErrInvalidFilter, raw)
}
