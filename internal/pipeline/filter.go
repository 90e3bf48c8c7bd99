// Package pipeline derives the filtered, ordered activity list shown on the
// dashboard. Stages never modify the collection they are given.
package pipeline

import (
	"cmp"
	"slices"
	"time"

	"example.com/dashboard/internal/calendar"
	"example.com/dashboard/internal/domain"
)

// Options selects the filter values. Zero values behave like "All" and Distance.
type Options struct {
	Category domain.Category
	Period   domain.Period
	SortBy   domain.Metric
}

// Apply runs the stages in their fixed order: category, period, metric sort,
// then a final sort by date, most recent first. The final sort always runs,
// so the metric sort only decides the order of activities sharing a date.
func Apply(activities []domain.Activity, opts Options, now time.Time) []domain.Activity {
	filtered := FilterCategory(activities, opts.Category)
	filtered = FilterPeriod(filtered, opts.Period, now)
	SortByMetric(filtered, opts.SortBy)
	SortByDateDesc(filtered)
	return filtered
}

// FilterCategory returns a new slice holding the activities of the category.
func FilterCategory(activities []domain.Activity, category domain.Category) []domain.Activity {
	if category == "" || category == domain.CategoryAll {
		return slices.Clone(activities)
	}
	out := make([]domain.Activity, 0, len(activities))
	for _, a := range activities {
		if category.Matches(a.ActivityType) {
			out = append(out, a)
		}
	}
	return out
}

// FilterPeriod returns a new slice holding the activities inside the calendar
// window of now. Dates are compared in the location of now.
func FilterPeriod(activities []domain.Activity, period domain.Period, now time.Time) []domain.Activity {
	if period == "" || period == domain.PeriodAll {
		return slices.Clone(activities)
	}
	keep := periodPredicate(period, now)
	out := make([]domain.Activity, 0, len(activities))
	for _, a := range activities {
		if keep(a.Date.In(now.Location())) {
			out = append(out, a)
		}
	}
	return out
}

func periodPredicate(period domain.Period, now time.Time) func(time.Time) bool {
	switch period {
	case domain.PeriodCurrentYear:
		return func(d time.Time) bool { return d.Year() == now.Year() }
	case domain.PeriodCurrentMonth:
		return func(d time.Time) bool { return d.Year() == now.Year() && d.Month() == now.Month() }
	case domain.PeriodCurrentWeek:
		start, end := calendar.WeekRange(now)
		return func(d time.Time) bool { return !d.Before(start) && d.Before(end) }
	default:
		return func(time.Time) bool { return false }
	}
}

// SortByMetric stable-sorts activities in place, largest value first. Distance
// is the default metric and leaves the order unchanged.
func SortByMetric(activities []domain.Activity, metric domain.Metric) {
	switch metric {
	case domain.MetricDuration, domain.MetricCalories, domain.MetricAscent:
	default:
		return
	}
	slices.SortStableFunc(activities, func(a, b domain.Activity) int {
		return cmp.Compare(metric.Value(b), metric.Value(a))
	})
}

// SortByDateDesc stable-sorts activities in place, most recent first.
func SortByDateDesc(activities []domain.Activity) {
	slices.SortStableFunc(activities, func(a, b domain.Activity) int {
		return b.Date.Compare(a.Date)
	})
}
