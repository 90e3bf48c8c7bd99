package aggregate

import (
	"maps"
	"slices"
	"time"

	"example.com/dashboard/internal/calendar"
	"example.com/dashboard/internal/domain"
)

// Point is one entry of a charted series. Value is in the display unit of the
// metric.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Bucket sums the metric per calendar bucket and returns the buckets in
// chronological order. GranularityNone charts each activity on its own, oldest
// first. Unknown granularities yield no points.
func Bucket(activities []domain.Activity, granularity domain.Granularity, metric domain.Metric) []Point {
	if len(activities) == 0 {
		return []Point{}
	}
	if granularity == domain.GranularityNone {
		return perActivity(activities, metric)
	}
	key := bucketKey(granularity)
	if key == nil {
		return []Point{}
	}

	sums := make(map[string]float64)
	for _, a := range activities {
		sums[key(a.Date)] += metric.Value(a)
	}
	// Keys are zero-padded ISO strings, so lexical order is chronological.
	labels := slices.Sorted(maps.Keys(sums))
	points := make([]Point, 0, len(labels))
	for _, label := range labels {
		points = append(points, Point{Label: label, Value: metric.Display(sums[label])})
	}
	return points
}

func bucketKey(granularity domain.Granularity) func(time.Time) string {
	switch granularity {
	case domain.GranularityDay:
		return func(t time.Time) string { return t.Format(calendar.DayLayout) }
	case domain.GranularityWeek:
		return func(t time.Time) string { return calendar.WeekStart(t).Format(calendar.DayLayout) }
	case domain.GranularityMonth:
		return func(t time.Time) string { return t.Format(calendar.MonthLayout) }
	case domain.GranularityYear:
		return func(t time.Time) string { return t.Format(calendar.YearLayout) }
	default:
		return nil
	}
}

func perActivity(activities []domain.Activity, metric domain.Metric) []Point {
	ordered := slices.Clone(activities)
	slices.SortStableFunc(ordered, func(a, b domain.Activity) int {
		return a.Date.Compare(b.Date)
	})
	points := make([]Point, 0, len(ordered))
	for _, a := range ordered {
		points = append(points, Point{
			Label: a.Date.Format(calendar.DayLayout),
			Value: metric.Display(metric.Value(a)),
		})
	}
	return points
}
