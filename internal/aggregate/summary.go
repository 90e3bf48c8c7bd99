// Package aggregate reduces a filtered activity collection into the totals,
// time series and percent-of-peak views of the dashboard.
package aggregate

import "example.com/dashboard/internal/domain"

// Summary holds the unrounded totals of a collection.
type Summary struct {
	Count         int     `json:"count"`
	TotalDistance float64 `json:"total_distance"`
	TotalDuration int     `json:"total_duration"`
	TotalAscent   float64 `json:"total_ascent"`
	TotalCalories float64 `json:"total_calories"`
}

// Summarize totals the activities. An empty collection yields the zero Summary.
func Summarize(activities []domain.Activity) Summary {
	var s Summary
	for _, a := range activities {
		s.Count++
		s.TotalDistance += a.Distance
		s.TotalDuration += a.Duration
		s.TotalAscent += a.TotalAscent
		s.TotalCalories += a.Calories
	}
	return s
}
