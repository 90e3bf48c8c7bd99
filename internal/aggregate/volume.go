package aggregate

import (
	"time"

	"example.com/dashboard/internal/calendar"
	"example.com/dashboard/internal/domain"
)

const annualWindow = 12

// Share is one bucket of a percent-of-peak series. Value is the bucket total in
// the display unit of the metric; Percent is relative to the largest bucket.
type Share struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// Percentages carries the percent-of-peak of every metric for one bucket.
type Percentages struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Calories float64 `json:"calories"`
	Ascent   float64 `json:"ascent"`
}

func (p *Percentages) set(metric domain.Metric, value float64) {
	switch metric {
	case domain.MetricDistance:
		p.Distance = value
	case domain.MetricDuration:
		p.Duration = value
	case domain.MetricCalories:
		p.Calories = value
	case domain.MetricAscent:
		p.Ascent = value
	}
}

// MonthVolume is one month of the annual volume view.
type MonthVolume struct {
	Month   string      `json:"month"`
	Name    string      `json:"name"`
	Percent Percentages `json:"percent"`
}

// DayVolume is one cell of the monthly volume grid. InMonth is false for the
// leading days borrowed from the previous month.
type DayVolume struct {
	Date       string            `json:"date"`
	InMonth    bool              `json:"in_month"`
	Activities []domain.Activity `json:"activities"`
	Percent    Percentages       `json:"percent"`
}

// PercentOfPeak expresses each value as a percentage of the largest one,
// rounded to two decimals. Negative values count as zero, and when the
// largest value is not positive every percentage is zero.
func PercentOfPeak(values []float64) []float64 {
	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	out := make([]float64, len(values))
	if peak <= 0 {
		return out
	}
	for i, v := range values {
		if v > 0 {
			out[i] = domain.RoundTo(v/peak*100, 2)
		}
	}
	return out
}

// NormalizeAnnual sums the metric over the twelve calendar months ending with
// the month of now, oldest first. Months are matched on year and month in the
// location of now.
func NormalizeAnnual(activities []domain.Activity, now time.Time, metric domain.Metric) []Share {
	months := calendar.TrailingMonths(now, annualWindow)
	index := make(map[string]int, len(months))
	for i, m := range months {
		index[m.Format(calendar.MonthLayout)] = i
	}

	sums := make([]float64, len(months))
	for _, a := range activities {
		if i, ok := index[a.Date.In(now.Location()).Format(calendar.MonthLayout)]; ok {
			sums[i] += metric.Value(a)
		}
	}
	return shares(months, calendar.MonthLayout, sums, metric)
}

// NormalizeMonthly sums the metric per day over the grid of the month, leading
// days included, and normalizes against the busiest day of the grid.
func NormalizeMonthly(activities []domain.Activity, year int, month time.Month, loc *time.Location, metric domain.Metric) []Share {
	if loc == nil {
		loc = time.Local
	}
	grid := calendar.MonthGrid(year, month, loc)
	byDay := groupByDay(activities, grid, loc)

	sums := make([]float64, len(grid))
	for i, day := range grid {
		for _, a := range byDay[day.Format(calendar.DayLayout)] {
			sums[i] += metric.Value(a)
		}
	}
	return shares(grid, calendar.DayLayout, sums, metric)
}

// AnnualVolume combines NormalizeAnnual for every metric.
func AnnualVolume(activities []domain.Activity, now time.Time) []MonthVolume {
	months := calendar.TrailingMonths(now, annualWindow)
	out := make([]MonthVolume, len(months))
	for i, m := range months {
		out[i] = MonthVolume{Month: m.Format(calendar.MonthLayout), Name: m.Month().String()}
	}
	for _, metric := range domain.Metrics {
		for i, share := range NormalizeAnnual(activities, now, metric) {
			out[i].Percent.set(metric, share.Percent)
		}
	}
	return out
}

// MonthlyVolume builds the day grid of a month with the activities of each
// day and the percent-of-peak of every metric.
func MonthlyVolume(activities []domain.Activity, year int, month time.Month, loc *time.Location) []DayVolume {
	if loc == nil {
		loc = time.Local
	}
	grid := calendar.MonthGrid(year, month, loc)
	byDay := groupByDay(activities, grid, loc)

	out := make([]DayVolume, len(grid))
	for i, day := range grid {
		label := day.Format(calendar.DayLayout)
		dayActivities := byDay[label]
		if dayActivities == nil {
			dayActivities = []domain.Activity{}
		}
		out[i] = DayVolume{
			Date:       label,
			InMonth:    day.Month() == month,
			Activities: dayActivities,
		}
	}
	for _, metric := range domain.Metrics {
		for i, share := range NormalizeMonthly(activities, year, month, loc, metric) {
			out[i].Percent.set(metric, share.Percent)
		}
	}
	return out
}

func groupByDay(activities []domain.Activity, grid []time.Time, loc *time.Location) map[string][]domain.Activity {
	wanted := make(map[string]struct{}, len(grid))
	for _, day := range grid {
		wanted[day.Format(calendar.DayLayout)] = struct{}{}
	}
	byDay := make(map[string][]domain.Activity)
	for _, a := range activities {
		label := a.Date.In(loc).Format(calendar.DayLayout)
		if _, ok := wanted[label]; ok {
			byDay[label] = append(byDay[label], a)
		}
	}
	return byDay
}

func shares(buckets []time.Time, layout string, sums []float64, metric domain.Metric) []Share {
	percents := PercentOfPeak(sums)
	out := make([]Share, len(buckets))
	for i, b := range buckets {
		out[i] = Share{
			Label:   b.Format(layout),
			Value:   metric.Display(sums[i]),
			Percent: percents[i],
		}
	}
	return out
}
