// Package calendar holds the date arithmetic shared by the filter and
// aggregation stages. All functions work in the location of their argument.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
	YearLayout  = "2006"
)

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns midnight of the Monday starting the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekRange returns the Monday-start week containing t as [start, end).
func WeekRange(t time.Time) (time.Time, time.Time) {
	start := WeekStart(t)
	return start, start.AddDate(0, 0, 7)
}

// MonthStart returns midnight of the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DaysInMonth follows the fixed 31/30/28 table; February never has 29 days.
func DaysInMonth(m time.Month) int {
	switch m {
	case time.January, time.March, time.May, time.July, time.August, time.October, time.December:
		return 31
	case time.April, time.June, time.September, time.November:
		return 30
	case time.February:
		return 28
	default:
		return 0
	}
}

// TrailingMonths returns the first day of the n calendar months ending with
// the month of now, oldest first.
func TrailingMonths(now time.Time, n int) []time.Time {
	current := MonthStart(now)
	months := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		months = append(months, current.AddDate(0, -i, 0))
	}
	return months
}

// LeadingOffset is the number of days between the Monday of the first week of
// the month and the first of the month.
func LeadingOffset(year int, month time.Month, loc *time.Location) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return (int(first.Weekday()) + 6) % 7
}

// ParseMonth resolves an English month name ("march", "Mar") or number ("3").
func ParseMonth(raw string) (time.Month, error) {
	trimmed := strings.TrimSpace(raw)
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(name, trimmed) || (len(trimmed) == 3 && strings.EqualFold(name[:3], trimmed)) {
			return m, nil
		}
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= 12 {
		return time.Month(n), nil
	}
	return 0, fmt.Errorf("unknown month %q", raw)
}

// MonthGrid returns midnight of every day shown for a month: the leading days
// taken from the end of the previous month so the grid starts on a Monday,
// then the days of the month itself. Month lengths follow DaysInMonth.
func MonthGrid(year int, month time.Month, loc *time.Location) []time.Time {
	days := DaysInMonth(month)
	if days == 0 {
		return nil
	}
	leading := LeadingOffset(year, month, loc)
	prevYear, prevMonth := year, month-1
	if prevMonth < time.January {
		prevYear, prevMonth = year-1, time.December
	}
	prevDays := DaysInMonth(prevMonth)

	grid := make([]time.Time, 0, leading+days)
	for i := leading - 1; i >= 0; i-- {
		grid = append(grid, time.Date(prevYear, prevMonth, prevDays-i, 0, 0, 0, 0, loc))
	}
	for d := 1; d <= days; d++ {
		grid = append(grid, time.Date(year, month, d, 0, 0, 0, 0, loc))
	}
	return grid
}
