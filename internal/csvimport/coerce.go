package csvimport

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Placeholder is the value Garmin writes for a missing measurement. Missing
// cells are normalised to it as well.
const Placeholder = "--"

// ErrInvalidDate is returned when a date cell matches none of the known layouts.
var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseNumber never fails: thousands separators are dropped, the leading
// numeric part is parsed, and placeholders, garbage or negative values give 0.
func ParseNumber(value string) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == Placeholder {
		return 0
	}
	cleaned := strings.ReplaceAll(trimmed, ",", "")
	parsed, err := strconv.ParseFloat(numericPrefix(cleaned), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed < 0 {
		return 0
	}
	return parsed
}

// numericPrefix returns the longest prefix of s shaped like a decimal number,
// so "12.5 km" parses as 12.5.
func numericPrefix(s string) string {
	end := 0
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := false
	for i < len(s) && isDigit(s[i]) {
		i++
		digits = true
	}
	if digits {
		end = i
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits = true
			end = i
		}
	}
	if !digits {
		return ""
	}
	if i == end && i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			end = k
		}
	}
	return s[:end]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ParseDuration converts "HH:MM:SS" to seconds. Segments are positional (the
// first is always hours); missing or unparseable segments count as 0. Totals
// that do not fit a 32-bit count of seconds are treated as unparseable.
func ParseDuration(value string) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == Placeholder {
		return 0
	}
	parts := strings.Split(trimmed, ":")
	weights := []float64{3600, 60, 1}
	var total float64
	for i, weight := range weights {
		if i >= len(parts) {
			break
		}
		segment, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || math.IsNaN(segment) || math.IsInf(segment, 0) {
			continue
		}
		total += segment * weight
	}
	if total < 0 || math.IsInf(total, 0) || math.IsNaN(total) || total >= math.MaxInt32 {
		return 0
	}
	return int(math.Round(total))
}

// ParseDate is the only fallible coercion: a row without a usable date is dropped.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == Placeholder {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, trimmed)
}
