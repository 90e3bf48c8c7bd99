package domain

import (
	"fmt"
	"strings"
)

// Category groups several activity types under one dashboard filter.
type Category string

const (
	CategoryAll     Category = "All"
	CategoryRunning Category = "Running"
	CategoryCycling Category = "Cycling"
	CategoryHiking  Category = "Hiking"
)

// categoryRule matches a type either by exact membership or, when Contains is
// set, by substring over the raw label.
type categoryRule struct {
	Exact    []ActivityType
	Contains string
}

var categoryRules = map[Category]categoryRule{
	CategoryRunning: {Exact: []ActivityType{ActivityTypeRunning, ActivityTypeTrail, ActivityTypeTreadmill}},
	// Every cycling variant of the export shares the "Cyclisme" prefix.
	CategoryCycling: {Contains: string(ActivityTypeCycling)},
	CategoryHiking:  {Exact: []ActivityType{ActivityTypeHiking}},
}

// Categories lists the filter values in display order.
var Categories = []Category{CategoryAll, CategoryRunning, CategoryCycling, CategoryHiking}

// ParseCategory resolves a filter value case-insensitively. An empty value is CategoryAll.
func ParseCategory(raw string) (Category, error) {
	if strings.TrimSpace(raw) == "" {
		return CategoryAll, nil
	}
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(raw)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidFilter, raw)
}

// Matches reports whether an activity type belongs to the category.
// CategoryAll matches everything; unknown categories match nothing.
func (c Category) Matches(t ActivityType) bool {
	if c == CategoryAll {
		return true
	}
	rule, ok := categoryRules[c]
	if !ok {
		return false
	}
	for _, exact := range rule.Exact {
		if t == exact {
			return true
		}
	}
	return rule.Contains != "" && strings.Contains(string(t), rule.Contains)
}
