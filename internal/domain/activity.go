package domain

import (
	"strings"
	"time"
)

// ActivityType is the category label carried by each exported activity.
type ActivityType string

// Known activity types, using the labels of the French Garmin Connect export.
const (
	ActivityTypeRunning        ActivityType = "Course à pied"
	ActivityTypeTrail          ActivityType = "Trail"
	ActivityTypeTreadmill      ActivityType = "Course à pied sur tapis roulant"
	ActivityTypeCycling        ActivityType = "Cyclisme"
	ActivityTypeRoadCycling    ActivityType = "Cyclisme sur route"
	ActivityTypeMountainBiking ActivityType = "Cyclisme VTT"
	ActivityTypeHiking         ActivityType = "Randonnée"
)

var knownActivityTypes = map[ActivityType]struct{}{
	ActivityTypeRunning:        {},
	ActivityTypeTrail:          {},
	ActivityTypeTreadmill:      {},
	ActivityTypeCycling:        {},
	ActivityTypeRoadCycling:    {},
	ActivityTypeMountainBiking: {},
	ActivityTypeHiking:         {},
}

// English export labels resolve to the same types.
var activityTypeAliases = map[string]ActivityType{
	"running":           ActivityTypeRunning,
	"trail running":     ActivityTypeTrail,
	"treadmill running": ActivityTypeTreadmill,
	"cycling":           ActivityTypeCycling,
	"road cycling":      ActivityTypeRoadCycling,
	"mountain biking":   ActivityTypeMountainBiking,
	"hiking":            ActivityTypeHiking,
}

// ParseActivityType maps a raw export label to an ActivityType. Unknown labels
// are kept verbatim.
func ParseActivityType(raw string) ActivityType {
	trimmed := strings.TrimSpace(raw)
	if _, ok := knownActivityTypes[ActivityType(trimmed)]; ok {
		return ActivityType(trimmed)
	}
	if alias, ok := activityTypeAliases[strings.ToLower(trimmed)]; ok {
		return alias
	}
	return ActivityType(raw)
}

// Known reports whether t is one of the enumerated types.
func (t ActivityType) Known() bool {
	_, ok := knownActivityTypes[t]
	return ok
}

// Activity is a single parsed export row. Values are never mutated once built.
type Activity struct {
	ActivityType ActivityType `json:"activity_type"`
	Date         time.Time    `json:"date"`
	Title        string       `json:"title"`
	Distance     float64      `json:"distance"`
	Calories     float64      `json:"calories"`
	Duration     int          `json:"duration"`
	AvgHR        float64      `json:"avg_hr"`
	MaxHR        float64      `json:"max_hr"`
	AvgPace      string       `json:"avg_pace"`
	TotalAscent  float64      `json:"total_ascent"`
}
