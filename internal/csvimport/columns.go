package csvimport

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Columns lists, for every activity field, the header titles that may carry it.
// The first title present in the header wins.
type Columns struct {
	ActivityType []string
	Date         []string
	Title        []string
	Distance     []string
	Calories     []string
	Duration     []string
	AvgHR        []string
	MaxHR        []string
	AvgPace      []string
	TotalAscent  []string
}

// DefaultColumns covers the French and English Garmin Connect exports.
func DefaultColumns() Columns {
	return Columns{
		ActivityType: []string{"Type d'activité", "Activity Type"},
		Date:         []string{"Date"},
		Title:        []string{"Titre", "Title"},
		Distance:     []string{"Distance"},
		Calories:     []string{"Calories"},
		Duration:     []string{"Durée", "Time", "Duration"},
		AvgHR:        []string{"Fréquence cardiaque moyenne", "Avg HR"},
		MaxHR:        []string{"Fréquence cardiaque maximale", "Max HR"},
		AvgPace:      []string{"Allure moyenne", "Avg Pace"},
		TotalAscent:  []string{"Ascension totale", "Total Ascent"},
	}
}

// header resolves column titles to their position in a data line.
type header map[string]int

func newHeader(line string) header {
	h := make(header)
	for i, name := range splitFields(line) {
		// Later duplicates shadow earlier ones.
		h[normalizeName(unquote(name))] = i
	}
	return h
}

// position returns the index of the first title present in the header.
func (h header) position(titles []string) (int, bool) {
	for _, title := range titles {
		if pos, ok := h[normalizeName(title)]; ok {
			return pos, true
		}
	}
	return 0, false
}

// normalizeName makes header lookups insensitive to Unicode composition
// (exports written on macOS often carry decomposed accents) and surrounding space.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
