// Package csvimport turns a Garmin Connect activity export into activities.
//
// The export is split naively on line breaks and commas: there is no quoting
// support beyond stripping surrounding quote characters from each field.
// Malformed rows are dropped one at a time and never fail the whole import.
package csvimport

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/dashboard/internal/domain"
)

const (
	delimiter = ","
	quote     = `"`
	bom       = "\ufeff"
	nul       = "\x00"
)

// Result is the outcome of a parse. Rows counts the non-blank data lines seen.
type Result struct {
	Activities []domain.Activity
	Rows       int
	Dropped    int
}

// Option configures optional behaviour for the Parser.
type Option func(*Parser)

// WithLocation sets the time zone used for dates without an explicit offset.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithColumns overrides the header titles looked up for each field.
func WithColumns(columns Columns) Option {
	return func(p *Parser) {
		p.columns = columns
	}
}

// WithLogger overrides the logger used to report dropped rows.
func WithLogger(logger *logrus.Entry) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// Parser converts export text into activities.
type Parser struct {
	columns  Columns
	location *time.Location
	logger   *logrus.Entry
}

// NewParser constructs a Parser for the default Garmin columns in the local zone.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		columns:  DefaultColumns(),
		location: time.Local,
		logger:   logrus.WithField("component", "csvimport"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts the export with a default Parser.
func Parse(raw string) []domain.Activity {
	return NewParser().Parse(raw).Activities
}

// Parse converts the header line and data lines of raw into activities, keeping
// the data-line order. Input with fewer than two lines yields an empty result.
func (p *Parser) Parse(raw string) Result {
	result := Result{Activities: []domain.Activity{}}

	lines := strings.Split(strings.TrimPrefix(raw, bom), "\n")
	if len(lines) < 2 {
		return result
	}

	head := newHeader(strings.TrimRight(lines[0], "\r"))
	for i, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.Rows++

		activity, err := p.parseRow(head, splitFields(line))
		if err != nil {
			result.Dropped++
			p.logger.WithFields(logrus.Fields{"line": i + 2, "error": err}).Debug("dropping export row")
			continue
		}
		result.Activities = append(result.Activities, activity)
	}
	return result
}

func (p *Parser) parseRow(head header, cells []string) (domain.Activity, error) {
	cell := func(titles []string) string {
		pos, ok := head.position(titles)
		if !ok || pos >= len(cells) || cells[pos] == "" {
			return Placeholder
		}
		// A quoted empty cell is present, so it stays empty.
		return unquote(cells[pos])
	}

	date, err := ParseDate(cell(p.columns.Date), p.location)
	if err != nil {
		return domain.Activity{}, err
	}

	return domain.Activity{
		ActivityType: domain.ParseActivityType(cell(p.columns.ActivityType)),
		Date:         date,
		Title:        cell(p.columns.Title),
		Distance:     ParseNumber(cell(p.columns.Distance)),
		Calories:     ParseNumber(cell(p.columns.Calories)),
		Duration:     ParseDuration(cell(p.columns.Duration)),
		AvgHR:        ParseNumber(cell(p.columns.AvgHR)),
		MaxHR:        ParseNumber(cell(p.columns.MaxHR)),
		AvgPace:      cell(p.columns.AvgPace),
		TotalAscent:  ParseNumber(cell(p.columns.TotalAscent)),
	}, nil
}

func splitFields(line string) []string {
	return strings.Split(line, delimiter)
}

// unquote strips surrounding quotes and NUL bytes, which Postgres text columns reject.
func unquote(field string) string {
	return strings.ReplaceAll(strings.Trim(field, quote), nul, "")
}
