package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"example.com/dashboard/internal/aggregate"
	"example.com/dashboard/internal/auth"
	"example.com/dashboard/internal/calendar"
	"example.com/dashboard/internal/dashboard"
	"example.com/dashboard/internal/domain"
	"example.com/dashboard/internal/logging"
	"example.com/dashboard/internal/persistence/memory"
	"example.com/dashboard/internal/pipeline"
)

const (
	localTenant = "local"
	localUser   = "local"
)

// session is an export loaded into an in-memory collection.
type session struct {
	service *dashboard.Service
	query   dashboard.Query
	batch   *domain.ImportBatch
	now     time.Time
}

func openSession(c *cli.Context) (*session, error) {
	logrus.SetOutput(c.App.ErrWriter)
	logrus.SetLevel(logging.GetLevel(c.String("log-level")))

	path := c.Args().First()
	if path == "" {
		return nil, cli.Exit("an export file is required", 2)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("read export: %v", err), 1)
	}

	loc, err := loadLocation(c.String("timezone"))
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	now := time.Now()
	if raw := c.String("now"); raw != "" {
		if now, err = time.Parse(time.RFC3339, raw); err != nil {
			return nil, cli.Exit(fmt.Sprintf("invalid --now: %v", err), 2)
		}
	}

	filter, err := parseFilter(c)
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}

	service := dashboard.NewService(memory.NewRepository(),
		dashboard.WithLocation(loc),
		dashboard.WithClock(func() time.Time { return now }),
	)
	batch, err := service.Import(c.Context, dashboard.ImportInput{
		TenantID: localTenant,
		UserID:   localUser,
		Source:   path,
		Content:  string(content),
	})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("import %s: %v", path, err), 1)
	}

	return &session{
		service: service,
		query:   dashboard.Query{TenantID: localTenant, UserID: localUser, Filter: filter},
		batch:   batch,
		now:     now.In(loc),
	}, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", name)
	}
	return loc, nil
}

func parseFilter(c *cli.Context) (pipeline.Options, error) {
	category, err := domain.ParseCategory(c.String("category"))
	if err != nil {
		return pipeline.Options{}, err
	}
	period, err := domain.ParsePeriod(c.String("period"))
	if err != nil {
		return pipeline.Options{}, err
	}
	sortBy, err := domain.ParseMetric(c.String("sort"))
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{Category: category, Period: period, SortBy: sortBy}, nil
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runParse(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	activities, err := s.service.Activities(c.Context, s.query)
	if err != nil {
		return err
	}
	return printJSON(c, struct {
		Rows       int               `json:"rows"`
		Imported   int               `json:"imported"`
		Dropped    int               `json:"dropped"`
		Activities []domain.Activity `json:"activities"`
	}{s.batch.RowCount, s.batch.Imported(), s.batch.DroppedCount, activities})
}

func runSummary(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	summary, err := s.service.Summary(c.Context, s.query)
	if err != nil {
		return err
	}
	return printJSON(c, summary)
}

func runTimeSeries(c *cli.Context) error {
	granularity, err := domain.ParseGranularity(c.String("granularity"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	metric, err := domain.ParseMetric(c.String("metric"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	points, err := s.service.TimeSeries(c.Context, s.query, granularity, metric)
	if err != nil {
		return err
	}
	return printJSON(c, struct {
		Granularity domain.Granularity `json:"granularity"`
		Metric      domain.Metric      `json:"metric"`
		Points      []aggregate.Point  `json:"points"`
	}{granularity, metric, points})
}

func runAnnual(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	months, err := s.service.AnnualVolume(c.Context, s.query)
	if err != nil {
		return err
	}
	return printJSON(c, struct {
		Months []aggregate.MonthVolume `json:"months"`
	}{months})
}

func runMonthly(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	month := s.now.Month()
	if raw := c.String("month"); raw != "" {
		if month, err = calendar.ParseMonth(raw); err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}
	year := c.Int("year")
	if year < 0 {
		return cli.Exit("year must be positive", 2)
	}
	days, err := s.service.MonthlyVolume(c.Context, s.query, year, month)
	if err != nil {
		return err
	}
	return printJSON(c, struct {
		Month string                `json:"month"`
		Days  []aggregate.DayVolume `json:"days"`
	}{month.String(), days})
}

func runToken(c *cli.Context) error {
	token, err := auth.SignToken(
		auth.Config{Secret: c.String("secret"), Issuer: c.String("issuer")},
		c.String("subject"),
		c.String("tenant"),
		c.StringSlice("scope"),
		c.Duration("ttl"),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("sign token: %v", err), 1)
	}
	_, err = fmt.Fprintln(c.App.Writer, token)
	return err
}
