package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"example.com/dashboard/internal/auth"
)

const (
	appName = "dashboardctl"
	appDesc = "Inspect an activity CSV export offline"
)

func newApp() *cli.App {
	return &cli.App{
		Name:     appName,
		Usage:    appDesc,
		Flags:    globalFlags(),
		Commands: commands(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "timezone",
			Aliases: []string{"tz"},
			Value:   "Local",
			Usage:   "IANA zone used for calendar windows",
			EnvVars: []string{"TIMEZONE"},
		},
		&cli.StringFlag{
			Name:  "now",
			Usage: "RFC3339 instant treated as the current time",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Value: "warn",
			Usage: "logrus level for diagnostics on stderr",
		},
	}
}

// viewFlags are shared by every command that reads an export.
func viewFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "All, Running, Cycling or Hiking"},
		&cli.StringFlag{Name: "period", Aliases: []string{"p"}, Usage: "all, current_year, current_month or current_week"},
		&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Usage: "metric used to order activities sharing a date"},
	}
	return append(flags, extra...)
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "parse",
			Usage:     "print the parsed activities",
			ArgsUsage: "<export.csv>",
			Flags:     viewFlags(),
			Action:    runParse,
		},
		{
			Name:      "summary",
			Usage:     "print totals of the filtered activities",
			ArgsUsage: "<export.csv>",
			Flags:     viewFlags(),
			Action:    runSummary,
		},
		{
			Name:      "timeseries",
			Usage:     "print a metric bucketed by calendar unit",
			ArgsUsage: "<export.csv>",
			Flags: viewFlags(
				&cli.StringFlag{Name: "granularity", Aliases: []string{"g"}, Value: "Month", Usage: "None, Day, Week, Month or Year"},
				&cli.StringFlag{Name: "metric", Aliases: []string{"m"}, Value: "Distance", Usage: "Distance, Duration, Calories or Ascent"},
			),
			Action: runTimeSeries,
		},
		{
			Name:      "annual",
			Usage:     "print the trailing twelve months as percentages of the busiest month",
			ArgsUsage: "<export.csv>",
			Flags:     viewFlags(),
			Action:    runAnnual,
		},
		{
			Name:      "monthly",
			Usage:     "print the calendar grid of one month",
			ArgsUsage: "<export.csv>",
			Flags: viewFlags(
				&cli.StringFlag{Name: "month", Usage: "month name or number, defaults to the current month"},
				&cli.IntFlag{Name: "year", Usage: "defaults to the current year"},
			),
			Action: runMonthly,
		},
		{
			Name:  "token",
			Usage: "sign a development bearer token for the API",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "subject", Value: "local-user", Usage: "user id carried in sub"},
				&cli.StringFlag{Name: "tenant", Value: "local-tenant", Usage: "tenant id claim"},
				&cli.StringSliceFlag{Name: "scope", Value: cli.NewStringSlice(auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)},
				&cli.DurationFlag{Name: "ttl", Value: time.Hour},
				&cli.StringFlag{Name: "secret", Value: "dev-secret-change-me", EnvVars: []string{"JWT_SECRET"}},
				&cli.StringFlag{Name: "issuer", Value: "i5e.identity", EnvVars: []string{"JWT_ISSUER"}},
			},
			Action: runToken,
		},
	}
}
