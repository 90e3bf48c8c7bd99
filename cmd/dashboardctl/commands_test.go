package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"example.com/dashboard/internal/aggregate"
	"example.com/dashboard/internal/auth"
)

const export = "Activity Type,Date,Title,Distance,Calories,Time,Avg HR,Max HR,Avg Pace,Total Ascent\n" +
	"Running,2025-10-14 07:00:00,Tempo,10,700,00:50:00,155,176,5:00,40\n" +
	"Road Cycling,2025-10-13 17:30:00,Commute,22.5,600,01:00:00,130,160,--,210\n" +
	"Hiking,2025-03-09 09:00:00,Ridge,14,950,04:10:00,115,150,--,980\n" +
	"Running,yesterday,Broken,5,300,00:25:00,150,170,5:00,10\n"

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{appName, "--timezone", "UTC", "--now", "2025-10-15T12:00:00Z"}, args...))
	return stdout.String(), err
}

func TestParseCommand(t *testing.T) {
	out, err := run(t, "parse", "--category", "running", writeExport(t))
	require.NoError(t, err)

	var result struct {
		Rows       int `json:"rows"`
		Imported   int `json:"imported"`
		Dropped    int `json:"dropped"`
		Activities []struct {
			Title string `json:"title"`
		} `json:"activities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, 4, result.Rows)
	require.Equal(t, 3, result.Imported)
	require.Equal(t, 1, result.Dropped)
	require.Len(t, result.Activities, 1)
	require.Equal(t, "Tempo", result.Activities[0].Title)
}

func TestSummaryCommand(t *testing.T) {
	out, err := run(t, "summary", "--period", "current_week", writeExport(t))
	require.NoError(t, err)

	var summary aggregate.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Equal(t, 2, summary.Count)
	require.InDelta(t, 32.5, summary.TotalDistance, 1e-9)
}

func TestTimeSeriesCommand(t *testing.T) {
	out, err := run(t, "timeseries", "--granularity", "year", "--metric", "calories", writeExport(t))
	require.NoError(t, err)

	var series struct {
		Points []aggregate.Point `json:"points"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &series))
	require.Equal(t, []aggregate.Point{{Label: "2025", Value: 2250}}, series.Points)
}

func TestVolumeCommands(t *testing.T) {
	path := writeExport(t)

	out, err := run(t, "annual", path)
	require.NoError(t, err)
	var annual struct {
		Months []aggregate.MonthVolume `json:"months"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &annual))
	require.Len(t, annual.Months, 12)
	require.Equal(t, "2025-10", annual.Months[11].Month)

	out, err = run(t, "monthly", "--month", "feb", "--year", "2024", path)
	require.NoError(t, err)
	var monthly struct {
		Month string                `json:"month"`
		Days  []aggregate.DayVolume `json:"days"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &monthly))
	require.Equal(t, "February", monthly.Month)
	require.Len(t, monthly.Days, 3+28)
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "summary")
	require.ErrorContains(t, err, "export file is required")

	_, err = run(t, "summary", "--category", "swimming", writeExport(t))
	require.ErrorContains(t, err, "unknown category")

	_, err = run(t, "summary", filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorContains(t, err, "read export")
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--subject", "user-9", "--tenant", "tenant-9", "--secret", "s3cret", "--issuer", "test")
	require.NoError(t, err)

	claims, err := auth.ParseClaims(strings.TrimSpace(out), auth.Config{Secret: "s3cret", Issuer: "test"})
	require.NoError(t, err)
	require.Equal(t, "user-9", claims.Subject)
	require.Equal(t, "tenant-9", claims.TenantID)
	require.True(t, claims.HasScope(auth.ScopeActivitiesRead))
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}
