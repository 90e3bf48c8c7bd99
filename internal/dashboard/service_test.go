package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/dashboard/internal/domain"
	"example.com/dashboard/internal/persistence/memory"
	"example.com/dashboard/internal/pipeline"
)

const export = "Type d'activité,Date,Titre,Distance,Calories,Durée,Fréquence cardiaque moyenne,Fréquence cardiaque maximale,Allure moyenne,Ascension totale\n" +
	"Course à pied,2025-10-14 07:00:00,Footing,10.5,700,00:55:00,150,172,5:14,80\n" +
	"Cyclisme VTT,2025-10-12 09:00:00,VTT,35.2,1200,02:30:00,140,175,--,900\n" +
	"Randonnée,2025-09-01 10:00:00,Rando,15,900,04:00:00,110,140,--,1200\n" +
	"Trail,not a date,Broken,12,800,01:30:00,150,180,7:30,600\n" +
	"Course à pied,2024-12-31 18:00:00,Last year,5,350,00:28:00,145,160,5:36,10\n"

var fixedNow = time.Date(2025, time.October, 15, 12, 0, 0, 0, time.UTC)

func newTestService(repo domain.CollectionRepository) *Service {
	return NewService(repo,
		WithLocation(time.UTC),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func importFixture(t *testing.T, svc *Service) *domain.ImportBatch {
	t.Helper()
	batch, err := svc.Import(context.Background(), ImportInput{TenantID: "t1", UserID: "u1", Source: "test", Content: export})
	require.NoError(t, err)
	return batch
}

func TestImportReplacesCollection(t *testing.T) {
	repo := memory.NewRepository()
	svc := newTestService(repo)

	batch := importFixture(t, svc)
	require.NotEmpty(t, batch.ID)
	require.Equal(t, 5, batch.RowCount)
	require.Equal(t, 1, batch.DroppedCount)
	require.Equal(t, 4, batch.Imported())
	require.Equal(t, fixedNow, batch.ImportedAt)

	latest, err := svc.LatestImport(context.Background(), "t1", "u1")
	require.NoError(t, err)
	require.Equal(t, batch.ID, latest.ID)

	second, err := svc.Import(context.Background(), ImportInput{TenantID: "t1", UserID: "u1", Content: "header only"})
	require.NoError(t, err)
	require.Zero(t, second.RowCount)

	activities, err := svc.Activities(context.Background(), Query{TenantID: "t1", UserID: "u1"})
	require.NoError(t, err)
	require.Empty(t, activities)
}

func TestImportRejectsEmptyContent(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	_, err := svc.Import(context.Background(), ImportInput{TenantID: "t1", UserID: "u1", Content: " \n "})
	require.ErrorIs(t, err, domain.ErrEmptyExport)
}

type failingRepo struct {
	memory.Repository
}

func (*failingRepo) ReplaceCollection(context.Context, domain.ImportBatch, []domain.Activity) error {
	return errors.New("database unavailable")
}

func TestImportWrapsRepositoryErrors(t *testing.T) {
	svc := newTestService(&failingRepo{})
	_, err := svc.Import(context.Background(), ImportInput{TenantID: "t1", UserID: "u1", Content: export})
	require.ErrorContains(t, err, "replace collection")
}

func TestLatestImportNotFound(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	_, err := svc.LatestImport(context.Background(), "t1", "nobody")
	require.ErrorIs(t, err, domain.ErrImportNotFound)
}

func TestActivitiesAppliesFilters(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	importFixture(t, svc)

	all, err := svc.Activities(context.Background(), Query{TenantID: "t1", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "Footing", all[0].Title)
	require.Equal(t, "Last year", all[3].Title)

	running, err := svc.Activities(context.Background(), Query{
		TenantID: "t1",
		UserID:   "u1",
		Filter:   pipeline.Options{Category: domain.CategoryRunning, Period: domain.PeriodCurrentYear},
	})
	require.NoError(t, err)
	require.Len(t, running, 1)
	require.Equal(t, "Footing", running[0].Title)
}

func TestListActivitiesPaginates(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	batch := importFixture(t, svc)
	q := Query{TenantID: "t1", UserID: "u1"}

	page, next, err := svc.ListActivities(context.Background(), q, nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, &domain.Cursor{ImportID: batch.ID, Offset: 3}, next)

	page, next, err = svc.ListActivities(context.Background(), q, next, 3)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Nil(t, next)

	page, next, err = svc.ListActivities(context.Background(), q, &domain.Cursor{ImportID: batch.ID, Offset: 10}, 3)
	require.NoError(t, err)
	require.Empty(t, page)
	require.Nil(t, next)
}

func TestListActivitiesRejectsCursorOfReplacedImport(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	first := importFixture(t, svc)
	importFixture(t, svc)

	_, _, err := svc.ListActivities(context.Background(), Query{TenantID: "t1", UserID: "u1"}, &domain.Cursor{ImportID: first.ID, Offset: 1}, 2)
	require.ErrorIs(t, err, domain.ErrStaleCursor)
}

// splitReadRepo serves a replace that lands between two separate reads: the
// latest import is the old one while the collection is already the new one.
type splitReadRepo struct {
	*memory.Repository
	stale domain.ImportBatch
}

func (r *splitReadRepo) LatestImport(context.Context, string, string) (*domain.ImportBatch, error) {
	batch := r.stale
	return &batch, nil
}

func TestListActivitiesReadsImportAndCollectionTogether(t *testing.T) {
	repo := &splitReadRepo{Repository: memory.NewRepository()}
	svc := newTestService(repo)
	first := importFixture(t, svc)
	repo.stale = *first
	importFixture(t, svc)

	_, _, err := svc.ListActivities(context.Background(), Query{TenantID: "t1", UserID: "u1"}, &domain.Cursor{ImportID: first.ID, Offset: 1}, 2)
	require.ErrorIs(t, err, domain.ErrStaleCursor)
}

func TestListActivitiesWithoutImport(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	page, next, err := svc.ListActivities(context.Background(), Query{TenantID: "t1", UserID: "u1"}, nil, 0)
	require.NoError(t, err)
	require.Empty(t, page)
	require.Nil(t, next)
}

func TestDerivedViews(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	importFixture(t, svc)
	ctx := context.Background()
	q := Query{TenantID: "t1", UserID: "u1"}

	summary, err := svc.Summary(ctx, q)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Count)
	require.InDelta(t, 65.7, summary.TotalDistance, 1e-9)
	require.Equal(t, 3300+9000+14400+1680, summary.TotalDuration)
	require.InDelta(t, 2190, summary.TotalAscent, 1e-9)

	series, err := svc.TimeSeries(ctx, q, domain.GranularityYear, domain.MetricCalories)
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.Equal(t, "2024", series[0].Label)
	require.Equal(t, 350.0, series[0].Value)
	require.Equal(t, 2800.0, series[1].Value)

	annual, err := svc.AnnualVolume(ctx, q)
	require.NoError(t, err)
	require.Len(t, annual, 12)
	require.Equal(t, "2025-10", annual[11].Month)
	require.Equal(t, 100.0, annual[11].Percent.Distance)
	require.Equal(t, 100.0, annual[10].Percent.Ascent)

	monthly, err := svc.MonthlyVolume(ctx, q, 0, time.October)
	require.NoError(t, err)
	require.Equal(t, "2025-09-29", monthly[0].Date)
	var withActivities int
	for _, day := range monthly {
		withActivities += len(day.Activities)
	}
	require.Equal(t, 2, withActivities)
}
