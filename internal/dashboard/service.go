// Package dashboard orchestrates imports of activity exports and derives the
// dashboard views from a user's current collection.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/dashboard/internal/aggregate"
	"example.com/dashboard/internal/csvimport"
	"example.com/dashboard/internal/domain"
	"example.com/dashboard/internal/observability"
	"example.com/dashboard/internal/pipeline"
)

const defaultPageSize = 50

// Service imports exports and computes views. Views are recomputed from the
// stored collection on every call.
type Service struct {
	repo     domain.CollectionRepository
	parser   *csvimport.Parser
	location *time.Location
	now      func() time.Time
	logger   *logrus.Entry
}

// Option customises the Service.
type Option func(*Service)

// WithParser replaces the default export parser.
func WithParser(parser *csvimport.Parser) Option {
	return func(s *Service) {
		if parser != nil {
			s.parser = parser
		}
	}
}

// WithLocation sets the location used for calendar windows.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a Service.
func NewService(repo domain.CollectionRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		location: time.Local,
		now:      time.Now,
		logger:   logrus.WithField("component", "dashboard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = csvimport.NewParser(csvimport.WithLocation(s.location))
	}
	return s
}

// ImportInput captures an uploaded export.
type ImportInput struct {
	TenantID string
	UserID   string
	Source   string
	Content  string
}

// Query scopes a view to a user's collection and the filter selection.
type Query struct {
	TenantID string
	UserID   string
	Filter   pipeline.Options
}

// Import parses the export and replaces the user's collection with its
// activities. Rows with an unreadable date are dropped and counted.
func (s *Service) Import(ctx context.Context, input ImportInput) (*domain.ImportBatch, error) {
	if strings.TrimSpace(input.Content) == "" {
		observability.RecordImport(input.Source, observability.OutcomeEmpty, 0, 0)
		return nil, domain.ErrEmptyExport
	}

	result := s.parser.Parse(input.Content)
	batch := domain.ImportBatch{
		ID:           uuid.NewString(),
		TenantID:     input.TenantID,
		UserID:       input.UserID,
		Source:       input.Source,
		RowCount:     result.Rows,
		DroppedCount: result.Dropped,
		ImportedAt:   s.now().UTC(),
	}

	if err := s.repo.ReplaceCollection(ctx, batch, result.Activities); err != nil {
		observability.RecordImport(input.Source, observability.OutcomeFailed, result.Rows, result.Dropped)
		return nil, fmt.Errorf("replace collection: %w", err)
	}
	observability.RecordImport(input.Source, observability.OutcomeImported, result.Rows, result.Dropped)

	s.logger.WithFields(logrus.Fields{
		"import_id": batch.ID,
		"tenant_id": batch.TenantID,
		"user_id":   batch.UserID,
		"rows":      batch.RowCount,
		"dropped":   batch.DroppedCount,
	}).Info("collection replaced")
	return &batch, nil
}

// LatestImport returns the import currently backing the user's collection.
func (s *Service) LatestImport(ctx context.Context, tenantID, userID string) (*domain.ImportBatch, error) {
	batch, err := s.repo.LatestImport(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, domain.ErrImportNotFound
	}
	return batch, nil
}

// Activities returns the filtered collection, most recent first.
func (s *Service) Activities(ctx context.Context, q Query) ([]domain.Activity, error) {
	collection, err := s.repo.LoadCollection(ctx, q.TenantID, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return pipeline.Apply(collection, q.Filter, s.clock()), nil
}

// ListActivities pages through the filtered collection. Cursors are bound to
// the import they were issued for; once the collection is replaced they fail
// with domain.ErrStaleCursor.
func (s *Service) ListActivities(ctx context.Context, q Query, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	batch, collection, err := s.repo.LoadSnapshot(ctx, q.TenantID, q.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}
	if batch == nil {
		if cursor != nil {
			return nil, nil, domain.ErrStaleCursor
		}
		return []domain.Activity{}, nil, nil
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := 0
	if cursor != nil {
		if cursor.ImportID != batch.ID || cursor.Offset < 0 {
			return nil, nil, domain.ErrStaleCursor
		}
		offset = cursor.Offset
	}

	activities := pipeline.Apply(collection, q.Filter, s.clock())
	if offset >= len(activities) {
		return []domain.Activity{}, nil, nil
	}

	end := min(offset+limit, len(activities))
	var next *domain.Cursor
	if end < len(activities) {
		next = &domain.Cursor{ImportID: batch.ID, Offset: end}
	}
	return activities[offset:end], next, nil
}

// Summary totals the filtered collection.
func (s *Service) Summary(ctx context.Context, q Query) (aggregate.Summary, error) {
	activities, err := s.Activities(ctx, q)
	if err != nil {
		return aggregate.Summary{}, err
	}
	return aggregate.Summarize(activities), nil
}

// TimeSeries buckets the filtered collection.
func (s *Service) TimeSeries(ctx context.Context, q Query, granularity domain.Granularity, metric domain.Metric) ([]aggregate.Point, error) {
	activities, err := s.Activities(ctx, q)
	if err != nil {
		return nil, err
	}
	return aggregate.Bucket(activities, granularity, metric), nil
}

// AnnualVolume normalizes the trailing twelve months of the filtered collection.
func (s *Service) AnnualVolume(ctx context.Context, q Query) ([]aggregate.MonthVolume, error) {
	activities, err := s.Activities(ctx, q)
	if err != nil {
		return nil, err
	}
	return aggregate.AnnualVolume(activities, s.clock()), nil
}

// MonthlyVolume builds the day grid of month. A zero year means the current one.
func (s *Service) MonthlyVolume(ctx context.Context, q Query, year int, month time.Month) ([]aggregate.DayVolume, error) {
	activities, err := s.Activities(ctx, q)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.clock().Year()
	}
	return aggregate.MonthlyVolume(activities, year, month, s.location), nil
}

func (s *Service) clock() time.Time {
	return s.now().In(s.location)
}
