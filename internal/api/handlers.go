// Package api exposes HTTP handlers for the dashboard service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/dashboard/internal/aggregate"
	"example.com/dashboard/internal/auth"
	"example.com/dashboard/internal/calendar"
	"example.com/dashboard/internal/dashboard"
	"example.com/dashboard/internal/domain"
	"example.com/dashboard/internal/persistence"
	"example.com/dashboard/internal/pipeline"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
	defaultMaxBytes = 10 << 20
)

// Handler coordinates HTTP requests with the dashboard service.
type Handler struct {
	service  *dashboard.Service
	maxBytes int64
	logger   *logrus.Entry
}

// Option customises the Handler.
type Option func(*Handler)

// WithMaxImportBytes caps the size of uploaded exports.
func WithMaxImportBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(service *dashboard.Service, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		maxBytes: defaultMaxBytes,
		logger:   logrus.WithField("component", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/imports", h.imports)
	mux.HandleFunc("/v1/imports/latest", h.latestImport)
	mux.HandleFunc("/v1/activities", h.listActivities)
	mux.HandleFunc("/v1/activities/summary", h.summary)
	mux.HandleFunc("/v1/activities/timeseries", h.timeSeries)
	mux.HandleFunc("/v1/volume/annual", h.annualVolume)
	mux.HandleFunc("/v1/volume/monthly", h.monthlyVolume)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) imports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "export exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}

	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if source == "" {
		source = "api"
	}

	batch, err := h.service.Import(r.Context(), dashboard.ImportInput{
		TenantID: claims.TenantID,
		UserID:   claims.Subject,
		Source:   source,
		Content:  string(body),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ImportResponse{
		ImportID: batch.ID,
		Rows:     batch.RowCount,
		Imported: batch.Imported(),
		Dropped:  batch.DroppedCount,
	})
}

func (h *Handler) latestImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}

	batch, err := h.service.LatestImport(r.Context(), claims.TenantID, claims.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportView(*batch))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}
	q, err := parseQuery(r, claims)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	items, next, err := h.service.ListActivities(r.Context(), q, cursor, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q, ok := h.readView(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) timeSeries(w http.ResponseWriter, r *http.Request) {
	q, ok := h.readView(w, r)
	if !ok {
		return
	}
	granularity, err := domain.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	metric, err := domain.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	points, err := h.service.TimeSeries(r.Context(), q, granularity, metric)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TimeSeriesResponse{Granularity: granularity, Metric: metric, Points: points})
}

func (h *Handler) annualVolume(w http.ResponseWriter, r *http.Request) {
	q, ok := h.readView(w, r)
	if !ok {
		return
	}
	months, err := h.service.AnnualVolume(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnualVolumeResponse{Months: months})
}

func (h *Handler) monthlyVolume(w http.ResponseWriter, r *http.Request) {
	q, ok := h.readView(w, r)
	if !ok {
		return
	}
	month, err := calendar.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	year := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil || year < 1 {
			writeError(w, http.StatusBadRequest, "validation_failed", "year must be a positive integer")
			return
		}
	}

	days, err := h.service.MonthlyVolume(r.Context(), q, year, month)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlyVolumeResponse{Month: month.String(), Days: days})
}

// readView runs the checks shared by the read-only view endpoints.
func (h *Handler) readView(w http.ResponseWriter, r *http.Request) (dashboard.Query, bool) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return dashboard.Query{}, false
	}
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return dashboard.Query{}, false
	}
	q, err := parseQuery(r, claims)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return dashboard.Query{}, false
	}
	return q, true
}

// authorize requires claims carrying scope. The write scope also grants reads.
func authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) && !(scope == auth.ScopeActivitiesRead && claims.HasScope(auth.ScopeActivitiesWrite)) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

func parseQuery(r *http.Request, claims *auth.Claims) (dashboard.Query, error) {
	values := r.URL.Query()
	category, err := domain.ParseCategory(values.Get("category"))
	if err != nil {
		return dashboard.Query{}, err
	}
	period, err := domain.ParsePeriod(values.Get("period"))
	if err != nil {
		return dashboard.Query{}, err
	}
	sortBy, err := domain.ParseMetric(values.Get("sort"))
	if err != nil {
		return dashboard.Query{}, err
	}
	return dashboard.Query{
		TenantID: claims.TenantID,
		UserID:   claims.Subject,
		Filter:   pipeline.Options{Category: category, Period: period, SortBy: sortBy},
	}, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrImportNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no import found")
	case errors.Is(err, domain.ErrEmptyExport):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrStaleCursor):
		writeError(w, http.StatusBadRequest, "validation_failed", "cursor no longer matches the current import")
	default:
		h.logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// ImportResponse describes the response body of POST /v1/imports.
type ImportResponse struct {
	ImportID string `json:"import_id"`
	Rows     int    `json:"rows"`
	Imported int    `json:"imported"`
	Dropped  int    `json:"dropped"`
}

// ImportView exposes the metadata of an import.
type ImportView struct {
	ImportID   string    `json:"import_id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Imported   int       `json:"imported"`
	Dropped    int       `json:"dropped"`
	ImportedAt time.Time `json:"imported_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []domain.Activity `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// TimeSeriesResponse carries a bucketed series.
type TimeSeriesResponse struct {
	Granularity domain.Granularity `json:"granularity"`
	Metric      domain.Metric      `json:"metric"`
	Points      []aggregate.Point  `json:"points"`
}

// AnnualVolumeResponse carries the trailing twelve months, oldest first.
type AnnualVolumeResponse struct {
	Months []aggregate.MonthVolume `json:"months"`
}

// MonthlyVolumeResponse carries the day grid of a month.
type MonthlyVolumeResponse struct {
	Month string                `json:"month"`
	Days  []aggregate.DayVolume `json:"days"`
}

func toImportView(batch domain.ImportBatch) ImportView {
	return ImportView{
		ImportID:   batch.ID,
		Source:     batch.Source,
		Rows:       batch.RowCount,
		Imported:   batch.Imported(),
		Dropped:    batch.DroppedCount,
		ImportedAt: batch.ImportedAt,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
