package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"example.com/dashboard/internal/dashboard"
	"example.com/dashboard/internal/domain"
	"example.com/dashboard/internal/events"
)

// Importer replaces a user's collection with a parsed export.
type Importer interface {
	Import(context.Context, dashboard.ImportInput) (*domain.ImportBatch, error)
}

// ImportHandler turns uploaded export events into collection imports.
type ImportHandler struct {
	importer Importer
	logger   *logrus.Entry
}

// NewImportHandler constructs an ImportHandler.
func NewImportHandler(importer Importer, logger *logrus.Entry) *ImportHandler {
	if logger == nil {
		logger = logrus.WithField("component", "consumer")
	}
	return &ImportHandler{importer: importer, logger: logger}
}

// Handle imports the export carried by msg. Messages that can never succeed are
// skipped so they get committed; storage failures are returned for redelivery.
func (h *ImportHandler) Handle(ctx context.Context, msg Message) error {
	log := h.logger.WithFields(logrus.Fields{"topic": msg.Topic, "offset": msg.Offset, "event_type": msg.EventType})

	if msg.EventType != events.ExportUploadedEventType {
		recordSkipped(msg, "event_type")
		log.Debug("ignoring unrelated event")
		return nil
	}
	if msg.TenantID == "" {
		recordSkipped(msg, "tenant")
		log.Warn("export without tenant_id header")
		return nil
	}

	var payload events.ExportUploaded
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		recordSkipped(msg, "payload")
		log.WithError(err).Warn("undecodable export payload")
		return nil
	}
	if payload.UserID == "" {
		recordSkipped(msg, "user")
		log.Warn("export without user_id")
		return nil
	}

	batch, err := h.importer.Import(ctx, dashboard.ImportInput{
		TenantID: msg.TenantID,
		UserID:   payload.UserID,
		Source:   payload.Source,
		Content:  payload.Content,
	})
	if errors.Is(err, domain.ErrEmptyExport) {
		recordSkipped(msg, "empty")
		log.Warn("empty export")
		return nil
	}
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"tenant_id": msg.TenantID,
		"user_id":   payload.UserID,
		"import_id": batch.ID,
		"rows":      batch.RowCount,
		"dropped":   batch.DroppedCount,
	}).Info("export imported")
	return nil
}
