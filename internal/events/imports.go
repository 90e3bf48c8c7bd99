// Package events defines the payloads exchanged with other services over Kafka.
package events

import "time"

// ExportUploadedEventType tags messages carrying a raw activity export.
const ExportUploadedEventType = "activity_export.uploaded"

// ImportCompletedEventType tags the event emitted once a collection is replaced.
const ImportCompletedEventType = "activity_import.completed"

// ExportUploaded carries a raw export uploaded by a user through another service.
// The tenant travels in the tenant_id message header.
type ExportUploaded struct {
	UserID  string `json:"user_id"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

// ImportCompleted announces that a user's activity collection was replaced.
type ImportCompleted struct {
	ImportID   string    `json:"import_id"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Imported   int       `json:"imported"`
	Dropped    int       `json:"dropped"`
	ImportedAt time.Time `json:"imported_at"`
}
