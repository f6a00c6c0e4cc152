package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PipelineEvent is a domain-level event recorded for one pipeline run.
type PipelineEvent struct {
	EventType string // "upload"
	SessionID string
	Action    string // "complete", "rejected", "failed"
	Details   string // optional JSON
	Success   bool
}

// EventLogger writes pipeline events into the analyzer database. Failures
// are slog-logged and never propagate: a failing event log must not block
// an upload.
type EventLogger struct {
	db *sql.DB
}

// NewEventLogger creates a logger backed by the given database.
func NewEventLogger(db *sql.DB) *EventLogger {
	return &EventLogger{db: db}
}

// Log records one event.
func (l *EventLogger) Log(ctx context.Context, e PipelineEvent) {
	eventID := "evt_" + uuid.Must(uuid.NewV7()).String()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO pipeline_events (event_id, event_type, session_id, action, details, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		eventID, e.EventType, e.SessionID, e.Action, e.Details, e.Success, time.Now().Unix())
	if err != nil {
		slog.Error("pipeline event log failed", "error", err, "event_type", e.EventType, "action", e.Action)
	}
}
