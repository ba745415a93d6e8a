package shared

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent is an append-only record of an authority-changing action.
type AuditEvent struct {
	Action       string
	ActorID      int64
	ResourceType string
	ResourceID   string
	Before       map[string]any
	After        map[string]any
	At           time.Time
}

// AuditLogger writes events into audit_logs. Recording is fire and forget:
// a failed audit write is logged and swallowed, it never aborts the
// decision or mutation it describes.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{pool: pool, logger: logger}
}

// Record persists the event, best effort.
func (l *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if l == nil || l.pool == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	beforeJSON, err := json.Marshal(event.Before)
	if err != nil {
		l.warn("marshal audit before", err)
		return
	}
	afterJSON, err := json.Marshal(event.After)
	if err != nil {
		l.warn("marshal audit after", err)
		return
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, resource_type, resource_id, before, after, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ActorID, event.Action, event.ResourceType, event.ResourceID, beforeJSON, afterJSON, event.At)
	if err != nil {
		l.warn("record audit event", err)
	}
}

func (l *AuditLogger) warn(msg string, err error) {
	if l.logger != nil {
		l.logger.Warn(msg, slog.Any("error", err))
	}
}
