package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification levels and types mirror the notifications table enums.
const (
	NotificationLevelInfo    = "INFO"
	NotificationLevelWarning = "WARNING"
	NotificationLevelError   = "ERROR"

	NotificationTypeOCR    = "OCR"
	NotificationTypeImport = "IMPORT"
	NotificationTypeSystem = "SYSTEM"
)

// Notification is a fire-and-forget message for operators.
type Notification struct {
	Type     string
	Level    string
	Message  string
	Metadata map[string]any
	ActorID  int64
}

// Notifier delivers notifications. Delivery failures must never fail the
// triggering business operation; callers log and continue.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// PGNotifier stores notifications in Postgres for the UI to poll.
type PGNotifier struct {
	pool *pgxpool.Pool
}

// NewPGNotifier returns a PGNotifier.
func NewPGNotifier(pool *pgxpool.Pool) *PGNotifier {
	return &PGNotifier{pool: pool}
}

// Notify persists the notification.
func (n *PGNotifier) Notify(ctx context.Context, msg Notification) error {
	if n == nil {
		return errors.New("notifier not initialised")
	}
	if msg.Type == "" || msg.Message == "" {
		return errors.New("notification requires type and message")
	}
	if msg.Level == "" {
		msg.Level = NotificationLevelInfo
	}
	metaJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return err
	}
	_, err = n.pool.Exec(ctx, `INSERT INTO notifications (type, level, message, metadata, actor_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.Type, msg.Level, msg.Message, metaJSON, msg.ActorID, time.Now())
	return err
}

// NopNotifier discards notifications. Used when no sink is configured.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Notification) error { return nil }
