// Package audit owns the audit-trail write path. Workflow mutations write
// their entry inside the same transaction as the state change; observational
// events (login, logout) go through the fire-and-forget Observer instead.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Entry is a single audit_logs row. LocationID is required.
type Entry struct {
	ID          int64          `json:"id"`
	LocationID  int64          `json:"location_id"`
	ActorID     int64          `json:"actor_id"`
	Action      string         `json:"action"`
	Entity      string         `json:"entity"`
	EntityID    int64          `json:"entity_id"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TxWriter appends an audit entry within the caller's unit of work. Every
// workflow TxRepository embeds it so the entry commits or rolls back together
// with the mutation it describes.
type TxWriter interface {
	InsertAuditEntry(ctx context.Context, entry Entry) error
}

// Insert writes the entry using the given transaction.
func Insert(ctx context.Context, tx pgx.Tx, entry Entry) error {
	if entry.LocationID == 0 {
		return errors.New("audit: location required")
	}
	if entry.Action == "" || entry.Entity == "" {
		return errors.New("audit: action and entity required")
	}
	var meta []byte
	if entry.Meta != nil {
		var err error
		meta, err = json.Marshal(entry.Meta)
		if err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx, `INSERT INTO audit_logs (location_id, actor_id, action, entity, entity_id, description, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8, '0001-01-01 00:00:00'::timestamptz), NOW()))`,
		entry.LocationID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.Description, meta, entry.CreatedAt)
	return err
}
