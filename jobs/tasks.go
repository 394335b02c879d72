// Package jobs hosts the background worker: it drains observational audit
// events into audit_logs and prunes them past retention.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditPrune deletes observational audit rows past retention.
	TaskTypeAuditPrune = "audit:prune"
)

// Observational actions are the only audit rows the pruner may touch; the
// workflow trail is never deleted.
var observationalActions = []string{"LOGIN", "LOGOUT"}

// AuditPrunePayload carries the retention window for a prune run.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditPruneTask constructs an Asynq task.
func NewAuditPruneTask(payload AuditPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPrune, data), nil
}

// NewAuditPruneHandler returns the handler that deletes observational audit
// rows older than the retention window.
func NewAuditPruneHandler(pool *pgxpool.Pool) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention <= 0 {
			return asynq.SkipRetry
		}
		cutoff := time.Now().UTC().Add(-payload.Retention)
		_, err := pool.Exec(ctx, `DELETE FROM audit_logs WHERE action = ANY($1) AND created_at < $2`,
			observationalActions, cutoff)
		return err
	}
}
