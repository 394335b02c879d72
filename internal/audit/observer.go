package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskTypeObserve is the asynq task type for observational audit events.
const TaskTypeObserve = "audit:observe"

// Enqueuer is the subset of the asynq client the observer needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Observer records observational-only events outside the caller's success
// path. Failures are logged and swallowed; losing such a row must never
// abort a user-facing flow.
type Observer struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewObserver constructs an Observer.
func NewObserver(enqueuer Enqueuer, logger *slog.Logger) *Observer {
	return &Observer{enqueuer: enqueuer, logger: logger}
}

// Observe enqueues the entry for background persistence.
func (o *Observer) Observe(ctx context.Context, entry Entry) {
	if o == nil || o.enqueuer == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		o.logger.Warn("audit observe: marshal", slog.Any("error", err))
		return
	}
	task := asynq.NewTask(TaskTypeObserve, payload, asynq.MaxRetry(5), asynq.Timeout(10*time.Second))
	if _, err := o.enqueuer.EnqueueContext(ctx, task); err != nil {
		o.logger.Warn("audit observe: enqueue", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

// NewObserveHandler returns the worker-side handler that drains observed
// entries into audit_logs.
func NewObserveHandler(pool *pgxpool.Pool) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var entry Entry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			return asynq.SkipRetry
		}
		var meta []byte
		if entry.Meta != nil {
			meta, _ = json.Marshal(entry.Meta)
		}
		_, err := pool.Exec(ctx, `INSERT INTO audit_logs (location_id, actor_id, action, entity, entity_id, description, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.LocationID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.Description, meta, entry.CreatedAt)
		return err
	}
}
