package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/platform/db"
)

// EntryTx appends a ledger entry within the caller's unit of work. Payment,
// refund, credit and cash-session TxRepositories embed it.
type EntryTx interface {
	InsertLedgerEntry(ctx context.Context, entry Entry) (int64, error)
}

// InsertEntry writes the entry using the given transaction.
func InsertEntry(ctx context.Context, tx pgx.Tx, entry Entry) (int64, error) {
	if entry.Amount <= 0 {
		return 0, errors.New("ledger: amount must be positive")
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO cash_ledger (location_id, cashier_id, cash_session_id, type, direction, amount, method, reference, sale_id, payment_id, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		entry.LocationID, entry.CashierID, entry.CashSessionID, entry.Type, entry.Direction, entry.Amount,
		entry.Method, entry.Reference, entry.SaleID, entry.PaymentID, entry.Note, createdAt).Scan(&id)
	return id, err
}

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	EntryTx
	FindOpenSession(ctx context.Context, locationID, cashierID int64) (int64, error)
	audit.TxWriter
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const entryColumns = `id, location_id, cashier_id, cash_session_id, type, direction, amount, method, reference, sale_id, payment_id, note, created_at`

// List returns ledger entries for a location, id-descending with cursor
// pagination.
func (r *Repository) List(ctx context.Context, locationID int64, filter ListFilter) ([]Entry, int64, error) {
	query := `SELECT ` + entryColumns + ` FROM cash_ledger WHERE location_id=$1`
	args := []any{locationID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += ` AND type=$` + strconv.Itoa(len(args))
	}
	if filter.Direction != "" {
		args = append(args, filter.Direction)
		query += ` AND direction=$` + strconv.Itoa(len(args))
	}
	if filter.SessionID != 0 {
		args = append(args, filter.SessionID)
		query += ` AND cash_session_id=$` + strconv.Itoa(len(args))
	}
	if filter.Page.Cursor != 0 {
		args = append(args, filter.Page.Cursor)
		query += ` AND id<$` + strconv.Itoa(len(args))
	}
	page := filter.Page.Clamp(50, 200)
	args = append(args, page.Limit)
	query += ` ORDER BY id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.LocationID, &e.CashierID, &e.CashSessionID, &e.Type, &e.Direction, &e.Amount, &e.Method, &e.Reference, &e.SaleID, &e.PaymentID, &e.Note, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var nextCursor int64
	if len(entries) == page.Limit {
		nextCursor = entries[len(entries)-1].ID
	}
	return entries, nextCursor, nil
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry Entry) (int64, error) {
	return InsertEntry(ctx, r.tx, entry)
}

func (r *txRepository) FindOpenSession(ctx context.Context, locationID, cashierID int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM cash_sessions
WHERE location_id=$1 AND cashier_id=$2 AND status='OPEN'
ORDER BY id DESC LIMIT 1`, locationID, cashierID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoOpenSession
	}
	return id, err
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	return audit.Insert(ctx, r.tx, entry)
}
