package cashsession

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/platform/db"
)

// CashTotals sums the CASH ledger entries bound to a session.
type CashTotals struct {
	In  int64
	Out int64
}

// Repository persists cash sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	FindOpenByCashier(ctx context.Context, locationID, cashierID int64) (Session, error)
	InsertSession(ctx context.Context, s Session) (int64, error)
	GetSessionForUpdate(ctx context.Context, locationID, sessionID int64) (Session, error)
	CloseSession(ctx context.Context, sessionID int64, expected, counted, variance int64, note *string, closedAt time.Time) error
	SessionCashTotals(ctx context.Context, sessionID int64) (CashTotals, error)
	ledger.EntryTx
	audit.TxWriter
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("cashsession repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const sessionColumns = `id, location_id, cashier_id, status, opening_float, expected_cash, counted_cash, variance, note, opened_at, closed_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.LocationID, &s.CashierID, &s.Status, &s.OpeningFloat, &s.ExpectedCash, &s.CountedCash, &s.Variance, &s.Note, &s.OpenedAt, &s.ClosedAt)
	return s, err
}

// Get loads a session scoped by location.
func (r *Repository) Get(ctx context.Context, locationID, sessionID int64) (Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_sessions WHERE id=$1 AND location_id=$2`, sessionID, locationID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound.With("session_id", sessionID)
	}
	return s, err
}

// FindOpen returns the cashier's open session, if any.
func (r *Repository) FindOpen(ctx context.Context, locationID, cashierID int64) (Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_sessions
WHERE location_id=$1 AND cashier_id=$2 AND status='OPEN' ORDER BY id DESC LIMIT 1`, locationID, cashierID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ledger.ErrNoOpenSession
	}
	return s, err
}

func (r *txRepository) FindOpenByCashier(ctx context.Context, locationID, cashierID int64) (Session, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_sessions
WHERE location_id=$1 AND cashier_id=$2 AND status='OPEN' ORDER BY id DESC LIMIT 1 FOR UPDATE`, locationID, cashierID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ledger.ErrNoOpenSession
	}
	return s, err
}

func (r *txRepository) InsertSession(ctx context.Context, s Session) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cash_sessions (location_id, cashier_id, status, opening_float, note, opened_at)
VALUES ($1, $2, 'OPEN', $3, $4, $5) RETURNING id`,
		s.LocationID, s.CashierID, s.OpeningFloat, s.Note, s.OpenedAt).Scan(&id)
	return id, err
}

func (r *txRepository) GetSessionForUpdate(ctx context.Context, locationID, sessionID int64) (Session, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_sessions WHERE id=$1 AND location_id=$2 FOR UPDATE`, sessionID, locationID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound.With("session_id", sessionID)
	}
	return s, err
}

func (r *txRepository) CloseSession(ctx context.Context, sessionID int64, expected, counted, variance int64, note *string, closedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE cash_sessions
SET status='CLOSED', expected_cash=$1, counted_cash=$2, variance=$3, note=COALESCE($4, note), closed_at=$5
WHERE id=$6`, expected, counted, variance, note, closedAt, sessionID)
	return err
}

func (r *txRepository) SessionCashTotals(ctx context.Context, sessionID int64) (CashTotals, error) {
	var totals CashTotals
	err := r.tx.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE direction='IN'), 0),
COALESCE(SUM(amount) FILTER (WHERE direction='OUT'), 0)
FROM cash_ledger WHERE cash_session_id=$1 AND method='CASH'`, sessionID).Scan(&totals.In, &totals.Out)
	return totals, err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	return ledger.InsertEntry(ctx, r.tx, entry)
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	return audit.Insert(ctx, r.tx, entry)
}
