package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/cashsession"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/platform/db"
	"github.com/opentill/opentill/internal/sales"
)

// Repository persists credits in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row operations the credit workflows need in one
// transaction.
type TxRepository interface {
	GetSaleForUpdate(ctx context.Context, locationID, saleID int64) (sales.Sale, error)
	FindCreditBySale(ctx context.Context, saleID int64) (Credit, error)
	InsertCredit(ctx context.Context, c Credit) (int64, error)
	GetCreditForUpdate(ctx context.Context, locationID, creditID int64) (Credit, error)
	DecideCredit(ctx context.Context, creditID int64, status Status, approvedBy int64, approvedAt time.Time, note *string) error
	SettleCredit(ctx context.Context, creditID, settledBy int64, settledAt time.Time, note *string) error
	SaleHasPayment(ctx context.Context, saleID int64) (bool, error)
	CompleteSale(ctx context.Context, saleID int64) error
	FindOpenSession(ctx context.Context, locationID, cashierID int64) (cashsession.Session, error)
	ledger.EntryTx
	audit.TxWriter
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("credit repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const creditColumns = `id, location_id, sale_id, created_by, customer_name, customer_phone, amount, status, approved_by, approved_at, decision_note, settled_by, settled_at, settlement_note, due_date, note, created_at`

func scanCredit(row pgx.Row) (Credit, error) {
	var c Credit
	err := row.Scan(&c.ID, &c.LocationID, &c.SaleID, &c.CreatedBy, &c.CustomerName, &c.CustomerPhone,
		&c.Amount, &c.Status, &c.ApprovedBy, &c.ApprovedAt, &c.DecisionNote,
		&c.SettledBy, &c.SettledAt, &c.SettlementNote, &c.DueDate, &c.Note, &c.CreatedAt)
	return c, err
}

// Get loads a credit scoped by location.
func (r *Repository) Get(ctx context.Context, locationID, creditID int64) (Credit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE id=$1 AND location_id=$2`, creditID, locationID)
	c, err := scanCredit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credit{}, ErrNotFound.With("credit_id", creditID)
	}
	return c, err
}

// List returns credits newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, locationID int64, filter ListFilter) ([]Credit, int64, error) {
	query := `SELECT ` + creditColumns + ` FROM credits WHERE location_id=$1`
	args := []any{locationID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.Page.Cursor != 0 {
		args = append(args, filter.Page.Cursor)
		query += fmt.Sprintf(" AND id<$%d", len(args))
	}
	page := filter.Page.Clamp(50, 200)
	args = append(args, page.Limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var credits []Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, 0, err
		}
		credits = append(credits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var nextCursor int64
	if len(credits) == page.Limit {
		nextCursor = credits[len(credits)-1].ID
	}
	return credits, nextCursor, nil
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, locationID, saleID int64) (sales.Sale, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, location_id, seller_id, status, payment_method, total
FROM sales WHERE id=$1 AND location_id=$2 FOR UPDATE`, saleID, locationID)
	var s sales.Sale
	err := row.Scan(&s.ID, &s.LocationID, &s.SellerID, &s.Status, &s.PaymentMethod, &s.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return sales.Sale{}, sales.ErrNotFound.With("sale_id", saleID)
	}
	return s, err
}

func (r *txRepository) FindCreditBySale(ctx context.Context, saleID int64) (Credit, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE sale_id=$1 AND status<>'REJECTED' FOR UPDATE`, saleID)
	c, err := scanCredit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credit{}, ErrNotFound.With("sale_id", saleID)
	}
	return c, err
}

func (r *txRepository) InsertCredit(ctx context.Context, c Credit) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO credits (location_id, sale_id, created_by, customer_name, customer_phone, amount, status, due_date, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		c.LocationID, c.SaleID, c.CreatedBy, c.CustomerName, c.CustomerPhone, c.Amount, c.Status, c.DueDate, c.Note, c.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) GetCreditForUpdate(ctx context.Context, locationID, creditID int64) (Credit, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE id=$1 AND location_id=$2 FOR UPDATE`, creditID, locationID)
	c, err := scanCredit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credit{}, ErrNotFound.With("credit_id", creditID)
	}
	return c, err
}

func (r *txRepository) DecideCredit(ctx context.Context, creditID int64, status Status, approvedBy int64, approvedAt time.Time, note *string) error {
	_, err := r.tx.Exec(ctx, `UPDATE credits SET status=$1, approved_by=$2, approved_at=$3, decision_note=$4 WHERE id=$5`,
		status, approvedBy, approvedAt, note, creditID)
	return err
}

func (r *txRepository) SettleCredit(ctx context.Context, creditID, settledBy int64, settledAt time.Time, note *string) error {
	_, err := r.tx.Exec(ctx, `UPDATE credits SET status='SETTLED', settled_by=$1, settled_at=$2, settlement_note=$3 WHERE id=$4`,
		settledBy, settledAt, note, creditID)
	return err
}

func (r *txRepository) SaleHasPayment(ctx context.Context, saleID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE sale_id=$1)`, saleID).Scan(&exists)
	return exists, err
}

func (r *txRepository) CompleteSale(ctx context.Context, saleID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET status=$1, updated_at=NOW() WHERE id=$2`, sales.StatusCompleted, saleID)
	return err
}

func (r *txRepository) FindOpenSession(ctx context.Context, locationID, cashierID int64) (cashsession.Session, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, location_id, cashier_id, status, opening_float, expected_cash, counted_cash, variance, note, opened_at, closed_at
FROM cash_sessions WHERE location_id=$1 AND cashier_id=$2 AND status='OPEN' ORDER BY id DESC LIMIT 1`, locationID, cashierID)
	var s cashsession.Session
	err := row.Scan(&s.ID, &s.LocationID, &s.CashierID, &s.Status, &s.OpeningFloat, &s.ExpectedCash, &s.CountedCash, &s.Variance, &s.Note, &s.OpenedAt, &s.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return cashsession.Session{}, ledger.ErrNoOpenSession
	}
	return s, err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	return ledger.InsertEntry(ctx, r.tx, entry)
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	return audit.Insert(ctx, r.tx, entry)
}
