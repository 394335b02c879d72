package refunds

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/cashsession"
	"github.com/opentill/opentill/internal/inventory"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/platform/db"
	"github.com/opentill/opentill/internal/sales"
)

// Repository persists refunds in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row operations a refund needs in one transaction:
// the sale lock, its items for the stock restore, the refund insert, the
// ledger entry and the audit trail.
type TxRepository interface {
	GetSaleForUpdate(ctx context.Context, locationID, saleID int64) (sales.Sale, error)
	GetSaleItems(ctx context.Context, saleID int64) ([]sales.Item, error)
	FindRefundBySale(ctx context.Context, saleID int64) (Refund, error)
	InsertRefund(ctx context.Context, rf Refund) (int64, error)
	MarkSaleRefunded(ctx context.Context, saleID int64) error
	FindOpenSession(ctx context.Context, locationID, cashierID int64) (cashsession.Session, error)
	inventory.BalanceTx
	ledger.EntryTx
	audit.TxWriter
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("refunds repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const refundColumns = `id, location_id, sale_id, cashier_id, cash_session_id, amount, method, reason, created_at`

func scanRefund(row pgx.Row) (Refund, error) {
	var rf Refund
	err := row.Scan(&rf.ID, &rf.LocationID, &rf.SaleID, &rf.CashierID, &rf.CashSessionID, &rf.Amount, &rf.Method, &rf.Reason, &rf.CreatedAt)
	return rf, err
}

// Get loads a refund scoped by location.
func (r *Repository) Get(ctx context.Context, locationID, refundID int64) (Refund, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id=$1 AND location_id=$2`, refundID, locationID)
	rf, err := scanRefund(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Refund{}, ErrNotFound.With("refund_id", refundID)
	}
	return rf, err
}

// List returns refunds newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, locationID int64, filter ListFilter) ([]Refund, int64, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE location_id=$1`
	args := []any{locationID}
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
	var refunds []Refund
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, 0, err
		}
		refunds = append(refunds, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var nextCursor int64
	if len(refunds) == page.Limit {
		nextCursor = refunds[len(refunds)-1].ID
	}
	return refunds, nextCursor, nil
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

func (r *txRepository) GetSaleItems(ctx context.Context, saleID int64) ([]sales.Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, sale_id, product_id, product_name, qty, unit_price, discount_percent, discount_amount, discount_total, line_total
FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []sales.Item
	for rows.Next() {
		var it sales.Item
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Qty,
			&it.UnitPrice, &it.DiscountPercent, &it.DiscountAmount, &it.DiscountTotal, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *txRepository) FindRefundBySale(ctx context.Context, saleID int64) (Refund, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE sale_id=$1 FOR UPDATE`, saleID)
	rf, err := scanRefund(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Refund{}, ErrNotFound.With("sale_id", saleID)
	}
	return rf, err
}

func (r *txRepository) InsertRefund(ctx context.Context, rf Refund) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO refunds (location_id, sale_id, cashier_id, cash_session_id, amount, method, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		rf.LocationID, rf.SaleID, rf.CashierID, rf.CashSessionID, rf.Amount, rf.Method, rf.Reason, rf.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) MarkSaleRefunded(ctx context.Context, saleID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET status=$1, updated_at=NOW() WHERE id=$2`, sales.StatusRefunded, saleID)
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

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, locationID, productID int64) (inventory.Balance, error) {
	row := r.tx.QueryRow(ctx, `SELECT location_id, product_id, qty_on_hand, updated_at
FROM inventory_balances WHERE location_id=$1 AND product_id=$2 FOR UPDATE`, locationID, productID)
	var b inventory.Balance
	err := row.Scan(&b.LocationID, &b.ProductID, &b.QtyOnHand, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Balance{}, inventory.ErrBalanceNotFound
	}
	return b, err
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance inventory.Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_balances (location_id, product_id, qty_on_hand, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (location_id, product_id) DO UPDATE SET qty_on_hand=EXCLUDED.qty_on_hand, updated_at=EXCLUDED.updated_at`,
		balance.LocationID, balance.ProductID, balance.QtyOnHand, balance.UpdatedAt)
	return err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	return ledger.InsertEntry(ctx, r.tx, entry)
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	return audit.Insert(ctx, r.tx, entry)
}
