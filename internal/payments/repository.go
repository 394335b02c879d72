package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/platform/db"
	"github.com/opentill/opentill/internal/sales"
)

// Repository persists payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row operations payment posting needs in one
// transaction: the sale lock and status flip, the payment insert, the drawer
// session check, the ledger entry and the audit trail.
type TxRepository interface {
	GetSaleForUpdate(ctx context.Context, locationID, saleID int64) (sales.Sale, error)
	FindPaymentBySale(ctx context.Context, saleID int64) (Payment, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	CompleteSale(ctx context.Context, saleID int64) error
	SessionIsOpen(ctx context.Context, locationID, cashierID, sessionID int64) (bool, error)
	ledger.EntryTx
	audit.TxWriter
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("payments repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const paymentColumns = `id, sale_id, location_id, cashier_id, cash_session_id, amount, method, reference, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.SaleID, &p.LocationID, &p.CashierID, &p.CashSessionID, &p.Amount, &p.Method, &p.Reference, &p.CreatedAt)
	return p, err
}

// Get loads a payment scoped by location.
func (r *Repository) Get(ctx context.Context, locationID, paymentID int64) (Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 AND location_id=$2`, paymentID, locationID)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound.With("payment_id", paymentID)
	}
	return p, err
}

// GetBySale loads the payment attached to a sale.
func (r *Repository) GetBySale(ctx context.Context, locationID, saleID int64) (Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE sale_id=$1 AND location_id=$2`, saleID, locationID)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound.With("sale_id", saleID)
	}
	return p, err
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

func (r *txRepository) FindPaymentBySale(ctx context.Context, saleID int64) (Payment, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE sale_id=$1 FOR UPDATE`, saleID)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound.With("sale_id", saleID)
	}
	return p, err
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (sale_id, location_id, cashier_id, cash_session_id, amount, method, reference, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.SaleID, p.LocationID, p.CashierID, p.CashSessionID, p.Amount, p.Method, p.Reference, p.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) CompleteSale(ctx context.Context, saleID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET status=$1, updated_at=NOW() WHERE id=$2`, sales.StatusCompleted, saleID)
	return err
}

func (r *txRepository) SessionIsOpen(ctx context.Context, locationID, cashierID, sessionID int64) (bool, error) {
	var open bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cash_sessions WHERE id=$1 AND location_id=$2 AND cashier_id=$3 AND status='OPEN')`,
		sessionID, locationID, cashierID).Scan(&open)
	return open, err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	return ledger.InsertEntry(ctx, r.tx, entry)
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	return audit.Insert(ctx, r.tx, entry)
}
