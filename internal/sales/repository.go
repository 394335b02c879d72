package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/catalog"
	"github.com/opentill/opentill/internal/inventory"
	"github.com/opentill/opentill/internal/platform/db"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row operations the sale workflows need within one
// transaction. Embedding the inventory and audit surfaces keeps stock moves
// and trail entries atomic with the status change.
type TxRepository interface {
	GetProducts(ctx context.Context, locationID int64, productIDs []int64) (map[int64]catalog.Product, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertItems(ctx context.Context, saleID int64, items []Item) error
	GetSaleForUpdate(ctx context.Context, locationID, saleID int64) (Sale, error)
	GetItems(ctx context.Context, saleID int64) ([]Item, error)
	UpdateSaleStatus(ctx context.Context, saleID int64, status Status, patch statusPatch) error
	inventory.BalanceTx
	audit.TxWriter
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// statusPatch carries the columns a lifecycle transition may touch besides the
// status itself. Nil fields are left untouched; clearMethod wins over method.
type statusPatch struct {
	method       *string
	clearMethod  bool
	note         *string
	fulfilledAt  *time.Time
	canceledBy   *int64
	canceledAt   *time.Time
	cancelReason *string
}

const saleColumns = `id, location_id, seller_id, customer_id, customer_name, customer_phone, status, payment_method, sub_total, discount_percent, discount_amount, total, note, canceled_by, canceled_at, cancel_reason, created_at, updated_at, fulfilled_at`

const itemColumns = `id, sale_id, product_id, product_name, qty, unit_price, discount_percent, discount_amount, discount_total, line_total`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.LocationID, &s.SellerID, &s.CustomerID, &s.CustomerName, &s.CustomerPhone,
		&s.Status, &s.PaymentMethod, &s.SubTotal, &s.DiscountPercent, &s.DiscountAmount, &s.Total, &s.Note,
		&s.CanceledBy, &s.CanceledAt, &s.CancelReason, &s.CreatedAt, &s.UpdatedAt, &s.FulfilledAt)
	return s, err
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Qty,
			&it.UnitPrice, &it.DiscountPercent, &it.DiscountAmount, &it.DiscountTotal, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get loads a sale with its items.
func (r *Repository) Get(ctx context.Context, locationID, saleID int64) (Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 AND location_id=$2`, saleID, locationID)
	sale, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrNotFound.With("sale_id", saleID)
	}
	if err != nil {
		return Sale{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = scanItems(rows)
	return sale, err
}

// List returns sales newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, locationID int64, filter ListFilter) ([]Sale, int64, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE location_id=$1`
	args := []any{locationID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.SellerID != 0 {
		args = append(args, filter.SellerID)
		query += fmt.Sprintf(" AND seller_id=$%d", len(args))
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
	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var nextCursor int64
	if len(sales) == page.Limit {
		nextCursor = sales[len(sales)-1].ID
	}
	return sales, nextCursor, nil
}

func (r *txRepository) GetProducts(ctx context.Context, locationID int64, productIDs []int64) (map[int64]catalog.Product, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, location_id, name, sku, unit, selling_price, cost_price, max_discount_percent, is_active, notes, created_at, updated_at
FROM products WHERE location_id=$1 AND id=ANY($2)`, locationID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make(map[int64]catalog.Product, len(productIDs))
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.LocationID, &p.Name, &p.SKU, &p.Unit, &p.SellingPrice,
			&p.CostPrice, &p.MaxDiscountPercent, &p.IsActive, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (location_id, seller_id, customer_id, customer_name, customer_phone, status, payment_method, sub_total, discount_percent, discount_amount, total, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13) RETURNING id`,
		sale.LocationID, sale.SellerID, sale.CustomerID, sale.CustomerName, sale.CustomerPhone,
		sale.Status, sale.PaymentMethod, sale.SubTotal, sale.DiscountPercent, sale.DiscountAmount,
		sale.Total, sale.Note, sale.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItems(ctx context.Context, saleID int64, items []Item) error {
	for _, it := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO sale_items (sale_id, product_id, product_name, qty, unit_price, discount_percent, discount_amount, discount_total, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			saleID, it.ProductID, it.ProductName, it.Qty, it.UnitPrice,
			it.DiscountPercent, it.DiscountAmount, it.DiscountTotal, it.LineTotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, locationID, saleID int64) (Sale, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 AND location_id=$2 FOR UPDATE`, saleID, locationID)
	sale, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrNotFound.With("sale_id", saleID)
	}
	return sale, err
}

func (r *txRepository) GetItems(ctx context.Context, saleID int64) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (r *txRepository) UpdateSaleStatus(ctx context.Context, saleID int64, status Status, patch statusPatch) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales
SET status=$1,
    payment_method=CASE WHEN $2 THEN NULL ELSE COALESCE($3, payment_method) END,
    note=COALESCE($4, note),
    fulfilled_at=COALESCE($5, fulfilled_at),
    canceled_by=COALESCE($6, canceled_by),
    canceled_at=COALESCE($7, canceled_at),
    cancel_reason=COALESCE($8, cancel_reason),
    updated_at=NOW()
WHERE id=$9`, status, patch.clearMethod, patch.method, patch.note, patch.fulfilledAt,
		patch.canceledBy, patch.canceledAt, patch.cancelReason, saleID)
	return err
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

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	return audit.Insert(ctx, r.tx, entry)
}
