package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/catalog"
	"github.com/opentill/opentill/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	BalanceTx
	GetProduct(ctx context.Context, locationID, productID int64) (catalog.Product, error)
	audit.TxWriter
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListBalances returns product/balance pairs for the location.
func (r *Repository) ListBalances(ctx context.Context, locationID int64) ([]BalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.name, p.sku, p.unit, p.selling_price, p.max_discount_percent,
COALESCE(b.qty_on_hand, 0), b.updated_at
FROM products p
LEFT JOIN inventory_balances b ON b.product_id = p.id AND b.location_id = p.location_id
WHERE p.location_id = $1
ORDER BY p.id DESC`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BalanceRow{}
	for rows.Next() {
		var row BalanceRow
		if err := rows.Scan(&row.ProductID, &row.Name, &row.SKU, &row.Unit, &row.SellingPrice, &row.MaxDiscountPercent, &row.QtyOnHand, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, locationID, productID int64) (Balance, error) {
	var b Balance
	err := r.tx.QueryRow(ctx, `SELECT location_id, product_id, qty_on_hand, updated_at FROM inventory_balances
WHERE location_id=$1 AND product_id=$2 FOR UPDATE`, locationID, productID).
		Scan(&b.LocationID, &b.ProductID, &b.QtyOnHand, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{LocationID: locationID, ProductID: productID}, ErrBalanceNotFound
	}
	return b, err
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_balances (location_id, product_id, qty_on_hand, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (location_id, product_id) DO UPDATE SET qty_on_hand=EXCLUDED.qty_on_hand, updated_at=EXCLUDED.updated_at`,
		balance.LocationID, balance.ProductID, balance.QtyOnHand, balance.UpdatedAt)
	return err
}

func (r *txRepository) GetProduct(ctx context.Context, locationID, productID int64) (catalog.Product, error) {
	var p catalog.Product
	err := r.tx.QueryRow(ctx, `SELECT id, location_id, name, selling_price, max_discount_percent FROM products
WHERE id=$1 AND location_id=$2`, productID, locationID).
		Scan(&p.ID, &p.LocationID, &p.Name, &p.SellingPrice, &p.MaxDiscountPercent)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrProductNotFound.With("product_id", productID)
	}
	return p, err
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	return audit.Insert(ctx, r.tx, entry)
}
