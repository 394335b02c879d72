package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/platform/db"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertProduct(ctx context.Context, p Product) (int64, error)
	GetProductForUpdate(ctx context.Context, locationID, productID int64) (Product, error)
	UpdatePricing(ctx context.Context, locationID, productID int64, costPrice, sellingPrice int64, maxDiscountPercent float64) error
	EnsureBalance(ctx context.Context, locationID, productID int64) error
	audit.TxWriter
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const productColumns = `id, location_id, name, sku, unit, selling_price, cost_price, max_discount_percent, is_active, notes, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.LocationID, &p.Name, &p.SKU, &p.Unit, &p.SellingPrice, &p.CostPrice, &p.MaxDiscountPercent, &p.IsActive, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Get loads a single product scoped by location.
func (r *Repository) Get(ctx context.Context, locationID, productID int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND location_id=$2`, productID, locationID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound.With("product_id", productID)
	}
	return p, err
}

// List returns all products for a location, newest first.
func (r *Repository) List(ctx context.Context, locationID int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE location_id=$1 ORDER BY id DESC`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *txRepository) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO products (location_id, name, sku, unit, selling_price, cost_price, max_discount_percent, is_active, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, NOW(), NOW()) RETURNING id`,
		p.LocationID, p.Name, p.SKU, p.Unit, p.SellingPrice, p.CostPrice, p.MaxDiscountPercent, p.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, locationID, productID int64) (Product, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND location_id=$2 FOR UPDATE`, productID, locationID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound.With("product_id", productID)
	}
	return p, err
}

func (r *txRepository) UpdatePricing(ctx context.Context, locationID, productID int64, costPrice, sellingPrice int64, maxDiscountPercent float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET cost_price=$1, selling_price=$2, max_discount_percent=$3, updated_at=NOW() WHERE id=$4 AND location_id=$5`,
		costPrice, sellingPrice, maxDiscountPercent, productID, locationID)
	return err
}

func (r *txRepository) EnsureBalance(ctx context.Context, locationID, productID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_balances (location_id, product_id, qty_on_hand, updated_at)
VALUES ($1, $2, 0, NOW()) ON CONFLICT (location_id, product_id) DO NOTHING`, locationID, productID)
	return err
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	return audit.Insert(ctx, r.tx, entry)
}
