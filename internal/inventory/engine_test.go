package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/catalog"
	"github.com/opentill/opentill/internal/shared"
)

type memoryRepo struct {
	products map[int64]catalog.Product
	balances map[string]Balance
	audits   []audit.Entry
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[int64]catalog.Product),
		balances: make(map[string]Balance),
	}
}

func balanceKey(locationID, productID int64) string {
	return fmt.Sprintf("%d:%d", locationID, productID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListBalances(ctx context.Context, locationID int64) ([]BalanceRow, error) {
	return nil, nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, locationID, productID int64) (Balance, error) {
	if bal, ok := tx.repo.balances[balanceKey(locationID, productID)]; ok {
		return bal, nil
	}
	return Balance{LocationID: locationID, ProductID: productID}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.repo.balances[balanceKey(balance.LocationID, balance.ProductID)] = balance
	return nil
}

func (tx *memoryTx) GetProduct(ctx context.Context, locationID, productID int64) (catalog.Product, error) {
	if p, ok := tx.repo.products[productID]; ok && p.LocationID == locationID {
		return p, nil
	}
	return catalog.Product{}, catalog.ErrProductNotFound.With("product_id", productID)
}

func (tx *memoryTx) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	tx.repo.audits = append(tx.repo.audits, entry)
	return nil
}

func TestApplyDeltaCreatesRowLazily(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	var balance Balance
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		balance, err = ApplyDelta(ctx, tx, 1, 7, 10)
		return err
	})
	require.NoError(t, err)
	require.EqualValues(t, 10, balance.QtyOnHand)
}

func TestApplyDeltaRejectsNegativeResult(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := ApplyDelta(ctx, tx, 1, 7, 5); err != nil {
			return err
		}
		_, err := ApplyDelta(ctx, tx, 1, 7, -6)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	// The failing debit must leave the balance unchanged.
	require.EqualValues(t, 5, repo.balances[balanceKey(1, 7)].QtyOnHand)
}

func TestAdjustUnknownProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	actor := shared.Principal{ID: 2, Role: shared.RoleStoreKeeper, LocationID: 1}

	_, err := svc.Adjust(context.Background(), actor, AdjustRequest{ProductID: 99, QtyChange: 5})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestAdjustWritesAuditKeyedByProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[7] = catalog.Product{ID: 7, LocationID: 1, Name: "Sugar 1kg", SellingPrice: 1000}
	svc := NewService(repo)
	actor := shared.Principal{ID: 2, Role: shared.RoleStoreKeeper, LocationID: 1}

	result, err := svc.Adjust(context.Background(), actor, AdjustRequest{ProductID: 7, QtyChange: 12, Reason: "arrival"})
	require.NoError(t, err)
	require.EqualValues(t, 12, result.NewQtyOnHand)

	require.Len(t, repo.audits, 1)
	require.Equal(t, "INVENTORY_ADJUST", repo.audits[0].Action)
	require.EqualValues(t, 7, repo.audits[0].EntityID)
}

func TestAdjustSequenceNeverGoesNegative(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[3] = catalog.Product{ID: 3, LocationID: 1, Name: "Rice 5kg"}
	svc := NewService(repo)
	actor := shared.Principal{ID: 2, Role: shared.RoleStoreKeeper, LocationID: 1}
	ctx := context.Background()

	for _, delta := range []int64{4, -3, 2, -3} {
		res, err := svc.Adjust(ctx, actor, AdjustRequest{ProductID: 3, QtyChange: delta})
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.NewQtyOnHand, int64(0))
	}

	_, err := svc.Adjust(ctx, actor, AdjustRequest{ProductID: 3, QtyChange: -1})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.EqualValues(t, 0, repo.balances[balanceKey(1, 3)].QtyOnHand)
}
