package inventory

import (
	"context"
	"errors"
	"time"
)

// BalanceTx is the row surface the engine needs inside a transaction.
// Workflow TxRepositories (fulfillment, cancellation, refund) embed it so
// stock moves in the same unit of work as the status transition.
type BalanceTx interface {
	// GetBalanceForUpdate locks the balance row; ErrBalanceNotFound when the
	// row does not exist yet.
	GetBalanceForUpdate(ctx context.Context, locationID, productID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
}

// ErrBalanceNotFound indicates a missing balance row.
var ErrBalanceNotFound = errors.New("inventory balance not found")

// ApplyDelta reads the locked balance, applies the change and writes it back
// within the caller's transaction. A debit that would go negative fails with
// ErrInsufficientStock and leaves the balance untouched. The row is created
// at zero first when absent.
func ApplyDelta(ctx context.Context, tx BalanceTx, locationID, productID, delta int64) (Balance, error) {
	if delta == 0 {
		return Balance{}, ErrInvalidQuantity
	}
	balance, err := tx.GetBalanceForUpdate(ctx, locationID, productID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Balance{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = Balance{LocationID: locationID, ProductID: productID}
	}
	newQty := balance.QtyOnHand + delta
	if newQty < 0 {
		return Balance{}, ErrInsufficientStock.
			With("product_id", productID).
			With("available", balance.QtyOnHand).
			With("needed", -delta)
	}
	balance.QtyOnHand = newQty
	balance.UpdatedAt = time.Now().UTC()
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return Balance{}, err
	}
	return balance, nil
}
