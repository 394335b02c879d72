package inventory

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// Balance summarises stock on hand per (location, product). The row is
// created lazily on first adjustment; qty_on_hand never goes negative.
type Balance struct {
	LocationID int64     `json:"location_id"`
	ProductID  int64     `json:"product_id"`
	QtyOnHand  int64     `json:"qty_on_hand"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AdjustRequest describes a manual stock adjustment.
type AdjustRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	QtyChange int64  `json:"qty_change" validate:"required"`
	Reason    string `json:"reason" validate:"omitempty,max=200"`
}

// AdjustResult reports the balance after an adjustment.
type AdjustResult struct {
	ProductID    int64 `json:"product_id"`
	NewQtyOnHand int64 `json:"new_qty_on_hand"`
}

// ErrInsufficientStock is returned when a debit would drive the balance
// negative.
var ErrInsufficientStock = shared.NewError(shared.KindInsufficientStock, "insufficient stock")

// ErrInvalidQuantity indicates a zero quantity change.
var ErrInvalidQuantity = shared.NewError(shared.KindBadQty, "quantity change must be non zero")
