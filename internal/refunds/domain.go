// Package refunds reverses completed sales: stock back on the shelf, cash
// back out of the drawer, sale terminally REFUNDED. Partial refunds are not
// supported; the refund amount is always the sale total.
package refunds

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// Refund is one refund row.
type Refund struct {
	ID            int64     `json:"id"`
	LocationID    int64     `json:"location_id"`
	SaleID        int64     `json:"sale_id"`
	CashierID     int64     `json:"cashier_id"`
	CashSessionID *int64    `json:"cash_session_id,omitempty"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Reason        *string   `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateRequest refunds a completed sale in full.
type CreateRequest struct {
	SaleID int64   `json:"sale_id" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required,oneof=CASH MOMO BANK"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ListFilter narrows refund listings.
type ListFilter struct {
	Page shared.CursorPage
}

var (
	ErrNotFound        = shared.NewError(shared.KindNotFound, "refund not found")
	ErrAlreadyRefunded = shared.NewError(shared.KindAlreadyRefunded, "sale already refunded")
)
