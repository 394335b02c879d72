// Package payments posts payments against sales awaiting payment record.
// A sale takes exactly one payment; the unique index on payments.sale_id
// backs the in-transaction check.
package payments

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// Payment is one posted payment row.
type Payment struct {
	ID            int64     `json:"id"`
	SaleID        int64     `json:"sale_id"`
	LocationID    int64     `json:"location_id"`
	CashierID     int64     `json:"cashier_id"`
	CashSessionID *int64    `json:"cash_session_id,omitempty"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Reference     *string   `json:"reference,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecordRequest posts a payment for a sale. The amount must match the sale
// total exactly; partial payment is not supported. Every payment, whatever
// the method, is taken at an open drawer session owned by the cashier.
type RecordRequest struct {
	SaleID        int64   `json:"sale_id" validate:"required,gt=0"`
	Amount        int64   `json:"amount" validate:"required,gt=0"`
	Method        string  `json:"method" validate:"required,oneof=CASH MOMO BANK"`
	CashSessionID int64   `json:"cash_session_id" validate:"required,gt=0"`
	Reference     *string `json:"reference,omitempty" validate:"omitempty,max=120"`
}

var (
	ErrNotFound         = shared.NewError(shared.KindNotFound, "payment not found")
	ErrDuplicatePayment = shared.NewError(shared.KindDuplicatePayment, "sale already has a payment")
	ErrAmountMismatch   = shared.NewError(shared.KindBadAmount, "payment amount must equal the sale total")
)
