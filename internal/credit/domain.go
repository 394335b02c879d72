// Package credit manages store credit: a pending sale is handed to a named
// customer, approved by a manager and later settled for the full amount,
// which completes the underlying sale.
package credit

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// Status of a credit.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusSettled  Status = "SETTLED"
)

// Credit is one store-credit row. Amount is copied from the sale total at
// issuance.
type Credit struct {
	ID             int64      `json:"id"`
	LocationID     int64      `json:"location_id"`
	SaleID         int64      `json:"sale_id"`
	CreatedBy      int64      `json:"created_by"`
	CustomerName   string     `json:"customer_name"`
	CustomerPhone  *string    `json:"customer_phone,omitempty"`
	Amount         int64      `json:"amount"`
	Status         Status     `json:"status"`
	ApprovedBy     *int64     `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	DecisionNote   *string    `json:"decision_note,omitempty"`
	SettledBy      *int64     `json:"settled_by,omitempty"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
	SettlementNote *string    `json:"settlement_note,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Note           *string    `json:"note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateRequest issues credit against a pending sale.
type CreateRequest struct {
	SaleID        int64      `json:"sale_id" validate:"required,gt=0"`
	CustomerName  string     `json:"customer_name" validate:"required,max=200"`
	CustomerPhone *string    `json:"customer_phone,omitempty" validate:"omitempty,max=30"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Note          *string    `json:"note,omitempty" validate:"omitempty,max=500"`
}

// DecideRequest approves or rejects an open credit.
type DecideRequest struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// SettleRequest pays an approved credit off in full.
type SettleRequest struct {
	Method    string  `json:"method" validate:"required,oneof=CASH MOMO BANK"`
	Reference *string `json:"reference,omitempty" validate:"omitempty,max=120"`
	Note      *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ListFilter narrows credit listings.
type ListFilter struct {
	Status Status
	Page   shared.CursorPage
}

var (
	ErrNotFound        = shared.NewError(shared.KindNotFound, "credit not found")
	ErrDuplicateCredit = shared.NewError(shared.KindDuplicateCredit, "sale already has a credit")
	ErrNotApproved     = shared.NewError(shared.KindNotApproved, "credit is not approved")
	ErrNotOpen         = shared.NewError(shared.KindBadStatus, "credit is not open")
	ErrAlreadySettled  = shared.NewError(shared.KindBadStatus, "credit already settled")
)
