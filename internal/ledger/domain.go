// Package ledger owns the append-only cash ledger. Entries are never updated
// or deleted; the ledger is the source of truth for cash reconciliation.
package ledger

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// EntryType enumerates cash movement categories.
type EntryType string

const (
	TypeSalePayment      EntryType = "SALE_PAYMENT"
	TypeRefund           EntryType = "REFUND"
	TypeCreditSettlement EntryType = "CREDIT_SETTLEMENT"
	TypePettyCashIn      EntryType = "PETTY_CASH_IN"
	TypePettyCashOut     EntryType = "PETTY_CASH_OUT"
	TypeOpeningBalance   EntryType = "OPENING_BALANCE"
	TypeVersement        EntryType = "VERSEMENT"
)

// Direction tags an entry as money in or out of the drawer.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Payment methods accepted on ledger entries.
const (
	MethodCash  = "CASH"
	MethodMomo  = "MOMO"
	MethodCard  = "CARD"
	MethodBank  = "BANK"
	MethodOther = "OTHER"
)

// Entry is one append-only cash_ledger row.
type Entry struct {
	ID            int64     `json:"id"`
	LocationID    int64     `json:"location_id"`
	CashierID     int64     `json:"cashier_id"`
	CashSessionID *int64    `json:"cash_session_id,omitempty"`
	Type          EntryType `json:"type"`
	Direction     Direction `json:"direction"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Reference     *string   `json:"reference,omitempty"`
	SaleID        *int64    `json:"sale_id,omitempty"`
	PaymentID     *int64    `json:"payment_id,omitempty"`
	Note          *string   `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PettyCashRequest moves small cash in or out of an open drawer session.
type PettyCashRequest struct {
	Direction Direction `json:"direction" validate:"required,oneof=IN OUT"`
	Amount    int64     `json:"amount" validate:"required,gt=0"`
	Note      *string   `json:"note,omitempty" validate:"omitempty,max=200"`
}

// VersementRequest records a cash drop from the drawer to the safe or bank.
type VersementRequest struct {
	Amount    int64   `json:"amount" validate:"required,gt=0"`
	Reference *string `json:"reference,omitempty" validate:"omitempty,max=120"`
	Note      *string `json:"note,omitempty" validate:"omitempty,max=200"`
}

// ListFilter narrows ledger listings.
type ListFilter struct {
	Type      EntryType
	Direction Direction
	SessionID int64
	Page      shared.CursorPage
}

// ErrNoOpenSession is returned when a cash movement has no open drawer
// session to bind to.
var ErrNoOpenSession = shared.NewError(shared.KindNoOpenSession, "no open cash session")

// CleanMethod normalises a payment method, defaulting to CASH.
func CleanMethod(method string) string {
	switch method {
	case MethodCash, MethodMomo, MethodCard, MethodBank, MethodOther:
		return method
	}
	return MethodCash
}
