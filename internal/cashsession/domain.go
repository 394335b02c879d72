// Package cashsession tracks cashier drawer sessions. Money-moving
// operations bind their ledger entries to the open session of the acting
// cashier.
package cashsession

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// Status of a drawer session.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Session is one cashier working period at a location.
type Session struct {
	ID           int64      `json:"id"`
	LocationID   int64      `json:"location_id"`
	CashierID    int64      `json:"cashier_id"`
	Status       Status     `json:"status"`
	OpeningFloat int64      `json:"opening_float"`
	ExpectedCash *int64     `json:"expected_cash,omitempty"`
	CountedCash  *int64     `json:"counted_cash,omitempty"`
	Variance     *int64     `json:"variance,omitempty"`
	Note         *string    `json:"note,omitempty"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// OpenRequest starts a new session with an opening cash float.
type OpenRequest struct {
	OpeningFloat int64   `json:"opening_float" validate:"gte=0"`
	Note         *string `json:"note,omitempty" validate:"omitempty,max=200"`
}

// ReconcileRequest closes the session against a physical cash count.
type ReconcileRequest struct {
	CountedCash int64   `json:"counted_cash" validate:"gte=0"`
	Note        *string `json:"note,omitempty" validate:"omitempty,max=200"`
}

// ErrSessionAlreadyOpen rejects a second concurrent session per cashier.
var ErrSessionAlreadyOpen = shared.NewError(shared.KindConflict, "cash session already open")

// ErrNotFound indicates a missing session.
var ErrNotFound = shared.NewError(shared.KindNotFound, "cash session not found")

// ErrNotOpen rejects reconciliation of a closed session.
var ErrNotOpen = shared.NewError(shared.KindBadStatus, "cash session is not open")
