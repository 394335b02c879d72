package sales

import "github.com/opentill/opentill/internal/shared"

// Event is a lifecycle trigger. Every status change in the system goes
// through Transition; there is no other way to move a sale.
type Event string

const (
	EventFulfill       Event = "FULFILL"
	EventMarkPaid      Event = "MARK_PAID"
	EventMarkPending   Event = "MARK_PENDING"
	EventCancel        Event = "CANCEL"
	EventRecordPayment Event = "RECORD_PAYMENT"
	EventSettleCredit  Event = "SETTLE_CREDIT"
	EventRefund        Event = "REFUND"
)

// transitions is the closed lifecycle table. Self-loops let a seller re-mark
// a sale to patch the declared payment method without changing state.
// CANCELLED and REFUNDED are terminal.
var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		EventFulfill: StatusFulfilled,
		EventCancel:  StatusCancelled,
	},
	StatusFulfilled: {
		EventMarkPaid:    StatusAwaitingPaymentRecord,
		EventMarkPending: StatusPending,
		EventCancel:      StatusCancelled,
	},
	StatusAwaitingPaymentRecord: {
		EventRecordPayment: StatusCompleted,
		EventMarkPaid:      StatusAwaitingPaymentRecord,
		EventMarkPending:   StatusPending,
		EventCancel:        StatusCancelled,
	},
	StatusPending: {
		EventMarkPaid:     StatusAwaitingPaymentRecord,
		EventMarkPending:  StatusPending,
		EventSettleCredit: StatusCompleted,
		EventCancel:       StatusCancelled,
	},
	StatusCompleted: {
		EventRefund: StatusRefunded,
	},
}

// ErrBadTransition rejects an event not allowed from the current status.
var ErrBadTransition = shared.NewError(shared.KindBadStatus, "sale status does not allow this operation")

// Transition returns the status after applying the event, or ErrBadTransition
// with the offending pair attached.
func Transition(from Status, event Event) (Status, error) {
	if next, ok := transitions[from][event]; ok {
		return next, nil
	}
	return "", ErrBadTransition.With("from", string(from)).With("event", string(event))
}

// stockHeld reports whether stock has been debited for a sale in this status.
// Cancellation restores inventory only when it is.
func stockHeld(s Status) bool {
	switch s {
	case StatusFulfilled, StatusAwaitingPaymentRecord, StatusPending:
		return true
	}
	return false
}
