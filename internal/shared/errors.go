package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a workflow failure. The HTTP boundary maps kinds to status
// codes; services only ever return the kind plus structured context.
type Kind string

const (
	KindNotFound                   Kind = "NOT_FOUND"
	KindBadStatus                  Kind = "BAD_STATUS"
	KindBadQty                     Kind = "BAD_QTY"
	KindBadDiscount                Kind = "BAD_DISCOUNT"
	KindDiscountTooHigh            Kind = "DISCOUNT_TOO_HIGH"
	KindSaleDiscountTooHigh        Kind = "SALE_DISCOUNT_TOO_HIGH"
	KindPriceTooHigh               Kind = "PRICE_TOO_HIGH"
	KindProductNotFound            Kind = "PRODUCT_NOT_FOUND"
	KindNoItems                    Kind = "NO_ITEMS"
	KindInsufficientInventoryStock Kind = "INSUFFICIENT_INVENTORY_STOCK"
	KindInsufficientStock          Kind = "INSUFFICIENT_STOCK"
	KindBadAmount                  Kind = "BAD_AMOUNT"
	KindNoOpenSession              Kind = "NO_OPEN_SESSION"
	KindDuplicatePayment           Kind = "DUPLICATE_PAYMENT"
	KindDuplicateCredit            Kind = "DUPLICATE_CREDIT"
	KindAlreadyRefunded            Kind = "ALREADY_REFUNDED"
	KindNotApproved                Kind = "NOT_APPROVED"
	KindForbidden                  Kind = "FORBIDDEN"
	KindBadPaymentMethod           Kind = "BAD_PAYMENT_METHOD"
	KindValidation                 Kind = "VALIDATION"
	KindConflict                   Kind = "CONFLICT"
)

// Error is a tagged workflow error. Fields carry machine-readable debug
// context such as available vs needed quantity.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
}

// NewError constructs a tagged error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Error renders the message with sorted context fields appended.
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, e.Fields[k])
	}
	b.WriteString(")")
	return b.String()
}

// With returns a copy of the error carrying an extra context field, so
// package-level sentinels stay immutable.
func (e *Error) With(key string, value any) *Error {
	fields := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Fields: fields}
}

// Is matches any *Error with the same kind, making errors.Is work against
// package sentinels regardless of attached context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the kind from a tagged error, or "" for untagged errors.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return ""
}
