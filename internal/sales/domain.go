// Package sales owns the sale lifecycle: draft capture, fulfillment with
// stock debit, payment marking and the terminal states. Status changes only
// happen through the transition table in statemachine.go.
package sales

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// Status of a sale.
type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusFulfilled             Status = "FULFILLED"
	StatusAwaitingPaymentRecord Status = "AWAITING_PAYMENT_RECORD"
	StatusPending               Status = "PENDING"
	StatusCompleted             Status = "COMPLETED"
	StatusCancelled             Status = "CANCELLED"
	StatusRefunded              Status = "REFUNDED"
)

// Payment methods a seller may declare on a sale. The ledger knows more
// methods; sale marking is restricted to what the till accepts.
const (
	MethodCash = "CASH"
	MethodMomo = "MOMO"
	MethodBank = "BANK"
)

// Sale is the aggregate root. Money columns are integer minor units; line
// prices are copied from the catalog at capture time and never rewritten.
type Sale struct {
	ID              int64      `json:"id"`
	LocationID      int64      `json:"location_id"`
	SellerID        int64      `json:"seller_id"`
	CustomerID      *int64     `json:"customer_id,omitempty"`
	CustomerName    *string    `json:"customer_name,omitempty"`
	CustomerPhone   *string    `json:"customer_phone,omitempty"`
	Status          Status     `json:"status"`
	PaymentMethod   *string    `json:"payment_method,omitempty"`
	SubTotal        int64      `json:"sub_total"`
	DiscountPercent float64    `json:"discount_percent"`
	DiscountAmount  int64      `json:"discount_amount"`
	Total           int64      `json:"total"`
	Note            *string    `json:"note,omitempty"`
	CanceledBy      *int64     `json:"canceled_by,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FulfilledAt     *time.Time `json:"fulfilled_at,omitempty"`
	Items           []Item     `json:"items,omitempty"`
}

// Item is one sale line. DiscountTotal is the applied discount after
// clamping; LineTotal = UnitPrice*Qty - DiscountTotal.
type Item struct {
	ID              int64   `json:"id"`
	SaleID          int64   `json:"sale_id"`
	ProductID       int64   `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Qty             int64   `json:"qty"`
	UnitPrice       int64   `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountAmount  int64   `json:"discount_amount"`
	DiscountTotal   int64   `json:"discount_total"`
	LineTotal       int64   `json:"line_total"`
}

// CreateItemRequest is one requested line. UnitPrice overrides the catalog
// selling price when set; it may only go below it.
type CreateItemRequest struct {
	ProductID       int64   `json:"product_id" validate:"required,gt=0"`
	Qty             int64   `json:"qty" validate:"required,gt=0"`
	UnitPrice       *int64  `json:"unit_price,omitempty" validate:"omitempty,gt=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountAmount  int64   `json:"discount_amount" validate:"gte=0"`
}

// CreateSaleRequest captures a draft sale. The customer is optional: a
// registered customer id, free-text name/phone, or nothing at all.
type CreateSaleRequest struct {
	Items           []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
	CustomerID      *int64              `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	CustomerName    *string             `json:"customer_name,omitempty" validate:"omitempty,max=200"`
	CustomerPhone   *string             `json:"customer_phone,omitempty" validate:"omitempty,max=30"`
	DiscountPercent float64             `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountAmount  int64               `json:"discount_amount" validate:"gte=0"`
	Note            *string             `json:"note,omitempty" validate:"omitempty,max=500"`
}

// MarkRequest declares how a fulfilled sale will be paid.
type MarkRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=CASH MOMO BANK"`
}

// FulfillRequest optionally patches the sale note at fulfillment.
type FulfillRequest struct {
	Note *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// CancelRequest voids a sale with a recorded reason.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ListFilter narrows sale listings.
type ListFilter struct {
	Status   Status
	SellerID int64
	Page     shared.CursorPage
}

var (
	ErrNotFound                   = shared.NewError(shared.KindNotFound, "sale not found")
	ErrNoItems                    = shared.NewError(shared.KindNoItems, "sale has no items")
	ErrBadQty                     = shared.NewError(shared.KindBadQty, "quantity must be positive")
	ErrInsufficientInventoryStock = shared.NewError(shared.KindInsufficientInventoryStock, "not enough stock to fulfill the sale")
	ErrBadDiscount                = shared.NewError(shared.KindBadDiscount, "discount would make the total negative")
	ErrDiscountTooHigh            = shared.NewError(shared.KindDiscountTooHigh, "line discount exceeds the product maximum")
	ErrSaleDiscountTooHigh        = shared.NewError(shared.KindSaleDiscountTooHigh, "sale discount exceeds the strictest product maximum")
	ErrPriceTooHigh               = shared.NewError(shared.KindPriceTooHigh, "unit price above the selling price")
	ErrBadPaymentMethod           = shared.NewError(shared.KindBadPaymentMethod, "unsupported payment method")
)
