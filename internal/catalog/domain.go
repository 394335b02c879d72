package catalog

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// Product is a sellable item scoped to a location. Prices are integer
// minor-currency units. Once a committed sale line references a product its
// price is copied onto the line, so later pricing updates never rewrite
// history.
type Product struct {
	ID                 int64     `json:"id"`
	LocationID         int64     `json:"location_id"`
	Name               string    `json:"name"`
	SKU                *string   `json:"sku,omitempty"`
	Unit               string    `json:"unit"`
	SellingPrice       int64     `json:"selling_price"`
	CostPrice          int64     `json:"cost_price"`
	MaxDiscountPercent float64   `json:"max_discount_percent"`
	IsActive           bool      `json:"is_active"`
	Notes              *string   `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// View is a Product shaped for a specific caller; purchase price is hidden
// from roles that may not see it.
type View struct {
	Product
	PurchasePrice *int64 `json:"purchase_price"`
}

// CreateProductRequest creates a product with a zero opening balance.
type CreateProductRequest struct {
	Name               string  `json:"name" validate:"required,max=200"`
	SKU                *string `json:"sku,omitempty" validate:"omitempty,max=60"`
	Unit               string  `json:"unit" validate:"omitempty,max=30"`
	SellingPrice       int64   `json:"selling_price" validate:"required,gt=0"`
	CostPrice          int64   `json:"cost_price" validate:"gte=0"`
	MaxDiscountPercent float64 `json:"max_discount_percent" validate:"gte=0,lte=100"`
	Notes              *string `json:"notes,omitempty"`
}

// UpdatePricingRequest adjusts the price columns only.
type UpdatePricingRequest struct {
	PurchasePrice      int64   `json:"purchase_price" validate:"gte=0"`
	SellingPrice       int64   `json:"selling_price" validate:"required,gt=0"`
	MaxDiscountPercent float64 `json:"max_discount_percent" validate:"gte=0,lte=100"`
}

// ErrProductNotFound indicates the product does not belong to the location.
var ErrProductNotFound = shared.NewError(shared.KindProductNotFound, "product not found")
