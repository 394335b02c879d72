package sales

import (
	"math"

	"github.com/opentill/opentill/internal/catalog"
)

func clampPercent(pct float64) float64 {
	return math.Min(math.Max(pct, 0), 100)
}

func percentOf(base int64, pct float64) int64 {
	return int64(math.Round(float64(base) * pct / 100))
}

func clampAmount(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// priceLine builds one sale line from a request and its catalog product. The
// unit price defaults to the selling price and may only go below it. The
// percent discount must respect the product maximum; the combined discount is
// clamped to the line base so the total never goes negative.
func priceLine(product catalog.Product, req CreateItemRequest) (Item, error) {
	if req.Qty <= 0 {
		return Item{}, ErrBadQty.With("product_id", product.ID).With("qty", req.Qty)
	}
	unitPrice := product.SellingPrice
	if req.UnitPrice != nil {
		if *req.UnitPrice > product.SellingPrice {
			return Item{}, ErrPriceTooHigh.
				With("product_id", product.ID).
				With("unit_price", *req.UnitPrice).
				With("selling_price", product.SellingPrice)
		}
		unitPrice = *req.UnitPrice
	}
	pct := clampPercent(req.DiscountPercent)
	if pct > product.MaxDiscountPercent {
		return Item{}, ErrDiscountTooHigh.
			With("product_id", product.ID).
			With("discount_percent", pct).
			With("max_discount_percent", product.MaxDiscountPercent)
	}
	base := unitPrice * req.Qty
	discount := clampAmount(percentOf(base, pct)+req.DiscountAmount, 0, base)
	lineTotal := base - discount
	if lineTotal < 0 {
		return Item{}, ErrBadDiscount.With("product_id", product.ID)
	}
	return Item{
		ProductID:       product.ID,
		ProductName:     product.Name,
		Qty:             req.Qty,
		UnitPrice:       unitPrice,
		DiscountPercent: pct,
		DiscountAmount:  req.DiscountAmount,
		DiscountTotal:   discount,
		LineTotal:       lineTotal,
	}, nil
}

// priceSale applies the sale-level discount on top of the priced lines. The
// sale percent is bounded by the strictest per-line product maximum, so a
// whole-sale discount can never exceed what any single product allows.
func priceSale(items []Item, maxLinePercent float64, pct float64, amount int64) (subTotal, discount, total int64, err error) {
	for _, it := range items {
		subTotal += it.LineTotal
	}
	pct = clampPercent(pct)
	if pct > maxLinePercent {
		return 0, 0, 0, ErrSaleDiscountTooHigh.
			With("discount_percent", pct).
			With("max_discount_percent", maxLinePercent)
	}
	discount = clampAmount(percentOf(subTotal, pct)+amount, 0, subTotal)
	total = subTotal - discount
	if total < 0 {
		return 0, 0, 0, ErrBadDiscount
	}
	return subTotal, discount, total, nil
}
