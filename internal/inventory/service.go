package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListBalances(ctx context.Context, locationID int64) ([]BalanceRow, error)
}

// BalanceRow joins a product with its stock for listings.
type BalanceRow struct {
	ProductID          int64      `json:"product_id"`
	Name               string     `json:"name"`
	SKU                *string    `json:"sku,omitempty"`
	Unit               string     `json:"unit"`
	SellingPrice       int64      `json:"selling_price"`
	MaxDiscountPercent float64    `json:"max_discount_percent"`
	QtyOnHand          int64      `json:"qty_on_hand"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// Service coordinates stock adjustments.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Adjust applies a manual stock change (restock or correction). The product
// must belong to the caller's location and the resulting quantity must stay
// non-negative; the check and the write share one transaction with the audit
// entry, which is keyed by product id.
func (s *Service) Adjust(ctx context.Context, actor shared.Principal, req AdjustRequest) (AdjustResult, error) {
	if req.QtyChange == 0 {
		return AdjustResult{}, ErrInvalidQuantity
	}
	var result AdjustResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProduct(ctx, actor.LocationID, req.ProductID)
		if err != nil {
			return err
		}
		balance, err := ApplyDelta(ctx, tx, actor.LocationID, req.ProductID, req.QtyChange)
		if err != nil {
			return err
		}
		result = AdjustResult{ProductID: req.ProductID, NewQtyOnHand: balance.QtyOnHand}
		reason := req.Reason
		if reason == "" {
			reason = "-"
		}
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "INVENTORY_ADJUST",
			Entity:      "inventory_balance",
			EntityID:    req.ProductID,
			Description: fmt.Sprintf("Product %s: qtyChange=%d. Reason: %s", product.Name, req.QtyChange, reason),
		})
	})
	if err != nil {
		return AdjustResult{}, err
	}
	return result, nil
}

// ListBalances lists stock joined with product info for the location.
func (s *Service) ListBalances(ctx context.Context, actor shared.Principal) ([]BalanceRow, error) {
	return s.repo.ListBalances(ctx, actor.LocationID)
}
